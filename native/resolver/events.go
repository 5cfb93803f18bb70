package resolver

import (
	"encoding/hex"
	"strconv"

	"swapnet/core/types"
)

const (
	EventTypeSwapInitiated      = "resolver.swap_initiated"
	EventTypeSwapCompleted      = "resolver.swap_completed"
	EventTypeDestinationCreated = "resolver.destination_created"
)

type swapEvent struct {
	evt *types.Event
}

func (e *swapEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

// Event returns the underlying canonical payload.
func (e *swapEvent) Event() *types.Event { return e.evt }

func newSwapInitiatedEvent(orderHash, escrowID, hashedSecret [32]byte, partIndex uint64) *swapEvent {
	return &swapEvent{evt: &types.Event{Type: EventTypeSwapInitiated, Attributes: map[string]string{
		"orderHash":    hex.EncodeToString(orderHash[:]),
		"escrowId":     hex.EncodeToString(escrowID[:]),
		"hashedSecret": hex.EncodeToString(hashedSecret[:]),
		"partIndex":    strconv.FormatUint(partIndex, 10),
	}}}
}

func newSwapCompletedEvent(escrowID [32]byte) *swapEvent {
	return &swapEvent{evt: &types.Event{Type: EventTypeSwapCompleted, Attributes: map[string]string{
		"escrowId": hex.EncodeToString(escrowID[:]),
	}}}
}

func newDestinationCreatedEvent(creator, recipient [20]byte, escrowID [32]byte) *swapEvent {
	return &swapEvent{evt: &types.Event{Type: EventTypeDestinationCreated, Attributes: map[string]string{
		"creator":   hex.EncodeToString(creator[:]),
		"recipient": hex.EncodeToString(recipient[:]),
		"escrowId":  hex.EncodeToString(escrowID[:]),
	}}}
}
