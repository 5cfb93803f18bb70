package escrow

import (
	"encoding/hex"
	"strconv"

	"swapnet/core/types"
)

const (
	EventTypeCreated   = "escrow.created"
	EventTypeWithdrawn = "escrow.withdrawn"
	EventTypeCancelled = "escrow.cancelled"
	EventTypeRescued   = "escrow.rescued"
)

// watchEvent adapts the canonical event payload to the emitter interface.
type watchEvent struct {
	evt *types.Event
}

func (e *watchEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

// Event returns the underlying canonical payload.
func (e *watchEvent) Event() *types.Event { return e.evt }

func baseAttributes(esc *Escrow) map[string]string {
	attrs := map[string]string{
		"id":        hex.EncodeToString(esc.ID[:]),
		"kind":      esc.Kind.String(),
		"creator":   hex.EncodeToString(esc.Creator[:]),
		"recipient": hex.EncodeToString(esc.Recipient[:]),
		"token":     esc.Token,
		"amount":    esc.Amount.String(),
	}
	if esc.IsPartialFill {
		attrs["partIndex"] = strconv.FormatUint(esc.PartIndex, 10)
		attrs["totalParts"] = strconv.FormatUint(uint64(esc.TotalParts), 10)
	}
	return attrs
}

func newCreatedEvent(esc *Escrow) *watchEvent {
	return &watchEvent{evt: &types.Event{Type: EventTypeCreated, Attributes: baseAttributes(esc)}}
}

func newWithdrawnEvent(esc *Escrow, caller [20]byte, withProof bool) *watchEvent {
	attrs := baseAttributes(esc)
	attrs["caller"] = hex.EncodeToString(caller[:])
	attrs["withProof"] = strconv.FormatBool(withProof)
	return &watchEvent{evt: &types.Event{Type: EventTypeWithdrawn, Attributes: attrs}}
}

func newCancelledEvent(esc *Escrow) *watchEvent {
	return &watchEvent{evt: &types.Event{Type: EventTypeCancelled, Attributes: baseAttributes(esc)}}
}

func newRescuedEvent(esc *Escrow, caller [20]byte) *watchEvent {
	attrs := baseAttributes(esc)
	attrs["caller"] = hex.EncodeToString(caller[:])
	return &watchEvent{evt: &types.Event{Type: EventTypeRescued, Attributes: attrs}}
}
