package orderbook

import (
	"encoding/hex"
	"strconv"

	"swapnet/core/types"
)

const (
	EventTypeFilled    = "orderbook.filled"
	EventTypeCancelled = "orderbook.cancelled"
)

type bookEvent struct {
	evt *types.Event
}

func (e *bookEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

// Event returns the underlying canonical payload.
func (e *bookEvent) Event() *types.Event { return e.evt }

func partAttributes(part *FilledOrder) map[string]string {
	return map[string]string{
		"orderHash":  hex.EncodeToString(part.OrderHash[:]),
		"maker":      hex.EncodeToString(part.Maker[:]),
		"recipient":  hex.EncodeToString(part.Recipient[:]),
		"escrowId":   hex.EncodeToString(part.EscrowID[:]),
		"partIndex":  strconv.FormatUint(part.PartIndex, 10),
		"totalParts": strconv.FormatUint(uint64(part.TotalParts), 10),
	}
}

func newFilledEvent(part *FilledOrder) *bookEvent {
	return &bookEvent{evt: &types.Event{Type: EventTypeFilled, Attributes: partAttributes(part)}}
}

func newCancelledEvent(part *FilledOrder) *bookEvent {
	return &bookEvent{evt: &types.Event{Type: EventTypeCancelled, Attributes: partAttributes(part)}}
}
