package orderbook

// FilledOrder records one consumed part of an order: who made it, where the
// counter-funds go, and which escrow holds the locked principal. Cancellation
// flips IsActive but never frees the (orderHash, partIndex) slot.
type FilledOrder struct {
	OrderHash  [32]byte
	Maker      [20]byte
	Recipient  [20]byte
	EscrowID   [32]byte
	PartIndex  uint64
	TotalParts uint32
	IsActive   bool
}
