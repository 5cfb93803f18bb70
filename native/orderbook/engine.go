package orderbook

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"swapnet/core/events"
	"swapnet/native/auth"
	"swapnet/native/escrow"
)

// CancellationOffset derives an escrow's cancellation window from the
// caller-supplied withdrawal start on every fill.
const CancellationOffset = 86_400

var (
	errNilStore   = errors.New("orderbook: storage not configured")
	errNilFactory = errors.New("orderbook: escrow factory not configured")
	errNilAuth    = errors.New("orderbook: authorizer not configured")
)

// Storage abstracts the subset of state manager functionality required by the
// order book.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// EscrowFactory is the escrow-ledger capability the book depends on. The
// dependency edge is one-directional: the ledger knows nothing about orders.
type EscrowFactory interface {
	CreateSource(caller [20]byte, p escrow.SourceParams) ([32]byte, error)
	Cancel(caller [20]byte, id [32]byte) error
}

// FillParams carries everything needed to fill one part of an order.
type FillParams struct {
	OrderHash    [32]byte
	Maker        [20]byte
	Recipient    [20]byte
	Amount       *big.Int
	HashedSecret [32]byte
	Token        string

	WithdrawalStart       uint64
	PublicWithdrawalStart uint64

	PartIndex  uint64
	TotalParts uint32
}

// Book owns per-order fill bookkeeping and the maker allowance table. Fills
// are deliberately signature-free: the maker's standing is the allowance they
// granted, which lets a matching service fill on their behalf.
type Book struct {
	mu      sync.Mutex
	store   Storage
	factory EscrowFactory
	auth    auth.Authorizer
	emitter events.Emitter
	addr    [20]byte
}

// NewBook constructs an order book. addr is the book's module identity; it is
// the caller the escrow ledger sees and the spender for delegated pulls.
func NewBook(store Storage, factory EscrowFactory, authorizer auth.Authorizer, addr [20]byte) *Book {
	return &Book{
		store:   store,
		factory: factory,
		auth:    authorizer,
		emitter: events.NoopEmitter{},
		addr:    addr,
	}
}

// Address returns the book's module identity.
func (b *Book) Address() [20]byte { return b.addr }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (b *Book) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		b.emitter = events.NoopEmitter{}
		return
	}
	b.emitter = emitter
}

func (b *Book) ready() error {
	if b.store == nil {
		return errNilStore
	}
	if b.factory == nil {
		return errNilFactory
	}
	if b.auth == nil {
		return errNilAuth
	}
	return nil
}

// Approve sets the owner's allowance for this book to exactly amount.
func (b *Book) Approve(owner [20]byte, amount *big.Int) error {
	if err := b.ready(); err != nil {
		return err
	}
	if err := b.auth.RequireAuthorization(owner); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if amount == nil || amount.Sign() < 0 || amount.BitLen() > 127 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.KVPut(allowanceKey(owner), amount)
}

// Allowance reports the remaining amount the book may commit from owner.
func (b *Book) Allowance(owner [20]byte) (*big.Int, error) {
	if b.store == nil {
		return nil, errNilStore
	}
	value := new(big.Int)
	ok, err := b.store.KVGet(allowanceKey(owner), value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// FillOrder consumes one part of an order: it debits the maker's allowance,
// has the escrow ledger lock the principal, and records the filled part. A
// (orderHash, partIndex) pair can be filled at most once, ever.
func (b *Book) FillOrder(p FillParams) ([32]byte, error) {
	if err := b.ready(); err != nil {
		return [32]byte{}, err
	}
	if p.TotalParts == 0 {
		return [32]byte{}, ErrInvalidPartCount
	}
	if p.PartIndex >= uint64(p.TotalParts) {
		return [32]byte{}, ErrInvalidPartIndex
	}
	if p.Amount == nil || p.Amount.Sign() <= 0 || p.Amount.BitLen() > 127 {
		return [32]byte{}, ErrInvalidAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var filled bool
	if _, err := b.store.KVGet(partKey(p.OrderHash, p.PartIndex), &filled); err != nil {
		return [32]byte{}, err
	}
	if filled {
		return [32]byte{}, ErrAlreadyFilled
	}

	current, err := b.Allowance(p.Maker)
	if err != nil {
		return [32]byte{}, err
	}
	if current.Cmp(p.Amount) < 0 {
		return [32]byte{}, ErrInsufficientAllowance
	}

	escrowID, err := b.factory.CreateSource(b.addr, escrow.SourceParams{
		Maker:                 p.Maker,
		Recipient:             p.Recipient,
		HashedSecret:          p.HashedSecret,
		Token:                 p.Token,
		Amount:                p.Amount,
		WithdrawalStart:       p.WithdrawalStart,
		PublicWithdrawalStart: p.PublicWithdrawalStart,
		CancellationStart:     p.WithdrawalStart + CancellationOffset,
		PartIndex:             p.PartIndex,
		TotalParts:            p.TotalParts,
		Mode:                  escrow.FundingDelegated,
	})
	if err != nil {
		return [32]byte{}, err
	}

	// The escrow leg succeeded; commit the book-side state.
	if err := b.store.KVPut(allowanceKey(p.Maker), new(big.Int).Sub(current, p.Amount)); err != nil {
		return [32]byte{}, err
	}

	part := FilledOrder{
		OrderHash:  p.OrderHash,
		Maker:      p.Maker,
		Recipient:  p.Recipient,
		EscrowID:   escrowID,
		PartIndex:  p.PartIndex,
		TotalParts: p.TotalParts,
		IsActive:   true,
	}
	var parts []FilledOrder
	if _, err := b.store.KVGet(filledKey(p.OrderHash), &parts); err != nil {
		return [32]byte{}, err
	}
	parts = append(parts, part)
	if err := b.store.KVPut(filledKey(p.OrderHash), parts); err != nil {
		return [32]byte{}, err
	}
	if err := b.store.KVPut(partKey(p.OrderHash, p.PartIndex), true); err != nil {
		return [32]byte{}, err
	}

	var count uint64
	if _, err := b.store.KVGet(segmentsKey(p.OrderHash), &count); err != nil {
		return [32]byte{}, err
	}
	if err := b.store.KVPut(segmentsKey(p.OrderHash), count+1); err != nil {
		return [32]byte{}, err
	}
	if count == 0 {
		if err := b.store.KVAppend(userKey(p.Maker), p.OrderHash[:]); err != nil {
			return [32]byte{}, err
		}
	}

	b.emit(newFilledEvent(&part))
	return escrowID, nil
}

// CancelOrder cancels one filled part on the maker's behalf, forwarding the
// escrow cancellation to the ledger. The slot stays consumed.
func (b *Book) CancelOrder(caller [20]byte, orderHash [32]byte, partIndex uint64) error {
	if err := b.ready(); err != nil {
		return err
	}
	if err := b.auth.RequireAuthorization(caller); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var filled bool
	if _, err := b.store.KVGet(partKey(orderHash, partIndex), &filled); err != nil {
		return err
	}
	if !filled {
		return ErrPartNotFilled
	}

	var parts []FilledOrder
	if _, err := b.store.KVGet(filledKey(orderHash), &parts); err != nil {
		return err
	}
	for i := range parts {
		if parts[i].PartIndex != partIndex {
			continue
		}
		if !parts[i].IsActive {
			return ErrAlreadyCancelled
		}
		if parts[i].Maker != caller {
			return ErrUnauthorized
		}
		if err := b.factory.Cancel(caller, parts[i].EscrowID); err != nil {
			return err
		}
		parts[i].IsActive = false
		if err := b.store.KVPut(filledKey(orderHash), parts); err != nil {
			return err
		}
		b.emit(newCancelledEvent(&parts[i]))
		return nil
	}
	return ErrPartNotFound
}

// Order returns every filled part recorded for the order hash.
func (b *Book) Order(orderHash [32]byte) ([]FilledOrder, error) {
	if b.store == nil {
		return nil, errNilStore
	}
	var parts []FilledOrder
	if _, err := b.store.KVGet(filledKey(orderHash), &parts); err != nil {
		return nil, err
	}
	return parts, nil
}

// OrderPart returns the filled part with the given index.
func (b *Book) OrderPart(orderHash [32]byte, partIndex uint64) (FilledOrder, error) {
	if b.store == nil {
		return FilledOrder{}, errNilStore
	}
	var filled bool
	if _, err := b.store.KVGet(partKey(orderHash, partIndex), &filled); err != nil {
		return FilledOrder{}, err
	}
	if !filled {
		return FilledOrder{}, ErrPartNotFilled
	}
	var parts []FilledOrder
	if _, err := b.store.KVGet(filledKey(orderHash), &parts); err != nil {
		return FilledOrder{}, err
	}
	for _, part := range parts {
		if part.PartIndex == partIndex {
			return part, nil
		}
	}
	return FilledOrder{}, ErrPartNotFound
}

// RemainingSegments reports how many parts of the order are still open. For
// non-partial orders the result is 1 until the single part is filled.
func (b *Book) RemainingSegments(orderHash [32]byte, totalParts uint32) (uint64, error) {
	if b.store == nil {
		return 0, errNilStore
	}
	if totalParts <= 1 {
		var filled bool
		if _, err := b.store.KVGet(partKey(orderHash, 0), &filled); err != nil {
			return 0, err
		}
		if filled {
			return 0, nil
		}
		return 1, nil
	}
	var count uint64
	if _, err := b.store.KVGet(segmentsKey(orderHash), &count); err != nil {
		return 0, err
	}
	return uint64(totalParts) - count, nil
}

// IsPartAvailable reports whether a part index has not been consumed yet.
func (b *Book) IsPartAvailable(orderHash [32]byte, partIndex uint64) (bool, error) {
	if b.store == nil {
		return false, errNilStore
	}
	var filled bool
	if _, err := b.store.KVGet(partKey(orderHash, partIndex), &filled); err != nil {
		return false, err
	}
	return !filled, nil
}

// AvailablePartIndices enumerates the unconsumed part indices of an order.
func (b *Book) AvailablePartIndices(orderHash [32]byte, totalParts uint32) ([]uint64, error) {
	if b.store == nil {
		return nil, errNilStore
	}
	available := make([]uint64, 0, totalParts)
	for i := uint64(0); i < uint64(totalParts); i++ {
		var filled bool
		if _, err := b.store.KVGet(partKey(orderHash, i), &filled); err != nil {
			return nil, err
		}
		if !filled {
			available = append(available, i)
		}
	}
	return available, nil
}

// UserFilledOrders lists the order hashes a maker has had filled, in first-
// fill order.
func (b *Book) UserFilledOrders(addr [20]byte) ([][32]byte, error) {
	if b.store == nil {
		return nil, errNilStore
	}
	var raw [][]byte
	if err := b.store.KVGetList(userKey(addr), &raw); err != nil {
		return nil, err
	}
	hashes := make([][32]byte, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 32 {
			return nil, fmt.Errorf("orderbook: malformed index entry of %d bytes", len(entry))
		}
		var hash [32]byte
		copy(hash[:], entry)
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

func (b *Book) emit(event *bookEvent) {
	if b.emitter != nil && event != nil {
		b.emitter.Emit(event)
	}
}
