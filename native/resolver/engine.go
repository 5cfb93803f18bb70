package resolver

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"swapnet/core/events"
	"swapnet/native/auth"
	"swapnet/native/escrow"
	"swapnet/native/orderbook"
)

// PublicWithdrawalOffset derives the public withdrawal boundary from the
// withdrawal start when the orchestrator initiates a swap.
const PublicWithdrawalOffset = 1800

var (
	ErrUnauthorized  = errors.New("resolver: caller is not the owner")
	ErrProofRequired = errors.New("resolver: merkle proof required for partial fills")

	errNilBook   = errors.New("resolver: order book not configured")
	errNilLedger = errors.New("resolver: escrow ledger not configured")
	errNilAuth   = errors.New("resolver: authorizer not configured")
	errNoEscrows = errors.New("resolver: creator has no escrows")
)

// OrderBook is the order-matching capability the orchestrator composes.
type OrderBook interface {
	FillOrder(p orderbook.FillParams) ([32]byte, error)
	CancelOrder(caller [20]byte, orderHash [32]byte, partIndex uint64) error
	Order(orderHash [32]byte) ([]orderbook.FilledOrder, error)
	OrderPart(orderHash [32]byte, partIndex uint64) (orderbook.FilledOrder, error)
	RemainingSegments(orderHash [32]byte, totalParts uint32) (uint64, error)
	IsPartAvailable(orderHash [32]byte, partIndex uint64) (bool, error)
	AvailablePartIndices(orderHash [32]byte, totalParts uint32) ([]uint64, error)
	UserFilledOrders(addr [20]byte) ([][32]byte, error)
}

// EscrowLedger is the escrow capability the orchestrator composes.
type EscrowLedger interface {
	CreateDestination(caller [20]byte, p escrow.DestinationParams) ([32]byte, error)
	GetSource(id [32]byte) (*escrow.Escrow, error)
	GetDestination(id [32]byte) (*escrow.Escrow, error)
	Withdraw(caller [20]byte, id [32]byte, secret []byte) error
	WithdrawWithProof(caller [20]byte, id [32]byte, secret []byte, proof [][32]byte) error
	UserEscrows(addr [20]byte) ([][32]byte, error)
}

// SwapParams describes one leg of a cross-chain swap initiation.
type SwapParams struct {
	OrderHash    [32]byte
	Maker        [20]byte
	Recipient    [20]byte
	Amount       *big.Int
	HashedSecret [32]byte
	Token        string

	WithdrawalStart uint64

	PartIndex  uint64
	TotalParts uint32
}

// Orchestrator is the privileged coordinator composing order fills and escrow
// redemption into a cross-chain swap workflow. Every mutating entry point is
// restricted to the configured owner.
type Orchestrator struct {
	mu      sync.Mutex
	book    OrderBook
	ledger  EscrowLedger
	auth    auth.Authorizer
	emitter events.Emitter
	owner   [20]byte
}

// NewOrchestrator wires the orchestrator to its collaborators. Dependencies
// are one-directional: the book and ledger never call back into the
// orchestrator.
func NewOrchestrator(book OrderBook, ledger EscrowLedger, authorizer auth.Authorizer, owner [20]byte) *Orchestrator {
	return &Orchestrator{
		book:    book,
		ledger:  ledger,
		auth:    authorizer,
		emitter: events.NoopEmitter{},
		owner:   owner,
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (o *Orchestrator) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		o.emitter = events.NoopEmitter{}
		return
	}
	o.emitter = emitter
}

func (o *Orchestrator) ready() error {
	if o.book == nil {
		return errNilBook
	}
	if o.ledger == nil {
		return errNilLedger
	}
	if o.auth == nil {
		return errNilAuth
	}
	return nil
}

// requireOwner gates every mutating entry point on the configured owner and
// then on the authorization substrate.
func (o *Orchestrator) requireOwner(caller [20]byte) error {
	if caller != o.owner {
		return ErrUnauthorized
	}
	if err := o.auth.RequireAuthorization(caller); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return nil
}

// ExecuteCrossChainSwap fills one part of an order, deriving the public
// withdrawal boundary, and returns the source escrow identifier.
func (o *Orchestrator) ExecuteCrossChainSwap(caller [20]byte, p SwapParams) ([32]byte, error) {
	if err := o.ready(); err != nil {
		return [32]byte{}, err
	}
	if err := o.requireOwner(caller); err != nil {
		return [32]byte{}, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	escrowID, err := o.book.FillOrder(orderbook.FillParams{
		OrderHash:             p.OrderHash,
		Maker:                 p.Maker,
		Recipient:             p.Recipient,
		Amount:                p.Amount,
		HashedSecret:          p.HashedSecret,
		Token:                 p.Token,
		WithdrawalStart:       p.WithdrawalStart,
		PublicWithdrawalStart: p.WithdrawalStart + PublicWithdrawalOffset,
		PartIndex:             p.PartIndex,
		TotalParts:            p.TotalParts,
	})
	if err != nil {
		return [32]byte{}, err
	}
	o.emit(newSwapInitiatedEvent(p.OrderHash, escrowID, p.HashedSecret, p.PartIndex))
	return escrowID, nil
}

// withdrawSource branches on the record's fill mode: partial fills demand a
// non-empty proof, full fills take the plain-secret path.
func (o *Orchestrator) withdrawSource(caller [20]byte, escrowID [32]byte, secret []byte, proof [][32]byte) error {
	esc, err := o.ledger.GetSource(escrowID)
	if err != nil {
		return err
	}
	if esc.IsPartialFill {
		if len(proof) == 0 {
			return ErrProofRequired
		}
		return o.ledger.WithdrawWithProof(caller, escrowID, secret, proof)
	}
	return o.ledger.Withdraw(caller, escrowID, secret)
}

// CompleteCrossChainSwap redeems the source escrow of a previously initiated
// swap.
func (o *Orchestrator) CompleteCrossChainSwap(caller [20]byte, escrowID [32]byte, secret []byte, proof [][32]byte) error {
	if err := o.ready(); err != nil {
		return err
	}
	if err := o.requireOwner(caller); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.withdrawSource(caller, escrowID, secret, proof); err != nil {
		return err
	}
	o.emit(newSwapCompletedEvent(escrowID))
	return nil
}

// WithdrawFromSourceEscrow redeems a source escrow once its finality lock has
// passed.
func (o *Orchestrator) WithdrawFromSourceEscrow(caller [20]byte, escrowID [32]byte, secret []byte, proof [][32]byte) error {
	if err := o.ready(); err != nil {
		return err
	}
	if err := o.requireOwner(caller); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.withdrawSource(caller, escrowID, secret, proof)
}

// WithdrawFromDestinationEscrow redeems a destination escrow once its
// finality lock has passed.
func (o *Orchestrator) WithdrawFromDestinationEscrow(caller [20]byte, escrowID [32]byte, secret []byte, proof [][32]byte) error {
	if err := o.ready(); err != nil {
		return err
	}
	if err := o.requireOwner(caller); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	esc, err := o.ledger.GetDestination(escrowID)
	if err != nil {
		return err
	}
	if esc.IsPartialFill {
		if len(proof) == 0 {
			return ErrProofRequired
		}
		return o.ledger.WithdrawWithProof(caller, escrowID, secret, proof)
	}
	return o.ledger.Withdraw(caller, escrowID, secret)
}

// CreateDestinationEscrow creates the paired destination-chain escrow and
// reads the new identifier back from the creator's escrow index.
func (o *Orchestrator) CreateDestinationEscrow(caller [20]byte, p escrow.DestinationParams) ([32]byte, error) {
	if err := o.ready(); err != nil {
		return [32]byte{}, err
	}
	if err := o.requireOwner(caller); err != nil {
		return [32]byte{}, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.ledger.CreateDestination(caller, p); err != nil {
		return [32]byte{}, err
	}
	ids, err := o.ledger.UserEscrows(caller)
	if err != nil {
		return [32]byte{}, err
	}
	if len(ids) == 0 {
		return [32]byte{}, errNoEscrows
	}
	escrowID := ids[len(ids)-1]
	o.emit(newDestinationCreatedEvent(caller, p.Recipient, escrowID))
	return escrowID, nil
}

// CancelOrder forwards a part cancellation to the order book.
func (o *Orchestrator) CancelOrder(caller [20]byte, orderHash [32]byte, partIndex uint64) error {
	if err := o.ready(); err != nil {
		return err
	}
	if err := o.requireOwner(caller); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.book.CancelOrder(caller, orderHash, partIndex)
}

// Read-through queries mirroring the order book surface.

func (o *Orchestrator) Order(orderHash [32]byte) ([]orderbook.FilledOrder, error) {
	if o.book == nil {
		return nil, errNilBook
	}
	return o.book.Order(orderHash)
}

func (o *Orchestrator) OrderPart(orderHash [32]byte, partIndex uint64) (orderbook.FilledOrder, error) {
	if o.book == nil {
		return orderbook.FilledOrder{}, errNilBook
	}
	return o.book.OrderPart(orderHash, partIndex)
}

func (o *Orchestrator) RemainingSegments(orderHash [32]byte, totalParts uint32) (uint64, error) {
	if o.book == nil {
		return 0, errNilBook
	}
	return o.book.RemainingSegments(orderHash, totalParts)
}

func (o *Orchestrator) IsPartAvailable(orderHash [32]byte, partIndex uint64) (bool, error) {
	if o.book == nil {
		return false, errNilBook
	}
	return o.book.IsPartAvailable(orderHash, partIndex)
}

func (o *Orchestrator) AvailablePartIndices(orderHash [32]byte, totalParts uint32) ([]uint64, error) {
	if o.book == nil {
		return nil, errNilBook
	}
	return o.book.AvailablePartIndices(orderHash, totalParts)
}

func (o *Orchestrator) UserFilledOrders(addr [20]byte) ([][32]byte, error) {
	if o.book == nil {
		return nil, errNilBook
	}
	return o.book.UserFilledOrders(addr)
}

func (o *Orchestrator) emit(event *swapEvent) {
	if o.emitter != nil && event != nil {
		o.emitter.Emit(event)
	}
}
