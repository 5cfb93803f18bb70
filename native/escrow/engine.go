package escrow

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"swapnet/core/events"
	"swapnet/native/auth"
	"swapnet/native/merkle"
	"swapnet/native/token"
)

// Fixed protocol constants. The deposit is escrowed alongside the principal
// and paid out to whoever executes a valid redemption or rescue.
const (
	// RescueDelay is the grace period past the last cancellation boundary
	// before the counter-party may force-withdraw.
	RescueDelay = 7 * 24 * 60 * 60
	// PublicCancellationOffset derives the public cancellation boundary for
	// source escrows created without an explicit one.
	PublicCancellationOffset = 3600
)

var depositAmount = big.NewInt(1_000_000)

// DepositAmount returns the fixed security deposit escrowed with every
// record.
func DepositAmount() *big.Int { return new(big.Int).Set(depositAmount) }

var (
	errNilStore  = errors.New("escrow: storage not configured")
	errNilToken  = errors.New("escrow: transfer primitive not configured")
	errNilAuth   = errors.New("escrow: authorizer not configured")
	errKindMatch = errors.New("escrow: record kind mismatch")
)

// Storage abstracts the subset of state manager functionality required by the
// ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Ledger owns every escrow record, its time windows and the fund movement on
// withdrawal, cancellation and rescue. All mutating methods are serialized by
// one mutex; temporal gating reads the injected clock exactly once per call.
type Ledger struct {
	mu      sync.Mutex
	store   Storage
	token   token.Transferor
	auth    auth.Authorizer
	emitter events.Emitter
	vault   [20]byte
	nowFn   func() uint64
}

// NewLedger constructs a ledger bound to the supplied collaborators. The
// vault address holds locked principal and deposits and acts as the spender
// identity for allowance-mediated pulls.
func NewLedger(store Storage, transferor token.Transferor, authorizer auth.Authorizer, vault [20]byte) *Ledger {
	return &Ledger{
		store:   store,
		token:   transferor,
		auth:    authorizer,
		emitter: events.NoopEmitter{},
		vault:   vault,
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// Vault returns the ledger's fund-holding address.
func (l *Ledger) Vault() [20]byte { return l.vault }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily for tests.
func (l *Ledger) SetNowFunc(now func() uint64) {
	if now == nil {
		l.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	l.nowFn = now
}

func (l *Ledger) emit(event *watchEvent) {
	if l.emitter != nil && event != nil {
		l.emitter.Emit(event)
	}
}

func (l *Ledger) ready() error {
	if l.store == nil {
		return errNilStore
	}
	if l.token == nil {
		return errNilToken
	}
	if l.auth == nil {
		return errNilAuth
	}
	return nil
}

func validAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0 && amount.BitLen() <= 127
}

// Approve sets the owner's allowance for this ledger to exactly amount.
func (l *Ledger) Approve(owner [20]byte, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := l.auth.RequireAuthorization(owner); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if amount == nil || amount.Sign() < 0 || amount.BitLen() > 127 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.KVPut(allowanceKey(owner), amount)
}

// Allowance reports the remaining amount the ledger may pull from owner.
func (l *Ledger) Allowance(owner [20]byte) (*big.Int, error) {
	if l.store == nil {
		return nil, errNilStore
	}
	value := new(big.Int)
	ok, err := l.store.KVGet(allowanceKey(owner), value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (l *Ledger) nextID(creator [20]byte, hashedSecret [32]byte) ([32]byte, error) {
	var counter uint64
	if _, err := l.store.KVGet(escrowCounterKey, &counter); err != nil {
		return [32]byte{}, err
	}
	counter++
	if err := l.store.KVPut(escrowCounterKey, counter); err != nil {
		return [32]byte{}, err
	}
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], counter)
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256(creator[:], nonce[:], hashedSecret[:]))
	return id, nil
}

// CreateSource validates, funds and persists a source-side escrow on behalf
// of caller and returns the new record's identifier. The principal is pulled
// from the maker, either through this ledger's allowance table or through the
// calling component's already-debited table when Mode is FundingDelegated.
// The fixed security deposit is paid directly by the caller.
func (l *Ledger) CreateSource(caller [20]byte, p SourceParams) ([32]byte, error) {
	if err := l.ready(); err != nil {
		return [32]byte{}, err
	}
	if err := l.auth.RequireAuthorization(caller); err != nil {
		return [32]byte{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !validAmount(p.Amount) {
		return [32]byte{}, ErrInvalidAmount
	}
	publicCancellation := p.PublicCancellationStart
	if publicCancellation == 0 {
		publicCancellation = p.CancellationStart + PublicCancellationOffset
	}
	if p.WithdrawalStart >= p.PublicWithdrawalStart ||
		p.PublicWithdrawalStart >= p.CancellationStart ||
		p.CancellationStart >= publicCancellation {
		return [32]byte{}, ErrInvalidTimeWindow
	}
	if p.TotalParts == 0 {
		return [32]byte{}, ErrInvalidPartCount
	}
	isPartial := p.TotalParts > 1
	if isPartial && p.PartIndex >= uint64(p.TotalParts) {
		return [32]byte{}, ErrInvalidPartIndex
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if isPartial {
		var used bool
		if _, err := l.store.KVGet(partUsedKey(p.HashedSecret, p.PartIndex), &used); err != nil {
			return [32]byte{}, err
		}
		if used {
			return [32]byte{}, ErrPartAlreadyUsed
		}
	}

	var ledgerAllowance *big.Int
	if p.Mode == FundingAllowance {
		current, err := l.Allowance(p.Maker)
		if err != nil {
			return [32]byte{}, err
		}
		if current.Cmp(p.Amount) < 0 {
			return [32]byte{}, ErrInsufficientAllowance
		}
		ledgerAllowance = new(big.Int).Sub(current, p.Amount)
	}

	if err := l.checkFunding(p.Token, p.Maker, p.Amount, caller); err != nil {
		return [32]byte{}, err
	}

	// All preconditions hold; mutations from here on cannot fail for
	// protocol reasons.
	if ledgerAllowance != nil {
		if err := l.store.KVPut(allowanceKey(p.Maker), ledgerAllowance); err != nil {
			return [32]byte{}, err
		}
	}
	if isPartial {
		if err := l.reservePart(p.HashedSecret, p.PartIndex); err != nil {
			return [32]byte{}, err
		}
	}

	id, err := l.nextID(p.Maker, p.HashedSecret)
	if err != nil {
		return [32]byte{}, err
	}
	esc := &Escrow{
		ID:                      id,
		Kind:                    KindSource,
		Creator:                 p.Maker,
		Recipient:               p.Recipient,
		HashedSecret:            p.HashedSecret,
		Token:                   p.Token,
		Amount:                  new(big.Int).Set(p.Amount),
		SecurityDeposit:         DepositAmount(),
		WithdrawalStart:         p.WithdrawalStart,
		PublicWithdrawalStart:   p.PublicWithdrawalStart,
		CancellationStart:       p.CancellationStart,
		PublicCancellationStart: publicCancellation,
		PartIndex:               p.PartIndex,
		TotalParts:              p.TotalParts,
		IsPartialFill:           isPartial,
	}

	spender := l.vault
	if p.Mode == FundingDelegated {
		spender = caller
	}
	if err := l.token.TransferFrom(esc.Token, spender, p.Maker, l.vault, esc.Amount); err != nil {
		return [32]byte{}, err
	}
	if err := l.token.Transfer(esc.Token, caller, l.vault, esc.SecurityDeposit); err != nil {
		return [32]byte{}, err
	}

	if err := l.persist(esc); err != nil {
		return [32]byte{}, err
	}
	l.emit(newCreatedEvent(esc))
	return id, nil
}

// CreateDestination validates, funds and persists a destination-side escrow.
// The caller funds both principal and deposit directly and becomes the
// record's creator.
func (l *Ledger) CreateDestination(caller [20]byte, p DestinationParams) ([32]byte, error) {
	if err := l.ready(); err != nil {
		return [32]byte{}, err
	}
	if err := l.auth.RequireAuthorization(caller); err != nil {
		return [32]byte{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !validAmount(p.Amount) {
		return [32]byte{}, ErrInvalidAmount
	}
	if p.WithdrawalStart >= p.PublicWithdrawalStart ||
		p.PublicWithdrawalStart >= p.CancellationStart {
		return [32]byte{}, ErrInvalidTimeWindow
	}
	if p.TotalParts == 0 {
		return [32]byte{}, ErrInvalidPartCount
	}
	isPartial := p.TotalParts > 1
	if isPartial && p.PartIndex >= uint64(p.TotalParts) {
		return [32]byte{}, ErrInvalidPartIndex
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	needed := new(big.Int).Add(p.Amount, depositAmount)
	balance, err := l.token.Balance(p.Token, caller)
	if err != nil {
		return [32]byte{}, err
	}
	if balance.Cmp(needed) < 0 {
		return [32]byte{}, ErrInsufficientFunds
	}

	id, err := l.nextID(caller, p.HashedSecret)
	if err != nil {
		return [32]byte{}, err
	}
	esc := &Escrow{
		ID:                    id,
		Kind:                  KindDestination,
		Creator:               caller,
		Recipient:             p.Recipient,
		HashedSecret:          p.HashedSecret,
		Token:                 p.Token,
		Amount:                new(big.Int).Set(p.Amount),
		SecurityDeposit:       DepositAmount(),
		WithdrawalStart:       p.WithdrawalStart,
		PublicWithdrawalStart: p.PublicWithdrawalStart,
		CancellationStart:     p.CancellationStart,
		PartIndex:             p.PartIndex,
		TotalParts:            p.TotalParts,
		IsPartialFill:         isPartial,
	}

	if err := l.token.Transfer(esc.Token, caller, l.vault, esc.Amount); err != nil {
		return [32]byte{}, err
	}
	if err := l.token.Transfer(esc.Token, caller, l.vault, esc.SecurityDeposit); err != nil {
		return [32]byte{}, err
	}

	if err := l.persist(esc); err != nil {
		return [32]byte{}, err
	}
	l.emit(newCreatedEvent(esc))
	return id, nil
}

// checkFunding verifies both transfer legs of a source creation are solvent
// before any movement happens, so a failed call commits nothing.
func (l *Ledger) checkFunding(tokenSym string, maker [20]byte, amount *big.Int, depositor [20]byte) error {
	makerBal, err := l.token.Balance(tokenSym, maker)
	if err != nil {
		return err
	}
	needed := new(big.Int).Set(amount)
	if maker == depositor {
		needed.Add(needed, depositAmount)
	} else {
		depositBal, err := l.token.Balance(tokenSym, depositor)
		if err != nil {
			return err
		}
		if depositBal.Cmp(depositAmount) < 0 {
			return ErrInsufficientFunds
		}
	}
	if makerBal.Cmp(needed) < 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func (l *Ledger) reservePart(root [32]byte, index uint64) error {
	if err := l.store.KVPut(partUsedKey(root, index), true); err != nil {
		return err
	}
	var count uint64
	if _, err := l.store.KVGet(partCountKey(root), &count); err != nil {
		return err
	}
	return l.store.KVPut(partCountKey(root), count+1)
}

func (l *Ledger) persist(esc *Escrow) error {
	if err := l.store.KVPut(recordKey(esc.ID), toStored(esc)); err != nil {
		return err
	}
	if err := l.store.KVPut(existsKey(esc.ID), true); err != nil {
		return err
	}
	return l.store.KVAppend(userIndexKey(esc.Creator), esc.ID[:])
}

func (l *Ledger) load(id [32]byte) (*Escrow, error) {
	stored := new(storedEscrow)
	ok, err := l.store.KVGet(recordKey(id), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return fromStored(stored), nil
}

// Get returns a copy of the record with the given identifier.
func (l *Ledger) Get(id [32]byte) (*Escrow, error) {
	if l.store == nil {
		return nil, errNilStore
	}
	esc, err := l.load(id)
	if err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}

// GetSource returns the record when it is a source escrow.
func (l *Ledger) GetSource(id [32]byte) (*Escrow, error) {
	esc, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	if esc.Kind != KindSource {
		return nil, fmt.Errorf("%w: want source, got %s", errKindMatch, esc.Kind)
	}
	return esc, nil
}

// GetDestination returns the record when it is a destination escrow.
func (l *Ledger) GetDestination(id [32]byte) (*Escrow, error) {
	esc, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	if esc.Kind != KindDestination {
		return nil, fmt.Errorf("%w: want destination, got %s", errKindMatch, esc.Kind)
	}
	return esc, nil
}

// IsEscrow reports whether an identifier names a known record.
func (l *Ledger) IsEscrow(id [32]byte) (bool, error) {
	if l.store == nil {
		return false, errNilStore
	}
	var exists bool
	if _, err := l.store.KVGet(existsKey(id), &exists); err != nil {
		return false, err
	}
	return exists, nil
}

// UserEscrows lists the identifiers created by the given principal, in
// creation order.
func (l *Ledger) UserEscrows(addr [20]byte) ([][32]byte, error) {
	if l.store == nil {
		return nil, errNilStore
	}
	var raw [][]byte
	if err := l.store.KVGetList(userIndexKey(addr), &raw); err != nil {
		return nil, err
	}
	ids := make([][32]byte, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 32 {
			return nil, fmt.Errorf("escrow: malformed index entry of %d bytes", len(entry))
		}
		var id [32]byte
		copy(id[:], entry)
		ids = append(ids, id)
	}
	return ids, nil
}

// PartUsed reports whether the given leaf of a partial-fill commitment has
// already been reserved.
func (l *Ledger) PartUsed(root [32]byte, index uint64) (bool, error) {
	if l.store == nil {
		return false, errNilStore
	}
	var used bool
	if _, err := l.store.KVGet(partUsedKey(root, index), &used); err != nil {
		return false, err
	}
	return used, nil
}

// PartialFillCount returns how many parts have been consumed for a
// commitment root.
func (l *Ledger) PartialFillCount(root [32]byte) (uint64, error) {
	if l.store == nil {
		return 0, errNilStore
	}
	var count uint64
	if _, err := l.store.KVGet(partCountKey(root), &count); err != nil {
		return 0, err
	}
	return count, nil
}

// checkWithdrawable enforces the shared withdrawal preconditions: the record
// is live, the window is open, and the caller has standing during the
// private sub-window.
func checkWithdrawable(esc *Escrow, caller [20]byte, now uint64) error {
	if esc.FundsWithdrawn {
		return ErrAlreadyWithdrawn
	}
	if esc.Cancelled {
		return ErrAlreadyCancelled
	}
	if now < esc.WithdrawalStart {
		return ErrNotYetOpen
	}
	if now >= esc.CancellationStart {
		return ErrWindowClosed
	}
	if now < esc.PublicWithdrawalStart {
		switch esc.Kind {
		case KindSource:
			if caller != esc.Recipient {
				return ErrUnauthorized
			}
		case KindDestination:
			if caller != esc.Recipient && caller != esc.Creator {
				return ErrUnauthorized
			}
		}
	}
	return nil
}

// payoutWithdrawal releases the principal to the contractual recipient and
// the security deposit to whoever executed the call, then marks the record
// withdrawn.
func (l *Ledger) payoutWithdrawal(esc *Escrow, caller [20]byte) error {
	vaultBal, err := l.token.Balance(esc.Token, l.vault)
	if err != nil {
		return err
	}
	total := new(big.Int).Add(esc.Amount, esc.SecurityDeposit)
	if vaultBal.Cmp(total) < 0 {
		return ErrInsufficientFunds
	}
	if err := l.token.Transfer(esc.Token, l.vault, esc.Recipient, esc.Amount); err != nil {
		return err
	}
	if err := l.token.Transfer(esc.Token, l.vault, caller, esc.SecurityDeposit); err != nil {
		return err
	}
	esc.FundsWithdrawn = true
	return l.store.KVPut(recordKey(esc.ID), toStored(esc))
}

// Withdraw redeems a full-fill escrow with the secret preimage.
func (l *Ledger) Withdraw(caller [20]byte, id [32]byte, secret []byte) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := l.auth.RequireAuthorization(caller); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	esc, err := l.load(id)
	if err != nil {
		return err
	}
	now := l.nowFn()
	if err := checkWithdrawable(esc, caller, now); err != nil {
		return err
	}
	if sha256.Sum256(secret) != esc.HashedSecret {
		return ErrInvalidSecret
	}
	if err := l.payoutWithdrawal(esc, caller); err != nil {
		return err
	}
	l.emit(newWithdrawnEvent(esc, caller, false))
	return nil
}

// WithdrawWithProof redeems one part of a partial-fill escrow. The record's
// hashed secret is treated as a merkle root; the leaf is derived from the
// record's part index and the SHA-256 of the revealed secret.
func (l *Ledger) WithdrawWithProof(caller [20]byte, id [32]byte, secret []byte, proof [][32]byte) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := l.auth.RequireAuthorization(caller); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	esc, err := l.load(id)
	if err != nil {
		return err
	}
	now := l.nowFn()
	if err := checkWithdrawable(esc, caller, now); err != nil {
		return err
	}
	if !esc.IsPartialFill {
		return ErrNotPartialFill
	}
	leaf := merkle.Leaf(esc.PartIndex, sha256.Sum256(secret))
	if !merkle.Verify(proof, esc.HashedSecret, leaf) {
		return ErrInvalidProof
	}
	if err := l.payoutWithdrawal(esc, caller); err != nil {
		return err
	}
	l.emit(newWithdrawnEvent(esc, caller, true))
	return nil
}

// Cancel returns principal and deposit to the creator once the cancellation
// window opens. Source escrows additionally reject cancellation at or after
// the public cancellation boundary; see the package tests for the pinned
// behaviour.
func (l *Ledger) Cancel(caller [20]byte, id [32]byte) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := l.auth.RequireAuthorization(caller); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	esc, err := l.load(id)
	if err != nil {
		return err
	}
	if esc.FundsWithdrawn {
		return ErrAlreadyWithdrawn
	}
	if esc.Cancelled {
		return ErrAlreadyCancelled
	}
	now := l.nowFn()
	if now < esc.CancellationStart {
		return ErrNotYetOpen
	}
	if esc.Kind == KindSource && now >= esc.PublicCancellationStart {
		return ErrWindowClosed
	}
	if caller != esc.Creator {
		return ErrUnauthorized
	}

	vaultBal, err := l.token.Balance(esc.Token, l.vault)
	if err != nil {
		return err
	}
	total := new(big.Int).Add(esc.Amount, esc.SecurityDeposit)
	if vaultBal.Cmp(total) < 0 {
		return ErrInsufficientFunds
	}
	if err := l.token.Transfer(esc.Token, l.vault, esc.Creator, esc.Amount); err != nil {
		return err
	}
	if err := l.token.Transfer(esc.Token, l.vault, esc.Creator, esc.SecurityDeposit); err != nil {
		return err
	}
	esc.Cancelled = true
	if err := l.store.KVPut(recordKey(esc.ID), toStored(esc)); err != nil {
		return err
	}
	l.emit(newCancelledEvent(esc))
	return nil
}

// rescueBoundary is the earliest time the counter-party may force-withdraw.
func rescueBoundary(esc *Escrow) uint64 {
	if esc.Kind == KindSource {
		return esc.PublicCancellationStart + RescueDelay
	}
	return esc.CancellationStart + RescueDelay
}

// rescuer is the principal allowed to invoke the rescue path.
func rescuer(esc *Escrow) [20]byte {
	if esc.Kind == KindSource {
		return esc.Recipient
	}
	return esc.Creator
}

// Rescue lets the designated counter-party recover the locked principal once
// the rescue delay has fully elapsed, bypassing the hashlock. The deposit
// returns to the creator.
func (l *Ledger) Rescue(caller [20]byte, id [32]byte) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := l.auth.RequireAuthorization(caller); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	esc, err := l.load(id)
	if err != nil {
		return err
	}
	if esc.FundsWithdrawn {
		return ErrAlreadyWithdrawn
	}
	if esc.Cancelled {
		return ErrAlreadyCancelled
	}
	if l.nowFn() < rescueBoundary(esc) {
		return ErrNotYetOpen
	}
	target := rescuer(esc)
	if caller != target {
		return ErrUnauthorized
	}

	vaultBal, err := l.token.Balance(esc.Token, l.vault)
	if err != nil {
		return err
	}
	total := new(big.Int).Add(esc.Amount, esc.SecurityDeposit)
	if vaultBal.Cmp(total) < 0 {
		return ErrInsufficientFunds
	}
	if err := l.token.Transfer(esc.Token, l.vault, target, esc.Amount); err != nil {
		return err
	}
	if err := l.token.Transfer(esc.Token, l.vault, esc.Creator, esc.SecurityDeposit); err != nil {
		return err
	}
	esc.FundsWithdrawn = true
	if err := l.store.KVPut(recordKey(esc.ID), toStored(esc)); err != nil {
		return err
	}
	l.emit(newRescuedEvent(esc, caller))
	return nil
}
