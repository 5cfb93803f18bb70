package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

var (
	ErrInvalidAmount       = errors.New("token: amount must be positive")
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrUnknownSpender      = errors.New("token: spender is not a registered module")
)

// Transferor is the asset-transfer primitive the escrow and order-book
// engines depend on. Transfer moves a principal's own funds; TransferFrom is
// the allowance-pulling variant used when a module moves funds on a maker's
// behalf. Implementations must fail without partial effect.
type Transferor interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
	TransferFrom(token string, spender, from, to [20]byte, amount *big.Int) error
	Balance(token string, addr [20]byte) (*big.Int, error)
}

// Storage is the subset of state manager functionality the bank needs.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var balancePrefix = []byte("token/balance/")

func balanceKey(token string, addr [20]byte) []byte {
	symbol := strings.ToUpper(strings.TrimSpace(token))
	buf := make([]byte, 0, len(balancePrefix)+len(symbol)+1+len(addr))
	buf = append(buf, balancePrefix...)
	buf = append(buf, symbol...)
	buf = append(buf, '/')
	buf = append(buf, addr[:]...)
	return buf
}

// Bank is a state-backed reference implementation of the transfer primitive.
// Allowance bookkeeping lives in the components that were granted approval
// (escrow ledger, order book); the bank instead restricts TransferFrom to the
// module principals registered at construction.
type Bank struct {
	mu      sync.Mutex
	store   Storage
	modules map[[20]byte]struct{}
}

// NewBank constructs a bank bound to the provided storage. The listed module
// principals are the only addresses allowed to pull third-party funds through
// TransferFrom.
func NewBank(store Storage, modules ...[20]byte) *Bank {
	b := &Bank{store: store, modules: make(map[[20]byte]struct{}, len(modules))}
	for _, m := range modules {
		b.modules[m] = struct{}{}
	}
	return b
}

// Balance returns the current balance, zero when the account is unknown.
func (b *Bank) Balance(token string, addr [20]byte) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance(token, addr)
}

func (b *Bank) balance(token string, addr [20]byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := b.store.KVGet(balanceKey(token, addr), value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// Mint credits freshly issued funds to an account. Used by genesis wiring and
// tests; real deployments seed balances out of band.
func (b *Bank) Mint(token string, addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	current, err := b.balance(token, addr)
	if err != nil {
		return err
	}
	return b.store.KVPut(balanceKey(token, addr), new(big.Int).Add(current, amount))
}

// Transfer moves the sender's own funds. Zero-amount transfers are no-ops.
func (b *Bank) Transfer(token string, from, to [20]byte, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(token, from, to, amount)
}

// TransferFrom moves funds on behalf of a third party. The spender must be a
// registered module principal; component-level allowance checks happen before
// this call.
func (b *Bank) TransferFrom(token string, spender, from, to [20]byte, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.modules[spender]; !ok {
		return fmt.Errorf("%w: %x", ErrUnknownSpender, spender)
	}
	return b.move(token, from, to, amount)
}

func (b *Bank) move(token string, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromBal, err := b.balance(token, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBal, err := b.balance(token, to)
	if err != nil {
		return err
	}
	if err := b.store.KVPut(balanceKey(token, from), new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return b.store.KVPut(balanceKey(token, to), new(big.Int).Add(toBal, amount))
}
