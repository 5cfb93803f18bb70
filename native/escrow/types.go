package escrow

import "math/big"

// Kind distinguishes the two escrow sides of a cross-chain swap.
type Kind uint8

const (
	KindSource Kind = iota + 1
	KindDestination
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindDestination:
		return "destination"
	default:
		return "unknown"
	}
}

// Escrow is a single hashlock/timelock record managed by the ledger. For full
// fills HashedSecret is SHA-256 of the secret; for partial fills it is the
// merkle root over all part leaves. PublicCancellationStart is only set for
// source escrows.
type Escrow struct {
	ID              [32]byte
	Kind            Kind
	Creator         [20]byte
	Recipient       [20]byte
	HashedSecret    [32]byte
	Token           string
	Amount          *big.Int
	SecurityDeposit *big.Int

	WithdrawalStart         uint64
	PublicWithdrawalStart   uint64
	CancellationStart       uint64
	PublicCancellationStart uint64

	FundsWithdrawn bool
	Cancelled      bool

	PartIndex     uint64
	TotalParts    uint32
	IsPartialFill bool
}

// Terminal reports whether the record has reached one of its two final
// states. A terminal record rejects every further state change.
func (e *Escrow) Terminal() bool {
	return e.FundsWithdrawn || e.Cancelled
}

// Clone returns a deep copy so callers can mutate the result without
// affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if e.SecurityDeposit != nil {
		clone.SecurityDeposit = new(big.Int).Set(e.SecurityDeposit)
	} else {
		clone.SecurityDeposit = big.NewInt(0)
	}
	return &clone
}

// FundingMode selects how the principal is pulled into the vault on creation.
type FundingMode uint8

const (
	// FundingAllowance debits the maker's allowance held by this ledger and
	// pulls the principal through the transfer primitive's allowance path.
	FundingAllowance FundingMode = iota
	// FundingDelegated trusts that the calling component (the order book)
	// already debited its own allowance table for the maker; the ledger only
	// performs the pull, with the caller as spender.
	FundingDelegated
)

// SourceParams describes a source-side escrow creation.
type SourceParams struct {
	Maker        [20]byte // funds owner; becomes the record creator
	Recipient    [20]byte
	HashedSecret [32]byte
	Token        string
	Amount       *big.Int

	WithdrawalStart       uint64
	PublicWithdrawalStart uint64
	CancellationStart     uint64
	// PublicCancellationStart may be zero, in which case it is derived as
	// CancellationStart + PublicCancellationOffset.
	PublicCancellationStart uint64

	PartIndex  uint64
	TotalParts uint32

	Mode FundingMode
}

// DestinationParams describes a destination-side escrow creation. The caller
// funds both principal and deposit directly and becomes the record creator.
type DestinationParams struct {
	Recipient    [20]byte
	HashedSecret [32]byte
	Token        string
	Amount       *big.Int

	WithdrawalStart       uint64
	PublicWithdrawalStart uint64
	CancellationStart     uint64

	PartIndex  uint64
	TotalParts uint32
}

// storedEscrow is the RLP shadow of Escrow.
type storedEscrow struct {
	ID              [32]byte
	Kind            uint8
	Creator         [20]byte
	Recipient       [20]byte
	HashedSecret    [32]byte
	Token           string
	Amount          *big.Int
	SecurityDeposit *big.Int

	WithdrawalStart         uint64
	PublicWithdrawalStart   uint64
	CancellationStart       uint64
	PublicCancellationStart uint64

	FundsWithdrawn bool
	Cancelled      bool

	PartIndex     uint64
	TotalParts    uint32
	IsPartialFill bool
}

func toStored(e *Escrow) *storedEscrow {
	return &storedEscrow{
		ID:                      e.ID,
		Kind:                    uint8(e.Kind),
		Creator:                 e.Creator,
		Recipient:               e.Recipient,
		HashedSecret:            e.HashedSecret,
		Token:                   e.Token,
		Amount:                  e.Amount,
		SecurityDeposit:         e.SecurityDeposit,
		WithdrawalStart:         e.WithdrawalStart,
		PublicWithdrawalStart:   e.PublicWithdrawalStart,
		CancellationStart:       e.CancellationStart,
		PublicCancellationStart: e.PublicCancellationStart,
		FundsWithdrawn:          e.FundsWithdrawn,
		Cancelled:               e.Cancelled,
		PartIndex:               e.PartIndex,
		TotalParts:              e.TotalParts,
		IsPartialFill:           e.IsPartialFill,
	}
}

func fromStored(s *storedEscrow) *Escrow {
	esc := &Escrow{
		ID:                      s.ID,
		Kind:                    Kind(s.Kind),
		Creator:                 s.Creator,
		Recipient:               s.Recipient,
		HashedSecret:            s.HashedSecret,
		Token:                   s.Token,
		Amount:                  s.Amount,
		SecurityDeposit:         s.SecurityDeposit,
		WithdrawalStart:         s.WithdrawalStart,
		PublicWithdrawalStart:   s.PublicWithdrawalStart,
		CancellationStart:       s.CancellationStart,
		PublicCancellationStart: s.PublicCancellationStart,
		FundsWithdrawn:          s.FundsWithdrawn,
		Cancelled:               s.Cancelled,
		PartIndex:               s.PartIndex,
		TotalParts:              s.TotalParts,
		IsPartialFill:           s.IsPartialFill,
	}
	if esc.Amount == nil {
		esc.Amount = big.NewInt(0)
	}
	if esc.SecurityDeposit == nil {
		esc.SecurityDeposit = big.NewInt(0)
	}
	return esc
}
