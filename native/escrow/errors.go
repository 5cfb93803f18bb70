package escrow

import "errors"

var (
	ErrNotFound          = errors.New("escrow: record not found")
	ErrInvalidAmount     = errors.New("escrow: amount must be positive")
	ErrInvalidTimeWindow = errors.New("escrow: time windows must be strictly increasing")
	ErrInvalidPartCount  = errors.New("escrow: total parts must be greater than zero")
	ErrInvalidPartIndex  = errors.New("escrow: part index out of range")
	ErrPartAlreadyUsed   = errors.New("escrow: part already used for this commitment")

	ErrAlreadyWithdrawn = errors.New("escrow: already withdrawn")
	ErrAlreadyCancelled = errors.New("escrow: already cancelled")
	ErrNotYetOpen       = errors.New("escrow: window not yet open")
	ErrWindowClosed     = errors.New("escrow: window closed")
	ErrUnauthorized     = errors.New("escrow: caller lacks standing")

	ErrInsufficientAllowance = errors.New("escrow: insufficient allowance")
	ErrInsufficientFunds     = errors.New("escrow: insufficient funds")

	ErrInvalidSecret  = errors.New("escrow: secret does not match commitment")
	ErrInvalidProof   = errors.New("escrow: merkle proof verification failed")
	ErrNotPartialFill = errors.New("escrow: proof withdrawal requires a partial fill")
)
