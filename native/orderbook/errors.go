package orderbook

import "errors"

var (
	ErrInvalidPartCount      = errors.New("orderbook: total parts must be greater than zero")
	ErrInvalidPartIndex      = errors.New("orderbook: part index out of range")
	ErrInvalidAmount         = errors.New("orderbook: amount must be positive")
	ErrAlreadyFilled         = errors.New("orderbook: part already filled")
	ErrInsufficientAllowance = errors.New("orderbook: insufficient allowance")
	ErrPartNotFilled         = errors.New("orderbook: part not filled")
	ErrPartNotFound          = errors.New("orderbook: part not found")
	ErrAlreadyCancelled      = errors.New("orderbook: part already cancelled")
	ErrUnauthorized          = errors.New("orderbook: caller lacks standing")
)
