package game

import "errors"

// Client-facing rejections; none of them leaves state mutated.
var (
	ErrPhaseClosed         = errors.New("betting closed: phase is not BET")
	ErrInvalidSide         = errors.New("side must be LONG or SHORT")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientBalance = errors.New("not enough balance")
)
