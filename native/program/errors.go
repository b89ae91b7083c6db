package program

import "errors"

// The program ledger reports every failure through recoverable error values,
// matching the bounty ledger's convention. No partial state mutation occurs
// before any of these is returned.
var (
	ErrAlreadyInitialized  = errors.New("program: already initialized")
	ErrNotInitialized      = errors.New("program: not initialized")
	ErrInvalidAmount       = errors.New("program: amount must be positive")
	ErrEmptyBatch          = errors.New("program: cannot process empty batch")
	ErrLengthMismatch      = errors.New("program: recipients and amounts must have the same length")
	ErrInsufficientBalance = errors.New("program: insufficient remaining balance")
)

var (
	errNilState   = errors.New("program engine: state not configured")
	errNilGateway = errors.New("program engine: settlement gateway not configured")
	errNilAuth    = errors.New("program engine: authorizer not configured")
)
