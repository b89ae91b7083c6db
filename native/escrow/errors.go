package escrow

import "errors"

// The bounty ledger reports every failure through this closed taxonomy. No
// partial state mutation occurs before any of these is returned.
var (
	ErrAlreadyInitialized = errors.New("escrow: already initialized")
	ErrNotInitialized     = errors.New("escrow: not initialized")
	ErrBountyExists       = errors.New("escrow: bounty already exists")
	ErrBountyNotFound     = errors.New("escrow: bounty not found")
	ErrFundsNotLocked     = errors.New("escrow: funds not locked")
	ErrDeadlineNotPassed  = errors.New("escrow: deadline not passed")
	ErrInvalidAmount      = errors.New("escrow: amount must be positive")
)

var (
	errNilState   = errors.New("escrow engine: state not configured")
	errNilGateway = errors.New("escrow engine: settlement gateway not configured")
	errNilAuth    = errors.New("escrow engine: authorizer not configured")
)
