package escrow

import (
	"fmt"
	"math/big"
)

// EscrowStatus represents the lifecycle states of a bounty deposit. Locked is
// the only state with outgoing transitions; Released and Refunded are
// absorbing.
type EscrowStatus uint8

const (
	EscrowLocked EscrowStatus = iota
	EscrowReleased
	EscrowRefunded
)

// Valid reports whether the status value is within the supported range.
func (s EscrowStatus) Valid() bool {
	switch s {
	case EscrowLocked, EscrowReleased, EscrowRefunded:
		return true
	default:
		return false
	}
}

func (s EscrowStatus) String() string {
	switch s {
	case EscrowLocked:
		return "locked"
	case EscrowReleased:
		return "released"
	case EscrowRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Escrow is a single bounty deposit held in custody. Amount is the custodied
// principal net of the lock-time fee, so any release fee is computed on this
// figure.
type Escrow struct {
	Depositor [20]byte
	Amount    *big.Int
	Status    EscrowStatus
	Deadline  int64
}

// Clone returns a deep copy so callers can safely mutate the copy without
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
	return &clone
}

// SanitizeEscrow validates the supplied record and returns a cloned instance
// with a non-nil amount field. The original value is not mutated.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("escrow: nil escrow record")
	}
	clone := e.Clone()
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("escrow: amount must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("escrow: invalid status: %d", clone.Status)
	}
	return clone, nil
}

// AdminConfig holds the custodian identity and the accepted asset, written
// exactly once at initialization. Its absence is the uninitialized sentinel
// for every other operation.
type AdminConfig struct {
	Admin [20]byte
	Token string
}
