package fees

import (
	"errors"
	"math/big"
)

// Fee rates are expressed in basis points (1 basis point = 0.01%).
// Example: 100 basis points = 1%, 1000 basis points = 10%.
const (
	BasisPoints = 10_000
	// MaxFeeBps caps every configurable rate at 10%.
	MaxFeeBps = 1_000
)

var (
	// ErrInvalidRate flags a fee rate outside the [0, MaxFeeBps] range.
	ErrInvalidRate = errors.New("fees: invalid fee rate")
	// ErrRecipientUnset flags an attempt to enable fees while the recipient
	// address is the zero value.
	ErrRecipientUnset = errors.New("fees: fee recipient not set")
)

// Config captures the custody fee policy shared by both ledgers. LockFeeBps
// applies when funds enter custody; SettleFeeBps applies when they leave
// (release in the bounty ledger, payout in the program ledger).
type Config struct {
	LockFeeBps   int64
	SettleFeeBps int64
	Recipient    [20]byte
	Enabled      bool
}

// Update carries a partial fee-config mutation. Nil fields leave the stored
// value untouched.
type Update struct {
	LockFeeBps   *int64
	SettleFeeBps *int64
	Recipient    *[20]byte
	Enabled      *bool
}

// DefaultConfig returns the disabled zero-rate configuration pointing fees at
// the supplied recipient. Engines synthesize it whenever no explicit config
// was ever stored.
func DefaultConfig(recipient [20]byte) Config {
	return Config{Recipient: recipient}
}

// ValidateRate rejects negative rates and rates exceeding MaxFeeBps.
func ValidateRate(rateBps int64) error {
	if rateBps < 0 || rateBps > MaxFeeBps {
		return ErrInvalidRate
	}
	return nil
}

// Compute returns floor(amount * rateBps / BasisPoints). A zero or negative
// rate, or a nil or non-positive amount, yields a zero fee. Amounts are
// arbitrary precision, so the computation cannot overflow.
func Compute(amount *big.Int, rateBps int64) *big.Int {
	if rateBps <= 0 || amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, big.NewInt(rateBps))
	return fee.Div(fee, big.NewInt(BasisPoints))
}

// Apply merges the supplied update into the configuration, validating every
// provided rate. Enabling fees while the recipient is unset is rejected so a
// collected fee always has somewhere to go.
func (c Config) Apply(update Update) (Config, error) {
	next := c
	if update.LockFeeBps != nil {
		if err := ValidateRate(*update.LockFeeBps); err != nil {
			return c, err
		}
		next.LockFeeBps = *update.LockFeeBps
	}
	if update.SettleFeeBps != nil {
		if err := ValidateRate(*update.SettleFeeBps); err != nil {
			return c, err
		}
		next.SettleFeeBps = *update.SettleFeeBps
	}
	if update.Recipient != nil {
		next.Recipient = *update.Recipient
	}
	if update.Enabled != nil {
		next.Enabled = *update.Enabled
	}
	if next.Enabled && next.Recipient == ([20]byte{}) {
		return c, ErrRecipientUnset
	}
	return next, nil
}

// LockFee returns the fee owed when the supplied amount enters custody. Fees
// apply only when the config is enabled and the lock rate is nonzero.
func (c Config) LockFee(amount *big.Int) *big.Int {
	if !c.Enabled || c.LockFeeBps <= 0 {
		return big.NewInt(0)
	}
	return Compute(amount, c.LockFeeBps)
}

// SettleFee returns the fee owed when the supplied amount leaves custody.
func (c Config) SettleFee(amount *big.Int) *big.Int {
	if !c.Enabled || c.SettleFeeBps <= 0 {
		return big.NewInt(0)
	}
	return Compute(amount, c.SettleFeeBps)
}
