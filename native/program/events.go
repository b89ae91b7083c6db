package program

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"custodia/core/types"
	"custodia/native/fees"
)

const (
	EventTypeInitialized      = "program.initialized"
	EventTypeFundsLocked      = "program.funds.locked"
	EventTypeBatchPayout      = "program.payout.batch"
	EventTypePayout           = "program.payout"
	EventTypeFeeCollected     = "program.fee.collected"
	EventTypeFeeConfigUpdated = "program.fee_config.updated"
)

// Fee operation kinds carried by fee-collected events.
const (
	FeeOpLock   = "lock"
	FeeOpPayout = "payout"
)

// NewInitializedEvent returns the canonical payload emitted once when the
// program account is created.
func NewInitializedEvent(p *Program, timestamp int64) *types.Event {
	return &types.Event{Type: EventTypeInitialized, Attributes: map[string]string{
		"programId": p.ID,
		"payoutKey": hex.EncodeToString(p.PayoutKey[:]),
		"token":     p.Token,
		"timestamp": strconv.FormatInt(timestamp, 10),
	}}
}

// NewFundsLockedEvent carries the net amount added to the pool and the new
// remaining balance.
func NewFundsLockedEvent(p *Program, net *big.Int) *types.Event {
	return &types.Event{Type: EventTypeFundsLocked, Attributes: map[string]string{
		"programId":        p.ID,
		"amount":           bigString(net),
		"remainingBalance": bigString(p.RemainingBalance),
	}}
}

// NewBatchPayoutEvent summarizes one executed batch: recipient count, gross
// total deducted from the pool, and the resulting balance.
func NewBatchPayoutEvent(p *Program, count int, total *big.Int) *types.Event {
	return &types.Event{Type: EventTypeBatchPayout, Attributes: map[string]string{
		"programId":        p.ID,
		"count":            strconv.Itoa(count),
		"total":            bigString(total),
		"remainingBalance": bigString(p.RemainingBalance),
	}}
}

// NewPayoutEvent carries the net amount paid to a single recipient.
func NewPayoutEvent(p *Program, recipient [20]byte, net *big.Int) *types.Event {
	return &types.Event{Type: EventTypePayout, Attributes: map[string]string{
		"programId":        p.ID,
		"recipient":        hex.EncodeToString(recipient[:]),
		"amount":           bigString(net),
		"remainingBalance": bigString(p.RemainingBalance),
	}}
}

// NewFeeCollectedEvent records deducted fees, tagged with the operation that
// triggered them. Batch payouts emit one aggregated event.
func NewFeeCollectedEvent(operation string, amount *big.Int, rateBps int64, recipient [20]byte, timestamp int64) *types.Event {
	return &types.Event{Type: EventTypeFeeCollected, Attributes: map[string]string{
		"operation": operation,
		"amount":    bigString(amount),
		"rateBps":   strconv.FormatInt(rateBps, 10),
		"recipient": hex.EncodeToString(recipient[:]),
		"timestamp": strconv.FormatInt(timestamp, 10),
	}}
}

// NewFeeConfigUpdatedEvent carries the full resulting configuration.
func NewFeeConfigUpdatedEvent(cfg fees.Config, timestamp int64) *types.Event {
	return &types.Event{Type: EventTypeFeeConfigUpdated, Attributes: map[string]string{
		"lockFeeBps":   strconv.FormatInt(cfg.LockFeeBps, 10),
		"settleFeeBps": strconv.FormatInt(cfg.SettleFeeBps, 10),
		"recipient":    hex.EncodeToString(cfg.Recipient[:]),
		"enabled":      strconv.FormatBool(cfg.Enabled),
		"timestamp":    strconv.FormatInt(timestamp, 10),
	}}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
