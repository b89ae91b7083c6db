package escrow

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"custodia/core/types"
	"custodia/native/fees"
)

const (
	EventTypeInitialized      = "escrow.initialized"
	EventTypeFundsLocked      = "escrow.funds.locked"
	EventTypeFundsReleased    = "escrow.funds.released"
	EventTypeFundsRefunded    = "escrow.funds.refunded"
	EventTypeFeeCollected     = "escrow.fee.collected"
	EventTypeFeeConfigUpdated = "escrow.fee_config.updated"
)

// Fee operation kinds carried by fee-collected events.
const (
	FeeOpLock    = "lock"
	FeeOpRelease = "release"
)

// NewInitializedEvent returns the canonical payload emitted once at
// initialization.
func NewInitializedEvent(admin [20]byte, token string, timestamp int64) *types.Event {
	return &types.Event{Type: EventTypeInitialized, Attributes: map[string]string{
		"admin":     hex.EncodeToString(admin[:]),
		"token":     token,
		"timestamp": strconv.FormatInt(timestamp, 10),
	}}
}

// NewFundsLockedEvent carries the net custodied amount for a new deposit.
func NewFundsLockedEvent(bountyID uint64, amount *big.Int, depositor [20]byte, deadline int64) *types.Event {
	return &types.Event{Type: EventTypeFundsLocked, Attributes: map[string]string{
		"bountyId":  strconv.FormatUint(bountyID, 10),
		"amount":    bigString(amount),
		"depositor": hex.EncodeToString(depositor[:]),
		"deadline":  strconv.FormatInt(deadline, 10),
	}}
}

// NewFundsReleasedEvent carries the net amount actually paid to the
// contributor.
func NewFundsReleasedEvent(bountyID uint64, amount *big.Int, recipient [20]byte, timestamp int64) *types.Event {
	return &types.Event{Type: EventTypeFundsReleased, Attributes: map[string]string{
		"bountyId":  strconv.FormatUint(bountyID, 10),
		"amount":    bigString(amount),
		"recipient": hex.EncodeToString(recipient[:]),
		"timestamp": strconv.FormatInt(timestamp, 10),
	}}
}

// NewFundsRefundedEvent carries the full custodied amount returned to the
// depositor.
func NewFundsRefundedEvent(bountyID uint64, amount *big.Int, depositor [20]byte, timestamp int64) *types.Event {
	return &types.Event{Type: EventTypeFundsRefunded, Attributes: map[string]string{
		"bountyId":  strconv.FormatUint(bountyID, 10),
		"amount":    bigString(amount),
		"depositor": hex.EncodeToString(depositor[:]),
		"timestamp": strconv.FormatInt(timestamp, 10),
	}}
}

// NewFeeCollectedEvent records a deducted fee, tagged with the operation that
// triggered it.
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
