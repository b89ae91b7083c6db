// Package settlement abstracts the asset-transfer service that performs the
// actual value movement on behalf of the custody engines. Engines never touch
// balances directly; every movement is delegated through the Gateway.
package settlement

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	// ErrInsufficientFunds is returned when a transfer exceeds the sender's
	// balance.
	ErrInsufficientFunds = errors.New("settlement: insufficient balance")
	// ErrNegativeAmount is returned for transfers of negative value.
	ErrNegativeAmount = errors.New("settlement: negative transfer amount")
)

// Gateway exposes fungible-asset transfers and balance queries. Amounts are
// always non-negative; zero-amount transfers are no-ops.
type Gateway interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
	Balance(token string, holder [20]byte) (*big.Int, error)
}

// NormalizeToken canonicalises an asset symbol to its uppercase form and
// rejects empty identifiers.
func NormalizeToken(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", fmt.Errorf("settlement: token symbol must not be empty")
	}
	return trimmed, nil
}
