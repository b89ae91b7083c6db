package settlement

import (
	"encoding/hex"
	"errors"
	"log/slog"
	"math/big"
)

var errNilBalances = errors.New("settlement: balance store not configured")

// BalanceStore is the persistence surface the ledger needs: per-token account
// balances keyed by holder address.
type BalanceStore interface {
	BalanceOf(token string, addr [20]byte) (*big.Int, error)
	SetBalance(token string, addr [20]byte, amount *big.Int) error
}

// Ledger is an account-balance Gateway implementation. It debits the sender
// and credits the recipient within the same invocation; the hosting platform
// guarantees the invocation as a whole is atomic.
type Ledger struct {
	balances BalanceStore
	logger   *slog.Logger
}

// NewLedger creates a settlement ledger over the supplied balance store.
func NewLedger(balances BalanceStore) *Ledger {
	return &Ledger{balances: balances, logger: slog.Default()}
}

// SetLogger overrides the logger used for applied transfers. Passing nil
// resets it to the process default.
func (l *Ledger) SetLogger(logger *slog.Logger) {
	if logger == nil {
		l.logger = slog.Default()
		return
	}
	l.logger = logger
}

// Transfer moves amount of token from one holder to another.
func (l *Ledger) Transfer(token string, from, to [20]byte, amount *big.Int) error {
	if l == nil || l.balances == nil {
		return errNilBalances
	}
	normalized, err := NormalizeToken(token)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	fromBalance, err := l.balances.BalanceOf(normalized, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	if err := l.balances.SetBalance(normalized, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	// Re-read after the debit so self-transfers stay balanced.
	toBalance, err := l.balances.BalanceOf(normalized, to)
	if err != nil {
		return err
	}
	if err := l.balances.SetBalance(normalized, to, new(big.Int).Add(toBalance, amount)); err != nil {
		return err
	}
	l.logger.Info("settlement transfer applied",
		"token", normalized,
		"from", addrHex(from),
		"to", addrHex(to),
		"amount", amount.String(),
	)
	return nil
}

// Balance returns the holder's balance for the given token.
func (l *Ledger) Balance(token string, holder [20]byte) (*big.Int, error) {
	if l == nil || l.balances == nil {
		return nil, errNilBalances
	}
	normalized, err := NormalizeToken(token)
	if err != nil {
		return nil, err
	}
	return l.balances.BalanceOf(normalized, holder)
}

func addrHex(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}
