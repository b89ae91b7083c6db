package settlement_test

import (
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"custodia/core/state"
	"custodia/settlement"
	"custodia/storage"
)

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func newLedger(t *testing.T) (*settlement.Ledger, *state.Manager) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	ledger := settlement.NewLedger(manager)
	ledger.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return ledger, manager
}

func TestLedgerTransfer(t *testing.T) {
	ledger, manager := newLedger(t)
	alice := addr(0x0A)
	bob := addr(0x0B)

	require.NoError(t, manager.Credit("XLM", alice, big.NewInt(1_000)))

	require.NoError(t, ledger.Transfer("XLM", alice, bob, big.NewInt(400)))

	balance, err := ledger.Balance("XLM", alice)
	require.NoError(t, err)
	require.Equal(t, int64(600), balance.Int64())

	balance, err = ledger.Balance("XLM", bob)
	require.NoError(t, err)
	require.Equal(t, int64(400), balance.Int64())
}

func TestLedgerTransferValidations(t *testing.T) {
	ledger, manager := newLedger(t)
	alice := addr(0x0A)
	bob := addr(0x0B)

	require.NoError(t, manager.Credit("XLM", alice, big.NewInt(100)))

	err := ledger.Transfer("XLM", alice, bob, big.NewInt(101))
	require.ErrorIs(t, err, settlement.ErrInsufficientFunds)

	err = ledger.Transfer("XLM", alice, bob, big.NewInt(-1))
	require.ErrorIs(t, err, settlement.ErrNegativeAmount)

	err = ledger.Transfer("  ", alice, bob, big.NewInt(1))
	require.Error(t, err)

	// Zero and nil amounts are no-ops.
	require.NoError(t, ledger.Transfer("XLM", alice, bob, big.NewInt(0)))
	require.NoError(t, ledger.Transfer("XLM", alice, bob, nil))

	balance, err := ledger.Balance("XLM", alice)
	require.NoError(t, err)
	require.Equal(t, int64(100), balance.Int64())
	balance, err = ledger.Balance("XLM", bob)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())
}

func TestLedgerSelfTransfer(t *testing.T) {
	ledger, manager := newLedger(t)
	alice := addr(0x0A)

	require.NoError(t, manager.Credit("XLM", alice, big.NewInt(100)))
	require.NoError(t, ledger.Transfer("XLM", alice, alice, big.NewInt(100)))

	balance, err := ledger.Balance("XLM", alice)
	require.NoError(t, err)
	require.Equal(t, int64(100), balance.Int64())
}

func TestLedgerNormalizesToken(t *testing.T) {
	ledger, manager := newLedger(t)
	alice := addr(0x0A)
	bob := addr(0x0B)

	require.NoError(t, manager.Credit("XLM", alice, big.NewInt(50)))
	require.NoError(t, ledger.Transfer(" xlm ", alice, bob, big.NewInt(50)))

	balance, err := ledger.Balance("xlm", bob)
	require.NoError(t, err)
	require.Equal(t, int64(50), balance.Int64())
}

func TestLedgerRequiresBalanceStore(t *testing.T) {
	ledger := settlement.NewLedger(nil)
	require.Error(t, ledger.Transfer("XLM", addr(1), addr(2), big.NewInt(1)))
	_, err := ledger.Balance("XLM", addr(1))
	require.Error(t, err)
}

func TestNormalizeToken(t *testing.T) {
	normalized, err := settlement.NormalizeToken("  usdc\t")
	require.NoError(t, err)
	require.Equal(t, "USDC", normalized)

	_, err = settlement.NormalizeToken("   ")
	require.Error(t, err)
}
