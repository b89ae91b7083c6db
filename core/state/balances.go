package state

import (
	"fmt"
	"math/big"
)

var balancePrefix = []byte("balance:")

func balanceKey(token string, addr [20]byte) []byte {
	buf := make([]byte, 0, len(balancePrefix)+len(token)+1+len(addr))
	buf = append(buf, balancePrefix...)
	buf = append(buf, token...)
	buf = append(buf, ':')
	buf = append(buf, addr[:]...)
	return buf
}

// BalanceOf returns the holder's balance for the given token, zero when no
// balance was ever recorded.
func (m *Manager) BalanceOf(token string, addr [20]byte) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := m.KVGet(balanceKey(token, addr), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// SetBalance overwrites the holder's balance for the given token.
func (m *Manager) SetBalance(token string, addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: balance must be non-negative")
	}
	return m.KVPut(balanceKey(token, addr), amount)
}

// Credit adds amount to the holder's balance. Genesis funding and tests use
// it to seed accounts.
func (m *Manager) Credit(token string, addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: credit must be non-negative")
	}
	current, err := m.BalanceOf(token, addr)
	if err != nil {
		return err
	}
	return m.SetBalance(token, addr, new(big.Int).Add(current, amount))
}

// Debit subtracts amount from the holder's balance, failing when the balance
// would go negative.
func (m *Manager) Debit(token string, addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: debit must be non-negative")
	}
	current, err := m.BalanceOf(token, addr)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("state: debit exceeds balance")
	}
	return m.SetBalance(token, addr, new(big.Int).Sub(current, amount))
}
