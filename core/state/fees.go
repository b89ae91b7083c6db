package state

import (
	"fmt"

	"custodia/native/fees"
)

var (
	escrowFeeConfigKey  = []byte("escrow/fee-config")
	programFeeConfigKey = []byte("program/fee-config")
)

// storedFeeConfig is the RLP-encodable form of fees.Config. Rates are
// validated before storage, so the unsigned narrowing is safe.
type storedFeeConfig struct {
	LockFeeBps   uint32
	SettleFeeBps uint32
	Recipient    [20]byte
	Enabled      bool
}

func (m *Manager) feeConfigPut(key []byte, cfg fees.Config) error {
	if err := fees.ValidateRate(cfg.LockFeeBps); err != nil {
		return fmt.Errorf("state: lock fee rate %d: %w", cfg.LockFeeBps, err)
	}
	if err := fees.ValidateRate(cfg.SettleFeeBps); err != nil {
		return fmt.Errorf("state: settle fee rate %d: %w", cfg.SettleFeeBps, err)
	}
	stored := storedFeeConfig{
		LockFeeBps:   uint32(cfg.LockFeeBps),
		SettleFeeBps: uint32(cfg.SettleFeeBps),
		Recipient:    cfg.Recipient,
		Enabled:      cfg.Enabled,
	}
	return m.KVPut(key, &stored)
}

func (m *Manager) feeConfigGet(key []byte) (fees.Config, bool, error) {
	var stored storedFeeConfig
	ok, err := m.KVGet(key, &stored)
	if err != nil || !ok {
		return fees.Config{}, ok, err
	}
	return fees.Config{
		LockFeeBps:   int64(stored.LockFeeBps),
		SettleFeeBps: int64(stored.SettleFeeBps),
		Recipient:    stored.Recipient,
		Enabled:      stored.Enabled,
	}, true, nil
}

// EscrowFeeConfigPut persists the bounty ledger's fee configuration.
func (m *Manager) EscrowFeeConfigPut(cfg fees.Config) error {
	return m.feeConfigPut(escrowFeeConfigKey, cfg)
}

// EscrowFeeConfigGet loads the bounty ledger's fee configuration.
func (m *Manager) EscrowFeeConfigGet() (fees.Config, bool, error) {
	return m.feeConfigGet(escrowFeeConfigKey)
}

// ProgramFeeConfigPut persists the program ledger's fee configuration.
func (m *Manager) ProgramFeeConfigPut(cfg fees.Config) error {
	return m.feeConfigPut(programFeeConfigKey, cfg)
}

// ProgramFeeConfigGet loads the program ledger's fee configuration.
func (m *Manager) ProgramFeeConfigGet() (fees.Config, bool, error) {
	return m.feeConfigGet(programFeeConfigKey)
}
