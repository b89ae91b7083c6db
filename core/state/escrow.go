package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"custodia/native/escrow"
)

var (
	adminConfigKey = []byte("escrow/admin")
	escrowPrefix   = []byte("escrow/bounty/")
)

func escrowRecordKey(bountyID uint64) []byte {
	key := make([]byte, len(escrowPrefix)+8)
	copy(key, escrowPrefix)
	binary.BigEndian.PutUint64(key[len(escrowPrefix):], bountyID)
	return key
}

type storedAdminConfig struct {
	Admin [20]byte
	Token string
}

// storedEscrow is the RLP-encodable form of escrow.Escrow. Deadlines are
// non-negative unix seconds, so the unsigned conversion round-trips.
type storedEscrow struct {
	Depositor [20]byte
	Amount    *big.Int
	Status    uint8
	Deadline  uint64
}

// AdminConfigPut records the custodian identity and accepted asset.
func (m *Manager) AdminConfigPut(cfg *escrow.AdminConfig) error {
	if cfg == nil {
		return fmt.Errorf("state: nil admin config")
	}
	return m.KVPut(adminConfigKey, &storedAdminConfig{Admin: cfg.Admin, Token: cfg.Token})
}

// AdminConfigGet loads the custodian record, reporting whether it exists.
func (m *Manager) AdminConfigGet() (*escrow.AdminConfig, bool, error) {
	var stored storedAdminConfig
	ok, err := m.KVGet(adminConfigKey, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &escrow.AdminConfig{Admin: stored.Admin, Token: stored.Token}, true, nil
}

// EscrowPut persists a sanitized copy of the bounty record.
func (m *Manager) EscrowPut(bountyID uint64, esc *escrow.Escrow) error {
	sanitized, err := escrow.SanitizeEscrow(esc)
	if err != nil {
		return err
	}
	if sanitized.Deadline < 0 {
		return fmt.Errorf("state: escrow deadline must be non-negative")
	}
	stored := storedEscrow{
		Depositor: sanitized.Depositor,
		Amount:    sanitized.Amount,
		Status:    uint8(sanitized.Status),
		Deadline:  uint64(sanitized.Deadline),
	}
	return m.KVPut(escrowRecordKey(bountyID), &stored)
}

// EscrowGet loads the bounty record, reporting whether it exists.
func (m *Manager) EscrowGet(bountyID uint64) (*escrow.Escrow, bool, error) {
	var stored storedEscrow
	ok, err := m.KVGet(escrowRecordKey(bountyID), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	esc := &escrow.Escrow{
		Depositor: stored.Depositor,
		Amount:    stored.Amount,
		Status:    escrow.EscrowStatus(stored.Status),
		Deadline:  int64(stored.Deadline),
	}
	if esc.Amount == nil {
		esc.Amount = big.NewInt(0)
	}
	return esc, true, nil
}

// EscrowHas reports whether a record exists for the bounty id.
func (m *Manager) EscrowHas(bountyID uint64) (bool, error) {
	return m.KVHas(escrowRecordKey(bountyID))
}
