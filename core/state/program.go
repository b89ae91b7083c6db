package state

import (
	"fmt"
	"math/big"

	"custodia/native/program"
)

var programAccountKey = []byte("program/account")

type storedPayoutRecord struct {
	Recipient [20]byte
	Amount    *big.Int
	Timestamp uint64
}

type storedProgram struct {
	ID               string
	TotalFunds       *big.Int
	RemainingBalance *big.Int
	PayoutKey        [20]byte
	Token            string
	History          []storedPayoutRecord
}

// ProgramPut persists a sanitized copy of the program account.
func (m *Manager) ProgramPut(p *program.Program) error {
	sanitized, err := program.SanitizeProgram(p)
	if err != nil {
		return err
	}
	stored := storedProgram{
		ID:               sanitized.ID,
		TotalFunds:       sanitized.TotalFunds,
		RemainingBalance: sanitized.RemainingBalance,
		PayoutKey:        sanitized.PayoutKey,
		Token:            sanitized.Token,
		History:          make([]storedPayoutRecord, 0, len(sanitized.History)),
	}
	for _, record := range sanitized.History {
		if record.Timestamp < 0 {
			return fmt.Errorf("state: payout timestamp must be non-negative")
		}
		stored.History = append(stored.History, storedPayoutRecord{
			Recipient: record.Recipient,
			Amount:    record.Amount,
			Timestamp: uint64(record.Timestamp),
		})
	}
	return m.KVPut(programAccountKey, &stored)
}

// ProgramGet loads the program account, reporting whether it exists.
func (m *Manager) ProgramGet() (*program.Program, bool, error) {
	var stored storedProgram
	ok, err := m.KVGet(programAccountKey, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	p := &program.Program{
		ID:               stored.ID,
		TotalFunds:       stored.TotalFunds,
		RemainingBalance: stored.RemainingBalance,
		PayoutKey:        stored.PayoutKey,
		Token:            stored.Token,
		History:          make([]program.PayoutRecord, 0, len(stored.History)),
	}
	if p.TotalFunds == nil {
		p.TotalFunds = big.NewInt(0)
	}
	if p.RemainingBalance == nil {
		p.RemainingBalance = big.NewInt(0)
	}
	for _, record := range stored.History {
		p.History = append(p.History, program.PayoutRecord{
			Recipient: record.Recipient,
			Amount:    record.Amount,
			Timestamp: int64(record.Timestamp),
		})
	}
	return p, true, nil
}

// ProgramHas reports whether the program account exists.
func (m *Manager) ProgramHas() (bool, error) {
	return m.KVHas(programAccountKey)
}
