package program

import (
	"fmt"
	"math/big"
	"strings"
)

// PayoutRecord is one entry of the append-only payout history. Amount is the
// net figure actually paid to the recipient. Records are immutable once
// appended; the history is a log, not a mutable index.
type PayoutRecord struct {
	Recipient [20]byte
	Amount    *big.Int
	Timestamp int64
}

// Program is the pooled-balance account managed by the program ledger.
// TotalFunds is the cumulative net amount ever locked and never decreases;
// RemainingBalance is the spendable custodied amount and never goes negative.
type Program struct {
	ID               string
	TotalFunds       *big.Int
	RemainingBalance *big.Int
	PayoutKey        [20]byte
	Token            string
	History          []PayoutRecord
}

// Clone returns a deep copy of the program account, including its history.
func (p *Program) Clone() *Program {
	if p == nil {
		return nil
	}
	clone := &Program{
		ID:               p.ID,
		TotalFunds:       big.NewInt(0),
		RemainingBalance: big.NewInt(0),
		PayoutKey:        p.PayoutKey,
		Token:            p.Token,
		History:          make([]PayoutRecord, 0, len(p.History)),
	}
	if p.TotalFunds != nil {
		clone.TotalFunds = new(big.Int).Set(p.TotalFunds)
	}
	if p.RemainingBalance != nil {
		clone.RemainingBalance = new(big.Int).Set(p.RemainingBalance)
	}
	for _, record := range p.History {
		amount := big.NewInt(0)
		if record.Amount != nil {
			amount = new(big.Int).Set(record.Amount)
		}
		clone.History = append(clone.History, PayoutRecord{
			Recipient: record.Recipient,
			Amount:    amount,
			Timestamp: record.Timestamp,
		})
	}
	return clone
}

// SanitizeProgram validates the account invariants and returns a cloned
// instance with non-nil balance fields. The original value is not mutated.
func SanitizeProgram(p *Program) (*Program, error) {
	if p == nil {
		return nil, fmt.Errorf("program: nil program account")
	}
	clone := p.Clone()
	if strings.TrimSpace(clone.ID) == "" {
		return nil, fmt.Errorf("program: id must not be empty")
	}
	if clone.TotalFunds.Sign() < 0 {
		return nil, fmt.Errorf("program: total funds must be non-negative")
	}
	if clone.RemainingBalance.Sign() < 0 {
		return nil, fmt.Errorf("program: remaining balance must be non-negative")
	}
	for _, record := range clone.History {
		if record.Amount.Sign() < 0 {
			return nil, fmt.Errorf("program: payout record amount must be non-negative")
		}
	}
	return clone, nil
}
