package program

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"custodia/core/auth"
	"custodia/core/events"
	"custodia/core/types"
	"custodia/native/fees"
	"custodia/settlement"
)

type engineState interface {
	ProgramGet() (*Program, bool, error)
	ProgramPut(*Program) error
	ProgramFeeConfigGet() (fees.Config, bool, error)
	ProgramFeeConfigPut(fees.Config) error
}

type programEvent struct {
	evt *types.Event
}

func (e programEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e programEvent) Event() *types.Event { return e.evt }

// Engine implements the pooled-balance program ledger: one account funded by
// top-ups and drained by authorized single or batch payouts, with an
// append-only payout history. Collaborators mirror the bounty engine's.
type Engine struct {
	state   engineState
	gateway settlement.Gateway
	auth    auth.Authorizer
	emitter events.Emitter
	vault   [20]byte
	nowFn   func() int64
}

// NewEngine creates a program engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetGateway configures the settlement gateway executing value movement.
func (e *Engine) SetGateway(gateway settlement.Gateway) { e.gateway = gateway }

// SetAuthorizer configures the authorization verifier.
func (e *Engine) SetAuthorizer(authorizer auth.Authorizer) { e.auth = authorizer }

// SetVault configures the custody account holding the pooled balance.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(programEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.gateway == nil {
		return errNilGateway
	}
	if e.auth == nil {
		return errNilAuth
	}
	return nil
}

func (e *Engine) loadProgram() (*Program, error) {
	p, ok, err := e.state.ProgramGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return p, nil
}

// feeConfig returns the stored fee configuration, synthesizing the disabled
// zero-rate default pointing at the payout key when none was ever stored.
func (e *Engine) feeConfig(payoutKey [20]byte) (fees.Config, error) {
	cfg, ok, err := e.state.ProgramFeeConfigGet()
	if err != nil {
		return fees.Config{}, err
	}
	if !ok {
		return fees.DefaultConfig(payoutKey), nil
	}
	return cfg, nil
}

// InitProgram creates the zeroed program account together with a disabled
// default fee configuration. It fails if a program record already exists.
func (e *Engine) InitProgram(programID string, payoutKey [20]byte, token string) (*Program, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	trimmedID := strings.TrimSpace(programID)
	if trimmedID == "" {
		return nil, fmt.Errorf("program: id must not be empty")
	}
	normalized, err := settlement.NormalizeToken(token)
	if err != nil {
		return nil, err
	}
	if _, ok, err := e.state.ProgramGet(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	p := &Program{
		ID:               trimmedID,
		TotalFunds:       big.NewInt(0),
		RemainingBalance: big.NewInt(0),
		PayoutKey:        payoutKey,
		Token:            normalized,
		History:          make([]PayoutRecord, 0),
	}
	if err := e.state.ProgramPut(p); err != nil {
		return nil, err
	}
	if err := e.state.ProgramFeeConfigPut(fees.DefaultConfig(payoutKey)); err != nil {
		return nil, err
	}
	e.emit(NewInitializedEvent(p, e.now()))
	return p.Clone(), nil
}

// LockFunds tops up the pooled balance. The lock fee, if any, is deducted up
// front: the net amount moves from the funder to the vault and both
// TotalFunds and RemainingBalance grow by the net figure.
func (e *Engine) LockFunds(funder [20]byte, amount *big.Int) (*Program, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	p, err := e.loadProgram()
	if err != nil {
		return nil, err
	}
	if err := e.auth.Require(funder); err != nil {
		return nil, err
	}
	feeCfg, err := e.feeConfig(p.PayoutKey)
	if err != nil {
		return nil, err
	}
	fee := feeCfg.LockFee(amount)
	net := new(big.Int).Sub(amount, fee)
	if err := e.gateway.Transfer(p.Token, funder, e.vault, net); err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := e.gateway.Transfer(p.Token, funder, feeCfg.Recipient, fee); err != nil {
			return nil, err
		}
		e.emit(NewFeeCollectedEvent(FeeOpLock, fee, feeCfg.LockFeeBps, feeCfg.Recipient, e.now()))
	}
	p.TotalFunds = new(big.Int).Add(p.TotalFunds, net)
	p.RemainingBalance = new(big.Int).Add(p.RemainingBalance, net)
	if err := e.state.ProgramPut(p); err != nil {
		return nil, err
	}
	e.emit(NewFundsLockedEvent(p, net))
	return p.Clone(), nil
}

// BatchPayout executes payouts to multiple recipients as one atomic unit. The
// pre-flight pass validates shape, positivity and the total against the
// remaining balance before any transfer happens: either the whole batch is
// valid and fully executed or none of it is. RemainingBalance decreases by
// the gross total since fees are drawn from custodied funds.
func (e *Engine) BatchPayout(recipients [][20]byte, amounts []*big.Int) (*Program, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, err := e.loadProgram()
	if err != nil {
		return nil, err
	}
	if err := e.auth.Require(p.PayoutKey); err != nil {
		return nil, err
	}
	if len(recipients) != len(amounts) {
		return nil, ErrLengthMismatch
	}
	if len(recipients) == 0 {
		return nil, ErrEmptyBatch
	}
	total := big.NewInt(0)
	for _, amount := range amounts {
		if amount == nil || amount.Sign() <= 0 {
			return nil, ErrInvalidAmount
		}
		total.Add(total, amount)
	}
	if total.Cmp(p.RemainingBalance) > 0 {
		return nil, ErrInsufficientBalance
	}
	feeCfg, err := e.feeConfig(p.PayoutKey)
	if err != nil {
		return nil, err
	}
	timestamp := e.now()
	totalFees := big.NewInt(0)
	for i, recipient := range recipients {
		fee := feeCfg.SettleFee(amounts[i])
		net := new(big.Int).Sub(amounts[i], fee)
		if err := e.gateway.Transfer(p.Token, e.vault, recipient, net); err != nil {
			return nil, err
		}
		if fee.Sign() > 0 {
			if err := e.gateway.Transfer(p.Token, e.vault, feeCfg.Recipient, fee); err != nil {
				return nil, err
			}
			totalFees.Add(totalFees, fee)
		}
		p.History = append(p.History, PayoutRecord{
			Recipient: recipient,
			Amount:    net,
			Timestamp: timestamp,
		})
	}
	p.RemainingBalance = new(big.Int).Sub(p.RemainingBalance, total)
	if err := e.state.ProgramPut(p); err != nil {
		return nil, err
	}
	if totalFees.Sign() > 0 {
		e.emit(NewFeeCollectedEvent(FeeOpPayout, totalFees, feeCfg.SettleFeeBps, feeCfg.Recipient, timestamp))
	}
	e.emit(NewBatchPayoutEvent(p, len(recipients), total))
	return p.Clone(), nil
}

// SinglePayout pays one recipient with the same authorization, positivity and
// sufficiency checks as a one-element batch.
func (e *Engine) SinglePayout(recipient [20]byte, amount *big.Int) (*Program, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, err := e.loadProgram()
	if err != nil {
		return nil, err
	}
	if err := e.auth.Require(p.PayoutKey); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount.Cmp(p.RemainingBalance) > 0 {
		return nil, ErrInsufficientBalance
	}
	feeCfg, err := e.feeConfig(p.PayoutKey)
	if err != nil {
		return nil, err
	}
	fee := feeCfg.SettleFee(amount)
	net := new(big.Int).Sub(amount, fee)
	if err := e.gateway.Transfer(p.Token, e.vault, recipient, net); err != nil {
		return nil, err
	}
	timestamp := e.now()
	if fee.Sign() > 0 {
		if err := e.gateway.Transfer(p.Token, e.vault, feeCfg.Recipient, fee); err != nil {
			return nil, err
		}
		e.emit(NewFeeCollectedEvent(FeeOpPayout, fee, feeCfg.SettleFeeBps, feeCfg.Recipient, timestamp))
	}
	p.History = append(p.History, PayoutRecord{
		Recipient: recipient,
		Amount:    net,
		Timestamp: timestamp,
	})
	p.RemainingBalance = new(big.Int).Sub(p.RemainingBalance, amount)
	if err := e.state.ProgramPut(p); err != nil {
		return nil, err
	}
	e.emit(NewPayoutEvent(p, recipient, net))
	return p.Clone(), nil
}

// ProgramInfo returns a copy of the program account, history included.
func (e *Engine) ProgramInfo() (*Program, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p, err := e.loadProgram()
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// RemainingBalance returns the spendable custodied amount.
func (e *Engine) RemainingBalance() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p, err := e.loadProgram()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(p.RemainingBalance), nil
}

// UpdateFeeConfig applies a partial fee-config mutation authorized by the
// payout key. Unsupplied fields are left untouched.
func (e *Engine) UpdateFeeConfig(update fees.Update) (fees.Config, error) {
	if e == nil || e.state == nil {
		return fees.Config{}, errNilState
	}
	if e.auth == nil {
		return fees.Config{}, errNilAuth
	}
	p, err := e.loadProgram()
	if err != nil {
		return fees.Config{}, err
	}
	if err := e.auth.Require(p.PayoutKey); err != nil {
		return fees.Config{}, err
	}
	current, err := e.feeConfig(p.PayoutKey)
	if err != nil {
		return fees.Config{}, err
	}
	next, err := current.Apply(update)
	if err != nil {
		return fees.Config{}, err
	}
	if err := e.state.ProgramFeeConfigPut(next); err != nil {
		return fees.Config{}, err
	}
	e.emit(NewFeeConfigUpdatedEvent(next, e.now()))
	return next, nil
}

// FeeConfig returns the current fee configuration.
func (e *Engine) FeeConfig() (fees.Config, error) {
	if e == nil || e.state == nil {
		return fees.Config{}, errNilState
	}
	p, err := e.loadProgram()
	if err != nil {
		return fees.Config{}, err
	}
	return e.feeConfig(p.PayoutKey)
}
