package escrow

import (
	"math/big"
	"time"

	"custodia/core/auth"
	"custodia/core/events"
	"custodia/core/types"
	"custodia/native/fees"
	"custodia/settlement"
)

type engineState interface {
	AdminConfigGet() (*AdminConfig, bool, error)
	AdminConfigPut(*AdminConfig) error
	EscrowFeeConfigGet() (fees.Config, bool, error)
	EscrowFeeConfigPut(fees.Config) error
	EscrowHas(bountyID uint64) (bool, error)
	EscrowGet(bountyID uint64) (*Escrow, bool, error)
	EscrowPut(bountyID uint64, esc *Escrow) error
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine wires the bounty-escrow state machine with external state, the
// settlement gateway, the authorization verifier and the event sink. The
// hosting platform serializes invocations and rolls an invocation back as a
// whole if any step fails.
type Engine struct {
	state   engineState
	gateway settlement.Gateway
	auth    auth.Authorizer
	emitter events.Emitter
	vault   [20]byte
	nowFn   func() int64
}

// NewEngine creates an escrow engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
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

// SetVault configures the custody account holding locked deposits.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
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
	e.emitter.Emit(escrowEvent{evt: event})
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

func (e *Engine) adminConfig() (*AdminConfig, error) {
	cfg, ok, err := e.state.AdminConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

// feeConfig returns the stored fee configuration, synthesizing the disabled
// zero-rate default pointing at the admin when none was ever stored.
func (e *Engine) feeConfig(admin [20]byte) (fees.Config, error) {
	cfg, ok, err := e.state.EscrowFeeConfigGet()
	if err != nil {
		return fees.Config{}, err
	}
	if !ok {
		return fees.DefaultConfig(admin), nil
	}
	return cfg, nil
}

// Initialize records the custodian identity and the accepted asset, along
// with a disabled default fee configuration. It fails if the engine was
// already initialized.
func (e *Engine) Initialize(admin [20]byte, token string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	normalized, err := settlement.NormalizeToken(token)
	if err != nil {
		return err
	}
	if _, ok, err := e.state.AdminConfigGet(); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInitialized
	}
	if err := e.state.AdminConfigPut(&AdminConfig{Admin: admin, Token: normalized}); err != nil {
		return err
	}
	if err := e.state.EscrowFeeConfigPut(fees.DefaultConfig(admin)); err != nil {
		return err
	}
	e.emit(NewInitializedEvent(admin, normalized, e.now()))
	return nil
}

// UpdateFeeConfig applies a partial fee-config mutation authorized by the
// stored admin. Unsupplied fields are left untouched.
func (e *Engine) UpdateFeeConfig(update fees.Update) (fees.Config, error) {
	if err := e.ready(); err != nil {
		return fees.Config{}, err
	}
	adminCfg, err := e.adminConfig()
	if err != nil {
		return fees.Config{}, err
	}
	if err := e.auth.Require(adminCfg.Admin); err != nil {
		return fees.Config{}, err
	}
	current, err := e.feeConfig(adminCfg.Admin)
	if err != nil {
		return fees.Config{}, err
	}
	next, err := current.Apply(update)
	if err != nil {
		return fees.Config{}, err
	}
	if err := e.state.EscrowFeeConfigPut(next); err != nil {
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
	adminCfg, err := e.adminConfig()
	if err != nil {
		return fees.Config{}, err
	}
	return e.feeConfig(adminCfg.Admin)
}

// LockFunds places a deposit in custody under the supplied bounty id. The
// lock fee, if any, is deducted up front: the net amount moves to the vault,
// the fee to the configured recipient, and the record stores the net figure.
func (e *Engine) LockFunds(depositor [20]byte, bountyID uint64, amount *big.Int, deadline int64) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.auth.Require(depositor); err != nil {
		return nil, err
	}
	adminCfg, err := e.adminConfig()
	if err != nil {
		return nil, err
	}
	if exists, err := e.state.EscrowHas(bountyID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrBountyExists
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	feeCfg, err := e.feeConfig(adminCfg.Admin)
	if err != nil {
		return nil, err
	}
	fee := feeCfg.LockFee(amount)
	net := new(big.Int).Sub(amount, fee)
	if err := e.gateway.Transfer(adminCfg.Token, depositor, e.vault, net); err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := e.gateway.Transfer(adminCfg.Token, depositor, feeCfg.Recipient, fee); err != nil {
			return nil, err
		}
		e.emit(NewFeeCollectedEvent(FeeOpLock, fee, feeCfg.LockFeeBps, feeCfg.Recipient, e.now()))
	}
	esc := &Escrow{
		Depositor: depositor,
		Amount:    net,
		Status:    EscrowLocked,
		Deadline:  deadline,
	}
	if err := e.state.EscrowPut(bountyID, esc); err != nil {
		return nil, err
	}
	e.emit(NewFundsLockedEvent(bountyID, net, depositor, deadline))
	return esc.Clone(), nil
}

// ReleaseFunds settles a locked deposit in favour of the contributor. Only
// the stored admin may authorize the release. The release fee is computed on
// the stored (already net-of-lock-fee) amount; the method returns the net
// amount actually paid out.
func (e *Engine) ReleaseFunds(bountyID uint64, contributor [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	adminCfg, err := e.adminConfig()
	if err != nil {
		return nil, err
	}
	if err := e.auth.Require(adminCfg.Admin); err != nil {
		return nil, err
	}
	esc, ok, err := e.state.EscrowGet(bountyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBountyNotFound
	}
	if esc.Status != EscrowLocked {
		return nil, ErrFundsNotLocked
	}
	feeCfg, err := e.feeConfig(adminCfg.Admin)
	if err != nil {
		return nil, err
	}
	fee := feeCfg.SettleFee(esc.Amount)
	net := new(big.Int).Sub(esc.Amount, fee)
	if err := e.gateway.Transfer(adminCfg.Token, e.vault, contributor, net); err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := e.gateway.Transfer(adminCfg.Token, e.vault, feeCfg.Recipient, fee); err != nil {
			return nil, err
		}
		e.emit(NewFeeCollectedEvent(FeeOpRelease, fee, feeCfg.SettleFeeBps, feeCfg.Recipient, e.now()))
	}
	esc.Status = EscrowReleased
	if err := e.state.EscrowPut(bountyID, esc); err != nil {
		return nil, err
	}
	e.emit(NewFundsReleasedEvent(bountyID, net, contributor, e.now()))
	return net, nil
}

// Refund returns the full custodied amount to the depositor once the deadline
// has passed. The transition is deliberately permissionless so funds are not
// stuck if the depositor's signing capability is lost; the deadline check is
// the only gate. No fee applies on refund.
func (e *Engine) Refund(bountyID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.gateway == nil {
		return nil, errNilGateway
	}
	esc, ok, err := e.state.EscrowGet(bountyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBountyNotFound
	}
	if esc.Status != EscrowLocked {
		return nil, ErrFundsNotLocked
	}
	now := e.now()
	if now < esc.Deadline {
		return nil, ErrDeadlineNotPassed
	}
	adminCfg, err := e.adminConfig()
	if err != nil {
		return nil, err
	}
	if err := e.gateway.Transfer(adminCfg.Token, e.vault, esc.Depositor, esc.Amount); err != nil {
		return nil, err
	}
	esc.Status = EscrowRefunded
	if err := e.state.EscrowPut(bountyID, esc); err != nil {
		return nil, err
	}
	e.emit(NewFundsRefundedEvent(bountyID, esc.Amount, esc.Depositor, now))
	return new(big.Int).Set(esc.Amount), nil
}

// EscrowInfo returns a copy of the stored record for the given bounty.
func (e *Engine) EscrowInfo(bountyID uint64) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, ok, err := e.state.EscrowGet(bountyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBountyNotFound
	}
	return esc.Clone(), nil
}

// Balance reports the custody vault's balance of the configured asset.
func (e *Engine) Balance() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.gateway == nil {
		return nil, errNilGateway
	}
	adminCfg, err := e.adminConfig()
	if err != nil {
		return nil, err
	}
	return e.gateway.Balance(adminCfg.Token, e.vault)
}
