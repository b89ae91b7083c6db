package escrow

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"custodia/core/auth"
	coreevents "custodia/core/events"
	"custodia/core/types"
	"custodia/native/fees"
)

type mockState struct {
	admin   *AdminConfig
	feeCfg  *fees.Config
	escrows map[uint64]*Escrow
}

func newMockState() *mockState {
	return &mockState{escrows: make(map[uint64]*Escrow)}
}

func (m *mockState) AdminConfigGet() (*AdminConfig, bool, error) {
	if m.admin == nil {
		return nil, false, nil
	}
	cfg := *m.admin
	return &cfg, true, nil
}

func (m *mockState) AdminConfigPut(cfg *AdminConfig) error {
	if cfg == nil {
		return fmt.Errorf("nil admin config")
	}
	clone := *cfg
	m.admin = &clone
	return nil
}

func (m *mockState) EscrowFeeConfigGet() (fees.Config, bool, error) {
	if m.feeCfg == nil {
		return fees.Config{}, false, nil
	}
	return *m.feeCfg, true, nil
}

func (m *mockState) EscrowFeeConfigPut(cfg fees.Config) error {
	m.feeCfg = &cfg
	return nil
}

func (m *mockState) EscrowHas(bountyID uint64) (bool, error) {
	_, ok := m.escrows[bountyID]
	return ok, nil
}

func (m *mockState) EscrowGet(bountyID uint64) (*Escrow, bool, error) {
	esc, ok := m.escrows[bountyID]
	if !ok {
		return nil, false, nil
	}
	return esc.Clone(), true, nil
}

func (m *mockState) EscrowPut(bountyID uint64, esc *Escrow) error {
	sanitized, err := SanitizeEscrow(esc)
	if err != nil {
		return err
	}
	m.escrows[bountyID] = sanitized
	return nil
}

type transferCall struct {
	token  string
	from   [20]byte
	to     [20]byte
	amount *big.Int
}

type mockGateway struct {
	balances  map[string]map[[20]byte]*big.Int
	transfers []transferCall
}

func newMockGateway() *mockGateway {
	return &mockGateway{balances: make(map[string]map[[20]byte]*big.Int)}
}

func (g *mockGateway) fund(token string, addr [20]byte, amount int64) {
	if _, ok := g.balances[token]; !ok {
		g.balances[token] = make(map[[20]byte]*big.Int)
	}
	g.balances[token][addr] = big.NewInt(amount)
}

func (g *mockGateway) balance(token string, addr [20]byte) *big.Int {
	if holders, ok := g.balances[token]; ok {
		if existing, ok := holders[addr]; ok && existing != nil {
			return new(big.Int).Set(existing)
		}
	}
	return big.NewInt(0)
}

func (g *mockGateway) Transfer(token string, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative transfer")
	}
	current := g.balance(token, from)
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance")
	}
	if _, ok := g.balances[token]; !ok {
		g.balances[token] = make(map[[20]byte]*big.Int)
	}
	g.balances[token][from] = new(big.Int).Sub(current, amount)
	g.balances[token][to] = new(big.Int).Add(g.balance(token, to), amount)
	g.transfers = append(g.transfers, transferCall{token: token, from: from, to: to, amount: new(big.Int).Set(amount)})
	return nil
}

func (g *mockGateway) Balance(token string, holder [20]byte) (*big.Int, error) {
	return g.balance(token, holder), nil
}

type captureEmitter struct {
	events []*types.Event
}

func (c *captureEmitter) Emit(evt coreevents.Event) {
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		c.events = append(c.events, carrier.Event())
	}
}

func (c *captureEmitter) byType(eventType string) []*types.Event {
	matched := make([]*types.Event, 0)
	for _, evt := range c.events {
		if evt != nil && evt.Type == eventType {
			matched = append(matched, evt)
		}
	}
	return matched
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

type testEnv struct {
	engine  *Engine
	state   *mockState
	gateway *mockGateway
	auth    *auth.Static
	emitter *captureEmitter
	admin   [20]byte
	vault   [20]byte
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		state:   newMockState(),
		gateway: newMockGateway(),
		auth:    auth.NewStatic(),
		emitter: &captureEmitter{},
		admin:   newTestAddress(0x01),
		vault:   newTestAddress(0xEE),
	}
	env.engine = NewEngine()
	env.engine.SetState(env.state)
	env.engine.SetGateway(env.gateway)
	env.engine.SetAuthorizer(env.auth)
	env.engine.SetEmitter(env.emitter)
	env.engine.SetVault(env.vault)
	env.engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return env
}

func (env *testEnv) initialize(t *testing.T) {
	t.Helper()
	if err := env.engine.Initialize(env.admin, "XLM"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
}

func TestInitialize(t *testing.T) {
	env := newTestEnv(t)
	env.initialize(t)

	if env.state.admin == nil || env.state.admin.Admin != env.admin {
		t.Fatalf("admin config not persisted: %+v", env.state.admin)
	}
	if env.state.admin.Token != "XLM" {
		t.Fatalf("unexpected token: %q", env.state.admin.Token)
	}
	if env.state.feeCfg == nil {
		t.Fatalf("default fee config not persisted")
	}
	if env.state.feeCfg.Enabled || env.state.feeCfg.LockFeeBps != 0 || env.state.feeCfg.SettleFeeBps != 0 {
		t.Fatalf("default fee config should be disabled with zero rates: %+v", env.state.feeCfg)
	}
	if env.state.feeCfg.Recipient != env.admin {
		t.Fatalf("default fee recipient should be the admin")
	}
	initEvents := env.emitter.byType(EventTypeInitialized)
	if len(initEvents) != 1 {
		t.Fatalf("expected one initialized event, got %d", len(initEvents))
	}
	if initEvents[0].Attributes["token"] != "XLM" {
		t.Fatalf("unexpected event token: %v", initEvents[0].Attributes)
	}

	if err := env.engine.Initialize(env.admin, "XLM"); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestInitializeNormalizesToken(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.Initialize(env.admin, "  xlm "); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if env.state.admin.Token != "XLM" {
		t.Fatalf("expected token to normalize to XLM, got %q", env.state.admin.Token)
	}
	if err := NewEngine().Initialize(env.admin, "XLM"); !errors.Is(err, errNilState) {
		t.Fatalf("expected errNilState, got %v", err)
	}
}

func TestInitializeRejectsEmptyToken(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.Initialize(env.admin, "   "); err == nil {
		t.Fatalf("expected empty token to be rejected")
	}
	if env.state.admin != nil {
		t.Fatalf("state mutated on failed initialize")
	}
}

func TestUpdateFeeConfig(t *testing.T) {
	env := newTestEnv(t)

	rate := int64(100)
	if _, err := env.engine.UpdateFeeConfig(fees.Update{LockFeeBps: &rate}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}

	env.initialize(t)

	// Admin has not authorized the invocation yet.
	if _, err := env.engine.UpdateFeeConfig(fees.Update{LockFeeBps: &rate}); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	env.auth.Approve(env.admin)

	enabled := true
	cfg, err := env.engine.UpdateFeeConfig(fees.Update{LockFeeBps: &rate, Enabled: &enabled})
	if err != nil {
		t.Fatalf("update fee config: %v", err)
	}
	if cfg.LockFeeBps != 100 || !cfg.Enabled || cfg.SettleFeeBps != 0 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Recipient != env.admin {
		t.Fatalf("recipient should remain the admin default")
	}
	updatedEvents := env.emitter.byType(EventTypeFeeConfigUpdated)
	if len(updatedEvents) != 1 {
		t.Fatalf("expected one fee config event, got %d", len(updatedEvents))
	}
	attrs := updatedEvents[0].Attributes
	if attrs["lockFeeBps"] != "100" || attrs["enabled"] != "true" || attrs["timestamp"] == "" {
		t.Fatalf("unexpected fee config event attributes: %v", attrs)
	}
}

func TestUpdateFeeConfigRejectsInvalidRate(t *testing.T) {
	env := newTestEnv(t)
	env.initialize(t)
	env.auth.Approve(env.admin)

	bad := int64(1500)
	if _, err := env.engine.UpdateFeeConfig(fees.Update{LockFeeBps: &bad}); !errors.Is(err, fees.ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
	// Prior configuration must be untouched.
	cfg, err := env.engine.FeeConfig()
	if err != nil {
		t.Fatalf("fee config: %v", err)
	}
	if cfg.LockFeeBps != 0 || cfg.Enabled {
		t.Fatalf("config mutated after rejected update: %+v", cfg)
	}
}

func TestFeeConfigSynthesizesDefault(t *testing.T) {
	env := newTestEnv(t)
	env.initialize(t)
	// Simulate a deployment that never stored an explicit config.
	env.state.feeCfg = nil

	cfg, err := env.engine.FeeConfig()
	if err != nil {
		t.Fatalf("fee config: %v", err)
	}
	if cfg.Enabled || cfg.LockFeeBps != 0 || cfg.SettleFeeBps != 0 {
		t.Fatalf("synthesized config should be disabled with zero rates: %+v", cfg)
	}
	if cfg.Recipient != env.admin {
		t.Fatalf("synthesized recipient should be the admin")
	}

	uninitialized := newTestEnv(t)
	if _, err := uninitialized.engine.FeeConfig(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestLockFundsCollectsFee(t *testing.T) {
	env := newTestEnv(t)
	env.initialize(t)
	env.auth.Approve(env.admin)

	lockRate := int64(100)
	enabled := true
	if _, err := env.engine.UpdateFeeConfig(fees.Update{LockFeeBps: &lockRate, Enabled: &enabled}); err != nil {
		t.Fatalf("update fee config: %v", err)
	}

	depositor := newTestAddress(0x10)
	env.auth.Approve(depositor)
	env.gateway.fund("XLM", depositor, 5_000)

	esc, err := env.engine.LockFunds(depositor, 7, big.NewInt(1_000), 1_700_100_000)
	if err != nil {
		t.Fatalf("lock funds: %v", err)
	}
	if esc.Amount.Int64() != 990 {
		t.Fatalf("stored amount should be net of lock fee: %s", esc.Amount)
	}
	if esc.Status != EscrowLocked {
		t.Fatalf("unexpected status: %v", esc.Status)
	}
	if got := env.gateway.balance("XLM", env.vault); got.Int64() != 990 {
		t.Fatalf("vault balance = %s, want 990", got)
	}
	if got := env.gateway.balance("XLM", env.admin); got.Int64() != 10 {
		t.Fatalf("fee recipient balance = %s, want 10", got)
	}
	if got := env.gateway.balance("XLM", depositor); got.Int64() != 4_000 {
		t.Fatalf("depositor balance = %s, want 4000", got)
	}

	feeEvents := env.emitter.byType(EventTypeFeeCollected)
	if len(feeEvents) != 1 {
		t.Fatalf("expected one fee event, got %d", len(feeEvents))
	}
	attrs := feeEvents[0].Attributes
	if attrs["operation"] != FeeOpLock || attrs["amount"] != "10" || attrs["rateBps"] != "100" {
		t.Fatalf("unexpected fee event attributes: %v", attrs)
	}
	lockedEvents := env.emitter.byType(EventTypeFundsLocked)
	if len(lockedEvents) != 1 || lockedEvents[0].Attributes["amount"] != "990" {
		t.Fatalf("unexpected funds locked events: %+v", lockedEvents)
	}
}

func TestLockFundsWithoutFee(t *testing.T) {
	env := newTestEnv(t)
	env.initialize(t)

	depositor := newTestAddress(0x10)
	env.auth.Approve(depositor)
	env.gateway.fund("XLM", depositor, 1_000)

	esc, err := env.engine.LockFunds(depositor, 1, big.NewInt(1_000), 1_700_100_000)
	if err != nil {
		t.Fatalf("lock funds: %v", err)
	}
	if esc.Amount.Int64() != 1_000 {
		t.Fatalf("amount should be untouched without fees: %s", esc.Amount)
	}
	if len(env.emitter.byType(EventTypeFeeCollected)) != 0 {
		t.Fatalf("no fee event expected when fees are disabled")
	}
}

func TestLockFundsValidations(t *testing.T) {
	env := newTestEnv(t)
	depositor := newTestAddress(0x10)
	env.auth.Approve(depositor)

	if _, err := env.engine.LockFunds(depositor, 1, big.NewInt(100), 0); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}

	env.initialize(t)
	env.gateway.fund("XLM", depositor, 1_000)

	if _, err := env.engine.LockFunds(newTestAddress(0x20), 1, big.NewInt(100), 0); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unapproved depositor, got %v", err)
	}
	if _, err := env.engine.LockFunds(depositor, 1, big.NewInt(0), 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero amount, got %v", err)
	}
	if _, err := env.engine.LockFunds(depositor, 1, nil, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil amount, got %v", err)
	}
	if _, err := env.engine.LockFunds(depositor, 1, big.NewInt(100), 0); err != nil {
		t.Fatalf("lock funds: %v", err)
	}
	if _, err := env.engine.LockFunds(depositor, 1, big.NewInt(100), 0); !errors.Is(err, ErrBountyExists) {
		t.Fatalf("expected ErrBountyExists, got %v", err)
	}
}

func TestReleaseFundsDistributesFee(t *testing.T) {
	env := newTestEnv(t)
	env.initialize(t)
	env.auth.Approve(env.admin)

	lockRate := int64(100)
	settleRate := int64(200)
	enabled := true
	if _, err := env.engine.UpdateFeeConfig(fees.Update{LockFeeBps: &lockRate, SettleFeeBps: &settleRate, Enabled: &enabled}); err != nil {
		t.Fatalf("update fee config: %v", err)
	}

	depositor := newTestAddress(0x10)
	contributor := newTestAddress(0x30)
	env.auth.Approve(depositor)
	env.gateway.fund("XLM", depositor, 1_000)

	if _, err := env.engine.LockFunds(depositor, 9, big.NewInt(1_000), 1_700_100_000); err != nil {
		t.Fatalf("lock funds: %v", err)
	}

	// Stored net amount is 990; release fee is 2% of it.
	net, err := env.engine.ReleaseFunds(9, contributor)
	if err != nil {
		t.Fatalf("release funds: %v", err)
	}
	if net.Int64() != 971 {
		t.Fatalf("net released = %s, want 971", net)
	}
	if got := env.gateway.balance("XLM", contributor); got.Int64() != 971 {
		t.Fatalf("contributor balance = %s, want 971", got)
	}
	// Lock fee 10 plus release fee 19.
	if got := env.gateway.balance("XLM", env.admin); got.Int64() != 29 {
		t.Fatalf("fee recipient balance = %s, want 29", got)
	}
	if got := env.gateway.balance("XLM", env.vault); got.Int64() != 0 {
		t.Fatalf("vault should be empty after release, got %s", got)
	}

	info, err := env.engine.EscrowInfo(9)
	if err != nil {
		t.Fatalf("escrow info: %v", err)
	}
	if info.Status != EscrowReleased {
		t.Fatalf("unexpected status after release: %v", info.Status)
	}

	releaseFees := env.emitter.byType(EventTypeFeeCollected)
	var sawRelease bool
	for _, evt := range releaseFees {
		if evt.Attributes["operation"] == FeeOpRelease {
			sawRelease = true
			if evt.Attributes["amount"] != "19" || evt.Attributes["rateBps"] != "200" {
				t.Fatalf("unexpected release fee attributes: %v", evt.Attributes)
			}
		}
	}
	if !sawRelease {
		t.Fatalf("expected a release fee event")
	}
	releasedEvents := env.emitter.byType(EventTypeFundsReleased)
	if len(releasedEvents) != 1 || releasedEvents[0].Attributes["amount"] != "971" {
		t.Fatalf("unexpected funds released events: %+v", releasedEvents)
	}
}

func TestReleaseFundsValidations(t *testing.T) {
	env := newTestEnv(t)
	contributor := newTestAddress(0x30)

	if _, err := env.engine.ReleaseFunds(1, contributor); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}

	env.initialize(t)

	if _, err := env.engine.ReleaseFunds(1, contributor); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without admin approval, got %v", err)
	}
	env.auth.Approve(env.admin)

	if _, err := env.engine.ReleaseFunds(1, contributor); !errors.Is(err, ErrBountyNotFound) {
		t.Fatalf("expected ErrBountyNotFound, got %v", err)
	}

	depositor := newTestAddress(0x10)
	env.auth.Approve(depositor)
	env.gateway.fund("XLM", depositor, 500)
	if _, err := env.engine.LockFunds(depositor, 1, big.NewInt(500), 0); err != nil {
		t.Fatalf("lock funds: %v", err)
	}
	if _, err := env.engine.ReleaseFunds(1, contributor); err != nil {
		t.Fatalf("release funds: %v", err)
	}
	// Released is absorbing: every further transition fails.
	if _, err := env.engine.ReleaseFunds(1, contributor); !errors.Is(err, ErrFundsNotLocked) {
		t.Fatalf("expected ErrFundsNotLocked on double release, got %v", err)
	}
	if _, err := env.engine.Refund(1); !errors.Is(err, ErrFundsNotLocked) {
		t.Fatalf("expected ErrFundsNotLocked refunding a released escrow, got %v", err)
	}
}

func TestRefundHonorsDeadline(t *testing.T) {
	env := newTestEnv(t)
	env.initialize(t)

	depositor := newTestAddress(0x10)
	env.auth.Approve(depositor)
	env.gateway.fund("XLM", depositor, 800)

	deadline := int64(1_700_500_000)
	if _, err := env.engine.LockFunds(depositor, 3, big.NewInt(800), deadline); err != nil {
		t.Fatalf("lock funds: %v", err)
	}

	if _, err := env.engine.Refund(3); !errors.Is(err, ErrDeadlineNotPassed) {
		t.Fatalf("expected ErrDeadlineNotPassed, got %v", err)
	}

	// The refund path is permissionless: nothing is approved in the
	// authorizer beyond the original depositor, and the deadline alone
	// gates the transition.
	env.engine.SetNowFunc(func() int64 { return deadline })
	amount, err := env.engine.Refund(3)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if amount.Int64() != 800 {
		t.Fatalf("refund amount = %s, want 800 (no fee on refund)", amount)
	}
	if got := env.gateway.balance("XLM", depositor); got.Int64() != 800 {
		t.Fatalf("depositor balance = %s, want 800", got)
	}

	info, err := env.engine.EscrowInfo(3)
	if err != nil {
		t.Fatalf("escrow info: %v", err)
	}
	if info.Status != EscrowRefunded {
		t.Fatalf("unexpected status after refund: %v", info.Status)
	}
	if _, err := env.engine.Refund(3); !errors.Is(err, ErrFundsNotLocked) {
		t.Fatalf("expected ErrFundsNotLocked on double refund, got %v", err)
	}
	refundedEvents := env.emitter.byType(EventTypeFundsRefunded)
	if len(refundedEvents) != 1 || refundedEvents[0].Attributes["amount"] != "800" {
		t.Fatalf("unexpected refunded events: %+v", refundedEvents)
	}
}

func TestRefundUnknownBounty(t *testing.T) {
	env := newTestEnv(t)
	env.initialize(t)
	if _, err := env.engine.Refund(42); !errors.Is(err, ErrBountyNotFound) {
		t.Fatalf("expected ErrBountyNotFound, got %v", err)
	}
}

func TestEscrowInfoAndBalance(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.engine.Balance(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := env.engine.EscrowInfo(5); !errors.Is(err, ErrBountyNotFound) {
		t.Fatalf("expected ErrBountyNotFound, got %v", err)
	}

	env.initialize(t)
	depositor := newTestAddress(0x10)
	env.auth.Approve(depositor)
	env.gateway.fund("XLM", depositor, 250)
	if _, err := env.engine.LockFunds(depositor, 5, big.NewInt(250), 0); err != nil {
		t.Fatalf("lock funds: %v", err)
	}

	info, err := env.engine.EscrowInfo(5)
	if err != nil {
		t.Fatalf("escrow info: %v", err)
	}
	info.Amount.SetInt64(1) // callers may mutate their copy freely
	again, err := env.engine.EscrowInfo(5)
	if err != nil {
		t.Fatalf("escrow info: %v", err)
	}
	if again.Amount.Int64() != 250 {
		t.Fatalf("EscrowInfo must return a clone, stored amount mutated to %s", again.Amount)
	}

	balance, err := env.engine.Balance()
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 250 {
		t.Fatalf("vault balance = %s, want 250", balance)
	}
}
