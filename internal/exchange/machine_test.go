package exchange

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/starsbot/core/telegram/state"
)

const userID int64 = 1001

var (
	tronAddr = "T" + strings.Repeat("b", 33)
	tonAddr  = "EQ" + strings.Repeat("c", 48)
)

type fakeAdmin struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeAdmin) NotifyAdmin(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return f.err
}

func (f *fakeAdmin) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []GatewayRequest
	errs     []error
	block    bool
}

func (f *fakeGateway) CreatePayment(ctx context.Context, req GatewayRequest) (*GatewayResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &GatewayResult{ID: "tx-1", Address: "pay-address", PayURL: "https://pay.example/tx-1", Status: "waiting"}, nil
}

func (f *fakeGateway) calls() []GatewayRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]GatewayRequest(nil), f.requests...)
}

type fakeLedger struct {
	mu   sync.Mutex
	reqs []Request
}

func (f *fakeLedger) Record(_ context.Context, req Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return nil
}

type fixture struct {
	m       *Machine
	store   *state.Store[Session]
	admin   *fakeAdmin
	gateway *fakeGateway
	ledger  *fakeLedger
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	f := &fixture{
		store:   state.NewMemoryStore[Session](time.Minute),
		admin:   &fakeAdmin{},
		gateway: &fakeGateway{},
		ledger:  &fakeLedger{},
	}
	m, err := NewMachine(opts, f.store, Deps{Admin: f.admin, Gateway: f.gateway, Ledger: f.ledger})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	m.newOrderID = func() string { return "order-1" }
	f.m = m
	return f
}

func (f *fixture) entry() Outcome {
	return f.m.Handle(context.Background(), EntryCommand(userID, "Alice"))
}

func (f *fixture) text(s string) Outcome {
	return f.m.Handle(context.Background(), TextInput(userID, s))
}

func (f *fixture) pick(kind TokenKind, value string) Outcome {
	return f.m.Handle(context.Background(), MenuSelection(userID, Token{Kind: kind, Value: value}))
}

func (f *fixture) session(t *testing.T) Session {
	t.Helper()
	s, ok := f.store.Get(userID)
	if !ok {
		t.Fatal("expected a live session")
	}
	return s
}

// toConfirmation walks the 1000 Stars → USDT TRC20 path up to the confirmation step.
func (f *fixture) toConfirmation(t *testing.T) {
	t.Helper()
	f.entry()
	mustStep(t, f.text("1000"), StepTarget)
	mustStep(t, f.pick(KindTarget, "USDT"), StepRoute)
	mustStep(t, f.pick(KindNetwork, "TRC20"), StepDetails)
	mustStep(t, f.text(tronAddr), StepConfirm)
}

func mustStep(t *testing.T, out Outcome, want Step) {
	t.Helper()
	if out.Failure != nil {
		t.Fatalf("unexpected failure: %v", out.Failure)
	}
	if out.Rejection != nil {
		t.Fatalf("unexpected rejection: %s", out.Rejection.Code())
	}
	if out.To != want {
		t.Fatalf("step = %s, want %s", out.To, want)
	}
}

func mustReject(t *testing.T, out Outcome, reason string) {
	t.Helper()
	if out.Rejection == nil || out.Rejection.Code() != reason {
		t.Fatalf("rejection = %v, want %s", out.Rejection, reason)
	}
	if out.From != out.To {
		t.Fatalf("step moved from %s to %s on rejection", out.From, out.To)
	}
}

func TestEntryPromptsWelcomeAndAmount(t *testing.T) {
	f := newFixture(t, nil)
	out := f.entry()
	mustStep(t, out, StepAmount)
	if len(out.Prompts) != 2 {
		t.Fatalf("prompts = %d, want 2", len(out.Prompts))
	}
	if !strings.Contains(out.Prompts[0].Text, "Alice") || !strings.Contains(out.Prompts[0].Text, "250 Stars = 0.98 USDT") {
		t.Fatalf("welcome = %q", out.Prompts[0].Text)
	}
	if out.Prompts[1].Menu != nil {
		t.Fatal("free text mode should not render an amount menu")
	}
	for _, p := range out.Prompts {
		if p.UserID != userID {
			t.Fatalf("prompt addressed to %d", p.UserID)
		}
	}
}

func TestEntryIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.entry()
	f.text("1000")
	f.pick(KindTarget, "USDT")

	f.entry()
	first := f.session(t)
	f.entry()
	second := f.session(t)

	if first.Step != StepAmount || second.Step != StepAmount {
		t.Fatalf("steps = %s/%s, want %s", first.Step, second.Step, StepAmount)
	}
	if first.Quote != nil || !second.Amount.IsZero() || second.Target != "" {
		t.Fatalf("entry did not reset session: %+v", second)
	}
}

func TestAmountRejections(t *testing.T) {
	f := newFixture(t, nil)
	f.entry()

	for in, reason := range map[string]string{
		"lots":  ReasonNotNumeric,
		"100":   ReasonBelowMinimum,
		"60000": ReasonAboveMaximum,
	} {
		out := f.text(in)
		mustReject(t, out, reason)
		if out.To != StepAmount || len(out.Prompts) != 1 {
			t.Fatalf("%q: to=%s prompts=%d", in, out.To, len(out.Prompts))
		}
	}
	mustStep(t, f.text("250"), StepTarget)
}

func TestPresetAmounts(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.PresetAmounts = []decimal.Decimal{decimal.NewFromInt(500), decimal.NewFromInt(1000)}
	})
	out := f.entry()
	menu := out.Prompts[1].Menu
	if len(menu) != 3 || menu[0].Token != (Token{Kind: KindAmount, Value: "500"}) {
		t.Fatalf("amount menu = %+v", menu)
	}
	mustReject(t, f.pick(KindAmount, "750"), ReasonStaleSelection)
	mustStep(t, f.pick(KindAmount, "1000"), StepTarget)
	if got := f.session(t).Amount.String(); got != "1000" {
		t.Fatalf("amount = %s", got)
	}
}

func TestMenuOnlyStepsRejectText(t *testing.T) {
	f := newFixture(t, nil)
	f.entry()
	f.text("1000")

	out := f.text("USDT please")
	mustReject(t, out, ReasonMenuOnly)
	if len(out.Prompts) != 1 || len(out.Prompts[0].Menu) == 0 {
		t.Fatal("expected re-prompt with the target menu")
	}
}

func TestStaleTokenIsNotApplied(t *testing.T) {
	f := newFixture(t, nil)
	f.entry()
	f.text("1000")

	mustReject(t, f.pick(KindNetwork, "TRC20"), ReasonStaleSelection)
	mustReject(t, f.pick(KindTarget, "EUR"), ReasonStaleSelection)
	mustReject(t, f.pick(KindConfirm, "yes"), ReasonStaleSelection)

	s := f.session(t)
	if s.Step != StepTarget || s.Network != "" || s.Target != "" {
		t.Fatalf("stale token mutated session: %+v", s)
	}
}

func TestQuoteIsSetOnceAtTargetSelection(t *testing.T) {
	f := newFixture(t, nil)
	f.entry()
	f.text("1000")
	out := f.pick(KindTarget, "USDT")
	if !strings.Contains(out.Prompts[0].Text, "3.92 USDT") {
		t.Fatalf("quote not displayed: %q", out.Prompts[0].Text)
	}
	q := f.session(t).Quote

	f.pick(KindNetwork, "BEP20")
	f.text("not an address")
	if got := f.session(t).Quote; got != q || got.Amount.StringFixed(2) != "3.92" {
		t.Fatalf("quote changed: %+v", got)
	}
}

func TestTONSkipsNetworkStep(t *testing.T) {
	f := newFixture(t, nil)
	f.entry()
	f.text("2500")
	mustStep(t, f.pick(KindTarget, "TON"), StepDetails)
	if s := f.session(t); s.Network != NetworkTON {
		t.Fatalf("network = %q, want TON", s.Network)
	}
	mustReject(t, f.text(tronAddr), ReasonInvalidDetails)
	mustStep(t, f.text(tonAddr), StepConfirm)
}

func TestFiatPayoutFlow(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.FiatPayouts = true })
	f.entry()
	f.text("1000")
	mustStep(t, f.pick(KindTarget, "EUR"), StepRoute)
	mustReject(t, f.pick(KindNetwork, "TRC20"), ReasonStaleSelection)
	mustStep(t, f.pick(KindMethod, "wise"), StepDetails)
	mustReject(t, f.text("   "), ReasonInvalidDetails)
	mustStep(t, f.text("alice@example.com"), StepConfirm)

	f.pick(KindConfirm, "yes")
	sent := f.admin.sent()
	if len(sent) != 1 {
		t.Fatalf("admin messages = %d, want 1", len(sent))
	}
	for _, want := range []string{"3.23 EUR", "Wise", "alice@example.com"} {
		if !strings.Contains(sent[0], want) {
			t.Errorf("summary missing %q:\n%s", want, sent[0])
		}
	}
}

func TestFiatTargetsHiddenByDefault(t *testing.T) {
	f := newFixture(t, nil)
	f.entry()
	out := f.text("1000")
	for _, item := range out.Prompts[0].Menu {
		if item.Token.Kind == KindTarget && Currency(item.Token.Value).IsFiat() {
			t.Fatalf("fiat target offered: %+v", item)
		}
	}
	mustReject(t, f.pick(KindTarget, "USD"), ReasonStaleSelection)
}

func TestEndToEndAdmin(t *testing.T) {
	f := newFixture(t, nil)
	f.toConfirmation(t)

	out := f.pick(KindConfirm, "yes")
	if out.Failure != nil || out.Completed == nil {
		t.Fatalf("confirm failed: %+v", out)
	}
	if out.To != StepIdle {
		t.Fatalf("step = %s, want reset", out.To)
	}
	if f.store.InProgress(userID) {
		t.Fatal("session should be reset after success")
	}
	if len(f.gateway.calls()) != 0 {
		t.Fatal("admin action must not call the gateway")
	}
	sent := f.admin.sent()
	if len(sent) != 1 {
		t.Fatalf("admin messages = %d, want 1", len(sent))
	}
	for _, want := range []string{"1000", "3.92 USDT", "TRC20", tronAddr, "Alice"} {
		if !strings.Contains(sent[0], want) {
			t.Errorf("summary missing %q:\n%s", want, sent[0])
		}
	}
	if len(f.ledger.reqs) != 1 || f.ledger.reqs[0].OrderID != "order-1" {
		t.Fatalf("ledger = %+v", f.ledger.reqs)
	}
}

func TestAdminFailureStillCompletes(t *testing.T) {
	f := newFixture(t, nil)
	f.admin.err = errors.New("chat not found")
	f.toConfirmation(t)

	out := f.pick(KindConfirm, "yes")
	if out.Failure != nil || out.Completed == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.Prompts) != 1 || !strings.Contains(out.Prompts[0].Text, "Request received") {
		t.Fatalf("prompts = %+v", out.Prompts)
	}
}

func TestEndToEndGateway(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.TerminalAction = ActionGateway })
	f.toConfirmation(t)

	out := f.pick(KindConfirm, "yes")
	if out.Failure != nil || out.Completed == nil {
		t.Fatalf("confirm failed: %+v", out)
	}
	calls := f.gateway.calls()
	if len(calls) != 1 {
		t.Fatalf("gateway calls = %d, want 1", len(calls))
	}
	req := calls[0]
	if req.Stars.String() != "1000" || req.Payout.Amount.StringFixed(2) != "3.92" {
		t.Fatalf("request amounts = %s / %s", req.Stars, req.Payout)
	}
	if req.Network != TRC20 || req.PayCurrency != "usdttrc20" || req.Address != tronAddr {
		t.Fatalf("request route = %+v", req)
	}
	if req.Amount.StringFixed(2) != "3.63" || req.PriceCurrency != "usd" || req.OrderID != "order-1" {
		t.Fatalf("request pricing = %s %s %s", req.Amount, req.PriceCurrency, req.OrderID)
	}
	if len(f.admin.sent()) != 0 {
		t.Fatal("gateway action must not notify admin")
	}
	if !strings.Contains(out.Prompts[0].Text, "https://pay.example/tx-1") {
		t.Fatalf("pay url not relayed: %q", out.Prompts[0].Text)
	}
}

func TestGatewayFailureThenRetry(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.TerminalAction = ActionGateway })
	f.gateway.errs = []error{ErrGatewayUnavailable}
	f.toConfirmation(t)

	out := f.pick(KindConfirm, "yes")
	var gerr *GatewayError
	if !errors.As(out.Failure, &gerr) || !errors.Is(out.Failure, ErrGatewayUnavailable) {
		t.Fatalf("failure = %v, want GatewayError(unavailable)", out.Failure)
	}
	if out.To != StepConfirm || out.Completed != nil {
		t.Fatalf("step = %s completed=%v, want rollback to confirmation", out.To, out.Completed)
	}
	if len(out.Prompts) != 1 || len(out.Prompts[0].Menu) == 0 {
		t.Fatal("expected apology with confirm menu")
	}

	retry := f.pick(KindConfirm, "yes")
	if retry.Failure != nil || retry.Completed == nil {
		t.Fatalf("retry failed: %+v", retry)
	}
	calls := f.gateway.calls()
	if len(calls) != 2 || calls[0].OrderID != calls[1].OrderID {
		t.Fatalf("calls = %+v, want two with the same order id", calls)
	}
}

func TestGatewayTimeout(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.TerminalAction = ActionGateway
		o.GatewayTimeout = 20 * time.Millisecond
	})
	f.gateway.block = true
	f.toConfirmation(t)

	out := f.pick(KindConfirm, "yes")
	if !errors.Is(out.Failure, ErrGatewayTimeout) {
		t.Fatalf("failure = %v, want timeout", out.Failure)
	}
	var gerr *GatewayError
	if !errors.As(out.Failure, &gerr) || gerr.Code() != "gateway_timeout" {
		t.Fatalf("code = %v", out.Failure)
	}
	if s := f.session(t); s.Step != StepConfirm {
		t.Fatalf("step = %s, want %s", s.Step, StepConfirm)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t, nil)
	f.entry()
	f.text("1000")
	out := f.pick(KindCancel, "cancel")
	if out.To != StepIdle || f.store.InProgress(userID) {
		t.Fatal("cancel should discard the session")
	}
	after := f.text("hello")
	if len(after.Prompts) != 1 || after.Prompts[0].Text != msgEntryHint {
		t.Fatalf("prompts = %+v, want entry hint", after.Prompts)
	}
}

func TestNoSession(t *testing.T) {
	f := newFixture(t, nil)
	out := f.text("1000")
	if len(out.Prompts) != 1 || out.Prompts[0].Text != msgEntryHint {
		t.Fatalf("prompts = %+v", out.Prompts)
	}
	mustReject(t, f.pick(KindConfirm, "yes"), ReasonStaleSelection)
	if f.store.Len() != 0 {
		t.Fatal("events without a session must not create one")
	}
}

func TestKeepRetentionConfirmIsNoop(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Retention = RetentionKeep })
	f.toConfirmation(t)
	f.pick(KindConfirm, "yes")

	if s := f.session(t); s.Step != StepTerminal {
		t.Fatalf("step = %s, want terminal", s.Step)
	}
	out := f.pick(KindConfirm, "yes")
	if len(out.Prompts) != 0 || out.Completed != nil || out.Rejection != nil {
		t.Fatalf("second confirm not a no-op: %+v", out)
	}
	if len(f.admin.sent()) != 1 {
		t.Fatalf("admin messages = %d, want 1", len(f.admin.sent()))
	}
	mustStep(t, f.entry(), StepAmount)
}

func TestConcurrentConfirmsNotifyOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.toConfirmation(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.pick(KindConfirm, "yes")
		}()
	}
	wg.Wait()
	if n := len(f.admin.sent()); n != 1 {
		t.Fatalf("admin messages = %d, want exactly 1", n)
	}
}

func TestNewMachineRequiresPorts(t *testing.T) {
	store := state.NewMemoryStore[Session](time.Minute)
	if _, err := NewMachine(DefaultOptions(), store, Deps{}); err == nil {
		t.Fatal("expected missing admin notifier to fail")
	}
	opts := DefaultOptions()
	opts.TerminalAction = ActionGateway
	if _, err := NewMachine(opts, store, Deps{}); err == nil {
		t.Fatal("expected missing gateway to fail")
	}
	opts.Retention = "forever"
	if _, err := NewMachine(opts, store, Deps{Gateway: &fakeGateway{}}); err == nil {
		t.Fatal("expected invalid retention to fail")
	}
}
