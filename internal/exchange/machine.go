package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/starsbot/core/logger"
)

// Outcome is everything produced by one event.
type Outcome struct {
	From    Step
	To      Step
	Prompts []Prompt
	// Rejection is set when input was refused; the step did not change.
	Rejection *ValidationError
	// Completed is set when the event produced a request.
	Completed *Request
	// Failure carries infrastructure errors, including GatewayError.
	Failure error
}

// Deps are the side-effect ports of the Machine. Ledger is optional.
type Deps struct {
	Admin   AdminNotifier
	Gateway Gateway
	Ledger  Ledger
}

// Machine drives the sell conversation for all users.
type Machine struct {
	opts      Options
	store     SessionStore
	deps      Deps
	validator *DetailsValidator

	newOrderID func() string
	now        func() time.Time
}

// NewMachine validates options and binds the ports required by the terminal action.
func NewMachine(opts Options, store SessionStore, deps Deps) (*Machine, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("exchange options: %w", err)
	}
	if store == nil {
		return nil, errors.New("exchange: session store is required")
	}
	switch opts.TerminalAction {
	case ActionAdmin:
		if deps.Admin == nil {
			return nil, errors.New("exchange: admin notifier is required for admin action")
		}
	case ActionGateway:
		if deps.Gateway == nil {
			return nil, errors.New("exchange: gateway is required for gateway action")
		}
	}
	dv, err := NewDetailsValidator()
	if err != nil {
		return nil, err
	}
	return &Machine{
		opts:       opts,
		store:      store,
		deps:       deps,
		validator:  dv,
		newOrderID: func() string { return uuid.NewString() },
		now:        time.Now,
	}, nil
}

// Options returns the machine configuration.
func (m *Machine) Options() Options {
	return m.opts
}

// Handle applies ev to the user's session. Events of one user are processed one at a time.
func (m *Machine) Handle(ctx context.Context, ev Event) Outcome {
	start := time.Now()
	var out Outcome
	err := m.store.Update(ev.UserID, func(cur Session, found bool) (Session, bool, error) {
		out.From = StepIdle
		if found {
			out.From = cur.Step
		}
		next, keep := m.apply(ctx, ev, cur, found, &out)
		out.To = StepIdle
		if keep {
			out.To = next.Step
		}
		return next, keep, nil
	})
	if err != nil && out.Failure == nil {
		out.Failure = err
	}
	for i := range out.Prompts {
		out.Prompts[i].UserID = ev.UserID
	}
	m.logOutcome(ctx, ev, out, start)
	return out
}

func (m *Machine) apply(ctx context.Context, ev Event, s Session, found bool, out *Outcome) (Session, bool) {
	if ev.Kind == EventEntry {
		s = Session{
			Step:        StepAmount,
			UserID:      ev.UserID,
			DisplayName: ev.DisplayName,
			Username:    ev.Username,
			StartedAt:   m.now(),
		}
		out.Prompts = append(out.Prompts, Prompt{Text: welcomeText(ev.DisplayName, m.opts)}, m.promptFor(s))
		return s, true
	}

	if !found || s.Step == StepIdle {
		if ev.Kind == EventSelection {
			out.Rejection = rejectf(ReasonStaleSelection, msgStaleButton)
		}
		out.Prompts = append(out.Prompts, Prompt{Text: msgEntryHint})
		return s, false
	}

	if s.Step == StepTerminal {
		if ev.Kind == EventSelection && ev.Token == ConfirmToken {
			return s, true
		}
		if ev.Kind == EventSelection {
			out.Rejection = rejectf(ReasonStaleSelection, msgStaleButton)
			return s, true
		}
		out.Prompts = append(out.Prompts, Prompt{Text: msgEntryHint})
		return s, true
	}

	if ev.Kind == EventSelection && ev.Token.Kind == KindCancel {
		out.Prompts = append(out.Prompts, Prompt{Text: msgCancelled})
		return Session{}, false
	}

	switch s.Step {
	case StepAmount:
		return m.onAmount(ev, s, out), true
	case StepTarget:
		return m.onTarget(ev, s, out), true
	case StepRoute:
		return m.onRoute(ev, s, out), true
	case StepDetails:
		return m.onDetails(ev, s, out), true
	case StepConfirm:
		return m.onConfirm(ctx, ev, s, out)
	}
	out.Failure = fmt.Errorf("exchange: unknown step %q", s.Step)
	return s, true
}

// promptFor renders the prompt of the session's current step.
func (m *Machine) promptFor(s Session) Prompt {
	switch s.Step {
	case StepAmount:
		return Prompt{Text: amountText(m.opts), Menu: amountMenu(m.opts)}
	case StepTarget:
		return Prompt{Text: targetText(s, m.opts), Menu: targetMenu(m.opts)}
	case StepRoute:
		if s.Target.IsFiat() {
			return Prompt{Text: routeText(s), Menu: methodMenu()}
		}
		return Prompt{Text: routeText(s), Menu: networkMenu()}
	case StepDetails:
		return Prompt{Text: detailsText(s), Menu: []MenuItem{cancelItem}}
	case StepConfirm:
		return Prompt{Text: confirmText(s), Menu: confirmMenu()}
	}
	return Prompt{Text: msgEntryHint}
}

// reject records verr and re-prompts the current step. Stale selections are not re-prompted.
func (m *Machine) reject(out *Outcome, s Session, verr *ValidationError) {
	out.Rejection = verr
	if verr.Reason == ReasonStaleSelection {
		return
	}
	p := m.promptFor(s)
	p.Text = verr.Message + "\n\n" + p.Text
	out.Prompts = append(out.Prompts, p)
}

// selection returns the token when ev is a selection valid for the current menu.
func (m *Machine) selection(ev Event, s Session, out *Outcome) (Token, bool) {
	switch ev.Kind {
	case EventText:
		m.reject(out, s, rejectf(ReasonMenuOnly, msgChooseOption))
		return Token{}, false
	case EventSelection:
		if !menuContains(m.promptFor(s).Menu, ev.Token) {
			m.reject(out, s, rejectf(ReasonStaleSelection, msgStaleButton))
			return Token{}, false
		}
		return ev.Token, true
	}
	return Token{}, false
}

func (m *Machine) onAmount(ev Event, s Session, out *Outcome) Session {
	raw := ev.Text
	if ev.Kind == EventSelection {
		tok, ok := m.selection(ev, s, out)
		if !ok {
			return s
		}
		raw = tok.Value
	}
	amount, err := m.opts.ParseAmount(raw)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			m.reject(out, s, verr)
		} else {
			out.Failure = err
		}
		return s
	}
	s.Amount = amount
	s.Step = StepTarget
	out.Prompts = append(out.Prompts, m.promptFor(s))
	return s
}

func (m *Machine) onTarget(ev Event, s Session, out *Outcome) Session {
	tok, ok := m.selection(ev, s, out)
	if !ok {
		return s
	}
	target := Currency(tok.Value)
	if s.Quote == nil {
		q, err := m.opts.Rates.Quote(s.Amount, target)
		if err != nil {
			out.Failure = err
			return s
		}
		s.Quote = &q
	}
	s.Target = target
	if target == TON {
		s.Network = NetworkTON
		s.Step = StepDetails
	} else {
		s.Step = StepRoute
	}
	next := m.promptFor(s)
	next.Text = quoteText(s) + "\n\n" + next.Text
	out.Prompts = append(out.Prompts, next)
	return s
}

func (m *Machine) onRoute(ev Event, s Session, out *Outcome) Session {
	tok, ok := m.selection(ev, s, out)
	if !ok {
		return s
	}
	switch tok.Kind {
	case KindNetwork:
		s.Network = Network(tok.Value)
	case KindMethod:
		s.Method = Method(tok.Value)
	}
	s.Step = StepDetails
	out.Prompts = append(out.Prompts, m.promptFor(s))
	return s
}

func (m *Machine) onDetails(ev Event, s Session, out *Outcome) Session {
	if ev.Kind != EventText {
		m.reject(out, s, rejectf(ReasonStaleSelection, msgStaleButton))
		return s
	}
	details, err := m.validator.Validate(s.Destination(), ev.Text)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			m.reject(out, s, verr)
		} else {
			out.Failure = err
		}
		return s
	}
	s.Details = details
	s.Step = StepConfirm
	out.Prompts = append(out.Prompts, m.promptFor(s))
	return s
}

func (m *Machine) onConfirm(ctx context.Context, ev Event, s Session, out *Outcome) (Session, bool) {
	if _, ok := m.selection(ev, s, out); !ok {
		return s, true
	}
	if s.Quote == nil {
		q, err := m.opts.Rates.Quote(s.Amount, s.Target)
		if err != nil {
			out.Failure = err
			return s, true
		}
		s.Quote = &q
	}
	if s.OrderID == "" {
		s.OrderID = m.newOrderID()
	}
	ctx = logger.WithOrderID(ctx, s.OrderID)

	switch m.opts.TerminalAction {
	case ActionGateway:
		res, err := m.createPayment(ctx, s)
		if err != nil {
			out.Failure = err
			s.Step = StepConfirm
			out.Prompts = append(out.Prompts, Prompt{Text: msgGatewayFailed, Menu: confirmMenu()})
			return s, true
		}
		s.Transaction = res
		out.Prompts = append(out.Prompts, Prompt{Text: gatewayText(s)})
	default:
		if err := m.deps.Admin.NotifyAdmin(ctx, AdminSummary(s)); err != nil {
			logger.LogEvent(ctx, logger.SVCExchange, slog.LevelWarn, "admin.notify",
				slog.String("status", "fail"),
				slog.Int64("user_id", s.UserID),
				slog.String("err", err.Error()),
			)
		}
		out.Prompts = append(out.Prompts, Prompt{Text: receivedText(s)})
	}

	s.Step = StepTerminal
	req := s.request(m.opts.TerminalAction, m.now())
	out.Completed = &req
	if m.deps.Ledger != nil {
		if err := m.deps.Ledger.Record(ctx, req); err != nil {
			logger.LogEvent(ctx, logger.SVCExchange, slog.LevelWarn, "ledger.record",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}
	if m.opts.Retention == RetentionKeep {
		return s, true
	}
	return Session{}, false
}

func (m *Machine) createPayment(ctx context.Context, s Session) (*GatewayResult, error) {
	req, err := BuildGatewayRequest(s)
	if err != nil {
		return nil, &GatewayError{Op: "build request", Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, m.opts.GatewayTimeout)
	defer cancel()

	res, err := m.deps.Gateway.CreatePayment(ctx, req)
	if err == nil && res == nil {
		err = fmt.Errorf("%w: empty response", ErrGatewayUnavailable)
	}
	if err != nil {
		var gerr *GatewayError
		if errors.As(err, &gerr) {
			return nil, gerr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
		}
		return nil, &GatewayError{Op: "create payment", Err: err}
	}
	return res, nil
}

// ParseAmount validates a Stars amount typed by the user.
func (o Options) ParseAmount(raw string) (decimal.Decimal, error) {
	text := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if !amountRe.MatchString(text) {
		return decimal.Zero, rejectf(ReasonNotNumeric, "❌ Please enter a number of Stars, for example %s.", o.MinAmount)
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, rejectf(ReasonNotNumeric, "❌ Please enter a number of Stars, for example %s.", o.MinAmount)
	}
	if amount.LessThan(o.MinAmount) {
		return decimal.Zero, rejectf(ReasonBelowMinimum, "❌ The minimum amount is %s Stars.", o.MinAmount)
	}
	if amount.GreaterThan(o.MaxAmount) {
		return decimal.Zero, rejectf(ReasonAboveMaximum, "❌ The maximum amount is %s Stars.", o.MaxAmount)
	}
	return amount, nil
}

func (m *Machine) logOutcome(ctx context.Context, ev Event, out Outcome, start time.Time) {
	level := slog.LevelDebug
	status := "ok"
	attrs := []slog.Attr{
		slog.Int64("user_id", ev.UserID),
		slog.String("op", ev.Kind.String()),
		slog.String("from_step", string(out.From)),
		slog.String("to_step", string(out.To)),
	}
	if ev.Kind == EventSelection {
		attrs = append(attrs, slog.String("token", ev.Token.String()))
	}
	switch {
	case out.Failure != nil:
		level, status = slog.LevelWarn, "fail"
		attrs = append(attrs, slog.String("err", out.Failure.Error()))
		var coded interface{ Code() string }
		if errors.As(out.Failure, &coded) {
			attrs = append(attrs, slog.String("err_code", coded.Code()))
		}
	case out.Rejection != nil:
		status = "rejected"
		attrs = append(attrs, slog.String("err_code", out.Rejection.Code()))
	case out.Completed != nil:
		level = slog.LevelInfo
		attrs = append(attrs,
			slog.String("outcome", "completed"),
			slog.String("order_id", out.Completed.OrderID),
			slog.String("amount", out.Completed.Stars.String()),
			slog.String("quote", out.Completed.Payout.StringFixed(2)),
			slog.String("currency", string(out.Completed.Currency)),
		)
	}
	attrs = append(attrs,
		slog.String("status", status),
		slog.Duration("duration_ms", logger.Took(start)),
	)
	logger.LogEvent(ctx, logger.SVCExchange, level, "fsm.event", attrs...)
}
