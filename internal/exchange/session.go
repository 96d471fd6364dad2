package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/starsbot/core/telegram/state"
)

// TerminalAction selects what a confirmed request triggers.
type TerminalAction string

const (
	ActionAdmin   TerminalAction = "admin"
	ActionGateway TerminalAction = "gateway"
)

// Retention selects what happens to a session after a successful request.
type Retention string

const (
	RetentionReset Retention = "reset"
	RetentionKeep  Retention = "keep"
)

// Options parameterizes the conversation.
type Options struct {
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	// PresetAmounts enables the amount menu when non-empty.
	PresetAmounts  []decimal.Decimal
	FiatPayouts    bool
	TerminalAction TerminalAction
	Retention      Retention
	GatewayTimeout time.Duration
	Rates          RateTable
}

// DefaultOptions mirrors the published limits: 250 to 50000 Stars, admin hand-off, reset after success.
func DefaultOptions() Options {
	return Options{
		MinAmount:      decimal.NewFromInt(250),
		MaxAmount:      decimal.NewFromInt(50000),
		TerminalAction: ActionAdmin,
		Retention:      RetentionReset,
		GatewayTimeout: 15 * time.Second,
		Rates:          DefaultRates(),
	}
}

// Validate checks bounds, presets and enumerations.
func (o Options) Validate() error {
	if !o.MinAmount.IsPositive() {
		return errors.New("min amount must be > 0")
	}
	if o.MaxAmount.LessThan(o.MinAmount) {
		return errors.New("max amount must be >= min amount")
	}
	for _, p := range o.PresetAmounts {
		if p.LessThan(o.MinAmount) || p.GreaterThan(o.MaxAmount) {
			return fmt.Errorf("preset amount %s outside [%s, %s]", p, o.MinAmount, o.MaxAmount)
		}
	}
	switch o.TerminalAction {
	case ActionAdmin, ActionGateway:
	default:
		return fmt.Errorf("unknown terminal action %q", o.TerminalAction)
	}
	switch o.Retention {
	case RetentionReset, RetentionKeep:
	default:
		return fmt.Errorf("unknown retention %q", o.Retention)
	}
	if o.TerminalAction == ActionGateway && o.GatewayTimeout <= 0 {
		return errors.New("gateway timeout must be > 0")
	}
	// Gateway payments need a crypto network; fiat rails are settled by the admin.
	if o.TerminalAction == ActionGateway && o.FiatPayouts {
		return errors.New("fiat payouts require the admin terminal action")
	}
	return o.Rates.Validate()
}

// Session is the per-user conversation state.
type Session struct {
	Step        Step
	UserID      int64
	DisplayName string
	Username    string
	StartedAt   time.Time

	Amount  decimal.Decimal
	Target  Currency
	Network Network
	Method  Method
	Details string

	// Quote is set once when the payout currency is chosen.
	Quote       *Quote
	OrderID     string
	Transaction *GatewayResult
}

// Destination returns the payout destination selected so far.
func (s Session) Destination() Destination {
	return Destination{Currency: s.Target, Network: s.Network, Method: s.Method}
}

// SessionStore is the per-user serialized store the Machine runs on.
type SessionStore interface {
	Update(userID int64, fn state.UpdateFunc[Session]) error
}

// GatewayRequest asks the payout gateway to open a transaction.
type GatewayRequest struct {
	OrderID string
	// Amount is the USD equivalent of the payout, priced in PriceCurrency.
	Amount        decimal.Decimal
	PriceCurrency string
	PayCurrency   string
	Description   string

	UserID  int64
	Stars   decimal.Decimal
	Payout  Quote
	Network Network
	Address string
}

// GatewayResult is the transaction created by the gateway.
type GatewayResult struct {
	ID      string
	Address string
	PayURL  string
	Code    string
	Status  string
}

// Gateway creates payout transactions.
type Gateway interface {
	CreatePayment(ctx context.Context, req GatewayRequest) (*GatewayResult, error)
}

// AdminNotifier delivers request summaries to a human operator.
type AdminNotifier interface {
	NotifyAdmin(ctx context.Context, text string) error
}

// Request is a completed payout request.
type Request struct {
	OrderID     string
	UserID      int64
	DisplayName string
	Username    string
	Stars       decimal.Decimal
	Payout      decimal.Decimal
	Currency    Currency
	Asset       Currency
	Network     Network
	Method      Method
	Details     string
	Action      TerminalAction
	GatewayID   string
	PayAddress  string
	PayURL      string
	CreatedAt   time.Time
}

// Ledger records completed requests. Implementations must be safe for concurrent use.
type Ledger interface {
	Record(ctx context.Context, req Request) error
}

var payCurrencies = map[Network]string{
	BEP20:      "usdtbsc",
	TRC20:      "usdttrc20",
	ERC20:      "usdterc20",
	NetworkTON: "ton",
}

// DefaultPayCurrency is used when the network has no gateway code.
const DefaultPayCurrency = "usdttrc20"

// PayCurrencyFor maps a network to the gateway currency code.
func PayCurrencyFor(n Network) string {
	if code, ok := payCurrencies[n]; ok {
		return code
	}
	return DefaultPayCurrency
}

// BuildGatewayRequest prices a confirmed session for the gateway.
func BuildGatewayRequest(s Session) (GatewayRequest, error) {
	if s.Quote == nil {
		return GatewayRequest{}, errors.New("session has no quote")
	}
	return GatewayRequest{
		OrderID:       s.OrderID,
		Amount:        s.Quote.USD.Round(2),
		PriceCurrency: "usd",
		PayCurrency:   PayCurrencyFor(s.Network),
		Description:   fmt.Sprintf("Sell %s Stars for %s", s.Amount, s.Quote),
		UserID:        s.UserID,
		Stars:         s.Amount,
		Payout:        *s.Quote,
		Network:       s.Network,
		Address:       s.Details,
	}, nil
}

func (s Session) request(action TerminalAction, at time.Time) Request {
	r := Request{
		OrderID:     s.OrderID,
		UserID:      s.UserID,
		DisplayName: s.DisplayName,
		Username:    s.Username,
		Stars:       s.Amount,
		Asset:       s.Target,
		Network:     s.Network,
		Method:      s.Method,
		Details:     s.Details,
		Action:      action,
		CreatedAt:   at,
	}
	if s.Quote != nil {
		r.Payout = s.Quote.Amount
		r.Currency = s.Quote.Currency
	}
	if s.Transaction != nil {
		r.GatewayID = s.Transaction.ID
		r.PayAddress = s.Transaction.Address
		r.PayURL = s.Transaction.PayURL
	}
	return r
}
