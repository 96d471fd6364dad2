package exchange

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxDetailsLength bounds fiat payout details, counted in characters.
const MaxDetailsLength = 256

var (
	tronAddressRe = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)
	tonAddressRe  = regexp.MustCompile(`^(EQ|kQ)[A-Za-z0-9_-]{48}$`)
	// amountRe admits plain decimals only; no exponent notation.
	amountRe      = regexp.MustCompile(`^[+-]?\d{1,9}(\.\d{1,8})?$`)
)

// Destination identifies where a payout goes; it selects the details rule.
type Destination struct {
	Currency Currency
	Network  Network
	Method   Method
}

// DetailsValidator checks payout details against the rule of a destination.
type DetailsValidator struct {
	v *validator.Validate
}

// NewDetailsValidator registers the address rules on a fresh validator.
func NewDetailsValidator() (*DetailsValidator, error) {
	v := validator.New()
	if err := v.RegisterValidation("tron_addr", func(fl validator.FieldLevel) bool {
		return tronAddressRe.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register tron_addr: %w", err)
	}
	if err := v.RegisterValidation("ton_addr", func(fl validator.FieldLevel) bool {
		return tonAddressRe.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register ton_addr: %w", err)
	}
	return &DetailsValidator{v: v}, nil
}

func detailsRule(d Destination) (string, error) {
	switch {
	case d.Currency.IsFiat():
		return fmt.Sprintf("required,max=%d", MaxDetailsLength), nil
	case d.Currency == TON:
		return "required,ton_addr", nil
	case d.Currency == USDT:
		switch d.Network {
		case BEP20, ERC20:
			return "required,eth_addr", nil
		case TRC20:
			return "required,tron_addr|eth_addr", nil
		}
	}
	return "", fmt.Errorf("no details rule for %s/%s", d.Currency, d.Network)
}

// Validate trims raw and checks it. It returns the accepted value or a
// ValidationError describing the expected format.
func (dv *DetailsValidator) Validate(d Destination, raw string) (string, error) {
	value := strings.TrimSpace(raw)
	rule, err := detailsRule(d)
	if err != nil {
		return "", err
	}
	if err := dv.v.Var(value, rule); err != nil {
		return "", rejectf(ReasonInvalidDetails, "%s", ExpectedFormat(d))
	}
	return value, nil
}

// ExpectedFormat describes the accepted details for d.
func ExpectedFormat(d Destination) string {
	switch {
	case d.Currency.IsFiat():
		return fmt.Sprintf("❌ Please send your %s payout details (up to %d characters).", d.Method.Label(), MaxDetailsLength)
	case d.Currency == TON:
		return "❌ Invalid TON address. It must start with EQ or kQ followed by 48 letters, digits, - or _."
	case d.Network == TRC20:
		return "❌ Invalid TRC20 address. It must start with T followed by 33 base58 characters."
	}
	return fmt.Sprintf("❌ Invalid %s address. It must start with 0x followed by 40 hex characters.", d.Network)
}
