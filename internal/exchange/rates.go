package exchange

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RateTable holds the fixed conversion constants.
//
// GBP has no direct FX rate: it is bridged USD→USDT→GBP, so a GBP amount is
// worth amount/(USDToUSDT*USDTToGBP) USD.
type RateTable struct {
	// StarsPerUnit Stars buy USDTPerUnit USDT.
	StarsPerUnit decimal.Decimal
	USDTPerUnit  decimal.Decimal

	USDToEUR  decimal.Decimal
	USDToUSDT decimal.Decimal
	USDTToGBP decimal.Decimal
}

// DefaultRates returns the published rate table: 250 Stars = 0.98 USDT,
// USD→EUR 0.89, USD→USDT 1.08, USDT→GBP 0.77.
func DefaultRates() RateTable {
	return RateTable{
		StarsPerUnit: decimal.NewFromInt(250),
		USDTPerUnit:  decimal.RequireFromString("0.98"),
		USDToEUR:     decimal.RequireFromString("0.89"),
		USDToUSDT:    decimal.RequireFromString("1.08"),
		USDTToGBP:    decimal.RequireFromString("0.77"),
	}
}

// Validate rejects tables with non-positive rates.
func (r RateTable) Validate() error {
	for name, v := range map[string]decimal.Decimal{
		"stars_per_unit": r.StarsPerUnit,
		"usdt_per_unit":  r.USDTPerUnit,
		"usd_to_eur":     r.USDToEUR,
		"usd_to_usdt":    r.USDToUSDT,
		"usdt_to_gbp":    r.USDTToGBP,
	} {
		if !v.IsPositive() {
			return fmt.Errorf("rate %s must be > 0", name)
		}
	}
	return nil
}

// StarsToUSDT converts Stars to USDT without rounding: stars / 250 * 0.98.
func (r RateTable) StarsToUSDT(stars decimal.Decimal) decimal.Decimal {
	return stars.Div(r.StarsPerUnit).Mul(r.USDTPerUnit)
}

// ComputeUSDT is StarsToUSDT rounded to cents for display.
func (r RateTable) ComputeUSDT(stars decimal.Decimal) decimal.Decimal {
	return r.StarsToUSDT(stars).Round(2)
}

// FiatToUSD converts a fiat amount to USD.
// EUR inverts the direct rate; GBP composes 1/(USD_TO_USDT*USDT_TO_GBP).
func (r RateTable) FiatToUSD(amount decimal.Decimal, cur Currency) (decimal.Decimal, error) {
	switch cur {
	case USD:
		return amount, nil
	case EUR:
		return amount.Div(r.USDToEUR), nil
	case GBP:
		perUnit := decimal.NewFromInt(1).Div(r.USDToUSDT.Mul(r.USDTToGBP))
		return amount.Mul(perUnit), nil
	}
	return decimal.Zero, fmt.Errorf("unsupported fiat currency %q", cur)
}

// USDToFiat is the exact inverse of FiatToUSD.
func (r RateTable) USDToFiat(usd decimal.Decimal, cur Currency) (decimal.Decimal, error) {
	switch cur {
	case USD:
		return usd, nil
	case EUR:
		return usd.Mul(r.USDToEUR), nil
	case GBP:
		return usd.Mul(r.USDToUSDT.Mul(r.USDTToGBP)), nil
	}
	return decimal.Zero, fmt.Errorf("unsupported fiat currency %q", cur)
}

// ConvertUSDToUSDT converts USD to USDT.
func (r RateTable) ConvertUSDToUSDT(usd decimal.Decimal) decimal.Decimal {
	return usd.Mul(r.USDToUSDT)
}

// USDTToUSD is the inverse of ConvertUSDToUSDT.
func (r RateTable) USDTToUSD(usdt decimal.Decimal) decimal.Decimal {
	return usdt.Div(r.USDToUSDT)
}

// Quote is a computed payout. It is created once per session and never changed.
type Quote struct {
	Stars decimal.Decimal
	// USDT is the unrounded USDT value of Stars, kept for chained conversions.
	USDT decimal.Decimal
	// USD is the unrounded USD equivalent used for gateway pricing.
	USD decimal.Decimal
	// Amount is the payout in Currency, rounded to cents for display.
	Amount   decimal.Decimal
	Currency Currency
}

// String renders the payout as "3.92 USDT".
func (q Quote) String() string {
	return q.Amount.StringFixed(2) + " " + string(q.Currency)
}

// Quote prices stars for the target currency. TON payouts are quoted in USDT
// and settled manually at the admin's TON rate.
func (r RateTable) Quote(stars decimal.Decimal, target Currency) (Quote, error) {
	usdt := r.StarsToUSDT(stars)
	q := Quote{Stars: stars, USDT: usdt}
	switch {
	case target == USDT || target == TON:
		q.Currency = USDT
		q.Amount = usdt.Round(2)
		q.USD = r.USDTToUSD(usdt)
	case target.IsFiat():
		fiat, err := r.USDToFiat(r.USDTToUSD(usdt), target)
		if err != nil {
			return Quote{}, err
		}
		usd, err := r.FiatToUSD(fiat, target)
		if err != nil {
			return Quote{}, err
		}
		q.Currency = target
		q.Amount = fiat.Round(2)
		q.USD = usd
	default:
		return Quote{}, fmt.Errorf("unsupported payout currency %q", target)
	}
	return q, nil
}
