package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestStarsToUSDT(t *testing.T) {
	r := DefaultRates()
	cases := []struct {
		stars string
		want  string
	}{
		{"250", "0.98"},
		{"1000", "3.92"},
		{"2500", "9.80"},
		{"100000", "392.00"},
	}
	for _, tc := range cases {
		got := r.ComputeUSDT(dec(tc.stars)).StringFixed(2)
		if got != tc.want {
			t.Errorf("ComputeUSDT(%s) = %s, want %s", tc.stars, got, tc.want)
		}
	}
}

func TestFiatToUSD(t *testing.T) {
	r := DefaultRates()

	eur, err := r.FiatToUSD(dec("89"), EUR)
	if err != nil || !eur.Equal(dec("100")) {
		t.Fatalf("FiatToUSD(89, EUR) = %s, %v; want 100", eur, err)
	}
	usd, err := r.FiatToUSD(dec("100"), USD)
	if err != nil || !usd.Equal(dec("100")) {
		t.Fatalf("FiatToUSD(100, USD) = %s, %v; want 100", usd, err)
	}
	// 1 / (1.08 * 0.77) = 1.2025...
	gbp, err := r.FiatToUSD(dec("1"), GBP)
	if err != nil {
		t.Fatalf("FiatToUSD(1, GBP): %v", err)
	}
	if got := gbp.Round(4).String(); got != "1.2025" {
		t.Fatalf("FiatToUSD(1, GBP) = %s, want 1.2025", got)
	}
	if _, err := r.FiatToUSD(dec("1"), USDT); err == nil {
		t.Fatal("expected error for non-fiat currency")
	}
}

func TestUSDToFiatInvertsFiatToUSD(t *testing.T) {
	r := DefaultRates()
	for _, cur := range []Currency{USD, EUR, GBP} {
		fiat, err := r.USDToFiat(dec("123.45"), cur)
		if err != nil {
			t.Fatalf("USDToFiat(%s): %v", cur, err)
		}
		back, err := r.FiatToUSD(fiat, cur)
		if err != nil {
			t.Fatalf("FiatToUSD(%s): %v", cur, err)
		}
		if got := back.Round(2).StringFixed(2); got != "123.45" {
			t.Errorf("%s round trip = %s, want 123.45", cur, got)
		}
	}
}

func TestConvertUSDToUSDT(t *testing.T) {
	r := DefaultRates()
	usdt := r.ConvertUSDToUSDT(dec("100"))
	if !usdt.Equal(dec("108")) {
		t.Fatalf("ConvertUSDToUSDT(100) = %s, want 108", usdt)
	}
	if back := r.USDTToUSD(usdt); !back.Equal(dec("100")) {
		t.Fatalf("USDTToUSD(108) = %s, want 100", back)
	}
}

func TestQuote(t *testing.T) {
	r := DefaultRates()
	cases := []struct {
		target   Currency
		amount   string
		currency Currency
	}{
		{USDT, "3.92", USDT},
		{TON, "3.92", USDT},
		{USD, "3.63", USD},
		{EUR, "3.23", EUR},
		{GBP, "3.02", GBP},
	}
	for _, tc := range cases {
		q, err := r.Quote(dec("1000"), tc.target)
		if err != nil {
			t.Fatalf("Quote(%s): %v", tc.target, err)
		}
		if q.Currency != tc.currency || q.Amount.StringFixed(2) != tc.amount {
			t.Errorf("Quote(%s) = %s, want %s %s", tc.target, q, tc.amount, tc.currency)
		}
	}
}

func TestRateTableValidate(t *testing.T) {
	r := DefaultRates()
	if err := r.Validate(); err != nil {
		t.Fatalf("default rates invalid: %v", err)
	}
	r.USDToEUR = decimal.Zero
	if err := r.Validate(); err == nil {
		t.Fatal("expected zero rate to be rejected")
	}
}
