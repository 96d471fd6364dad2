package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/starsbot/internal/exchange"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: t\n  admin_chat: payouts\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.AdminChat != "@payouts" {
		t.Fatalf("admin chat = %q", cfg.Telegram.AdminChat)
	}
	if cfg.Exchange.TerminalAction != "admin" || cfg.Exchange.Retention != "reset" {
		t.Fatalf("exchange defaults = %+v", cfg.Exchange)
	}
	if cfg.Exchange.SessionTTL != 30*time.Minute {
		t.Fatalf("ttl = %v", cfg.Exchange.SessionTTL)
	}
	if cfg.Gateway.BaseURL != "https://api.nowpayments.io" {
		t.Fatalf("gateway url = %q", cfg.Gateway.BaseURL)
	}

	opts, err := cfg.ExchangeOptions()
	if err != nil {
		t.Fatalf("ExchangeOptions: %v", err)
	}
	if opts.MinAmount.String() != "250" || opts.MaxAmount.String() != "50000" {
		t.Fatalf("bounds = [%s, %s]", opts.MinAmount, opts.MaxAmount)
	}
	if len(opts.PresetAmounts) != 0 || opts.FiatPayouts {
		t.Fatalf("unexpected variant features: %+v", opts)
	}
}

func TestLoadVariantFeatures(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: t
exchange:
  min_amount: 500
  max_amount: "10000"
  preset_amounts: [500, 1000, 2500]
  terminal_action: Gateway
  retention: keep
  session_ttl: 10m
  rates:
    usd_to_eur: "0.9"
gateway:
  mock: true
  timeout: 5s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	opts, err := cfg.ExchangeOptions()
	if err != nil {
		t.Fatalf("ExchangeOptions: %v", err)
	}
	if opts.TerminalAction != exchange.ActionGateway || opts.Retention != exchange.RetentionKeep {
		t.Fatalf("action/retention = %s/%s", opts.TerminalAction, opts.Retention)
	}
	if len(opts.PresetAmounts) != 3 || opts.PresetAmounts[1].String() != "1000" {
		t.Fatalf("presets = %v", opts.PresetAmounts)
	}
	if opts.FiatPayouts {
		t.Fatal("fiat payouts should be off by default")
	}
	if opts.Rates.USDToEUR.String() != "0.9" || opts.Rates.USDToUSDT.String() != "1.08" {
		t.Fatalf("rates = %+v", opts.Rates)
	}
	if opts.GatewayTimeout != 5*time.Second {
		t.Fatalf("gateway timeout = %v", opts.GatewayTimeout)
	}
	if cfg.Exchange.SessionTTL != 10*time.Minute {
		t.Fatalf("ttl = %v", cfg.Exchange.SessionTTL)
	}
}

func TestLoadEnvOverlay(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: t\n  admin_id: 7\n")
	t.Setenv("MIN_AMOUNT", "1000")
	t.Setenv("ADMIN_USERNAME", "ops")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Exchange.MinAmount != "1000" {
		t.Fatalf("min amount = %q", cfg.Exchange.MinAmount)
	}
	if cfg.Telegram.AdminChat != "@ops" {
		t.Fatalf("admin chat = %q", cfg.Telegram.AdminChat)
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"admin without sink", "telegram:\n  token: t\n", "admin_id"},
		{"gateway without key", "telegram:\n  token: t\nexchange:\n  terminal_action: gateway\n", "api_key"},
		{"gateway with fiat", "telegram:\n  token: t\nexchange:\n  terminal_action: gateway\n  fiat_payouts: true\ngateway:\n  mock: true\n", "fiat payouts"},
		{"unknown action", "telegram:\n  token: t\n  admin_id: 1\nexchange:\n  terminal_action: email\n", "terminal action"},
		{"bad amount", "telegram:\n  token: t\n  admin_id: 1\nexchange:\n  min_amount: lots\n", "min_amount"},
		{"min above max", "telegram:\n  token: t\n  admin_id: 1\nexchange:\n  min_amount: 900\n  max_amount: 800\n", "max amount"},
		{"preset out of range", "telegram:\n  token: t\n  admin_id: 1\nexchange:\n  preset_amounts: [100]\n", "preset"},
		{"archive without db", "telegram:\n  token: t\n  admin_id: 1\narchive:\n  enabled: true\n", "archive"},
		{"db without name", "telegram:\n  token: t\n  admin_id: 1\ndatabase:\n  enabled: true\n  user: u\n", "database.name"},
		{"bad health listen", "telegram:\n  token: t\n  admin_id: 1\nhealth:\n  listen: nowhere\n", "health.listen"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestCoreConfigNil(t *testing.T) {
	var cfg *Config
	if cfg.CoreConfig() != nil {
		t.Fatal("nil config must expose nil core config")
	}
}
