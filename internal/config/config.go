package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	coreconfig "github.com/m3rciful/starsbot/core/config"
	coredatabase "github.com/m3rciful/starsbot/core/database"
	"github.com/m3rciful/starsbot/internal/exchange"
)

const (
	defaultSessionTTL    = 30 * time.Minute
	defaultSweepInterval = time.Minute
	defaultGatewayURL    = "https://api.nowpayments.io"
)

// Config is the full application configuration: the reusable core plus the payout bot sections.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Exchange ExchangeConfig      `yaml:"exchange"`
	Gateway  GatewayConfig       `yaml:"gateway"`
	Database coredatabase.Config `yaml:"database"`
	Archive  ArchiveConfig       `yaml:"archive"`
	Health   HealthConfig        `yaml:"health"`
}

// RatesConfig overrides the published FX table. Empty values keep the defaults.
type RatesConfig struct {
	USDToEUR  string `yaml:"usd_to_eur" envconfig:"RATE_USD_TO_EUR"`
	USDToUSDT string `yaml:"usd_to_usdt" envconfig:"RATE_USD_TO_USDT"`
	USDTToGBP string `yaml:"usdt_to_gbp" envconfig:"RATE_USDT_TO_GBP"`
}

// ExchangeConfig parameterizes the conversation. Amounts and rates are decimal strings.
type ExchangeConfig struct {
	MinAmount     string      `yaml:"min_amount" envconfig:"MIN_AMOUNT"`
	MaxAmount     string      `yaml:"max_amount" envconfig:"MAX_AMOUNT"`
	StarsPerUnit  string      `yaml:"stars_per_unit" envconfig:"STARS_PER_UNIT"`
	USDTPerUnit   string      `yaml:"usdt_per_unit" envconfig:"USDT_PER_UNIT"`
	Rates         RatesConfig `yaml:"rates"`
	PresetAmounts []string    `yaml:"preset_amounts" envconfig:"PRESET_AMOUNTS"`
	FiatPayouts   bool        `yaml:"fiat_payouts" envconfig:"FIAT_PAYOUTS"`
	// TerminalAction is "admin" (notify a human) or "gateway" (open a payment).
	TerminalAction string        `yaml:"terminal_action" envconfig:"TERMINAL_ACTION"`
	Retention      string        `yaml:"retention" envconfig:"SESSION_RETENTION"`
	SessionTTL     time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL"`
	SweepInterval  time.Duration `yaml:"sweep_interval" envconfig:"SESSION_SWEEP_INTERVAL"`
}

// GatewayConfig configures the payment gateway client.
type GatewayConfig struct {
	BaseURL        string        `yaml:"base_url" envconfig:"GATEWAY_BASE_URL"`
	APIKey         string        `yaml:"api_key" envconfig:"GATEWAY_API_KEY"`
	Timeout        time.Duration `yaml:"timeout" envconfig:"GATEWAY_TIMEOUT"`
	IPNCallbackURL string        `yaml:"ipn_callback_url" envconfig:"GATEWAY_IPN_CALLBACK_URL"`
	// Mock answers every payment locally without network access.
	Mock bool `yaml:"mock" envconfig:"GATEWAY_MOCK"`
}

// ArchiveConfig toggles the completed request ledger.
type ArchiveConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"ARCHIVE_ENABLED"`
	// ListLimit caps the /requests admin listing.
	ListLimit int `yaml:"list_limit" envconfig:"ARCHIVE_LIST_LIMIT"`
}

// HealthConfig enables the HTTP health endpoint when Listen is set.
type HealthConfig struct {
	Listen string `yaml:"listen" envconfig:"HEALTH_LISTEN"`
}

// CoreConfig exposes the embedded core configuration to the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads the YAML file at path, overlays the environment and normalizes the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if c == nil {
		return errors.New("nil config")
	}
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	if strings.TrimSpace(c.Exchange.TerminalAction) == "" {
		c.Exchange.TerminalAction = string(exchange.ActionAdmin)
	}
	c.Exchange.TerminalAction = strings.ToLower(strings.TrimSpace(c.Exchange.TerminalAction))
	if strings.TrimSpace(c.Exchange.Retention) == "" {
		c.Exchange.Retention = string(exchange.RetentionReset)
	}
	c.Exchange.Retention = strings.ToLower(strings.TrimSpace(c.Exchange.Retention))
	if c.Exchange.SessionTTL < 0 || c.Exchange.SweepInterval < 0 {
		return errors.New("exchange.session_ttl and exchange.sweep_interval must be >= 0")
	}
	if c.Exchange.SessionTTL == 0 {
		c.Exchange.SessionTTL = defaultSessionTTL
	}
	if c.Exchange.SweepInterval == 0 {
		c.Exchange.SweepInterval = defaultSweepInterval
	}

	if c.Exchange.TerminalAction == string(exchange.ActionAdmin) &&
		c.Telegram.AdminID == 0 && c.Telegram.AdminChat == "" {
		return errors.New("telegram.admin_id or telegram.admin_chat is required when exchange.terminal_action is 'admin'")
	}

	if strings.TrimSpace(c.Gateway.BaseURL) == "" {
		c.Gateway.BaseURL = defaultGatewayURL
	}
	c.Gateway.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gateway.BaseURL), "/")
	if c.Gateway.Timeout < 0 {
		return errors.New("gateway.timeout must be >= 0")
	}
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = exchange.DefaultOptions().GatewayTimeout
	}
	if c.Exchange.TerminalAction == string(exchange.ActionGateway) &&
		!c.Gateway.Mock && strings.TrimSpace(c.Gateway.APIKey) == "" {
		return errors.New("gateway.api_key is required when exchange.terminal_action is 'gateway' (or set gateway.mock)")
	}

	if err := c.Database.Normalize(); err != nil {
		return err
	}
	if c.Archive.Enabled && !c.Database.Enabled {
		return errors.New("archive.enabled requires database.enabled")
	}
	if c.Archive.ListLimit <= 0 {
		c.Archive.ListLimit = 10
	}

	if c.Health.Listen = strings.TrimSpace(c.Health.Listen); c.Health.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Health.Listen); err != nil {
			return fmt.Errorf("invalid health.listen %q: %w", c.Health.Listen, err)
		}
	}

	_, err := c.ExchangeOptions()
	return err
}

// ExchangeOptions converts the exchange section into validated conversation options.
func (c *Config) ExchangeOptions() (exchange.Options, error) {
	opts := exchange.DefaultOptions()
	ex := c.Exchange

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"exchange.min_amount", ex.MinAmount, &opts.MinAmount},
		{"exchange.max_amount", ex.MaxAmount, &opts.MaxAmount},
		{"exchange.stars_per_unit", ex.StarsPerUnit, &opts.Rates.StarsPerUnit},
		{"exchange.usdt_per_unit", ex.USDTPerUnit, &opts.Rates.USDTPerUnit},
		{"exchange.rates.usd_to_eur", ex.Rates.USDToEUR, &opts.Rates.USDToEUR},
		{"exchange.rates.usd_to_usdt", ex.Rates.USDToUSDT, &opts.Rates.USDToUSDT},
		{"exchange.rates.usdt_to_gbp", ex.Rates.USDTToGBP, &opts.Rates.USDTToGBP},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.raw) == "" {
			continue
		}
		v, err := decimal.NewFromString(strings.TrimSpace(f.raw))
		if err != nil {
			return exchange.Options{}, fmt.Errorf("invalid %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = v
	}

	for _, raw := range ex.PresetAmounts {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return exchange.Options{}, fmt.Errorf("invalid exchange.preset_amounts value %q: %w", raw, err)
		}
		opts.PresetAmounts = append(opts.PresetAmounts, v)
	}

	opts.FiatPayouts = ex.FiatPayouts
	if ex.TerminalAction != "" {
		opts.TerminalAction = exchange.TerminalAction(ex.TerminalAction)
	}
	if ex.Retention != "" {
		opts.Retention = exchange.Retention(ex.Retention)
	}
	if c.Gateway.Timeout > 0 {
		opts.GatewayTimeout = c.Gateway.Timeout
	}

	if err := opts.Validate(); err != nil {
		return exchange.Options{}, fmt.Errorf("invalid exchange config: %w", err)
	}
	return opts, nil
}
