// Package bot wires the Stars payout conversation into the Telegram runtime.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/starsbot/core/health"
	"github.com/m3rciful/starsbot/core/logger"
	tg "github.com/m3rciful/starsbot/core/telegram"
	"github.com/m3rciful/starsbot/core/telegram/commands"
	"github.com/m3rciful/starsbot/core/telegram/router"
	tgsender "github.com/m3rciful/starsbot/core/telegram/sender"
	"github.com/m3rciful/starsbot/core/telegram/state"
	"github.com/m3rciful/starsbot/internal/archive"
	"github.com/m3rciful/starsbot/internal/config"
	"github.com/m3rciful/starsbot/internal/exchange"
	"github.com/m3rciful/starsbot/internal/gateway"
)

const shutdownTimeout = 5 * time.Second

// App owns every long-lived component of the bot.
type App struct {
	cfg *config.Config
	db  *sqlx.DB

	store     *state.Store[exchange.Session]
	machine   *exchange.Machine
	conv      *Conversation
	fallbacks *Fallbacks
	admin     *AdminSink
	archive   *archive.Store
	health    *health.Server
	registry  *tg.Registry

	sender      atomic.Pointer[tgsender.Dispatcher]
	stopJanitor context.CancelFunc
}

// New builds the application. db is nil unless the database is enabled.
func New(cfg *config.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config")
	}
	opts, err := cfg.ExchangeOptions()
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:   cfg,
		db:    db,
		store: state.NewMemoryStore[exchange.Session](cfg.Exchange.SessionTTL),
	}

	var deps exchange.Deps
	if cfg.Telegram.AdminID != 0 || cfg.Telegram.AdminChat != "" {
		admin, err := NewAdminSink(cfg.Telegram.AdminID, cfg.Telegram.AdminChat)
		if err != nil {
			return nil, err
		}
		app.admin = admin
		deps.Admin = admin
	}
	if opts.TerminalAction == exchange.ActionGateway {
		gw, err := newGateway(cfg.Gateway)
		if err != nil {
			return nil, err
		}
		deps.Gateway = gw
	}
	if cfg.Archive.Enabled {
		if db == nil {
			return nil, fmt.Errorf("bot: archive enabled without a database connection")
		}
		store, err := archive.New(db)
		if err != nil {
			return nil, err
		}
		app.archive = store
		deps.Ledger = store
	}

	app.machine, err = exchange.NewMachine(opts, app.store, deps)
	if err != nil {
		return nil, err
	}
	app.conv = NewConversation(app.machine, app.store)

	var forward Forwarder
	if app.admin != nil {
		forward = app.admin
	}
	app.fallbacks = NewFallbacks(app.conv, forward)
	if app.registry, err = app.buildRegistry(); err != nil {
		return nil, err
	}

	if cfg.Health.Listen != "" {
		app.health = app.buildHealth()
	}

	logger.LogEvent(logger.Background(), logger.SVCExchange, slog.LevelInfo, "app.build",
		slog.String("terminal_action", string(opts.TerminalAction)),
		slog.String("retention", string(opts.Retention)),
		slog.Bool("fiat_payouts", opts.FiatPayouts),
		slog.Int("preset_amounts", len(opts.PresetAmounts)),
		slog.Bool("archive", app.archive != nil),
		slog.Bool("health", app.health != nil),
	)
	return app, nil
}

func newGateway(cfg config.GatewayConfig) (exchange.Gateway, error) {
	if cfg.Mock {
		return gateway.Mock{}, nil
	}
	return gateway.New(gateway.Config{
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		Timeout:        cfg.Timeout,
		IPNCallbackURL: cfg.IPNCallbackURL,
	})
}

func (a *App) buildRegistry() (*tg.Registry, error) {
	var lister Lister
	if a.archive != nil {
		lister = a.archive
	}

	reg := tg.NewRegistry()
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: a.conv.Start, Description: "Sell Stars for a payout", Aliases: []string{"sell"}}},
		{"/cancel", commands.Command{Handler: a.conv.Cancel, Description: "Cancel the current request"}},
		{"/requests", commands.Command{Handler: RequestsCommand(lister, a.cfg.Archive.ListLimit), Description: "List recent payout requests", AdminOnly: true}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return nil, fmt.Errorf("bot: %w", err)
		}
	}
	for _, kind := range exchange.TokenKinds {
		if err := reg.RegisterCallback(string(kind), a.conv.Selection(kind)); err != nil {
			return nil, fmt.Errorf("bot: %w", err)
		}
	}
	reg.SetCallbackNotFound(a.fallbacks.UnknownCallback())
	reg.SetTextFallback(a.fallbacks.UnknownText())
	return reg, nil
}

func (a *App) buildHealth() *health.Server {
	opts := health.Options{
		Listen: a.cfg.Health.Listen,
		Gauges: map[string]func() int{
			"sessions":      a.store.Len,
			"send_failures": a.sendFailures,
		},
	}
	if a.archive != nil {
		opts.Checks = map[string]health.Check{"database": a.archive.Ping}
	}
	return health.New(opts)
}

func (a *App) sendFailures() int {
	if d := a.sender.Load(); d != nil {
		return int(d.ErrorCount())
	}
	return 0
}

// Registry exposes the command and callback registry.
func (a *App) Registry() *tg.Registry {
	return a.registry
}

// TelegramRunOptions assembles routes, middlewares and lifecycle hooks for the runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()

	routes := router.Build(a.registry, a.conv, a.fallbacks, router.CommandRouteOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: adminOnly,
	})

	return tg.RunOptions{
		Config:            core,
		Registry:          a.registry,
		HTTPClient:        tg.HTTPClientOptions{Retries: 2},
		DispatcherOptions: tgsender.Options{MaxRetries: 2},
		Middlewares:       tg.DefaultMiddlewares(core, rateLimited),
		Routes:            routes,
		OnStart:           a.onStart,
		OnStop:            a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	if a.admin != nil && rt.Bot != nil {
		a.admin.Bind(rt.Bot)
	}
	a.sender.Store(rt.Dispatcher)

	jctx, cancel := context.WithCancel(ctx)
	a.stopJanitor = cancel
	go a.store.RunJanitor(jctx, a.cfg.Exchange.SweepInterval)

	if a.health != nil {
		if err := a.health.Start(); err != nil {
			cancel()
			return err
		}
	}
	return nil
}

func (a *App) onStop(_ context.Context, _ tg.Runtime) error {
	if a.stopJanitor != nil {
		a.stopJanitor()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var err error
	if a.health != nil {
		err = a.health.Shutdown(ctx)
	}
	if a.db != nil {
		if cerr := a.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
