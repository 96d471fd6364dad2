// Package bootstrap brings up the process infrastructure in order: logging
// first, then the optional request ledger database with its migrations.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/starsbot/core/config"
	coredatabase "github.com/m3rciful/starsbot/core/database"
	"github.com/m3rciful/starsbot/core/logger"
)

// Options select the configuration and, for tests, replace individual steps.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result holds what the pipeline opened. DB is nil when the database is disabled.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, then connects and migrates the database when enabled.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts = opts.withDefaults()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	ctx := logger.Background()
	if !opts.Database.Enabled {
		logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect",
			slog.String(logger.FieldStatus, logger.StatusSkip),
			slog.String("reason", "disabled"),
		)
		return &Result{}, nil
	}

	start := time.Now()
	db, err := opts.Connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	if err := opts.Migrate(opts.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	logger.LogEvent(ctx, logger.DB, slog.LevelDebug, "db.ready",
		slog.Duration("duration", logger.Took(start)),
	)
	return &Result{DB: db}, nil
}

func (o Options) withDefaults() Options {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
	return o
}
