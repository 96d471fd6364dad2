// Package logger provides the bot's structured slog setup: one line per
// event, key=value or JSON, with request correlation ids taken from context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/m3rciful/starsbot/core/buildinfo"
	coreconfig "github.com/m3rciful/starsbot/core/config"
)

var (
	initOnce sync.Once
	stopOnce sync.Once

	out     *lineWriter
	closers []io.Closer

	levelVar slog.LevelVar
	sampler  debugSampler
	trace    bool

	// L is the base logger; component loggers below are derived from it.
	L *slog.Logger

	// DB logs request ledger database events.
	DB *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// MIG logs database migration events.
	MIG *slog.Logger
	// TWire logs Telegram wiring steps.
	TWire *slog.Logger
	// SVCExchange logs conversation state machine activity.
	SVCExchange *slog.Logger
	// SVCGateway logs payout gateway calls.
	SVCGateway *slog.Logger
	// SVCArchive logs request ledger writes and reads.
	SVCArchive *slog.Logger
	// HTTP logs the health endpoint.
	HTTP *slog.Logger
)

func init() {
	// Until InitLogger runs (tests, early startup) records go to the slog default handler.
	L = slog.Default()
	sampler.Set(1, 50)
	wireComponents()
}

// InitLogger installs the structured handler built from cfg. Only the first call has effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		var lc coreconfig.LoggingConfig
		if cfg != nil {
			lc = cfg.Logging
		}

		var sinks []io.Writer
		sinks, closers, err = openSinks(lc)
		if err != nil {
			return
		}
		levelVar.Set(parseLevel(lc.Level))
		if num, den, ok := parseSampleSpec(lc.DebugSample); ok {
			sampler.Set(num, den)
		}
		trace = envFlag("TRACE") || envFlag("LOG_TRACE")

		out = newLineWriter(sinks, 0)
		L = slog.New(newLineHandler(handlerConfig{
			level:    &levelVar,
			out:      out,
			format:   pickFormat(lc, os.Stdout),
			keyOrder: parseKeyOrder(lc.KeysOrder),
		}))
		slog.SetDefault(L)
		wireComponents()
		logStartup(cfg)
	})
	return err
}

func wireComponents() {
	DB = L.With(FieldComponent, "db")
	TG = L.With(FieldComponent, "tg")
	MIG = L.With(FieldComponent, "db.migrate")
	TWire = L.With(FieldComponent, "tg.wire")
	SVCExchange = L.With(FieldComponent, "service.exchange")
	SVCGateway = L.With(FieldComponent, "service.gateway")
	SVCArchive = L.With(FieldComponent, "service.archive")
	HTTP = L.With(FieldComponent, "health")
}

func logStartup(cfg *coreconfig.Config) {
	attrs := []slog.Attr{
		slog.String(FieldComponent, "app"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
	}
	if cfg != nil {
		attrs = append(attrs,
			slog.String("cfg_profile", profile(cfg.Logging)),
			slog.String("mode", cfg.Telegram.RunMode),
		)
	}
	LogEvent(context.Background(), L, slog.LevelInfo, "startup", attrs...)
}

// Shutdown flushes pending lines and closes file sinks. Later calls are no-ops.
func Shutdown() error {
	var errs []error
	stopOnce.Do(func() {
		if out != nil {
			errs = append(errs, out.Flush(), out.Close())
		}
		for _, c := range closers {
			errs = append(errs, c.Close())
		}
	})
	return errors.Join(errs...)
}

// pickFormat honours an explicit format, then the profile, and finally
// prints key=value on terminals and JSON everywhere else.
func pickFormat(lc coreconfig.LoggingConfig, stdout *os.File) logFormat {
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	switch profile(lc) {
	case "debug", "dev":
		return formatKV
	}
	if stdout != nil && (isatty.IsTerminal(stdout.Fd()) || isatty.IsCygwinTerminal(stdout.Fd())) {
		return formatKV
	}
	return formatJSON
}

func parseKeyOrder(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return defaultKeyOrder
	}
	var order []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		return defaultKeyOrder
	}
	return order
}

func parseLevel(raw string) slog.Level {
	switch levelName(raw) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// openSinks returns stdout plus the optional log file. A file that cannot be
// opened is an error rather than a silent fallback.
func openSinks(lc coreconfig.LoggingConfig) ([]io.Writer, []io.Closer, error) {
	sinks := []io.Writer{os.Stdout}
	dir, name := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.BotFile)
	if dir == "" || name == "" {
		return sinks, nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: open log file: %w", err)
	}
	return append(sinks, f), []io.Closer{f}, nil
}

func profile(lc coreconfig.LoggingConfig) string {
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		return p
	}
	return "prod"
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Background returns a root context for work outside any update.
func Background() context.Context {
	return context.Background()
}

// LogEvent writes a record whose event field is event. A nil logg falls back
// to the logger stored in ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String(FieldEvent, event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped to name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With(FieldComponent, name)
}

// Debug logs a debug-level event for component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug record should be
// written. TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	return trace || sampler.Allow()
}
