// Package health serves a small HTTP liveness endpoint next to the bot.
package health

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/m3rciful/starsbot/core/buildinfo"
	"github.com/m3rciful/starsbot/core/logger"
)

// Check reports an error when a dependency is unhealthy.
type Check func(ctx context.Context) error

// Options configures the health server.
type Options struct {
	Listen string
	// Checks are run on every request; any failure turns the response into 503.
	Checks map[string]Check
	// Gauges are reported as-is, e.g. the number of live sessions.
	Gauges map[string]func() int
	// CheckTimeout bounds each check; defaults to 2s.
	CheckTimeout time.Duration
}

// Report is the JSON body of GET /health.
type Report struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Commit  string            `json:"commit"`
	Checks  map[string]string `json:"checks,omitempty"`
	Gauges  map[string]int    `json:"gauges,omitempty"`
}

// Server exposes GET /health.
type Server struct {
	app  *fiber.App
	opts Options
}

// New builds the server without starting it.
func New(opts Options) *Server {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 2 * time.Second
	}
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "starsbot",
	})
	s := &Server{app: app, opts: opts}
	app.Get("/health", s.handle)
	return s
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) handle(c *fiber.Ctx) error {
	start := time.Now()
	rep := s.Collect(c.UserContext())
	code := fiber.StatusOK
	if rep.Status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	logger.LogEvent(c.UserContext(), logger.HTTP, slog.LevelDebug, "health.request",
		slog.String("status", rep.Status),
		slog.Int("code", code),
		slog.Duration("duration_ms", logger.Took(start)),
	)
	return c.Status(code).JSON(rep)
}

// Collect runs every check and gauge.
func (s *Server) Collect(ctx context.Context) Report {
	rep := Report{
		Status:  "ok",
		Version: buildinfo.Version,
		Commit:  buildinfo.Commit,
	}
	if len(s.opts.Checks) > 0 {
		rep.Checks = make(map[string]string, len(s.opts.Checks))
		names := make([]string, 0, len(s.opts.Checks))
		for name := range s.opts.Checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cctx, cancel := context.WithTimeout(ctx, s.opts.CheckTimeout)
			err := s.opts.Checks[name](cctx)
			cancel()
			if err != nil {
				rep.Status = "degraded"
				rep.Checks[name] = err.Error()
				continue
			}
			rep.Checks[name] = "ok"
		}
	}
	if len(s.opts.Gauges) > 0 {
		rep.Gauges = make(map[string]int, len(s.opts.Gauges))
		for name, fn := range s.opts.Gauges {
			rep.Gauges[name] = fn()
		}
	}
	return rep
}

// Start listens in the background. Listen errors other than a clean shutdown are logged.
func (s *Server) Start() error {
	if s.opts.Listen == "" {
		return errors.New("health: listen address is empty")
	}
	go func() {
		logger.LogEvent(logger.Background(), logger.HTTP, slog.LevelInfo, "health.listen",
			slog.String("addr", s.opts.Listen),
		)
		if err := s.app.Listen(s.opts.Listen); err != nil {
			logger.LogEvent(logger.Background(), logger.HTTP, slog.LevelError, "health.listen",
				slog.String("addr", s.opts.Listen),
				slog.String("status", "error"),
				slog.String("err", err.Error()),
			)
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	logger.LogEvent(ctx, logger.HTTP, slog.LevelInfo, "health.shutdown",
		slog.String("status", logger.Status(err)),
	)
	return err
}
