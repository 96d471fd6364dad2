package database

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/starsbot/core/logger"
)

const (
	readyTimeout = 30 * time.Second
	previewFiles = 6
)

// RunMigrations waits for the server and applies every pending up migration
// found in cfg.MigrationsDir.
func RunMigrations(cfg Config) error {
	ctx := logger.Background()
	fail := func(step string, err error) error {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate",
			slog.String("step", step),
			slog.String("err", err.Error()),
		)
		return err
	}

	if err := WaitForPostgres(ctx, cfg.DSN(), readyTimeout); err != nil {
		return fail("wait", fmt.Errorf("database not ready: %w", err))
	}
	dir, err := resolveMigrationsDir(cfg.MigrationsDir)
	if err != nil {
		return fail("resolve", err)
	}
	set := scanMigrations(dir)
	logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "resolve",
		append([]slog.Attr{slog.String("path", dir)}, set.preview()...)...,
	)

	m, err := migrate.New("file://"+dir, cfg.URL())
	if err != nil {
		return fail("init", fmt.Errorf("failed to initialize migrations: %w", err))
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.LogEvent(ctx, logger.MIG, slog.LevelWarn, "db.migrate",
				slog.String("step", "close"),
				slog.String("err", errors.Join(srcErr, dbErr).Error()),
			)
		}
	}()

	from, _, _ := m.Version()
	start := time.Now()
	switch upErr := m.Up(); {
	case errors.Is(upErr, migrate.ErrNoChange):
	case upErr != nil:
		return fail("apply", fmt.Errorf("migration execution failed: %w", upErr))
	}
	to, _, _ := m.Version()

	applied := set.between(uint64(from), uint64(to))
	if len(applied.files) > 0 {
		logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "apply", applied.preview()...)
	}
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "summary",
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied.files)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

func resolveMigrationsDir(dir string) (string, error) {
	if dir == "" {
		dir = "migrations"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve migrations dir: %w", err)
	}
	return abs, nil
}

// migrationSet lists *.up.sql file names sorted by their numeric prefix.
type migrationSet struct {
	files []string
}

func scanMigrations(dir string) migrationSet {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return migrationSet{}
	}
	var set migrationSet
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			set.files = append(set.files, e.Name())
		}
	}
	sort.Slice(set.files, func(i, j int) bool {
		return fileVersion(set.files[i]) < fileVersion(set.files[j])
	})
	return set
}

// between returns the files with from < version <= to.
func (s migrationSet) between(from, to uint64) migrationSet {
	var out migrationSet
	if to <= from {
		return out
	}
	for _, f := range s.files {
		if v := fileVersion(f); v > from && v <= to {
			out.files = append(out.files, f)
		}
	}
	return out
}

func (s migrationSet) preview() []slog.Attr {
	attrs := []slog.Attr{slog.Int("files_total", len(s.files))}
	names, truncated := logger.SummarizeStrings(s.files, previewFiles)
	if names != "" {
		attrs = append(attrs, slog.String("files_preview", names))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

func fileVersion(name string) uint64 {
	head, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(head, 10, 64)
	return v
}
