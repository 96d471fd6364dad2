// Package archive records completed payout requests in Postgres so operators
// can review them later. Conversation sessions are never stored here.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/starsbot/core/logger"
	"github.com/m3rciful/starsbot/internal/exchange"
)

const insertRequest = `
INSERT INTO payout_requests (
	order_id, user_id, display_name, username, stars, payout, currency, asset,
	network, method, details, action, gateway_id, pay_address, pay_url, created_at
) VALUES (
	:order_id, :user_id, :display_name, :username, :stars, :payout, :currency, :asset,
	:network, :method, :details, :action, :gateway_id, :pay_address, :pay_url, :created_at
)
ON CONFLICT (order_id) DO NOTHING`

const selectRecent = `
SELECT order_id, user_id, display_name, username, stars, payout, currency, asset,
	network, method, details, action, gateway_id, pay_address, pay_url, created_at
FROM payout_requests
ORDER BY created_at DESC, id DESC
LIMIT $1`

type row struct {
	OrderID     string          `db:"order_id"`
	UserID      int64           `db:"user_id"`
	DisplayName string          `db:"display_name"`
	Username    string          `db:"username"`
	Stars       decimal.Decimal `db:"stars"`
	Payout      decimal.Decimal `db:"payout"`
	Currency    string          `db:"currency"`
	Asset       string          `db:"asset"`
	Network     string          `db:"network"`
	Method      string          `db:"method"`
	Details     string          `db:"details"`
	Action      string          `db:"action"`
	GatewayID   string          `db:"gateway_id"`
	PayAddress  string          `db:"pay_address"`
	PayURL      string          `db:"pay_url"`
	CreatedAt   time.Time       `db:"created_at"`
}

func toRow(r exchange.Request) row {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return row{
		OrderID:     r.OrderID,
		UserID:      r.UserID,
		DisplayName: r.DisplayName,
		Username:    r.Username,
		Stars:       r.Stars,
		Payout:      r.Payout,
		Currency:    string(r.Currency),
		Asset:       string(r.Asset),
		Network:     string(r.Network),
		Method:      string(r.Method),
		Details:     r.Details,
		Action:      string(r.Action),
		GatewayID:   r.GatewayID,
		PayAddress:  r.PayAddress,
		PayURL:      r.PayURL,
		CreatedAt:   created.UTC(),
	}
}

func (r row) request() exchange.Request {
	return exchange.Request{
		OrderID:     r.OrderID,
		UserID:      r.UserID,
		DisplayName: r.DisplayName,
		Username:    r.Username,
		Stars:       r.Stars,
		Payout:      r.Payout,
		Currency:    exchange.Currency(r.Currency),
		Asset:       exchange.Currency(r.Asset),
		Network:     exchange.Network(r.Network),
		Method:      exchange.Method(r.Method),
		Details:     r.Details,
		Action:      exchange.TerminalAction(r.Action),
		GatewayID:   r.GatewayID,
		PayAddress:  r.PayAddress,
		PayURL:      r.PayURL,
		CreatedAt:   r.CreatedAt,
	}
}

// Store is the Postgres request ledger. It is safe for concurrent use.
type Store struct {
	db *sqlx.DB
}

// New wraps an open connection pool.
func New(db *sqlx.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("archive: nil database")
	}
	return &Store{db: db}, nil
}

// Record inserts a completed request. Recording the same order twice is a no-op.
func (s *Store) Record(ctx context.Context, req exchange.Request) error {
	if req.OrderID == "" {
		return errors.New("archive: request without order id")
	}
	start := time.Now()
	res, err := s.db.NamedExecContext(ctx, insertRequest, toRow(req))
	attrs := []slog.Attr{
		slog.String("order_id", req.OrderID),
		slog.Int64("user_id", req.UserID),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration_ms", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.LogEvent(ctx, logger.SVCArchive, slog.LevelError, "archive.record", attrs...)
		return fmt.Errorf("archive: record %s: %w", req.OrderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		attrs = append(attrs, slog.String("reason", "duplicate"))
	}
	logger.LogEvent(ctx, logger.SVCArchive, slog.LevelInfo, "archive.record", attrs...)
	return nil
}

// Recent returns up to limit requests, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]exchange.Request, error) {
	if limit <= 0 {
		limit = 10
	}
	start := time.Now()
	var rows []row
	err := s.db.SelectContext(ctx, &rows, selectRecent, limit)
	logger.LogEvent(ctx, logger.SVCArchive, slog.LevelDebug, "archive.recent",
		slog.Int("limit", limit),
		slog.Int("count", len(rows)),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration_ms", logger.Took(start)),
	)
	if err != nil {
		return nil, fmt.Errorf("archive: list recent: %w", err)
	}
	out := make([]exchange.Request, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.request())
	}
	return out, nil
}

// Ping reports whether the ledger database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
