package gateway

import (
	"context"
	"log/slog"

	"github.com/m3rciful/starsbot/core/logger"
	"github.com/m3rciful/starsbot/internal/exchange"
)

// Mock answers every request with a deterministic pending payment. Use it for local runs.
type Mock struct {
	BaseURL string
}

// CreatePayment returns a fake transaction for req.
func (m Mock) CreatePayment(ctx context.Context, req exchange.GatewayRequest) (*exchange.GatewayResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &exchange.GatewayError{Op: "create payment", Err: exchange.ErrGatewayTimeout}
	}
	base := m.BaseURL
	if base == "" {
		base = "https://sandbox.nowpayments.io"
	}
	logger.LogEvent(ctx, logger.SVCGateway, slog.LevelInfo, "gateway.mock",
		slog.String("order_id", req.OrderID),
		slog.String("pay_currency", req.PayCurrency),
		slog.String("amount", req.Amount.StringFixed(2)),
	)
	return &exchange.GatewayResult{
		ID:      "mock-" + req.OrderID,
		Address: "mock-" + req.PayCurrency + "-address",
		PayURL:  base + "/payment/?iid=mock-" + req.OrderID,
		Code:    "201",
		Status:  "waiting",
	}, nil
}
