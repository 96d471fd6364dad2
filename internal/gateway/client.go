// Package gateway implements the payout gateway used by the gateway terminal action.
// The client speaks the NOWPayments payment API: POST /v1/payment with an x-api-key header.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/starsbot/core/logger"
	"github.com/m3rciful/starsbot/core/telegram/netutil"
	"github.com/m3rciful/starsbot/internal/exchange"
)

const (
	defaultBaseURL = "https://api.nowpayments.io"
	defaultTimeout = 15 * time.Second
	paymentPath    = "/v1/payment"
	maxErrorBody   = 512
)

// Config configures the HTTP client.
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	IPNCallbackURL string
}

// Client creates payments over HTTP. It is safe for concurrent use.
type Client struct {
	baseURL     string
	apiKey      string
	callbackURL string
	http        *http.Client
}

// New builds a Client with a pooled transport.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gateway: api key is required")
	}
	base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &Client{
		baseURL:     base,
		apiKey:      cfg.APIKey,
		callbackURL: cfg.IPNCallbackURL,
		http:        &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

type paymentRequest struct {
	PriceAmount      json.Number `json:"price_amount"`
	PriceCurrency    string      `json:"price_currency"`
	PayCurrency      string      `json:"pay_currency"`
	OrderID          string      `json:"order_id"`
	OrderDescription string      `json:"order_description,omitempty"`
	IPNCallbackURL   string      `json:"ipn_callback_url,omitempty"`
	PayoutAddress    string      `json:"payout_address,omitempty"`
}

type paymentResponse struct {
	PaymentID     json.RawMessage `json:"payment_id"`
	PaymentStatus string          `json:"payment_status"`
	PayAddress    string          `json:"pay_address"`
	InvoiceURL    string          `json:"invoice_url"`
	Code          string          `json:"code"`
	Message       string          `json:"message"`
}

// CreatePayment opens a payment for req.
func (c *Client) CreatePayment(ctx context.Context, req exchange.GatewayRequest) (*exchange.GatewayResult, error) {
	start := time.Now()
	res, err := c.createPayment(ctx, req)
	attrs := []slog.Attr{
		slog.String("op", "create_payment"),
		slog.String("order_id", req.OrderID),
		slog.String("pay_currency", req.PayCurrency),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration_ms", logger.Took(start)),
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("err", err.Error()))
		var gerr *exchange.GatewayError
		if errors.As(err, &gerr) {
			attrs = append(attrs, slog.String("err_code", gerr.Code()))
		}
	}
	logger.LogEvent(ctx, logger.SVCGateway, level, "gateway.request", attrs...)
	return res, err
}

func (c *Client) createPayment(ctx context.Context, req exchange.GatewayRequest) (*exchange.GatewayResult, error) {
	body, err := json.Marshal(paymentRequest{
		PriceAmount:      json.Number(req.Amount.StringFixed(2)),
		PriceCurrency:    req.PriceCurrency,
		PayCurrency:      req.PayCurrency,
		OrderID:          req.OrderID,
		OrderDescription: req.Description,
		IPNCallbackURL:   c.callbackURL,
		PayoutAddress:    req.Address,
	})
	if err != nil {
		return nil, &exchange.GatewayError{Op: "encode", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+paymentPath, bytes.NewReader(body))
	if err != nil {
		return nil, &exchange.GatewayError{Op: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &exchange.GatewayError{Op: "create payment", Err: classifyTransportError(ctx, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &exchange.GatewayError{Op: "read response", Err: fmt.Errorf("%w: %v", exchange.ErrGatewayUnavailable, err)}
	}

	var parsed paymentResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	switch {
	case resp.StatusCode >= 500:
		return nil, &exchange.GatewayError{Op: "create payment", Err: fmt.Errorf("%w: http %d", exchange.ErrGatewayUnavailable, resp.StatusCode)}
	case resp.StatusCode >= 400:
		msg := parsed.Message
		if decodeErr != nil || msg == "" {
			msg = truncate(string(raw), maxErrorBody)
		}
		return nil, &exchange.GatewayError{Op: "create payment", Err: fmt.Errorf("%w: http %d: %s", exchange.ErrGatewayRejected, resp.StatusCode, msg)}
	}
	if decodeErr != nil {
		return nil, &exchange.GatewayError{Op: "decode response", Err: fmt.Errorf("%w: %v", exchange.ErrGatewayUnavailable, decodeErr)}
	}

	id := paymentID(parsed.PaymentID)
	if id == "" {
		return nil, &exchange.GatewayError{Op: "decode response", Err: fmt.Errorf("%w: missing payment_id", exchange.ErrGatewayUnavailable)}
	}
	return &exchange.GatewayResult{
		ID:      id,
		Address: parsed.PayAddress,
		PayURL:  parsed.InvoiceURL,
		Code:    strconv.Itoa(resp.StatusCode),
		Status:  parsed.PaymentStatus,
	}, nil
}

// paymentID accepts both numeric and string ids.
func paymentID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", exchange.ErrGatewayTimeout, err)
	}
	switch kind := netutil.Classify(err); kind {
	case "timeout":
		return fmt.Errorf("%w: %v", exchange.ErrGatewayTimeout, err)
	default:
		return fmt.Errorf("%w: %s: %v", exchange.ErrGatewayUnavailable, kind, err)
	}
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}
