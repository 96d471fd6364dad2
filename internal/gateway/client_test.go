package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/starsbot/internal/exchange"
)

func sampleRequest() exchange.GatewayRequest {
	return exchange.GatewayRequest{
		OrderID:       "order-1",
		Amount:        decimal.RequireFromString("3.63"),
		PriceCurrency: "usd",
		PayCurrency:   "usdttrc20",
		Description:   "Sell 1000 Stars for 3.92 USDT",
		Address:       "TAddress",
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: srv.URL + "/", APIKey: "secret", Timeout: timeout, IPNCallbackURL: "https://bot.example/ipn"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCreatePaymentSuccess(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payment" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "secret" {
			t.Errorf("api key header = %q", r.Header.Get("x-api-key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"payment_id":5524759814,"payment_status":"waiting","pay_address":"TPay","invoice_url":"https://pay.example/i/1"}`))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv, time.Second).CreatePayment(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if res.ID != "5524759814" || res.Address != "TPay" || res.PayURL != "https://pay.example/i/1" || res.Status != "waiting" || res.Code != "201" {
		t.Fatalf("result = %+v", res)
	}
	if got["price_amount"] != 3.63 || got["price_currency"] != "usd" || got["pay_currency"] != "usdttrc20" {
		t.Fatalf("body = %v", got)
	}
	if got["order_id"] != "order-1" || got["ipn_callback_url"] != "https://bot.example/ipn" {
		t.Fatalf("body = %v", got)
	}
}

func TestCreatePaymentErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rejected", http.StatusBadRequest, `{"statusCode":400,"code":"INVALID_REQUEST_PARAMS","message":"pay_currency is invalid"}`, exchange.ErrGatewayRejected},
		{"unauthorized", http.StatusForbidden, `not json`, exchange.ErrGatewayRejected},
		{"server error", http.StatusBadGateway, `{}`, exchange.ErrGatewayUnavailable},
		{"missing id", http.StatusOK, `{"payment_status":"waiting"}`, exchange.ErrGatewayUnavailable},
		{"bad json", http.StatusOK, `{`, exchange.ErrGatewayUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv, time.Second).CreatePayment(context.Background(), sampleRequest())
			var gerr *exchange.GatewayError
			if !errors.As(err, &gerr) {
				t.Fatalf("err = %v, want GatewayError", err)
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCreatePaymentTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(t, srv, 5*time.Second).CreatePayment(ctx, sampleRequest())
	if !errors.Is(err, exchange.ErrGatewayTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected missing api key to fail")
	}
}

func TestMock(t *testing.T) {
	res, err := Mock{}.CreatePayment(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("mock: %v", err)
	}
	if res.ID != "mock-order-1" || res.Address == "" || res.PayURL == "" {
		t.Fatalf("result = %+v", res)
	}
}
