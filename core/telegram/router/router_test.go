package router

import (
	"errors"
	"fmt"
	"testing"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/starsbot/core/telegram"
	"github.com/m3rciful/starsbot/core/telegram/commands"
)

type codedErr struct{ code string }

func (e codedErr) Error() string { return "coded" }
func (e codedErr) Code() string  { return e.code }

func noop(tele.Context) error { return nil }

func TestHandlerName(t *testing.T) {
	cases := map[string]string{
		"/start":     "start",
		" Sell Now ": "sell_now",
		"":           "unknown",
		"/":          "unknown",
	}
	for in, want := range cases {
		if got := handlerName(in); got != want {
			t.Errorf("handlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("gateway: %w", codedErr{code: "invalid amount"})
	if got := errorCode(wrapped); got != "INVALID_AMOUNT" {
		t.Fatalf("errorCode = %q", got)
	}
	if got := errorCode(errors.New("plain")); got != "UNKNOWN" {
		t.Fatalf("errorCode(plain) = %q", got)
	}
}

func TestBuildRoutes(t *testing.T) {
	reg := tg.NewRegistry()
	if err := reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start a payout", Aliases: []string{"sell"}}); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterCommand("/requests", commands.Command{Handler: noop, Description: "Recent requests", AdminOnly: true}); err != nil {
		t.Fatal(err)
	}

	routes := Build(reg, nil, nil, CommandRouteOptions{AdminID: 1})
	got := map[any]bool{}
	for _, r := range routes {
		got[r.Endpoint] = true
		if r.Handler == nil {
			t.Errorf("route %s has no handler", r.Endpoint)
		}
	}
	for _, want := range []string{"/start", "/sell", "/requests", tele.OnCallback, tele.OnText, tele.OnPhoto, tele.OnDocument} {
		if !got[want] {
			t.Errorf("missing route %s", want)
		}
	}
	if len(routes) != 7 {
		t.Fatalf("routes = %d, want 7", len(routes))
	}
}
