package helpers

import (
	"context"
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starsbot/core/logger"
)

type stubContext struct {
	tele.Context

	store map[string]any
	sent  []string
}

func newStub() *stubContext { return &stubContext{store: map[string]any{}} }

func (c *stubContext) Get(key string) any        { return c.store[key] }
func (c *stubContext) Set(key string, value any) { c.store[key] = value }
func (c *stubContext) Update() tele.Update       { return tele.Update{ID: 12} }
func (c *stubContext) Sender() *tele.User        { return &tele.User{ID: 34} }
func (c *stubContext) Chat() *tele.Chat          { return &tele.Chat{ID: 56} }

func (c *stubContext) Send(what any, _ ...any) error {
	c.sent = append(c.sent, what.(string))
	return nil
}

func TestBuildContextCaches(t *testing.T) {
	c := newStub()
	ctx := BuildContext(c)
	if logger.UpdateIDFrom(ctx) != 12 || logger.UserIDFrom(ctx) != 34 || logger.ChatIDFrom(ctx) != 56 {
		t.Fatalf("metadata missing from context")
	}
	rid := logger.RIDFrom(ctx)
	if rid == "" || c.Get(RIDKey) != rid {
		t.Fatalf("rid = %q, stored %v", rid, c.Get(RIDKey))
	}
	if BuildContext(c) != ctx {
		t.Fatal("second call must reuse the cached context")
	}

	tagged := WithHandler(c, "start")
	if logger.HandlerFrom(tagged) != "start" || BuildContext(c) != tagged {
		t.Fatal("handler tag must be cached on the update")
	}
}

func TestBuildContextKeepsExistingRID(t *testing.T) {
	c := newStub()
	c.Set(RIDKey, "rid-fixed")
	if got := logger.RIDFrom(BuildContext(c)); got != "rid-fixed" {
		t.Fatalf("rid = %q", got)
	}
}

func TestSendTextCountsReplies(t *testing.T) {
	c := newStub()
	ResetOutbound(c)

	if err := SendText(c, "plain"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if n, kb := OutboundCounts(c); n != 1 || kb {
		t.Fatalf("counts = %d, %v", n, kb)
	}
	markup := &tele.ReplyMarkup{}
	if err := SendText(c, "menu", &tele.SendOptions{ReplyMarkup: markup}); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if n, kb := OutboundCounts(c); n != 2 || !kb {
		t.Fatalf("counts = %d, %v", n, kb)
	}
	if len(c.sent) != 2 {
		t.Fatalf("sent = %v", c.sent)
	}
}

func TestDeliverInlineWithoutDispatcher(t *testing.T) {
	SetDispatcher(nil)
	want := errors.New("boom")
	if err := Deliver(context.Background(), "x", "", func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
	if err := SendTo(context.Background(), nil, nil, "x"); err == nil {
		t.Fatal("expected nil api to be rejected")
	}
}

func TestSendOptionsSkipsNil(t *testing.T) {
	extra, markup := sendOptions([]*tele.SendOptions{nil, {DisableNotification: true}})
	if len(extra) != 1 || markup {
		t.Fatalf("extra = %v, markup = %v", extra, markup)
	}
}
