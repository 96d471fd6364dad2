package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starsbot/core/telegram/state"
	"github.com/m3rciful/starsbot/internal/exchange"
)

// fakeContext implements the parts of tele.Context the handlers touch.
type fakeContext struct {
	tele.Context

	user *tele.User
	text string
	cb   *tele.Callback
	msg  *tele.Message

	store     map[string]any
	sent      []sent
	responses []*tele.CallbackResponse
}

type sent struct {
	text   string
	markup *tele.ReplyMarkup
}

func newTextContext(userID int64, text string) *fakeContext {
	return &fakeContext{
		user:  &tele.User{ID: userID, FirstName: "Alice", Username: "alice"},
		text:  text,
		msg:   &tele.Message{ID: 1, Text: text},
		store: map[string]any{},
	}
}

func newCallbackContext(userID int64, data string) *fakeContext {
	c := newTextContext(userID, "")
	c.cb = &tele.Callback{ID: "cb", Data: data}
	return c
}

func (c *fakeContext) Sender() *tele.User        { return c.user }
func (c *fakeContext) Text() string              { return c.text }
func (c *fakeContext) Callback() *tele.Callback  { return c.cb }
func (c *fakeContext) Message() *tele.Message    { return c.msg }
func (c *fakeContext) Chat() *tele.Chat          { return &tele.Chat{ID: c.user.ID} }
func (c *fakeContext) Update() tele.Update       { return tele.Update{ID: 7} }
func (c *fakeContext) Get(key string) any        { return c.store[key] }
func (c *fakeContext) Set(key string, value any) { c.store[key] = value }

func (c *fakeContext) Send(what any, opts ...any) error {
	s := sent{text: what.(string)}
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			s.markup = so.ReplyMarkup
		}
	}
	c.sent = append(c.sent, s)
	return nil
}

func (c *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	var r *tele.CallbackResponse
	if len(resp) > 0 {
		r = resp[0]
	}
	c.responses = append(c.responses, r)
	return nil
}

func (c *fakeContext) last(t *testing.T) sent {
	t.Helper()
	if len(c.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return c.sent[len(c.sent)-1]
}

type recordingAdmin struct {
	mu    sync.Mutex
	texts []string
}

func (a *recordingAdmin) NotifyAdmin(_ context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.texts = append(a.texts, text)
	return nil
}

func newTestConversation(t *testing.T) (*Conversation, *recordingAdmin) {
	t.Helper()
	store := state.NewMemoryStore[exchange.Session](time.Minute)
	admin := &recordingAdmin{}
	m, err := exchange.NewMachine(exchange.DefaultOptions(), store, exchange.Deps{Admin: admin})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return NewConversation(m, store), admin
}

func buttonData(markup *tele.ReplyMarkup) map[string]string {
	out := map[string]string{}
	if markup == nil {
		return out
	}
	for _, row := range markup.InlineKeyboard {
		for _, b := range row {
			out[b.Unique+"|"+b.Data] = b.Text
		}
	}
	return out
}

func TestConversationAdminFlow(t *testing.T) {
	conv, admin := newTestConversation(t)
	const user = 42

	start := newTextContext(user, "/start")
	if err := conv.Start(start); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(start.sent) != 2 || !strings.Contains(start.sent[0].text, "Alice") {
		t.Fatalf("welcome = %+v", start.sent)
	}
	if !conv.InProgress(user) {
		t.Fatal("session should be in progress after /start")
	}

	amount := newTextContext(user, "1000")
	if err := conv.HandleText(amount); err != nil {
		t.Fatalf("amount: %v", err)
	}
	buttons := buttonData(amount.last(t).markup)
	if _, ok := buttons["target|USDT"]; !ok {
		t.Fatalf("target menu = %v", buttons)
	}

	// Unregistered path: raw "\funique|payload" data.
	target := newCallbackContext(user, "\ftarget|USDT")
	if err := conv.Selection(exchange.KindTarget)(target); err != nil {
		t.Fatalf("target: %v", err)
	}
	if !strings.Contains(target.sent[0].text, "3.92 USDT") {
		t.Fatalf("quote prompt = %q", target.sent[0].text)
	}
	if len(target.responses) != 1 || target.responses[0] != nil {
		t.Fatalf("callback should be answered silently once, got %v", target.responses)
	}

	// Registered path: telebot already split unique and payload.
	network := newCallbackContext(user, "TRC20")
	network.cb.Unique = "network"
	if err := conv.Selection(exchange.KindNetwork)(network); err != nil {
		t.Fatalf("network: %v", err)
	}

	details := newTextContext(user, "T"+strings.Repeat("b", 33))
	if err := conv.HandleText(details); err != nil {
		t.Fatalf("details: %v", err)
	}
	if _, ok := buttonData(details.last(t).markup)["confirm|yes"]; !ok {
		t.Fatalf("confirm menu missing: %v", buttonData(details.last(t).markup))
	}

	confirm := newCallbackContext(user, "\fconfirm|yes")
	if err := conv.Selection(exchange.KindConfirm)(confirm); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !strings.Contains(confirm.last(t).text, "Request received") {
		t.Fatalf("terminal message = %q", confirm.last(t).text)
	}
	if len(admin.texts) != 1 || !strings.Contains(admin.texts[0], "TRC20") {
		t.Fatalf("admin summary = %v", admin.texts)
	}
	if conv.InProgress(user) {
		t.Fatal("session should be reset after the request")
	}
}

func TestConversationStaleButtonToasts(t *testing.T) {
	conv, _ := newTestConversation(t)
	const user = 7
	if err := conv.Start(newTextContext(user, "/start")); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// A confirm button while the amount is still expected.
	c := newCallbackContext(user, "\fconfirm|yes")
	if err := conv.Selection(exchange.KindConfirm)(c); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(c.responses) != 1 || c.responses[0] == nil || c.responses[0].Text != msgInactiveButton {
		t.Fatalf("responses = %+v", c.responses)
	}
	if len(c.sent) != 0 {
		t.Fatalf("stale press must not re-prompt, sent %+v", c.sent)
	}
}

func TestConversationTextWithoutSession(t *testing.T) {
	conv, _ := newTestConversation(t)
	c := newTextContext(9, "hello")
	if err := conv.HandleText(c); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if !strings.Contains(c.last(t).text, "/start") {
		t.Fatalf("hint = %q", c.last(t).text)
	}
}

func TestConversationCancel(t *testing.T) {
	conv, _ := newTestConversation(t)
	const user = 11
	if err := conv.Start(newTextContext(user, "/start")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c := newTextContext(user, "/cancel")
	if err := conv.Cancel(c); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if conv.InProgress(user) {
		t.Fatal("cancel must discard the session")
	}
}

func TestUnknownCallbackAnswers(t *testing.T) {
	conv, _ := newTestConversation(t)
	c := newCallbackContext(1, "\fsell_stars|")
	if err := NewFallbacks(conv, nil).UnknownCallback()(c); err != nil {
		t.Fatalf("UnknownCallback: %v", err)
	}
	if len(c.responses) != 1 || c.responses[0].Text != msgInactiveButton {
		t.Fatalf("responses = %+v", c.responses)
	}
}

func TestMenuMarkupLayout(t *testing.T) {
	markup := menuMarkup([]exchange.MenuItem{
		{Token: exchange.Token{Kind: exchange.KindNetwork, Value: "BEP20"}, Label: "BEP20"},
		{Token: exchange.Token{Kind: exchange.KindNetwork, Value: "TRC20"}, Label: "TRC20"},
		{Token: exchange.CancelToken, Label: "Cancel"},
	})
	if len(markup.InlineKeyboard) != 2 || len(markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("layout = %+v", markup.InlineKeyboard)
	}
	if b := markup.InlineKeyboard[1][0]; b.Unique != "cancel" || b.Data != "cancel" {
		t.Fatalf("cancel button = %+v", b)
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		user tele.User
		want string
	}{
		{tele.User{FirstName: "Ann", LastName: "Lee"}, "Ann Lee"},
		{tele.User{FirstName: " Bo "}, "Bo"},
		{tele.User{Username: "carl"}, "@carl"},
		{tele.User{}, "there"},
	}
	for _, tc := range cases {
		if got := displayName(&tc.user); got != tc.want {
			t.Errorf("displayName(%+v) = %q, want %q", tc.user, got, tc.want)
		}
	}
}
