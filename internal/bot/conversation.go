package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starsbot/core/logger"
	"github.com/m3rciful/starsbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/starsbot/core/telegram/helpers"
	"github.com/m3rciful/starsbot/core/telegram/keyboard"
	"github.com/m3rciful/starsbot/internal/exchange"
)

const (
	buttonsPerRow     = 2
	msgInactiveButton = "This button is no longer active."
)

// Machine is the conversation engine driven by Telegram updates.
type Machine interface {
	Handle(ctx context.Context, ev exchange.Event) exchange.Outcome
}

// Sessions reports whether a user is in the middle of a conversation.
type Sessions interface {
	InProgress(userID int64) bool
}

// Conversation translates Telegram updates into exchange events and renders the resulting prompts.
type Conversation struct {
	machine  Machine
	sessions Sessions
}

// NewConversation binds the machine to its session store.
func NewConversation(m Machine, sessions Sessions) *Conversation {
	return &Conversation{machine: m, sessions: sessions}
}

// InProgress reports whether free text from userID belongs to the conversation.
func (cv *Conversation) InProgress(userID int64) bool {
	return cv.sessions != nil && cv.sessions.InProgress(userID)
}

// Start handles the entry command. It always restarts the conversation.
func (cv *Conversation) Start(c tele.Context) error {
	u := c.Sender()
	if u == nil {
		return nil
	}
	ev := exchange.EntryCommand(u.ID, displayName(u))
	ev.Username = u.Username
	return cv.dispatch(c, ev)
}

// Cancel handles the cancel command.
func (cv *Conversation) Cancel(c tele.Context) error {
	u := c.Sender()
	if u == nil {
		return nil
	}
	return cv.dispatch(c, exchange.MenuSelection(u.ID, exchange.CancelToken))
}

// HandleText feeds free text into the conversation. Text from users without a
// session gets the entry hint.
func (cv *Conversation) HandleText(c tele.Context) error {
	u := c.Sender()
	if u == nil {
		return nil
	}
	return cv.dispatch(c, exchange.TextInput(u.ID, c.Text()))
}

// Selection returns the callback handler for buttons of one token kind.
func (cv *Conversation) Selection(kind exchange.TokenKind) tele.HandlerFunc {
	return func(c tele.Context) error {
		u := c.Sender()
		if u == nil {
			return nil
		}
		_, payload := callbacks.Parse(c.Callback())
		tok, err := exchange.ParseToken(string(kind), payload)
		if err != nil {
			logger.LogEvent(tghelpers.BuildContext(c), logger.SVCExchange, slog.LevelDebug, "callback.parse",
				slog.String("status", "rejected"),
				slog.String("kind", string(kind)),
				slog.String("payload", payload),
			)
			return callbacks.Answer(c, staleMessage(err))
		}
		return cv.dispatch(c, exchange.MenuSelection(u.ID, tok))
	}
}

// UnknownCallback answers buttons whose kind is not part of the conversation.
func (cv *Conversation) UnknownCallback(c tele.Context) error {
	return callbacks.Answer(c, msgInactiveButton)
}

func (cv *Conversation) dispatch(c tele.Context, ev exchange.Event) error {
	ctx := tghelpers.BuildContext(c)
	out := cv.machine.Handle(ctx, ev)

	if out.Rejection != nil && out.Rejection.Reason == exchange.ReasonStaleSelection {
		_ = callbacks.Answer(c, out.Rejection.Message)
	} else {
		_ = callbacks.Answer(c, "")
	}
	if ev.Kind == exchange.EventSelection && out.Rejection == nil && c.Callback() != nil {
		clearKeyboard(ctx, c)
	}

	for _, p := range out.Prompts {
		if err := render(c, p); err != nil {
			return err
		}
	}
	return nil
}

func render(c tele.Context, p exchange.Prompt) error {
	if len(p.Menu) == 0 {
		return tghelpers.SendText(c, p.Text)
	}
	return tghelpers.SendText(c, p.Text, &tele.SendOptions{ReplyMarkup: menuMarkup(p.Menu)})
}

// menuMarkup renders menu items as inline buttons: the token kind is the
// callback unique key and the token value its payload.
func menuMarkup(menu []exchange.MenuItem) *tele.ReplyMarkup {
	buttons := make([]keyboard.Button, 0, len(menu))
	for _, item := range menu {
		buttons = append(buttons, keyboard.Button{
			Label:   item.Label,
			Key:     string(item.Token.Kind),
			Payload: item.Token.Value,
		})
	}
	return keyboard.Grid(buttonsPerRow, buttons...)
}

// clearKeyboard removes the buttons of the message that was just answered so it cannot be pressed twice.
func clearKeyboard(ctx context.Context, c tele.Context) {
	msg := c.Message()
	if msg == nil || msg.ReplyMarkup == nil {
		return
	}
	err := tghelpers.Deliver(ctx, "edit.markup", "editMessageReplyMarkup", func() error {
		_, err := c.Bot().EditReplyMarkup(msg, nil)
		return err
	})
	if err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "edit.markup",
			slog.String(logger.FieldStatus, logger.StatusFail),
			slog.String("err", err.Error()),
		)
	}
}

func staleMessage(err error) string {
	var verr *exchange.ValidationError
	if errors.As(err, &verr) && verr.Message != "" {
		return verr.Message
	}
	return msgInactiveButton
}

func displayName(u *tele.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return "there"
}
