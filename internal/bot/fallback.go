package bot

import (
	"context"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/starsbot/core/telegram/helpers"
	"github.com/m3rciful/starsbot/core/telegram/ui"
)

const (
	msgProofForwarded = "📨 Thanks! Your proof was forwarded, the admin will verify your payment soon."
	msgMediaIgnored   = "👋 Send /start to begin."
	msgRateLimited    = "⏳ Too many messages, please slow down."
	msgAdminOnly      = "⛔ This command is for the operator only."
)

// Forwarder copies user media to the operator.
type Forwarder interface {
	Forward(ctx context.Context, msg *tele.Message) error
}

// Fallbacks answers updates that no command, callback or conversation step claimed.
type Fallbacks struct {
	conv    *Conversation
	forward Forwarder
}

var _ ui.FallbackProvider = (*Fallbacks)(nil)

// NewFallbacks builds the provider. forward may be nil when media should not reach the operator.
func NewFallbacks(conv *Conversation, forward Forwarder) *Fallbacks {
	return &Fallbacks{conv: conv, forward: forward}
}

// UnknownText hands stray text to the conversation, which answers with the entry hint.
func (f *Fallbacks) UnknownText() tele.HandlerFunc {
	return f.conv.HandleText
}

// UnknownMedia forwards photos and documents (payment proofs) to the operator.
func (f *Fallbacks) UnknownMedia() tele.HandlerFunc {
	return func(c tele.Context) error {
		if f.forward == nil || c.Message() == nil {
			return tghelpers.SendText(c, msgMediaIgnored)
		}
		if err := f.forward.Forward(tghelpers.BuildContext(c), c.Message()); err != nil {
			return err
		}
		return tghelpers.SendText(c, msgProofForwarded)
	}
}

// UnknownCallback answers buttons from outdated keyboards.
func (f *Fallbacks) UnknownCallback() tele.HandlerFunc {
	return f.conv.UnknownCallback
}

func rateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: msgRateLimited})
	}
	return tghelpers.SendText(c, msgRateLimited)
}

func adminOnly(c tele.Context) error {
	return tghelpers.SendText(c, msgAdminOnly)
}
