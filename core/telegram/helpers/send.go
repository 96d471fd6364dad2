package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starsbot/core/logger"
	"github.com/m3rciful/starsbot/core/telegram/sender"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes later sends through d; nil restores inline sends.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// Deliver runs an outbound call through the dispatcher, or inline when no
// dispatcher is wired or its queue cannot accept the job.
func Deliver(ctx context.Context, action, endpoint string, run func() error) error {
	disp := dispatcher.Load()
	if disp == nil {
		return run()
	}
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText replies to the update's chat with plain text. The reply counts
// towards the handler summary as soon as it is queued.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	extra, markup := sendOptions(opts)
	CountOutbound(c, markup)
	return Deliver(BuildContext(c), "send.text", "sendMessage", func() error {
		return c.Send(text, extra...)
	})
}

// SendTo sends plain text to an arbitrary chat outside of any update.
func SendTo(ctx context.Context, api tele.API, to tele.Recipient, text string, opts ...*tele.SendOptions) error {
	if api == nil || to == nil {
		return errors.New("telegram helpers: nil api or recipient")
	}
	extra, _ := sendOptions(opts)
	return Deliver(ctx, "send.to", "sendMessage", func() error {
		_, err := api.Send(to, text, extra...)
		return err
	})
}

// sendOptions drops nil entries and reports whether any carries a keyboard.
func sendOptions(opts []*tele.SendOptions) ([]any, bool) {
	var out []any
	markup := false
	for _, o := range opts {
		if o == nil {
			continue
		}
		out = append(out, o)
		markup = markup || o.ReplyMarkup != nil
	}
	return out, markup
}
