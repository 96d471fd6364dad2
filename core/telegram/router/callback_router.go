package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/starsbot/core/telegram"
	"github.com/m3rciful/starsbot/core/telegram/callbacks"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound runs when neither the registry nor its not-found handler claim the key.
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches button presses by their key through the registry.
// The query is always answered once the handler returns; an earlier
// callbacks.Answer from the handler wins.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		defer func() { _ = callbacks.Answer(c, "") }()

		key, _ := callbacks.Parse(c.Callback())
		s := newSummary("callback."+handlerName(key), slog.String("cb_key", key))

		if h, ok := reg.GetCallback(key); ok && h != nil {
			return s.run(c, h)
		}
		s.attrs = append(s.attrs, slog.String("reason", "not_found"))
		fallback := reg.CallbackNotFound()
		if fallback == nil {
			fallback = opts.NotFound
		}
		if fallback == nil {
			s.skip(c)
			return nil
		}
		return s.run(c, fallback)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: wrap(handler)}
}
