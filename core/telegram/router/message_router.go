package router

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/starsbot/core/telegram"
)

// Conversation receives free text from users with an active session.
type Conversation interface {
	InProgress(userID int64) bool
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for text and media updates.
type TextOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
}

// TextRoutes builds handlers for text, photo and document updates.
// Text goes to the conversation while a session is active, then to
// non-admin commands typed without a slash, then to the fallbacks.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	text := func(c tele.Context) error {
		if conv != nil && c.Sender() != nil && conv.InProgress(c.Sender().ID) {
			return newSummary("fsm").run(c, conv.HandleText)
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return newSummary(handlerName(key)).run(c, cmd.Handler)
			}
			if fb := reg.TextFallback(); fb != nil {
				return newSummary("fallback").run(c, fb)
			}
		}
		return runOrSkip(c, "unknown_text", opts.UnknownText)
	}
	media := wrap(func(c tele.Context) error {
		return runOrSkip(c, "media", opts.UnknownMedia)
	})

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnDocument, Handler: media},
		{Endpoint: tele.OnPhoto, Handler: media},
	}
}

func runOrSkip(c tele.Context, name string, h tele.HandlerFunc) error {
	s := newSummary(name)
	if h == nil {
		s.skip(c)
		return nil
	}
	return s.run(c, h)
}
