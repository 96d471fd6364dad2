package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starsbot/core/logger"
	"github.com/m3rciful/starsbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/starsbot/core/telegram/helpers"
)

const (
	receiptTTL  = 10 * time.Second
	maxTextLog  = 256
	maxKeyLog   = 128
	maxUsername = 64
)

// seenUpdates remembers recently logged update ids. The logger runs both in
// the global chain and on individual routes, so one update can pass twice.
type seenUpdates struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[int]time.Time
}

func (s *seenUpdates) first(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, at := range s.seen {
		if now.Sub(at) > s.ttl {
			delete(s.seen, k)
		}
	}
	if _, dup := s.seen[id]; dup {
		return false
	}
	s.seen[id] = now
	return true
}

var receipts = &seenUpdates{ttl: receiptTTL, seen: make(map[int]time.Time)}

// LoggerMiddleware binds the request context (rid, update, chat and user ids)
// to the update and writes one sampled debug line on receipt.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if logger.ShouldSampleDebug() && receipts.first(c.Update().ID, time.Now()) {
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String(logger.FieldStatus, logger.StatusOK)}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		attrs = append(attrs,
			slog.String("username", logger.SanitizeLimit(user.Username, maxUsername)),
			slog.String("lang", user.LanguageCode),
		)
	}

	upd := c.Update()
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.Parse(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, maxKeyLog)),
			slog.String("payload", logger.SanitizeLimit(payload, maxTextLog)),
		)
	case upd.Message != nil:
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), maxTextLog)))
	}
	return attrs
}
