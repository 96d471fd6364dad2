package router

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starsbot/core/logger"
	tghelpers "github.com/m3rciful/starsbot/core/telegram/helpers"
	"github.com/m3rciful/starsbot/core/telegram/netutil"
)

const maxErrLen = 256

// summary describes one handled update. Empty status and outcome are derived
// from the handler error.
type summary struct {
	handler string
	start   time.Time
	status  string
	outcome string
	attrs   []slog.Attr
}

func newSummary(handler string, attrs ...slog.Attr) summary {
	return summary{handler: handler, start: time.Now(), attrs: attrs}
}

// run calls fn with the handler name bound to the update context and logs
// the result once fn returns.
func (s summary) run(c tele.Context, fn tele.HandlerFunc) error {
	tghelpers.WithHandler(c, s.handler)
	err := fn(c)
	s.log(c, err)
	return err
}

func (s summary) skip(c tele.Context) {
	s.status = logger.StatusSkip
	s.log(c, nil)
}

func (s summary) log(c tele.Context, err error) {
	ctx := tghelpers.WithHandler(c, s.handler)
	msgs, kb := tghelpers.OutboundCounts(c)

	result := logger.StatusOK
	if err != nil {
		result = logger.StatusFail
	}
	status, outcome := s.status, s.outcome
	if status == "" {
		status = result
	}
	if outcome == "" {
		outcome = result
	}

	attrs := []slog.Attr{
		slog.String(logger.FieldStatus, status),
		slog.String(logger.FieldOutcome, outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(s.start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), maxErrLen)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "handler.handled", append(attrs, s.attrs...)...)
}

// handlerName turns a command or callback key into a log-friendly name.
func handlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode prefers a Code() reported by the error chain and otherwise
// falls back to the transport classification.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	return strings.ToUpper(netutil.Classify(err))
}
