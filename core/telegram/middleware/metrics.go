package middleware

import (
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/starsbot/core/telegram/helpers"
)

// MessageMetricsMiddleware installs per-update reply counters read by the
// handler summary log.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		tghelpers.ResetOutbound(c)
		return next(c)
	}
}
