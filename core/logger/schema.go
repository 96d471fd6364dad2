package logger

import "strings"

// Field names with a fixed meaning across components.
const (
	FieldTS        = "ts"
	FieldLevel     = "level"
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldStatus    = "status"
	FieldOutcome   = "outcome"
	FieldRID       = "rid"
	FieldRIDFull   = "rid_full"
)

// Status values shared by components.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusFail    = "fail"
	StatusSkip    = "skip"
	StatusRetry   = "retry"
	StatusLimited = "rate_limited"
)

// outcomes is the closed set of outcome values; others are dropped.
var outcomes = map[string]bool{
	"ok": true, "fail": true, "cancelled": true, "rate_limited": true,
	"rejected": true, "completed": true, "stale": true, "invalid": true,
}

// maskedFields carry payout destinations and are written through Mask.
var maskedFields = map[string]bool{
	"details":     true,
	"pay_address": true,
	"wallet":      true,
	"card":        true,
}

func levelName(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return "DEBUG"
	case "", "info":
		return "INFO"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	}
	return strings.ToUpper(level)
}

func cleanStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cleanOutcome(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, outcomes[s]
}

// defaultKeyOrder puts correlation keys first, then the conversation and
// payout fields, then transport and error details. Unlisted keys follow in
// alphabetical order.
var defaultKeyOrder = []string{
	FieldTS, FieldLevel, FieldComponent, FieldEvent, FieldStatus, FieldRID, FieldRIDFull,
	"update_id", "user_id", "chat_id", "chat_type", "handler", "cb_key", FieldOutcome,
	"duration_ms", "messages", "kb",
	"step", "from_step", "to_step", "token",
	"order_id", "amount", "stars", "payout", "currency", "asset", "network", "method",
	"details", "terminal_action", "gateway_id", "pay_address", "pay_currency",
	"sessions", "evicted", "payload", "lang", "username",
	"mode", "listen", "public_url", "http_code", "db", "host", "port",
	"err", "err_kind", "err_code", "cause", "retryable", "attempt", "attempts", "backoff_ms", "delay_ms",
}
