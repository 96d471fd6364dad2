package logger

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Status maps err to the status field value.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// Took returns the time elapsed since start, rounded to milliseconds.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds d to the millisecond; negative durations become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins at most limit values with ", " and reports whether any were cut.
func SummarizeStrings(values []string, limit int) (string, bool) {
	if limit < 0 {
		limit = 0
	}
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	return strings.Join(values[:limit], ", "), true
}

// Mask hides the middle of payout details such as wallet addresses or card
// numbers, keeping four runes at each end. Short values are fully masked.
func Mask(s string) string {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return ""
	}
	if n <= 10 {
		return strings.Repeat("*", n)
	}
	r := []rune(s)
	return string(r[:4]) + "…" + string(r[n-4:])
}
