package exchange

import (
	"errors"
	"fmt"
	"strings"
)

// Validation reasons reported by the Machine.
const (
	ReasonNotNumeric     = "not_numeric"
	ReasonBelowMinimum   = "below_minimum"
	ReasonAboveMaximum   = "above_maximum"
	ReasonInvalidDetails = "invalid_details"
	ReasonStaleSelection = "stale_selection"
	ReasonMenuOnly       = "menu_only"
)

// ValidationError describes user input that was refused. The session step never advances on it.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

// Code exposes the reason for handler summary logs.
func (e *ValidationError) Code() string {
	return e.Reason
}

func rejectf(reason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

var (
	// ErrGatewayTimeout indicates the gateway did not answer within the configured timeout.
	ErrGatewayTimeout = errors.New("payout gateway timeout")
	// ErrGatewayRejected indicates the gateway refused the request (4xx).
	ErrGatewayRejected = errors.New("payout gateway rejected request")
	// ErrGatewayUnavailable indicates the gateway could not be reached or failed (5xx).
	ErrGatewayUnavailable = errors.New("payout gateway unavailable")
)

// GatewayError wraps a failed gateway call.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Code classifies the failure for logs.
func (e *GatewayError) Code() string {
	switch {
	case errors.Is(e.Err, ErrGatewayTimeout):
		return "gateway_timeout"
	case errors.Is(e.Err, ErrGatewayRejected):
		return "gateway_rejected"
	case errors.Is(e.Err, ErrGatewayUnavailable):
		return "gateway_unavailable"
	}
	return "gateway_" + strings.ReplaceAll(strings.ToLower(e.Op), " ", "_")
}
