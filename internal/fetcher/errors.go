package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorType categorizes why a quote request failed.
type ErrorType string

const (
	ErrorTypeNetwork    ErrorType = "network"    // connection refused, DNS, reset
	ErrorTypeRateLimit  ErrorType = "rate_limit" // HTTP 429 or an in-band throttle notice
	ErrorTypeServer     ErrorType = "server"     // HTTP 5xx
	ErrorTypeClient     ErrorType = "client"     // other HTTP 4xx, rejected symbol or key
	ErrorTypeValidation ErrorType = "validation" // response arrived but its series is unusable
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// transient lists the error types a later run may not hit again.
var transient = map[ErrorType]bool{
	ErrorTypeNetwork:   true,
	ErrorTypeRateLimit: true,
	ErrorTypeServer:    true,
	ErrorTypeTimeout:   true,
}

// FetchError is the structured cause attached to a failed Outcome.
type FetchError struct {
	Type       ErrorType
	Retryable  bool
	StatusCode int
	Message    string
	Cause      error
}

func newFetchError(t ErrorType, status int, msg string, cause error) *FetchError {
	return &FetchError{
		Type:       t,
		Retryable:  transient[t],
		StatusCode: status,
		Message:    msg,
		Cause:      cause,
	}
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

func NewNetworkError(cause error) *FetchError {
	return newFetchError(ErrorTypeNetwork, 0, "network request failed", cause)
}

func NewRateLimitError(statusCode int) *FetchError {
	return newFetchError(ErrorTypeRateLimit, statusCode, "rate limit exceeded", nil)
}

func NewServerError(statusCode int) *FetchError {
	return newFetchError(ErrorTypeServer, statusCode, "server returned an error", nil)
}

// NewClientError reports a request the provider rejected, e.g. an unknown
// symbol or a bad API key.
func NewClientError(statusCode int, message string) *FetchError {
	return newFetchError(ErrorTypeClient, statusCode, message, nil)
}

// NewValidationError reports a response whose series cannot be normalized.
func NewValidationError(message string) *FetchError {
	return newFetchError(ErrorTypeValidation, 0, message, nil)
}

func NewTimeoutError(cause error) *FetchError {
	return newFetchError(ErrorTypeTimeout, 0, "request timed out", cause)
}

// ClassifyHTTPError maps a non-success status code onto the taxonomy.
func ClassifyHTTPError(statusCode int) *FetchError {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitError(statusCode)
	case statusCode >= http.StatusInternalServerError:
		return NewServerError(statusCode)
	case statusCode >= http.StatusBadRequest:
		return NewClientError(statusCode, fmt.Sprintf("client error: HTTP %d", statusCode))
	default:
		return newFetchError(ErrorTypeUnknown, statusCode, fmt.Sprintf("unexpected status code: %d", statusCode), nil)
	}
}

// ClassifyRequestError classifies a transport-level error: deadlines and
// timeouts become timeout errors, anything else a network error.
func ClassifyRequestError(err error) *FetchError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewTimeoutError(err)
	}
	return NewNetworkError(err)
}

// IsRetryable reports whether err wraps a FetchError marked retryable.
// Nothing is retried within a run; the flag only appears in failure notices.
func IsRetryable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Retryable
}
