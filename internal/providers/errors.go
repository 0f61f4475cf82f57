package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// AuthError indicates the provider rejected our credentials. Not retryable.
type AuthError struct {
	Provider   string
	Message    string
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// RateLimitError indicates the provider throttled or quota-limited the request.
type RateLimitError struct {
	Provider   string
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// TransientError indicates a network or server-side failure that may succeed
// on retry (5xx, timeouts, connection resets).
type TransientError struct {
	Provider string
	Message  string
	Err      error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s transient failure: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s transient failure: %s", e.Provider, e.Message)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsRateLimitError reports whether err is (or wraps) a RateLimitError.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// IsTransientError reports whether err is (or wraps) a TransientError.
func IsTransientError(err error) (*TransientError, bool) {
	var te *TransientError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// classifyHTTPError maps an HTTP status to the provider error taxonomy.
// 401/403 are credential failures; 402/429 are quota or rate limits; 5xx are
// transient. Anything else is returned as a plain error.
func classifyHTTPError(provider string, status int, message string, retryAfter time.Duration) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Provider: provider, Message: message, StatusCode: status}
	case status == http.StatusPaymentRequired || status == http.StatusTooManyRequests:
		return &RateLimitError{Provider: provider, Message: message, RetryAfter: retryAfter, StatusCode: status}
	case status >= 500:
		return &TransientError{Provider: provider, Message: fmt.Sprintf("status %d: %s", status, message)}
	default:
		return fmt.Errorf("%s request failed (status %d): %s", provider, status, message)
	}
}

// parseRetryAfter parses a Retry-After header value (seconds form).
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
