package oracle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// RateLimitError indicates an oracle provider returned HTTP 429 or an
// equivalent quota error.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}

// TimeoutError indicates a single oracle call ran past its deadline.
type TimeoutError struct {
	Provider string
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Provider, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx provider response other than a rate limit.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// MalformedResponseError indicates the oracle answered but the judgement
// could not be read. It is never retried.
type MalformedResponseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed oracle response: %s: %v (raw: %s)", e.Reason, e.Err, truncate(e.Raw, 200))
	}
	return fmt.Sprintf("malformed oracle response: %s (raw: %s)", e.Reason, truncate(e.Raw, 200))
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether another attempt at the same call may succeed.
// Cancellation of the caller's context is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var (
		rl  *RateLimitError
		to  *TimeoutError
		se  *StatusError
		mal *MalformedResponseError
	)
	switch {
	case errors.As(err, &mal):
		return false
	case errors.As(err, &rl), errors.As(err, &to):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.As(err, &se):
		return se.StatusCode >= http.StatusInternalServerError
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ClassifyTransportError turns an HTTP client failure into a TimeoutError
// when the request deadline, not the caller, ended the call.
func ClassifyTransportError(ctx context.Context, provider string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Provider: provider, Err: err}
	}
	return fmt.Errorf("calling %s API: %w", provider, err)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
