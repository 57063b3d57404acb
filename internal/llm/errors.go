package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Error classifies completion call failures. RateLimited failures trigger
// back-off instead of consuming a validation attempt; Transient failures
// are retryable within the attempt budget.
type Error struct {
	StatusCode  int
	Message     string
	RateLimited bool
	Transient   bool
	Cause       error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "llm error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsRateLimited reports whether the completion service returned HTTP 429.
func IsRateLimited(err error) bool {
	var llmErr *Error
	return errors.As(err, &llmErr) && llmErr.RateLimited
}

// IsTransient reports whether an error should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
