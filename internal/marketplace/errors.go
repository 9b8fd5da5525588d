package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// SubmitError classifies marketplace call failures for the retry state
// machine. HTTP ≥500, timeouts, and unparseable bodies are transient;
// explicit rejections never surface as SubmitError.
type SubmitError struct {
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *SubmitError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "marketplace error")

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

func (e *SubmitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether a submission failure should be retried.
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

	var submitErr *SubmitError
	if errors.As(err, &submitErr) {
		return submitErr.Transient
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
