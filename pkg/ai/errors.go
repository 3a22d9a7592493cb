package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// TransientError marks a failure worth retrying: upstream timeouts, 5xx
// responses, and 429 throttling. RetryAfter is non-zero when the upstream
// supplied an explicit Retry-After value.
type TransientError struct {
	Code       string
	RetryAfter time.Duration
	message    string
}

func (e *TransientError) Error() string { return e.message }

// NewTransientError builds a retryable error with the given code.
func NewTransientError(code, message string) *TransientError {
	return &TransientError{Code: code, message: message}
}

// PermanentError marks a failure that retrying cannot fix, such as a 4xx
// validation rejection. Reason names the offending field or input when known.
type PermanentError struct {
	Code    string
	Reason  string
	message string
}

func (e *PermanentError) Error() string { return e.message }

// NewPermanentError builds a non-retryable error. reason names the offending
// field or input when known.
func NewPermanentError(code, reason, message string) *PermanentError {
	return &PermanentError{Code: code, Reason: reason, message: message}
}

// SystemError marks a local resource failure: breaker open, pool exhausted.
// CorrelationID ties the caller-visible message to operator logs.
type SystemError struct {
	CorrelationID string
	message       string
}

func (e *SystemError) Error() string { return e.message }

// ErrorCode extracts the machine-readable code from a classified error,
// falling back to "internal" for anything outside the taxonomy.
func ErrorCode(err error) string {
	var te *TransientError
	if errors.As(err, &te) {
		return te.Code
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	var se *SystemError
	if errors.As(err, &se) {
		return "system"
	}
	return "internal"
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is a non-retryable upstream rejection.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// RetryAfter extracts an upstream-provided retry hint, or zero.
func RetryAfter(err error) time.Duration {
	var te *TransientError
	if errors.As(err, &te) {
		return te.RetryAfter
	}
	return 0
}

// classifyHTTPStatus maps an upstream response status to the error taxonomy.
// Messages carry the status only, never the upstream body.
func classifyHTTPStatus(status int, header http.Header) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &TransientError{
			Code:       "upstream_throttled",
			RetryAfter: parseRetryAfter(header.Get("Retry-After")),
			message:    "upstream throttled the request (429)",
		}
	case status >= 500:
		return &TransientError{
			Code:    "upstream_unavailable",
			message: fmt.Sprintf("upstream returned status %d", status),
		}
	case status >= 400:
		return &PermanentError{
			Code:    "upstream_rejected",
			message: fmt.Sprintf("upstream rejected the request with status %d", status),
		}
	}
	return nil
}

// classifyTransportErr maps request-level failures. Timeouts and context
// deadlines are transient; a cancelled context propagates unchanged.
func classifyTransportErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TransientError{Code: "upstream_timeout", message: "upstream call timed out"}
	}
	return &TransientError{Code: "upstream_unreachable", message: "upstream call failed"}
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
