package app

import (
	"errors"
	"fmt"

	"draftforge/pkg/domain"
)

// ErrSubjectNotReady is returned when generation is requested for a subject
// that has not passed readiness or still has unanswered questions.
var ErrSubjectNotReady = errors.New("subject is not ready for generation")

// ErrUnknownSubject is returned when no state exists for the subject id.
var ErrUnknownSubject = errors.New("unknown subject")

// ErrJobNotFound is returned by status lookups for ids this process never
// issued or that have expired.
var ErrJobNotFound = errors.New("job not found")

// RateLimitError reports a quota rejection. Not a generation failure: no job
// is created, and RetryAfterSeconds tells the caller exactly when the window
// resets.
type RateLimitError struct {
	Operation         domain.Operation
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %ds", e.Operation, e.RetryAfterSeconds)
}

// IsRateLimited reports whether err is a quota rejection and returns the
// retry hint.
func IsRateLimited(err error) (int, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfterSeconds, true
	}
	return 0, false
}
