package retry

import "time"

// Policy describes a bounded exponential backoff schedule plus a predicate
// deciding which errors are worth retrying. It never sleeps; callers own the
// timer, which keeps the schedule unit-testable without real time.
type Policy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	// Retryable reports whether a failed attempt should be retried.
	// A nil predicate retries everything.
	Retryable func(error) bool
}

// ClientPolicy is the upstream-call schedule: 3 attempts, 1s doubling to a
// 10s cap.
func ClientPolicy(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: 3,
		Initial:     time.Second,
		Max:         10 * time.Second,
		Multiplier:  2,
		Retryable:   retryable,
	}
}

// WorkerPolicy is the job-reschedule schedule: 3 attempts with 1, 2 and 4
// minute delays.
func WorkerPolicy(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: 3,
		Initial:     time.Minute,
		Max:         4 * time.Minute,
		Multiplier:  2,
		Retryable:   retryable,
	}
}

// Delay returns the wait before the given retry. attempt is 1-based: Delay(1)
// is the pause after the first failure.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Initial
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// ShouldRetry reports whether another attempt is allowed after the given
// 1-based attempt number failed with err.
func (p Policy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}
