package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Breaker is a finite-state circuit breaker. It opens after a run of
// consecutive failures, rejects immediately while open, and after the
// cool-down admits exactly one probe call to test recovery.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	failureThreshold int
	coolDown         time.Duration
	openedAt         time.Time
	probeInFlight    bool
	now              func() time.Time
}

// Option overrides a Breaker default.
type Option func(*Breaker)

// WithClock injects the time source, used by tests to advance the cool-down
// deterministically.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// WithCoolDown sets the open-state duration before a probe is admitted.
func WithCoolDown(d time.Duration) Option {
	return func(b *Breaker) { b.coolDown = d }
}

// WithFailureThreshold sets how many consecutive failures open the breaker.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) { b.failureThreshold = n }
}

// New returns a closed breaker. Defaults: 5 consecutive failures to open,
// 45s cool-down.
func New(opts ...Option) *Breaker {
	b := &Breaker{
		state:            StateClosed,
		failureThreshold: 5,
		coolDown:         45 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether a call may proceed. In half-open state only the
// first caller gets through; concurrent callers are rejected until the probe
// reports back.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.coolDown {
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.probeInFlight = true
		return nil
	case StateHalfOpen:
		if b.probeInFlight {
			return ErrOpen
		}
		b.probeInFlight = true
		return nil
	}
	return nil
}

// Success records a completed call. A successful probe closes the breaker
// and clears the failure run.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probeInFlight = false
	b.state = StateClosed
}

// Failure records a failed call. In half-open state the failed probe
// re-opens the breaker and restarts the cool-down.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeInFlight = false
	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.openedAt = b.now()
		return
	}
	b.failures++
	if b.failures >= b.failureThreshold {
		b.state = StateOpen
		b.openedAt = b.now()
		b.failures = 0
	}
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
