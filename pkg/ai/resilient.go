package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"draftforge/internal/breaker"
	"draftforge/internal/retry"
	"draftforge/internal/util"
	"draftforge/pkg/domain"
)

// CompletionParams tunes a single resilient completion call.
type CompletionParams struct {
	Operation    domain.Operation
	SystemPrompt string
}

// ResilientClient wraps a TextGenerator with a circuit breaker, bounded
// retry with exponential backoff, and per-operation total timeouts. Only
// transient failures are retried; permanent rejections propagate on the
// first attempt.
type ResilientClient struct {
	generator TextGenerator
	breaker   *breaker.Breaker
	policy    retry.Policy
	sleep     func(ctx context.Context, d time.Duration) error
}

// ClientOption overrides a ResilientClient default.
type ClientOption func(*ResilientClient)

// WithBreaker injects the circuit breaker, used by tests for deterministic
// clocks.
func WithBreaker(b *breaker.Breaker) ClientOption {
	return func(c *ResilientClient) { c.breaker = b }
}

// WithRetryPolicy overrides the default client schedule.
func WithRetryPolicy(p retry.Policy) ClientOption {
	return func(c *ResilientClient) { c.policy = p }
}

// WithSleep injects the backoff sleeper so tests run without real delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *ResilientClient) { c.sleep = sleep }
}

// NewResilientClient wraps generator with the standard resilience stack.
func NewResilientClient(generator TextGenerator, opts ...ClientOption) *ResilientClient {
	c := &ResilientClient{
		generator: generator,
		breaker:   breaker.New(),
		policy:    retry.ClientPolicy(IsTransient),
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete runs one completion through the breaker and retry schedule.
// The returned error is one of TransientError (retries exhausted),
// PermanentError, SystemError (breaker open), or the caller's context error.
func (c *ResilientClient) Complete(ctx context.Context, prompt string, params CompletionParams) (string, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := c.breaker.Allow(); err != nil {
			corrID := util.NewID()
			return "", &SystemError{
				CorrelationID: corrID,
				message:       fmt.Sprintf("generation temporarily unavailable (ref %s)", corrID),
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, operationTimeout(params.Operation))
		text, err := c.generator.GenerateText(callCtx, params.SystemPrompt, prompt)
		cancel()
		if err == nil {
			c.breaker.Success()
			return text, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.breaker.Failure()
		lastErr = err

		if !c.policy.ShouldRetry(attempt, err) {
			return "", lastErr
		}
		delay := c.policy.Delay(attempt)
		if hint := RetryAfter(err); hint > 0 {
			delay = hint
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

// operationTimeout is the hard per-call deadline, independent of the
// breaker's own failure counting.
func operationTimeout(op domain.Operation) time.Duration {
	switch op {
	case domain.OpReadiness, domain.OpQuestions, domain.OpChapterQuestions:
		return 30 * time.Second
	default:
		return 60 * time.Second
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
