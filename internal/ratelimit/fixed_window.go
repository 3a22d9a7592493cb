package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"draftforge/pkg/domain"
)

// fixedWindowScript atomically increments the window counter and, when the
// counter is over quota, reports the remaining window in milliseconds so the
// caller can surface a precise retry hint.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// Limit is a per-operation request quota over a fixed window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Limits returns the hard-coded per-operation quotas.
func Limits() map[domain.Operation]Limit {
	return map[domain.Operation]Limit{
		domain.OpReadiness:        {Requests: 10, Window: time.Minute},
		domain.OpQuestions:        {Requests: 5, Window: time.Minute},
		domain.OpTOC:              {Requests: 2, Window: 5 * time.Minute},
		domain.OpChapterQuestions: {Requests: 5, Window: time.Minute},
		domain.OpDraft:            {Requests: 5, Window: time.Hour},
	}
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed           bool
	RetryAfterSeconds int
}

// FixedWindowLimiter limits requests per (user, operation) in fixed time
// windows. Counters live in Redis so quotas stay correct across process
// instances; running more than one instance against local counters would
// multiply every limit by the instance count.
type FixedWindowLimiter struct {
	client *redis.Client
	prefix string
	limits map[domain.Operation]Limit
}

// NewFixedWindowLimiter creates a Redis-backed limiter with the standard
// per-operation quotas.
func NewFixedWindowLimiter(client *redis.Client, prefix string) (*FixedWindowLimiter, error) {
	if client == nil {
		return nil, errors.New("rate limiter redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "draftforge:ratelimit"
	}
	return &FixedWindowLimiter{
		client: client,
		prefix: prefix,
		limits: Limits(),
	}, nil
}

// Check increments the caller's window counter and reports whether the
// request is within quota. On Redis failures it fails closed.
func (l *FixedWindowLimiter) Check(ctx context.Context, userID string, op domain.Operation) (Decision, error) {
	limit, ok := l.limits[op]
	if !ok {
		return Decision{}, fmt.Errorf("no rate limit configured for operation %q", op)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "unknown"
	}
	windowMs := limit.Window.Milliseconds()
	windowSlot := time.Now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%s:%d", l.prefix, userID, op, windowSlot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	res, err := fixedWindowScript.Run(ctx, l.client, []string{key}, windowMs).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit check: unexpected script reply of length %d", len(res))
	}
	count, ttlMs := res[0], res[1]
	if count <= int64(limit.Requests) {
		return Decision{Allowed: true}, nil
	}
	retryAfter := int((ttlMs + 999) / 1000)
	if retryAfter < 1 {
		retryAfter = 1
	}
	return Decision{Allowed: false, RetryAfterSeconds: retryAfter}, nil
}
