package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"draftforge/pkg/domain"
)

func newTestLimiter(t *testing.T) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	limiter, err := NewFixedWindowLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:ratelimit")
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return limiter, mr
}

func TestLimiterAllowsWithinQuota(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		d, err := limiter.Check(ctx, "user-1", domain.OpQuestions)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
}

func TestLimiterRejectsOverQuotaWithRetryAfter(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if d, err := limiter.Check(ctx, "user-1", domain.OpTOC); err != nil || !d.Allowed {
			t.Fatalf("request %d: allowed=%v err=%v", i+1, d.Allowed, err)
		}
	}
	d, err := limiter.Check(ctx, "user-1", domain.OpTOC)
	if err != nil {
		t.Fatalf("third check: %v", err)
	}
	if d.Allowed {
		t.Fatalf("third toc request inside the window should be rejected")
	}
	if d.RetryAfterSeconds <= 0 || d.RetryAfterSeconds > 300 {
		t.Fatalf("retryAfterSeconds = %d, want within (0, 300]", d.RetryAfterSeconds)
	}
}

func TestLimiterIsolatesUsersAndOperations(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := limiter.Check(ctx, "user-1", domain.OpTOC); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if d, _ := limiter.Check(ctx, "user-2", domain.OpTOC); !d.Allowed {
		t.Fatalf("a different user must have an independent window")
	}
	if d, _ := limiter.Check(ctx, "user-1", domain.OpDraft); !d.Allowed {
		t.Fatalf("a different operation must have an independent window")
	}
}

func TestLimiterFailsClosed(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	mr.Close()
	if _, err := limiter.Check(context.Background(), "user-1", domain.OpQuestions); err == nil {
		t.Fatalf("expected error when redis is unavailable")
	}
}

func TestLimiterUnknownOperation(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	if _, err := limiter.Check(context.Background(), "user-1", domain.Operation("export")); err == nil {
		t.Fatalf("expected error for unconfigured operation")
	}
}
