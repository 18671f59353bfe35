package engine

import (
	"context"
	"errors"
	"time"

	"taskmirror/remote"
)

// RetryPolicy re-runs an operation with exponential backoff while the error
// stays retriable. Shared by the upsert executor and the duplicate sweep.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration

	// sleep is a test hook; nil means a context-aware timer sleep
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy builds a policy with sane floors
func NewRetryPolicy(maxAttempts int, baseBackoff time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRetries
	}
	if baseBackoff <= 0 {
		baseBackoff = DefaultBaseBackoff
	}
	return RetryPolicy{MaxAttempts: maxAttempts, BaseBackoff: baseBackoff}
}

// Backoff returns the delay before the given retry attempt (1-based):
// base * 2^(attempt-1).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Do runs op, retrying while isRetriable(err) holds, up to MaxAttempts total
// attempts. When the server supplies a Retry-After hint longer than the
// computed backoff, the hint wins. Returns the last error on exhaustion.
func (p RetryPolicy) Do(ctx context.Context, isRetriable func(error) bool, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isRetriable(lastErr) || attempt == p.MaxAttempts {
			return lastErr
		}

		delay := p.Backoff(attempt)
		var apiErr *remote.APIError
		if errors.As(lastErr, &apiErr) && apiErr.RetryAfter > delay {
			delay = apiErr.RetryAfter
		}
		if err := p.doSleep(ctx, delay); err != nil {
			return lastErr
		}
	}
	return lastErr
}

func (p RetryPolicy) doSleep(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
