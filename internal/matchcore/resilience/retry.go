package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy configures RetryWithBackoff. Mirrors config.RetryPolicy without
// importing it, the way model mirrors config.Priority.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// ErrorClassifier reports whether err should be retried.
type ErrorClassifier func(err error) bool

// Delay returns the backoff duration for the 0-indexed attempt n:
// min(maxDelay, baseDelay·2ⁿ)·uniform(0.9, 1.1). Never negative, never
// above maxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	raw := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if max := float64(p.MaxDelay); raw > max {
		raw = max
	}
	jitter := 0.9 + rand.Float64()*0.2
	d := time.Duration(raw * jitter)
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d < 0 {
		d = 0
	}
	return d
}

// RetryWithBackoff runs fn, retrying up to policy.MaxRetries times while
// shouldRetry(err) holds and ctx is not done. This generalizes
// Gemini.executeWithRetry's exponential-backoff-with-cap loop to an arbitrary
// typed operation.
func RetryWithBackoff[T any](ctx context.Context, policy RetryPolicy, shouldRetry ErrorClassifier, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.Delay(attempt - 1)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !shouldRetry(err) || attempt == policy.MaxRetries {
			break
		}
	}

	return zero, fmt.Errorf("retries exhausted: %w", lastErr)
}
