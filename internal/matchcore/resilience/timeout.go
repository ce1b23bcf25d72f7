package resilience

import (
	"context"
	"time"
)

// Timeout runs fn with a derived context cancelled after duration, so
// cancellation propagates to any sub-operation fn starts.
func Timeout[T any](ctx context.Context, duration time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()
	return fn(ctx)
}
