package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benidevo/matchcore/internal/matchcore/matcherr"
)

var errUpstream = errors.New("upstream down")

// compose runs fn as Retry(CircuitBreaker(Timeout(fn))), the order every
// fully guarded external call uses.
func compose[T any](ctx context.Context, policy RetryPolicy, b *CircuitBreaker, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	return RetryWithBackoff(ctx, policy, matcherr.IsRetryable, func(ctx context.Context) (T, error) {
		return Execute(b, func() (T, error) {
			return Timeout(ctx, timeout, fn)
		})
	})
}

func TestCompose_TimeoutInsideRetryCountsAsOneFailure(t *testing.T) {
	b := NewCircuitBreaker("compose-test", 5, 30*time.Second, 2)
	policy := RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	calls := 0
	_, err := compose(context.Background(), policy, b, 10*time.Millisecond, func(ctx context.Context) (int, error) {
		calls++
		<-ctx.Done()
		return 0, matcherr.Cancelled(ctx.Err(), false)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateClosed, b.State(), "a single timeout is one failure, not five")
}

func TestCompose_RetriesCountIndividually(t *testing.T) {
	b := NewCircuitBreaker("compose-test", 5, 30*time.Second, 2)
	policy := RetryPolicy{MaxRetries: 4, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	_, err := compose(context.Background(), policy, b, time.Second, func(ctx context.Context) (int, error) {
		calls++
		return 0, matcherr.Transient(errUpstream)
	})
	require.Error(t, err)
	assert.Equal(t, 5, calls, "1 initial + 4 retries")
	assert.Equal(t, StateOpen, b.State(), "each attempt feeds the breaker")
}

func TestCompose_OpenBreakerShortCircuitsRemainingRetries(t *testing.T) {
	b := NewCircuitBreaker("compose-test", 2, 30*time.Second, 2)
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	_, err := compose(context.Background(), policy, b, time.Second, func(ctx context.Context) (int, error) {
		calls++
		return 0, matcherr.Transient(errUpstream)
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls, "attempts after the breaker opens are rejected without running fn")

	var me *matcherr.Error
	require.True(t, matcherr.As(err, &me))
	assert.Equal(t, matcherr.ClassCircuitOpen, me.Class)
}
