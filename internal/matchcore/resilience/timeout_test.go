package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeout_CancelsSlowOperation(t *testing.T) {
	_, err := Timeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) (string, error) {
		select {
		case <-time.After(time.Second):
			return "too slow", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimeout_ReturnsResultWhenFast(t *testing.T) {
	result, err := Timeout(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 7, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 7, result)
}
