package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benidevo/matchcore/internal/matchcore/config"
	"github.com/benidevo/matchcore/internal/matchcore/matcherr"
	"github.com/benidevo/matchcore/internal/matchcore/model"
	"github.com/benidevo/matchcore/internal/matchcore/resilience"
)

func testPolicies() map[model.Priority]config.QueuePolicy {
	return map[model.Priority]config.QueuePolicy{
		model.PriorityPremium:  {Timeout: 10 * time.Minute, ResultTTL: 24 * time.Hour, MaxRetries: 5},
		model.PriorityStandard: {Timeout: 5 * time.Minute, ResultTTL: 12 * time.Hour, MaxRetries: 3},
		model.PriorityBatch:    {Timeout: 30 * time.Minute, ResultTTL: 48 * time.Hour, MaxRetries: 2},
	}
}

func testRetry() resilience.RetryPolicy {
	return resilience.RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
}

func newTestQueue(highWater int) *Queue {
	return New(testPolicies(), testRetry(), highWater)
}

func matchJob(priority model.Priority) model.Job {
	return model.Job{Kind: model.JobKindMatch, Priority: priority, Payload: []byte(`{}`)}
}

func TestQueue_EnqueueAssignsIDAndStatus(t *testing.T) {
	q := newTestQueue(0)

	id, err := q.Enqueue(context.Background(), matchJob(model.PriorityStandard))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	job, err := q.Fetch(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, job.Status)
	assert.Zero(t, job.Attempts)
}

func TestQueue_EnqueueValidates(t *testing.T) {
	q := newTestQueue(0)

	_, err := q.Enqueue(context.Background(), model.Job{Kind: model.JobKindMatch, Priority: "express"})
	assert.Equal(t, matcherr.ClassValidation, matcherr.ClassOf(err))

	_, err = q.Enqueue(context.Background(), model.Job{Kind: "transcode", Priority: model.PriorityBatch})
	assert.Equal(t, matcherr.ClassValidation, matcherr.ClassOf(err))
}

func TestQueue_Backpressure(t *testing.T) {
	q := newTestQueue(2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := q.Enqueue(ctx, matchJob(model.PriorityBatch))
		require.NoError(t, err)
	}

	_, err := q.Enqueue(ctx, matchJob(model.PriorityBatch))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, matcherr.ClassRateLimited, matcherr.ClassOf(err))

	// Other priorities are unaffected.
	_, err = q.Enqueue(ctx, matchJob(model.PriorityPremium))
	assert.NoError(t, err)
}

func TestQueue_StrictPriorityOrder(t *testing.T) {
	q := newTestQueue(0)
	ctx := context.Background()

	var batchIDs []string
	for i := 0; i < 10; i++ {
		id, err := q.Enqueue(ctx, matchJob(model.PriorityBatch))
		require.NoError(t, err)
		batchIDs = append(batchIDs, id)
	}
	premiumID, err := q.Enqueue(ctx, matchJob(model.PriorityPremium))
	require.NoError(t, err)

	// Premium enqueued last still dequeues first.
	job, err := q.Dequeue(ctx, model.PriorityPremium, model.PriorityStandard, model.PriorityBatch)
	require.NoError(t, err)
	assert.Equal(t, premiumID, job.ID)

	// Batch jobs keep FIFO order among themselves.
	for _, wantID := range batchIDs {
		job, err := q.Dequeue(ctx, model.PriorityPremium, model.PriorityStandard, model.PriorityBatch)
		require.NoError(t, err)
		assert.Equal(t, wantID, job.ID)
	}
}

func TestQueue_DequeueBlocksUntilDeadline(t *testing.T) {
	q := newTestQueue(0)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := q.Dequeue(ctx, model.PriorityPremium)
	require.Error(t, err)
	assert.Equal(t, matcherr.ClassCancelled, matcherr.ClassOf(err))
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestQueue_AckCompletes(t *testing.T) {
	q := newTestQueue(0)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, matchJob(model.PriorityStandard))
	require.NoError(t, err)

	job, err := q.Dequeue(ctx, model.PriorityStandard)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, job.Status)
	assert.Equal(t, 1, job.Attempts)

	require.NoError(t, q.Ack(id))

	stored, err := q.Fetch(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, stored.Status)
	assert.NotNil(t, stored.FinishedAt)
}

func TestQueue_NackRetriesWithBackoffThenDLQ(t *testing.T) {
	q := newTestQueue(0)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, matchJob(model.PriorityStandard))
	require.NoError(t, err)

	transient := errors.New("upstream 503")

	// 1 initial + 3 retries at standard priority.
	for attempt := 1; attempt <= 4; attempt++ {
		dequeueCtx, cancel := context.WithTimeout(ctx, time.Second)
		job, err := q.Dequeue(dequeueCtx, model.PriorityStandard)
		cancel()
		require.NoError(t, err)
		assert.Equal(t, attempt, job.Attempts)

		status, err := q.Nack(id, transient, true)
		require.NoError(t, err)
		if attempt < 4 {
			assert.Equal(t, model.JobStatusQueued, status)
		} else {
			assert.Equal(t, model.JobStatusDead, status)
		}
	}

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, id, dead[0].ID)
	assert.Equal(t, model.JobStatusDead, dead[0].Status)
	assert.Equal(t, 4, dead[0].Attempts)
	assert.Contains(t, dead[0].LastError, "upstream 503")
}

func TestQueue_NackNonRetryableGoesStraightToDLQ(t *testing.T) {
	q := newTestQueue(0)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, matchJob(model.PriorityPremium))
	require.NoError(t, err)

	_, err = q.Dequeue(ctx, model.PriorityPremium)
	require.NoError(t, err)

	status, err := q.Nack(id, errors.New("invalid payload"), false)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusDead, status)
	assert.Len(t, q.DeadLetters(), 1)
}

func TestQueue_NackSchedulesDelayedRetry(t *testing.T) {
	q := newTestQueue(0)
	retry := resilience.RetryPolicy{MaxRetries: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	q.retry = retry
	ctx := context.Background()

	id, err := q.Enqueue(ctx, matchJob(model.PriorityStandard))
	require.NoError(t, err)

	_, err = q.Dequeue(ctx, model.PriorityStandard)
	require.NoError(t, err)
	_, err = q.Nack(id, errors.New("flaky"), true)
	require.NoError(t, err)

	// The retry is delayed at least baseDelay·0.9; an immediate dequeue
	// finds nothing runnable.
	quickCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	_, err = q.Dequeue(quickCtx, model.PriorityStandard)
	cancel()
	require.Error(t, err)

	// After the backoff window it runs again.
	laterCtx, cancel := context.WithTimeout(ctx, time.Second)
	job, err := q.Dequeue(laterCtx, model.PriorityStandard)
	cancel()
	require.NoError(t, err)
	assert.Equal(t, 2, job.Attempts)
}

func TestQueue_VisibilityTimeoutReturnsJob(t *testing.T) {
	q := newTestQueue(0)
	ctx := context.Background()

	// Shrink the premium visibility window for the test.
	q.policies[model.PriorityPremium] = config.QueuePolicy{
		Timeout: 50 * time.Millisecond, ResultTTL: time.Hour, MaxRetries: 5,
	}

	id, err := q.Enqueue(ctx, matchJob(model.PriorityPremium))
	require.NoError(t, err)

	_, err = q.Dequeue(ctx, model.PriorityPremium)
	require.NoError(t, err)

	// Worker vanishes; after the window the job is dequeueable again.
	time.Sleep(80 * time.Millisecond)

	job, err := q.Dequeue(ctx, model.PriorityPremium)
	require.NoError(t, err)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, 2, job.Attempts)

	stats := q.Stats(model.PriorityPremium)
	assert.Equal(t, 1, stats.Running)
	assert.Equal(t, 0, stats.Pending)
}

func TestQueue_Stats(t *testing.T) {
	q := newTestQueue(0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(ctx, matchJob(model.PriorityBatch))
		require.NoError(t, err)
	}
	_, err := q.Dequeue(ctx, model.PriorityBatch)
	require.NoError(t, err)

	stats := q.Stats(model.PriorityBatch)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Running)
	assert.Equal(t, 0, stats.Dead)
}

func TestQueue_FetchUnknown(t *testing.T) {
	q := newTestQueue(0)
	_, err := q.Fetch("nope")
	assert.Equal(t, matcherr.ClassNotFound, matcherr.ClassOf(err))
}
