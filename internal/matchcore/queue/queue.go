// Package queue implements the in-memory priority job queue: three fixed
// priority levels with per-priority timeouts, retry budgets, a visibility
// window for dequeued jobs, and a dead-letter queue for exhausted ones.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/benidevo/matchcore/internal/common/logger"
	"github.com/benidevo/matchcore/internal/matchcore/config"
	"github.com/benidevo/matchcore/internal/matchcore/matcherr"
	"github.com/benidevo/matchcore/internal/matchcore/model"
	"github.com/benidevo/matchcore/internal/matchcore/resilience"
)

// ErrQueueFull is wrapped into the backpressure error returned when a
// priority's pending count exceeds the high-water mark.
var ErrQueueFull = errors.New("queue full")

// priorityOrder fixes the strict dequeue precedence.
var priorityOrder = []model.Priority{model.PriorityPremium, model.PriorityStandard, model.PriorityBatch}

// pollInterval bounds how long a blocked Dequeue sleeps between scans when
// no enqueue wakes it; delayed retries and visibility expiries become
// runnable without an event.
const pollInterval = 50 * time.Millisecond

// runningJob tracks a dequeued job and its visibility deadline.
type runningJob struct {
	job      *model.Job
	deadline time.Time
}

// Stats is a per-priority snapshot.
type Stats struct {
	Pending int `json:"pending"`
	Running int `json:"running"`
	Dead    int `json:"dead"`
}

// Queue is the in-memory priority job queue. All state is guarded by one
// mutex; operations
// are short and never block while holding it.
type Queue struct {
	mu       sync.Mutex
	pending  map[model.Priority][]*model.Job
	running  map[string]*runningJob
	dead     []*model.Job
	byID     map[string]*model.Job
	policies map[model.Priority]config.QueuePolicy
	retry    resilience.RetryPolicy

	highWater int
	notify    chan struct{}
	log       zerolog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// New builds a Queue from the per-priority policies, the retry backoff
// policy and the backpressure high-water mark.
func New(policies map[model.Priority]config.QueuePolicy, retry resilience.RetryPolicy, highWater int) *Queue {
	if highWater <= 0 {
		highWater = 10_000
	}
	return &Queue{
		pending:   make(map[model.Priority][]*model.Job),
		running:   make(map[string]*runningJob),
		byID:      make(map[string]*model.Job),
		policies:  policies,
		retry:     retry,
		highWater: highWater,
		notify:    make(chan struct{}, 1),
		log:       logger.GetLogger("matchcore.queue"),
		now:       time.Now,
	}
}

func (q *Queue) policy(p model.Priority) config.QueuePolicy {
	if policy, ok := q.policies[p]; ok {
		return policy
	}
	// Unknown priorities fall back to the standard profile.
	return config.QueuePolicy{Timeout: 5 * time.Minute, ResultTTL: 12 * time.Hour, MaxRetries: 3}
}

// Enqueue validates, assigns an ID and appends the job to its priority
// queue. Backpressure applies per priority.
func (q *Queue) Enqueue(_ context.Context, job model.Job) (string, error) {
	switch job.Priority {
	case model.PriorityPremium, model.PriorityStandard, model.PriorityBatch:
	default:
		return "", matcherr.Validation("unknown priority %q", job.Priority)
	}
	switch job.Kind {
	case model.JobKindParse, model.JobKindMatch, model.JobKindParseAndMatch:
	default:
		return "", matcherr.Validation("unknown job kind %q", job.Kind)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending[job.Priority]) >= q.highWater {
		return "", matcherr.RateLimited(ErrQueueFull, 0)
	}

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = model.JobStatusQueued
	job.EnqueuedAt = q.now()
	job.NextRunAt = job.EnqueuedAt

	stored := job
	q.pending[job.Priority] = append(q.pending[job.Priority], &stored)
	q.byID[stored.ID] = &stored

	q.wake()
	return stored.ID, nil
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Dequeue blocks until a job is available on one of the supplied priorities
// or ctx is done. Priorities are checked in the strict premium → standard →
// batch order regardless of argument order; within a queue, FIFO.
func (q *Queue) Dequeue(ctx context.Context, priorities ...model.Priority) (model.Job, error) {
	wanted := make(map[model.Priority]bool, len(priorities))
	for _, p := range priorities {
		wanted[p] = true
	}

	for {
		if job, ok := q.tryDequeue(wanted); ok {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return model.Job{}, matcherr.Cancelled(ctx.Err(), false)
		case <-q.notify:
		case <-time.After(pollInterval):
		}
	}
}

func (q *Queue) tryDequeue(wanted map[model.Priority]bool) (model.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reclaimExpiredLocked()

	now := q.now()
	for _, priority := range priorityOrder {
		if !wanted[priority] {
			continue
		}
		queue := q.pending[priority]
		for i, job := range queue {
			if job.NextRunAt.After(now) {
				continue
			}

			q.pending[priority] = append(queue[:i:i], queue[i+1:]...)

			job.Status = model.JobStatusRunning
			job.Attempts++
			startedAt := now
			job.StartedAt = &startedAt

			q.running[job.ID] = &runningJob{
				job:      job,
				deadline: now.Add(q.policy(priority).Timeout),
			}
			return *job, true
		}
	}
	return model.Job{}, false
}

// reclaimExpiredLocked returns jobs whose visibility window lapsed to the
// head of their queues. The attempt spent stays counted; at-least-once
// delivery means task bodies must be idempotent.
func (q *Queue) reclaimExpiredLocked() {
	now := q.now()
	for id, r := range q.running {
		if now.Before(r.deadline) {
			continue
		}

		delete(q.running, id)
		job := r.job

		if job.Attempts > q.policy(job.Priority).MaxRetries {
			q.moveToDeadLocked(job, "visibility timeout after max retries")
			continue
		}

		job.Status = model.JobStatusQueued
		job.StartedAt = nil
		job.NextRunAt = now
		q.pending[job.Priority] = append([]*model.Job{job}, q.pending[job.Priority]...)
		q.log.Warn().Str("job_id", id).Int("attempts", job.Attempts).
			Msg("visibility timeout, job returned to queue")
	}
}

func (q *Queue) moveToDeadLocked(job *model.Job, lastError string) {
	job.Status = model.JobStatusDead
	if lastError != "" {
		job.LastError = lastError
	}
	finishedAt := q.now()
	job.FinishedAt = &finishedAt
	q.dead = append(q.dead, job)
}

// Ack marks a running job succeeded. Results live in the cache tier keyed by
// job ID; the queue tracks lifecycle only.
func (q *Queue) Ack(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	r, ok := q.running[id]
	if !ok {
		return matcherr.NotFound("job %s is not running", id)
	}
	delete(q.running, id)

	r.job.Status = model.JobStatusSucceeded
	finishedAt := q.now()
	r.job.FinishedAt = &finishedAt
	return nil
}

// Nack reports a failed attempt. Retryable failures within budget are
// re-inserted with exponential-backoff scheduling; the rest go to the DLQ.
// The returned status tells the caller whether the job is terminal.
func (q *Queue) Nack(id string, jobErr error, retryable bool) (model.JobStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	r, ok := q.running[id]
	if !ok {
		return "", matcherr.NotFound("job %s is not running", id)
	}
	delete(q.running, id)

	job := r.job
	if jobErr != nil {
		job.LastError = jobErr.Error()
	}

	if !retryable || job.Attempts > q.policy(job.Priority).MaxRetries {
		q.moveToDeadLocked(job, job.LastError)
		return model.JobStatusDead, nil
	}

	job.Status = model.JobStatusQueued
	job.StartedAt = nil
	job.NextRunAt = q.now().Add(q.retry.Delay(job.Attempts - 1))
	q.pending[job.Priority] = append(q.pending[job.Priority], job)
	q.wake()
	return model.JobStatusQueued, nil
}

// Fetch returns a copy of the job by ID.
func (q *Queue) Fetch(id string) (model.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.byID[id]
	if !ok {
		return model.Job{}, matcherr.NotFound("job %s not found", id)
	}
	return *job, nil
}

// Stats snapshots one priority's depth.
func (q *Queue) Stats(priority model.Priority) Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reclaimExpiredLocked()

	running := 0
	for _, r := range q.running {
		if r.job.Priority == priority {
			running++
		}
	}
	dead := 0
	for _, job := range q.dead {
		if job.Priority == priority {
			dead++
		}
	}
	return Stats{
		Pending: len(q.pending[priority]),
		Running: running,
		Dead:    dead,
	}
}

// DeadLetters returns a copy of the DLQ contents.
func (q *Queue) DeadLetters() []model.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.Job, len(q.dead))
	for i, job := range q.dead {
		out[i] = *job
	}
	return out
}

// ResultTTL exposes the per-priority result retention for callers caching
// results.
func (q *Queue) ResultTTL(priority model.Priority) time.Duration {
	return q.policy(priority).ResultTTL
}

// JobTimeout exposes the per-priority visibility window so workers can bound
// task execution to it.
func (q *Queue) JobTimeout(priority model.Priority) time.Duration {
	return q.policy(priority).Timeout
}
