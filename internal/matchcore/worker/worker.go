// Package worker runs the asynchronous job-processing loop: a pool of
// goroutines dequeueing by priority, executing registered task bodies, and
// reporting outcomes through ack/nack, the result cache and webhooks.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	commonctx "github.com/benidevo/matchcore/internal/common/context"
	"github.com/benidevo/matchcore/internal/common/logger"
	"github.com/benidevo/matchcore/internal/matchcore/cache"
	"github.com/benidevo/matchcore/internal/matchcore/config"
	"github.com/benidevo/matchcore/internal/matchcore/matcherr"
	"github.com/benidevo/matchcore/internal/matchcore/metrics"
	"github.com/benidevo/matchcore/internal/matchcore/model"
	"github.com/benidevo/matchcore/internal/matchcore/queue"
	"github.com/benidevo/matchcore/internal/matchcore/webhook"
)

// failureRecordTTL keeps a terminal failure visible to pollers for a short
// window so clients polling by job ID see a consistent record.
const failureRecordTTL = time.Hour

// dequeueWait bounds each blocking Dequeue call so the loop can observe
// shutdown.
const dequeueWait = 2 * time.Second

// TaskFunc is one job kind's body. It returns the JSON-encoded result to
// cache and hand to the webhook.
type TaskFunc func(ctx context.Context, job model.Job) (json.RawMessage, error)

// Pool is the worker pool driving the asynchronous job loop.
type Pool struct {
	queue      *queue.Queue
	cache      cache.Cache
	dispatcher *webhook.Dispatcher
	metrics    *metrics.Registry
	cfg        config.Worker

	mu    sync.RWMutex
	tasks map[model.JobKind]TaskFunc

	stopOnce      sync.Once
	stopped       chan struct{}
	dequeueCancel context.CancelFunc
	taskCancel    context.CancelFunc
	wg            sync.WaitGroup
	log           zerolog.Logger
}

// NewPool builds a Pool. dispatcher and metricsRegistry may be nil.
func NewPool(q *queue.Queue, cacheTier cache.Cache, dispatcher *webhook.Dispatcher, metricsRegistry *metrics.Registry, cfg config.Worker) *Pool {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	if len(cfg.Priorities) == 0 {
		cfg.Priorities = []config.Priority{config.PriorityPremium, config.PriorityStandard, config.PriorityBatch}
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}
	return &Pool{
		queue:      q,
		cache:      cacheTier,
		dispatcher: dispatcher,
		metrics:    metricsRegistry,
		cfg:        cfg,
		tasks:      make(map[model.JobKind]TaskFunc),
		stopped:    make(chan struct{}),
		log:        logger.GetLogger("matchcore.worker"),
	}
}

// Register binds a task body to a job kind.
func (p *Pool) Register(kind model.JobKind, fn TaskFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks[kind] = fn
}

func (p *Pool) task(kind model.JobKind) (TaskFunc, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn, ok := p.tasks[kind]
	return fn, ok
}

// Start launches the pool's worker goroutines. They run until Stop.
func (p *Pool) Start(ctx context.Context) {
	priorities := make([]model.Priority, len(p.cfg.Priorities))
	for i, pr := range p.cfg.Priorities {
		priorities[i] = model.Priority(pr)
	}

	dequeueCtx, dequeueCancel := context.WithCancel(ctx)
	taskCtx, taskCancel := context.WithCancel(ctx)
	p.dequeueCancel = dequeueCancel
	p.taskCancel = taskCancel

	for i := 0; i < p.cfg.PoolSize; i++ {
		p.wg.Add(1)
		go p.runLoop(dequeueCtx, taskCtx, priorities)
	}
	p.log.Info().Int("pool_size", p.cfg.PoolSize).Msg("worker pool started")
}

// Stop halts dequeuing immediately, waits up to the shutdown grace for
// in-flight tasks, then forcibly cancels the rest; cancelled tasks return to
// their queues via the visibility timeout.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopped)
		if p.dequeueCancel != nil {
			p.dequeueCancel()
		}
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info().Msg("worker pool drained")
	case <-time.After(p.cfg.ShutdownGrace):
		p.log.Warn().Msg("shutdown grace elapsed, cancelling in-flight tasks")
		if p.taskCancel != nil {
			p.taskCancel()
		}
		<-done
	}
}

func (p *Pool) runLoop(dequeueCtx, taskCtx context.Context, priorities []model.Priority) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopped:
			return
		case <-dequeueCtx.Done():
			return
		default:
		}

		waitCtx, cancel := context.WithTimeout(dequeueCtx, dequeueWait)
		job, err := p.queue.Dequeue(waitCtx, priorities...)
		cancel()
		if err != nil {
			continue
		}

		p.recordQueueWait(taskCtx, job)
		p.execute(taskCtx, job)
	}
}

func (p *Pool) recordQueueWait(ctx context.Context, job model.Job) {
	if p.metrics == nil || job.StartedAt == nil {
		return
	}
	p.metrics.RecordQueueWait(ctx, string(job.Priority), job.StartedAt.Sub(job.EnqueuedAt))
}

// execute runs one job body with panic isolation and routes the outcome.
func (p *Pool) execute(ctx context.Context, job model.Job) {
	fn, ok := p.task(job.Kind)
	if !ok {
		p.finishFailure(ctx, job, matcherr.Validation("no task registered for kind %q", job.Kind), false)
		return
	}

	taskCtx, cancel := context.WithTimeout(commonctx.WithRequestID(ctx, job.ID), p.jobTimeout(job.Priority))
	defer cancel()

	result, err := p.runTask(taskCtx, fn, job)
	if err == nil {
		p.finishSuccess(ctx, job, result)
		return
	}

	// Forced shutdown cancellation: leave the job untouched so the
	// visibility timeout returns it to its queue.
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return
	}

	retryable := p.classifyRetryable(taskCtx, err)
	p.finishFailure(ctx, job, err, retryable)
}

// runTask converts a panic in the task body into an Internal error instead
// of crashing the worker.
func (p *Pool) runTask(ctx context.Context, fn TaskFunc, job model.Job) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = matcherr.Internal(fmt.Errorf("task panic: %v", r))
		}
	}()
	return fn(ctx, job)
}

// classifyRetryable maps an error class to a retry decision. A deadline hit
// inside the task counts as the visibility window closing in on us, which is
// retryable; explicit client cancellation is terminal.
func (p *Pool) classifyRetryable(taskCtx context.Context, err error) bool {
	switch matcherr.ClassOf(err) {
	case matcherr.ClassTransient, matcherr.ClassRateLimited, matcherr.ClassCircuitOpen:
		return true
	case matcherr.ClassValidation, matcherr.ClassNotFound, matcherr.ClassInternal:
		return false
	case matcherr.ClassCancelled:
		return matcherr.IsRetryable(err)
	}

	if errors.Is(err, context.DeadlineExceeded) && errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
		return true
	}
	return false
}

// jobTimeout mirrors the queue's visibility window so a task that overruns
// is cancelled just before the queue re-delivers it.
func (p *Pool) jobTimeout(priority model.Priority) time.Duration {
	return p.queue.JobTimeout(priority)
}

func (p *Pool) finishSuccess(ctx context.Context, job model.Job, result json.RawMessage) {
	if err := p.queue.Ack(job.ID); err != nil {
		// The visibility window lapsed mid-task; the job will run again.
		p.log.Warn().Err(err).Str("job_id", job.ID).Msg("ack rejected, job re-delivered")
		return
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, "result:"+job.ID, result, p.queue.ResultTTL(job.Priority)); err != nil {
			p.log.Warn().Err(err).Str("job_id", job.ID).Msg("result cache write failed")
		}
	}

	if p.metrics != nil {
		p.metrics.RecordQueueJob(ctx, string(job.Priority), string(model.JobStatusSucceeded))
	}

	p.notify(ctx, job, webhook.Payload{
		JobID:       job.ID,
		Status:      string(model.JobStatusSucceeded),
		Result:      result,
		CompletedAt: time.Now().UTC(),
	})
}

func (p *Pool) finishFailure(ctx context.Context, job model.Job, taskErr error, retryable bool) {
	status, err := p.queue.Nack(job.ID, taskErr, retryable)
	if err != nil {
		p.log.Warn().Err(err).Str("job_id", job.ID).Msg("nack rejected")
		return
	}
	if status != model.JobStatusDead {
		return
	}

	failure := webhook.ErrorBody{
		Code:    string(matcherr.ClassOf(taskErr)),
		Message: taskErr.Error(),
	}

	if p.cache != nil {
		record, _ := json.Marshal(map[string]any{"status": "failed", "error": failure})
		if err := p.cache.Set(ctx, "result:"+job.ID, json.RawMessage(record), failureRecordTTL); err != nil {
			p.log.Warn().Err(err).Str("job_id", job.ID).Msg("failure record cache write failed")
		}
	}

	if p.metrics != nil {
		p.metrics.RecordQueueJob(ctx, string(job.Priority), string(model.JobStatusDead))
	}

	p.notify(ctx, job, webhook.Payload{
		JobID:       job.ID,
		Status:      string(model.JobStatusFailed),
		Error:       &failure,
		CompletedAt: time.Now().UTC(),
	})
}

// notify fires the webhook without blocking the worker loop.
func (p *Pool) notify(ctx context.Context, job model.Job, payload webhook.Payload) {
	if p.dispatcher == nil || job.WebhookURL == "" {
		return
	}
	go func() {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
		_ = p.dispatcher.Dispatch(notifyCtx, job.WebhookURL, job.WebhookSecret, payload)
	}()
}
