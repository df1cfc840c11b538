package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrAlreadyQueued is returned by Enqueue when a job with the same key is
// waiting to run, or is running with a rerun already scheduled.
var ErrAlreadyQueued = errors.New("job already queued")

// Job is a queued background task. Jobs sharing a Key are coalesced while
// waiting. A job enqueued while its key is running is run once more afterwards.
type Job struct {
	ID       string
	Key      string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue is an in-memory job dispatcher backed by a fixed set of goroutines.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	pending map[string]*keyState
}

type keyState struct {
	running bool
	rerun   *Job
}

// NewQueue builds a queue that hands every job to handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger.With(zap.String("queue", name)),
		jobs:       make(chan Job, cfg.BufferSize),
		pending:    make(map[string]*keyState),
	}
}

// Start begins worker consumption. Calling it twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.workers))
}

// Stop cancels workers and waits for them to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped")
}

// Enqueue pushes a job onto the queue. A job whose Key is waiting is rejected
// with ErrAlreadyQueued since the waiting run has not read its data yet. A job
// whose Key is running is held and dispatched once the running job finishes.
func (q *Queue) Enqueue(job Job) error {
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.Key != "" {
		if state, ok := q.pending[job.Key]; ok {
			if !state.running || state.rerun != nil {
				q.mu.Unlock()
				return ErrAlreadyQueued
			}
			state.rerun = &job
			q.mu.Unlock()
			return nil
		}
		q.pending[job.Key] = &keyState{}
	}
	ctx := q.ctx
	q.mu.Unlock()

	return q.push(ctx, job)
}

// Pending reports how many keyed jobs are waiting or running.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) push(ctx context.Context, job Job) error {
	select {
	case <-ctx.Done():
		q.release(job)
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

func (q *Queue) release(job Job) {
	if job.Key == "" {
		return
	}
	q.mu.Lock()
	delete(q.pending, job.Key)
	q.mu.Unlock()
}

func (q *Queue) markRunning(job Job) {
	if job.Key == "" {
		return
	}
	q.mu.Lock()
	if state, ok := q.pending[job.Key]; ok {
		state.running = true
	}
	q.mu.Unlock()
}

// finish releases the key of a completed job, or dispatches the job that was
// enqueued for the key while it ran.
func (q *Queue) finish(job Job) {
	if job.Key == "" {
		return
	}
	q.mu.Lock()
	state, ok := q.pending[job.Key]
	if !ok || state.rerun == nil {
		delete(q.pending, job.Key)
		q.mu.Unlock()
		return
	}
	next := *state.rerun
	state.running = false
	state.rerun = nil
	q.mu.Unlock()

	go q.requeue(next)
}

func (q *Queue) requeue(job Job) {
	if err := q.push(q.ctx, job); err != nil {
		q.logger.Error("failed to requeue job", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.markRunning(job)
			err := q.handler(q.ctx, job)
			if err == nil {
				q.finish(job)
				continue
			}
			q.retry(job, err)
		}
	}
}

func (q *Queue) retry(job Job, err error) {
	fields := []zap.Field{
		zap.String("job_id", job.ID),
		zap.String("job_key", job.Key),
		zap.String("type", job.Type),
		zap.Error(err),
	}
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Error("job exceeded retries", append(fields, zap.Int("attempts", job.Attempt))...)
		q.finish(job)
		return
	}
	q.logger.Warn("job failed, retrying", append(fields, zap.Int("attempt", job.Attempt))...)

	// The retry reads fresh data, so it absorbs any rerun held for the key.
	if job.Key != "" {
		q.mu.Lock()
		if state, ok := q.pending[job.Key]; ok {
			state.running = false
			state.rerun = nil
		}
		q.mu.Unlock()
	}

	go func(j Job) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.release(j)
		case <-timer.C:
			q.requeue(j)
		}
	}(job)
}
