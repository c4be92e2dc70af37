package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Job represents a queued background task. ID identifies the unit of work and
// is used to drop duplicate submissions while a job is pending.
type Job struct {
	ID       string
	Type     string
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. A non-nil error schedules a retry.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers       int
	BufferSize    int
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Logger        *zap.Logger
}

// Stats is a point-in-time view of queue activity.
type Stats struct {
	Tracked   int    `json:"tracked"`
	Running   int64  `json:"running"`
	Processed uint64 `json:"processed"`
	Retried   uint64 `json:"retried"`
	Abandoned uint64 `json:"abandoned"`
}

// Queue dispatches jobs to a fixed worker pool. A job ID is tracked from
// Enqueue until it succeeds or exhausts its retries; enqueueing a tracked ID
// again is a no-op. Retries back off exponentially up to MaxRetryDelay.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	tracked map[string]struct{}

	running   atomic.Int64
	processed atomic.Uint64
	retried   atomic.Uint64
	abandoned atomic.Uint64
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = 30 * cfg.RetryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		jobs:    make(chan Job, cfg.BufferSize),
		tracked: make(map[string]struct{}),
	}
}

// Start launches the workers. Calling it again is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers), zap.Int("max_retries", q.cfg.MaxRetries))
}

// Stop cancels workers and waits for in-flight jobs to return. Jobs still
// buffered are dropped; callers recover them from durable state on restart.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()

	stats := q.Stats()
	q.logger.Info("queue stopped",
		zap.Uint64("processed", stats.Processed),
		zap.Uint64("retried", stats.Retried),
		zap.Uint64("abandoned", stats.Abandoned),
		zap.Int("dropped", stats.Tracked),
	)
}

// Enqueue schedules a job, blocking while the buffer is full. A job whose ID
// is already pending or running is ignored.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.ID != "" {
		if _, dup := q.tracked[job.ID]; dup {
			q.mu.Unlock()
			q.logger.Debug("job already queued", zap.String("job_id", job.ID))
			return nil
		}
		q.tracked[job.ID] = struct{}{}
	}
	q.mu.Unlock()

	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	if err := q.push(job); err != nil {
		q.release(job.ID)
		return err
	}
	return nil
}

// Stats reports current counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	tracked := len(q.tracked)
	q.mu.Unlock()
	return Stats{
		Tracked:   tracked,
		Running:   q.running.Load(),
		Processed: q.processed.Load(),
		Retried:   q.retried.Load(),
		Abandoned: q.abandoned.Load(),
	}
}

func (q *Queue) push(job Job) error {
	select {
	case <-q.ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, q.ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

func (q *Queue) release(id string) {
	if id == "" {
		return
	}
	q.mu.Lock()
	delete(q.tracked, id)
	q.mu.Unlock()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.run(job); err != nil {
				q.retry(job, err)
				continue
			}
			q.processed.Add(1)
			q.release(job.ID)
		}
	}
}

func (q *Queue) run(job Job) (err error) {
	q.running.Add(1)
	defer q.running.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return q.handler(q.ctx, job)
}

func (q *Queue) retry(job Job, err error) {
	job.Attempt++
	fields := []zap.Field{zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt), zap.Error(err)}
	if job.Attempt > q.cfg.MaxRetries {
		q.abandoned.Add(1)
		q.release(job.ID)
		q.logger.Error("job exceeded retries", fields...)
		return
	}
	q.retried.Add(1)

	delay := q.backoff(job.Attempt)
	q.logger.Warn("job failed, retrying", append(fields, zap.Duration("delay", delay))...)
	go func(j Job) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.push(j); err != nil {
				q.release(j.ID)
				q.logger.Error("failed to requeue job", zap.String("job_id", j.ID), zap.Error(err))
			}
		}
	}(job)
}

func (q *Queue) backoff(attempt int) time.Duration {
	delay := q.cfg.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= q.cfg.MaxRetryDelay {
			return q.cfg.MaxRetryDelay
		}
	}
	return delay
}
