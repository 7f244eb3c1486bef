// Package worker runs the notification dispatch workers.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/quizarena/progression/internal/adapters/mq/queue"
	"github.com/quizarena/progression/pkg/logger"
	"github.com/quizarena/progression/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 4
	defaultMaxAttempts    = 5
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Sink delivers a notification job downstream. Implementations must treat
// redelivery of the same JobID as a no-op; the worker guarantees at-least-
// once delivery, the sink's idempotency turns that into exactly-once effect.
type Sink interface {
	Deliver(ctx context.Context, j Job) error
}

// Recorder observes terminal job states.
type Recorder interface {
	MarkDelivered(jobID string)
	MarkFailed(jobID string)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker consumes jobs and delivers them with bounded exponential backoff.
type Worker struct {
	queue       Queue
	sink        Sink
	recorder    Recorder
	name        string
	maxAttempts uint64

	shutdown chan struct{}
	done     chan struct{}

	log logger.Logger
}

// NewWorker creates a worker with configuration options.
func NewWorker(q Queue, sink Sink, recorder Recorder, opts ...Option) *Worker {
	w := &Worker{
		queue:       q,
		sink:        sink,
		recorder:    recorder,
		name:        "dispatch",
		maxAttempts: defaultMaxAttempts,
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		log:         logger.Get().Named("dispatch-worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop until ctx is canceled or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			w.drain(ctx, jobs)
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.deliver(ctx, j)
		}
	}
}

// drain keeps delivering until the jobs channel closes, bounded by the
// shutdown timeout. The queue is closed before workers stop, so buffered
// jobs are handed off here instead of being abandoned.
func (w *Worker) drain(ctx context.Context, jobs <-chan Job) {
	deadline := time.After(workerShutdownTimeout)
	for {
		select {
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.deliver(ctx, j)
		case <-deadline:
			w.log.Warn(ctx, "drain timed out with jobs remaining")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown stops the worker, waiting for the in-flight job to finish.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.log.Warn(ctx, "worker shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// deliver pushes one job to the sink with bounded exponential backoff.
// Exhausted retries mark the job failed and log it for operator replay;
// a failed notification never affects progression state.
func (w *Worker) deliver(ctx context.Context, j Job) {
	start := time.Now()
	defer func() {
		metrics.RecordDeliveryLatency(float64(time.Since(start).Milliseconds()))
	}()

	attempts := 0
	operation := func() error {
		attempts++
		if attempts > 1 {
			metrics.RecordDispatchRetry()
		}
		return w.sink.Deliver(ctx, j)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, w.maxAttempts-1), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		metrics.RecordJobFailed()
		if w.recorder != nil {
			w.recorder.MarkFailed(j.JobID)
		}
		w.log.Error(ctx, "job delivery failed; logged for replay",
			logger.String("jobID", j.JobID),
			logger.String("userID", j.UserID),
			logger.String("kind", string(j.Kind)),
			logger.Int("attempts", attempts),
			logger.Error(err),
		)
		return
	}

	metrics.RecordJobDelivered()
	if w.recorder != nil {
		w.recorder.MarkDelivered(j.JobID)
	}
	w.log.Debug(ctx, "job delivered",
		logger.String("jobID", j.JobID),
		logger.String("kind", string(j.Kind)),
		logger.Int("attempts", attempts),
	)
}

// Pool manages multiple dispatch workers.
type Pool struct {
	workers []*Worker
	log     logger.Logger
}

// NewPool creates a pool of workerCount workers over the same queue.
func NewPool(workerCount int, q Queue, sink Sink, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	p := &Pool{
		workers: make([]*Worker, workerCount),
		log:     logger.Get().Named("dispatch-pool"),
	}
	for i := range p.workers {
		wOpts := append([]Option{WithName("dispatch-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewWorker(q, sink, recorder, wOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)

	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop stops all workers, bounded by a per-worker timeout.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		select {
		case <-w.shutdown:
		default:
			close(w.shutdown)
		}
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue and drains the workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := any(p.workers[0].queue).(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.log.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.shutdown:
		default:
			close(w.shutdown)
		}
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.log.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
