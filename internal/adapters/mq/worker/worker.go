// Package worker runs queued jobs off the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/tabroom/internal/adapters/mq/queue"
	"github.com/okian/tabroom/pkg/logger"
	"github.com/okian/tabroom/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// ErrPanic wraps a panic recovered from a job.
var ErrPanic = errors.New("worker: job panicked")

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan *queue.Job
}

// Worker runs jobs until its queue closes.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for queue.Job values.
type InMemoryWorker struct {
	queue Queue
	name  string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from q.
func NewInMemoryWorker(q Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Default().Named("worker")
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job *queue.Job) {
	metrics.AddWorkerBusy(1)
	defer metrics.AddWorkerBusy(-1)

	start := time.Now()
	err := w.run(ctx, job)
	if err != nil {
		w.logger.Error(ctx, "job failed",
			logger.String("job", job.Name),
			logger.String("job_id", job.ID),
			logger.Duration("took", time.Since(start)),
			logger.Error(err),
		)
	} else {
		w.logger.Debug(ctx, "job done",
			logger.String("job", job.Name),
			logger.Duration("waited", start.Sub(job.EnqueuedAt)),
			logger.Duration("took", time.Since(start)),
		)
	}
	job.Finish(err)
}

func (w *InMemoryWorker) run(ctx context.Context, job *queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordWorkerPanic()
			metrics.RecordErrorByComponent("worker", "panic")
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return job.Run(ctx)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   queue.Queue

	logger logger.Logger
}

// NewPool creates a pool of count workers. count < 1 means one per CPU.
func NewPool(count int, q queue.Queue, opts ...Option) *Pool {
	if count < 1 {
		count = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, count),
		queue:   q,
		logger:  logger.Default().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, wopts...)
	}
	metrics.UpdateWorkerCount(count)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Submit enqueues fn and returns its job; the caller waits on job.Done().
func (p *Pool) Submit(ctx context.Context, name string, fn func(ctx context.Context) error) (*queue.Job, error) {
	job := queue.NewJob(name, fn)
	if err := p.SubmitJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// SubmitJob enqueues a prepared job, such as one carrying a drop hook.
func (p *Pool) SubmitJob(ctx context.Context, job *queue.Job) error {
	if err := p.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("submit %s: %w", job.Name, err)
	}
	return nil
}

// Pending counts queued jobs not yet picked up.
func (p *Pool) Pending(ctx context.Context) int { return p.queue.Len(ctx) }

// Size is the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return shutdownCtx.Err()
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
