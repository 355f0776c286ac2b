// Package queue holds blocking jobs until a worker is free.
//
// Jobs are CPU- or database-bound units (draw generation) that must not run
// on request goroutines. The queue is bounded; a full queue rejects work
// instead of growing.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/tabroom/pkg/metrics"
)

const defaultQueueCapacity = 64

// Job is one unit of blocking work. Its result is delivered once on Done.
type Job struct {
	ID         string
	Name       string
	Run        func(ctx context.Context) error
	EnqueuedAt time.Time

	done   chan error
	onDrop func(error)
}

// NewJob wraps fn as a job named name.
func NewJob(name string, fn func(ctx context.Context) error) *Job {
	return &Job{
		ID:   uuid.NewString(),
		Name: name,
		Run:  fn,
		done: make(chan error, 1),
	}
}

// WithDrop sets fn to run when the job is discarded without running.
// Call it before the job is enqueued.
func (j *Job) WithDrop(fn func(error)) *Job {
	j.onDrop = fn
	return j
}

// Drop finishes a job that will never run.
func (j *Job) Drop(err error) {
	if j.onDrop != nil {
		j.onDrop(err)
	}
	j.Finish(err)
}

// Done delivers the job's result.
func (j *Job) Done() <-chan error { return j.done }

// Finish records the job's result. Only the first call counts.
func (j *Job) Finish(err error) {
	select {
	case j.done <- err:
	default:
	}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. It returns ErrFull or ErrClosed when it cannot.
	Enqueue(ctx context.Context, j *Job) error

	// Dequeue returns a channel of jobs, closed when the queue closes.
	Dequeue(ctx context.Context) <-chan *Job

	// Len returns the number of pending jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs; pending jobs are still delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan *Job
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan *Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0, q.capacity)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j *Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected("closed")
		return ErrClosed
	}
	if j.EnqueuedAt.IsZero() {
		j.EnqueuedAt = time.Now()
	}

	select {
	case q.jobs <- j:
		metrics.UpdateQueueSize(len(q.jobs), q.capacity)
		return nil
	case <-ctx.Done():
		metrics.RecordQueueRejected("context_cancelled")
		return ctx.Err()
	default:
		metrics.RecordQueueRejected("full")
		return ErrFull
	}
}

// Dequeue returns a channel that will receive jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan *Job {
	out := make(chan *Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			select {
			case out <- j:
				metrics.UpdateQueueSize(len(q.jobs), q.capacity)
			case <-ctx.Done():
				j.Drop(ctx.Err())
				q.dropPending(ctx.Err())
				return
			}
		}
	}()
	return out
}

// dropPending discards the jobs left once no consumer will take them.
func (q *InMemoryQueue) dropPending(err error) {
	for {
		select {
		case j, ok := <-q.jobs:
			if !ok {
				return
			}
			metrics.RecordQueueRejected("dropped")
			j.Drop(err)
		default:
			metrics.UpdateQueueSize(len(q.jobs), q.capacity)
			return
		}
	}
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size, q.capacity)
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
