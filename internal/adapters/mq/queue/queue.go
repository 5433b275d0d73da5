// Package queue buffers classified webhook notifications between the
// HTTP handler and the enrichment workers.
package queue

import (
	"context"
	"sync"

	"github.com/slopeside/waiverboard/internal/domain/model"
	"github.com/slopeside/waiverboard/pkg/metrics"
)

const defaultCapacity = 1024

// Job is one classified webhook awaiting enrichment. The webhook body
// itself is thin; workers fetch the full detail by waiver id.
type Job struct {
	WaiverID   string
	TemplateID string
	Kind       model.EventType
}

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds a job. Returns false when the queue is full or closed.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns a channel delivering jobs until the queue closes.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of buffered jobs.
	Len(ctx context.Context) int

	// Close stops the queue; no further jobs are accepted.
	Close() error
}

// InMemory implements Queue with a buffered channel.
type InMemory struct {
	jobs     chan Job
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(opts ...Option) *InMemory {
	q := &InMemory{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)
	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

func (q *InMemory) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		return false
	}
	select {
	case q.jobs <- j:
		metrics.UpdateQueueSize(len(q.jobs))
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		return false
	default:
		metrics.RecordQueueEnqueueError()
		return false
	}
}

func (q *InMemory) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			select {
			case out <- j:
				metrics.UpdateQueueSize(len(q.jobs))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (q *InMemory) Len(_ context.Context) int {
	return len(q.jobs)
}

func (q *InMemory) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}
