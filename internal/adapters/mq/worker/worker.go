// Package worker runs the enrichment pipeline: fetch the full waiver
// detail, normalize it, persist it, and broadcast it.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slopeside/waiverboard/internal/adapters/mq/queue"
	"github.com/slopeside/waiverboard/internal/domain/model"
	"github.com/slopeside/waiverboard/pkg/logger"
	"github.com/slopeside/waiverboard/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Fetcher retrieves the full waiver detail from the upstream API.
type Fetcher interface {
	FetchWaiver(ctx context.Context, waiverID string) (map[string]any, error)
}

// Normalizer converts a raw payload into a canonical event.
type Normalizer interface {
	Normalize(raw map[string]any, kind model.EventType) model.WaiverEvent
}

// Appender persists normalized events.
type Appender interface {
	Append(ctx context.Context, ev model.WaiverEvent) error
}

// Publisher broadcasts normalized events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev model.WaiverEvent)
}

// Releaser rolls back the idempotency record when a job cannot be
// processed, so a webhook redelivery gets another chance.
type Releaser interface {
	Unrecord(ctx context.Context, id string)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes ingest jobs until stopped.
type Worker struct {
	queue      Queue
	fetcher    Fetcher
	normalizer Normalizer
	appender   Appender
	publisher  Publisher
	releaser   Releaser
	name       string

	shutdown chan struct{}
	done     chan struct{}
	log      logger.Logger
}

// New creates a worker.
func New(q Queue, fetcher Fetcher, normalizer Normalizer, appender Appender, publisher Publisher, releaser Releaser, opts ...Option) *Worker {
	w := &Worker{
		queue:      q,
		fetcher:    fetcher,
		normalizer: normalizer,
		appender:   appender,
		publisher:  publisher,
		releaser:   releaser,
		name:       "worker",
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		log:        logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes jobs until the context is canceled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) {
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
			if err := w.process(ctx, job); err != nil {
				w.log.Error(ctx, "job failed",
					logger.String("waiverID", job.WaiverID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker, waiting for the in-flight job.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker shutdown timed out: %w", ctx.Err())
	}
}

// process runs one job through enrich -> normalize -> persist -> publish.
// A fetch failure releases the dedupe record; a persist failure does not
// block the broadcast (query endpoints have an upstream fallback).
func (w *Worker) process(ctx context.Context, job queue.Job) error {
	raw, err := w.fetcher.FetchWaiver(ctx, job.WaiverID)
	if err != nil {
		metrics.RecordWorkerError()
		if w.releaser != nil {
			w.releaser.Unrecord(ctx, job.WaiverID)
		}
		return fmt.Errorf("fetch waiver %s: %w", job.WaiverID, err)
	}

	ev := w.normalizer.Normalize(raw, job.Kind)
	if ev.WaiverID == "" {
		ev.WaiverID = job.WaiverID
	}
	if ev.TemplateID == "" {
		ev.TemplateID = job.TemplateID
	}

	if err := w.appender.Append(ctx, ev); err != nil {
		// Log-and-continue: the event still reaches live subscribers,
		// and the upstream API remains the source of truth.
		metrics.RecordWorkerError()
		w.log.Warn(ctx, "append failed; event not persisted",
			logger.String("waiverID", ev.WaiverID),
			logger.Error(err),
		)
	}

	w.publisher.Publish(ctx, ev)
	return nil
}

// Pool runs a fixed set of workers over one queue.
type Pool struct {
	workers []*Worker
	started bool
	mu      sync.Mutex
	log     logger.Logger
}

// NewPool creates count workers sharing the queue and collaborators.
func NewPool(count int, q Queue, fetcher Fetcher, normalizer Normalizer, appender Appender, publisher Publisher, releaser Releaser) *Pool {
	if count < 1 {
		count = 1
	}
	p := &Pool{log: logger.Get().Named("pool")}
	for i := 0; i < count; i++ {
		p.workers = append(p.workers, New(q, fetcher, normalizer, appender, publisher, releaser,
			WithName(fmt.Sprintf("worker-%d", i)),
		))
	}
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.started = true
	metrics.UpdateWorkerCount(len(p.workers))
}

// Stop shuts down all workers, bounded by a timeout.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), poolShutdownTimeout)
	defer cancel()

	for _, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.log.Warn(ctx, "worker did not stop cleanly", logger.Error(err))
		}
	}
	p.started = false
	metrics.UpdateWorkerCount(0)
}

// Size reports the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}
