package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/slopeside/waiverboard/internal/adapters/mq/queue"
	"github.com/slopeside/waiverboard/internal/adapters/mq/worker"
	"github.com/slopeside/waiverboard/internal/domain/model"
	"github.com/slopeside/waiverboard/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fetcherStub struct {
	err error
}

func (f *fetcherStub) FetchWaiver(_ context.Context, waiverID string) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"waiverId": waiverID}, nil
}

type normalizerStub struct{}

func (normalizerStub) Normalize(raw map[string]any, kind model.EventType) model.WaiverEvent {
	id, _ := raw["waiverId"].(string)
	return model.WaiverEvent{Type: kind, WaiverID: id}
}

type sinkStub struct {
	mu         sync.Mutex
	appended   []model.WaiverEvent
	published  []model.WaiverEvent
	unrecorded []string
	appendErr  error
	publishCh  chan struct{}
}

func newSinkStub() *sinkStub {
	return &sinkStub{publishCh: make(chan struct{}, 16)}
}

func (s *sinkStub) Append(_ context.Context, ev model.WaiverEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, ev)
	return nil
}

func (s *sinkStub) Publish(_ context.Context, ev model.WaiverEvent) {
	s.mu.Lock()
	s.published = append(s.published, ev)
	s.mu.Unlock()
	s.publishCh <- struct{}{}
}

func (s *sinkStub) Unrecord(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unrecorded = append(s.unrecorded, id)
}

func (s *sinkStub) waitPublish(t *testing.T) {
	t.Helper()
	select {
	case <-s.publishCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for publish")
	}
}

func TestWorkerProcess(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemory(queue.WithCapacity(8))
		sink := newSinkStub()

		convey.Convey("When a job flows through the happy path", func() {
			w := worker.New(q, &fetcherStub{}, normalizerStub{}, sink, sink, sink)
			go w.Run(ctx)

			q.Enqueue(ctx, queue.Job{WaiverID: "w-1", TemplateID: "tmpl-1", Kind: model.TypeIntake})
			sink.waitPublish(t)

			convey.Convey("Then the event is appended and published", func() {
				sink.mu.Lock()
				defer sink.mu.Unlock()
				convey.So(sink.appended, convey.ShouldHaveLength, 1)
				convey.So(sink.appended[0].WaiverID, convey.ShouldEqual, "w-1")
				convey.So(sink.appended[0].TemplateID, convey.ShouldEqual, "tmpl-1")
				convey.So(sink.published, convey.ShouldHaveLength, 1)
				convey.So(sink.unrecorded, convey.ShouldBeEmpty)
			})

			shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
			defer stop()
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})

		convey.Convey("When the upstream fetch fails", func() {
			w := worker.New(q, &fetcherStub{err: errors.New("boom")}, normalizerStub{}, sink, sink, sink)
			go w.Run(ctx)

			q.Enqueue(ctx, queue.Job{WaiverID: "w-2", Kind: model.TypeIntake})

			convey.Convey("Then the dedupe record is released and nothing persists", func() {
				deadline := time.Now().Add(2 * time.Second)
				for time.Now().Before(deadline) {
					sink.mu.Lock()
					n := len(sink.unrecorded)
					sink.mu.Unlock()
					if n > 0 {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				sink.mu.Lock()
				defer sink.mu.Unlock()
				convey.So(sink.unrecorded, convey.ShouldResemble, []string{"w-2"})
				convey.So(sink.appended, convey.ShouldBeEmpty)
				convey.So(sink.published, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the store append fails", func() {
			sink.appendErr = errors.New("kv down")
			w := worker.New(q, &fetcherStub{}, normalizerStub{}, sink, sink, sink)
			go w.Run(ctx)

			q.Enqueue(ctx, queue.Job{WaiverID: "w-3", Kind: model.TypeLiability})
			sink.waitPublish(t)

			convey.Convey("Then the event is still published to subscribers", func() {
				sink.mu.Lock()
				defer sink.mu.Unlock()
				convey.So(sink.appended, convey.ShouldBeEmpty)
				convey.So(sink.published, convey.ShouldHaveLength, 1)
				convey.So(sink.published[0].Type, convey.ShouldEqual, model.TypeLiability)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		ctx := context.Background()
		q := queue.NewInMemory(queue.WithCapacity(64))
		sink := newSinkStub()
		sink.publishCh = make(chan struct{}, 64)

		p := worker.NewPool(3, q, &fetcherStub{}, normalizerStub{}, sink, sink, sink)
		convey.So(p.Size(), convey.ShouldEqual, 3)

		convey.Convey("When jobs are processed concurrently", func() {
			p.Start(ctx)
			defer p.Stop()

			for i := 0; i < 10; i++ {
				q.Enqueue(ctx, queue.Job{WaiverID: "w", Kind: model.TypeIntake})
			}
			for i := 0; i < 10; i++ {
				sink.waitPublish(t)
			}

			convey.Convey("Then every job is published exactly once", func() {
				sink.mu.Lock()
				defer sink.mu.Unlock()
				convey.So(sink.published, convey.ShouldHaveLength, 10)
			})
		})
	})
}
