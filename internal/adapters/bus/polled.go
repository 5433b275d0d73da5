package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/slopeside/waiverboard/internal/domain/model"
	"github.com/slopeside/waiverboard/pkg/metrics"
)

// Polled delivers change signals without any shared in-process registry:
// every subscription independently polls the store's version counter and
// emits a tick when it moves. Publish is a no-op because the append that
// triggered it already bumped the counter. Subscribers never see full
// event payloads in this mode; clients refetch rows on tick.
type Polled struct {
	cfg      settings
	versions VersionSource

	connCount atomic.Int64
	stopOnce  sync.Once
	stopCh    chan struct{}
}

// NewPolled creates the polling bus.
func NewPolled(versions VersionSource, opts ...Option) *Polled {
	return &Polled{
		cfg:      newSettings(opts),
		versions: versions,
		stopCh:   make(chan struct{}),
	}
}

func (b *Polled) Publish(_ context.Context, _ model.WaiverEvent) {
	// The store append already bumped the version counter; pollers will
	// observe it on their next interval.
}

func (b *Polled) PublishTick(_ context.Context, _ string) {
	// Same as Publish: the counter carries the signal.
}

func (b *Polled) Subscribe(ctx context.Context) *Subscription {
	id := uuid.NewString()
	ch := make(chan Envelope, b.cfg.bufferSize)
	done := make(chan struct{})

	sub := &Subscription{
		ID:     id,
		C:      ch,
		cancel: func() { close(done) },
	}

	b.connCount.Add(1)
	metrics.UpdateSSEConnections(int(b.connCount.Load()))

	go b.pollLoop(ctx, ch, done)
	return sub
}

func (b *Polled) pollLoop(ctx context.Context, ch chan Envelope, done chan struct{}) {
	defer func() {
		close(ch)
		b.connCount.Add(-1)
		metrics.UpdateSSEConnections(int(b.connCount.Load()))
	}()

	poll := time.NewTicker(b.cfg.pollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(b.cfg.heartbeat)
	defer heartbeat.Stop()

	last := b.versions.Version(ctx)

	// Initial ping then snapshot tick, same contract as InProcess.
	if !b.send(ctx, ch, done, Envelope{Event: EventPing, Data: PingPayload{At: b.cfg.now().UTC().Format(time.RFC3339)}}) {
		return
	}
	if !b.send(ctx, ch, done, Envelope{Event: EventTick, Data: TickPayload{Version: last, Reason: "snapshot"}}) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-b.stopCh:
			return
		case <-poll.C:
			v := b.versions.Version(ctx)
			if v > last {
				last = v
				if !b.send(ctx, ch, done, Envelope{Event: EventTick, Data: TickPayload{Version: v, Reason: "change"}}) {
					return
				}
			}
		case <-heartbeat.C:
			if !b.send(ctx, ch, done, Envelope{Event: EventPing, Data: PingPayload{At: b.cfg.now().UTC().Format(time.RFC3339)}}) {
				return
			}
		}
	}
}

func (b *Polled) send(ctx context.Context, ch chan Envelope, done chan struct{}, env Envelope) bool {
	select {
	case ch <- env:
		return true
	case <-ctx.Done():
		return false
	case <-done:
		return false
	case <-b.stopCh:
		return false
	}
}

func (b *Polled) ConnCount() int {
	return int(b.connCount.Load())
}

func (b *Polled) Close() error {
	b.stopOnce.Do(func() { close(b.stopCh) })
	return nil
}
