package bus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slopeside/waiverboard/internal/domain/model"
	"github.com/slopeside/waiverboard/pkg/logger"
	"github.com/slopeside/waiverboard/pkg/metrics"
)

// InProcess keeps an explicit registry of open connections and pushes
// published events to each of them. It only fans out correctly when all
// connections are served by this process; deployments without process
// affinity use Polled instead.
type InProcess struct {
	cfg      settings
	versions VersionSource
	log      logger.Logger

	mu    sync.Mutex
	conns map[string]chan Envelope

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewInProcess creates the in-process fan-out bus and starts its
// heartbeat loop.
func NewInProcess(versions VersionSource, opts ...Option) *InProcess {
	b := &InProcess{
		cfg:      newSettings(opts),
		versions: versions,
		log:      logger.Get().Named("bus"),
		conns:    make(map[string]chan Envelope),
		stopCh:   make(chan struct{}),
	}
	go b.heartbeatLoop()
	return b
}

func (b *InProcess) heartbeatLoop() {
	ticker := time.NewTicker(b.cfg.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.broadcast(Envelope{
				Event: EventPing,
				Data:  PingPayload{At: b.cfg.now().UTC().Format(time.RFC3339)},
			})
		}
	}
}

// broadcast sends an envelope to every registered connection. A write
// that would block means the subscriber stopped draining; it gets
// dropped without affecting the others.
func (b *InProcess) broadcast(env Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.conns {
		select {
		case ch <- env:
		default:
			b.log.Warn(context.Background(), "dropping slow subscriber", logger.String("conn", id))
			delete(b.conns, id)
			close(ch)
		}
	}
	metrics.UpdateSSEConnections(len(b.conns))
}

func (b *InProcess) Publish(_ context.Context, ev model.WaiverEvent) {
	b.broadcast(Envelope{Event: string(ev.Type), Data: ev})
	metrics.RecordEventPublished(string(ev.Type))
}

func (b *InProcess) PublishTick(ctx context.Context, reason string) {
	b.broadcast(Envelope{
		Event: EventTick,
		Data:  TickPayload{Version: b.versions.Version(ctx), Reason: reason},
	})
}

func (b *InProcess) Subscribe(ctx context.Context) *Subscription {
	id := uuid.NewString()
	ch := make(chan Envelope, b.cfg.bufferSize)

	// Liveness signal first, then a snapshot tick so the client can
	// render before the next live event arrives.
	ch <- Envelope{Event: EventPing, Data: PingPayload{At: b.cfg.now().UTC().Format(time.RFC3339)}}
	ch <- Envelope{Event: EventTick, Data: TickPayload{Version: b.versions.Version(ctx), Reason: "snapshot"}}

	b.mu.Lock()
	b.conns[id] = ch
	metrics.UpdateSSEConnections(len(b.conns))
	b.mu.Unlock()

	sub := &Subscription{
		ID: id,
		C:  ch,
		cancel: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if ch, ok := b.conns[id]; ok {
				delete(b.conns, id)
				close(ch)
			}
			metrics.UpdateSSEConnections(len(b.conns))
		},
	}

	// Client disconnects must deregister even if the handler forgets.
	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-b.stopCh:
			sub.Cancel()
		}
	}()
	return sub
}

func (b *InProcess) ConnCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func (b *InProcess) Close() error {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		b.mu.Lock()
		defer b.mu.Unlock()
		for id, ch := range b.conns {
			delete(b.conns, id)
			close(ch)
		}
		metrics.UpdateSSEConnections(0)
	})
	return nil
}
