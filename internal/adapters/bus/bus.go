// Package bus fans normalized events out to SSE subscribers.
//
// Two implementations exist behind one interface: InProcess broadcasts
// directly to connections registered in this process, and Polled watches
// the shared version counter so it works when connections are not
// guaranteed to land on the publishing process. The rest of the system
// depends only on Bus.
package bus

import (
	"context"
	"sync"

	"github.com/slopeside/waiverboard/internal/domain/model"
)

// SSE event names shared by both implementations.
const (
	EventPing      = "ping"
	EventTick      = "tick"
	EventIntake    = string(model.TypeIntake)
	EventLiability = string(model.TypeLiability)
)

// Envelope is one named SSE event with its payload.
type Envelope struct {
	Event string
	Data  any
}

// TickPayload signals "something changed" to polling clients.
type TickPayload struct {
	Version int64  `json:"version"`
	Reason  string `json:"reason"`
}

// PingPayload is the heartbeat body.
type PingPayload struct {
	At string `json:"at,omitempty"`
}

// Subscription is one live connection's view of the bus.
type Subscription struct {
	ID string
	C  <-chan Envelope

	once   sync.Once
	cancel func()
}

// Cancel deregisters the subscription and releases its resources. Safe
// to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// VersionSource exposes the shared change counter the tick events carry.
type VersionSource interface {
	Version(ctx context.Context) int64
}

// Bus delivers events to any number of subscribers. Per-subscription
// ordering follows publish order; no ordering holds across subscribers.
type Bus interface {
	// Publish broadcasts a normalized event, best effort per connection.
	Publish(ctx context.Context, ev model.WaiverEvent)

	// PublishTick broadcasts a bare change signal (e.g. hidden-row
	// toggles) without an event payload.
	PublishTick(ctx context.Context, reason string)

	// Subscribe registers a connection. The caller must Cancel it when
	// the client disconnects.
	Subscribe(ctx context.Context) *Subscription

	// ConnCount reports currently registered subscriptions.
	ConnCount() int

	// Close tears down background work and all subscriptions.
	Close() error
}
