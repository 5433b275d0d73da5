// Package store persists the append-only bounded log of normalized
// waiver events, the change version counter, and the hidden-row set.
//
// Reads degrade to empty results instead of failing so query endpoints
// can fall back to the upstream API; writes surface their error for
// log-and-continue handling at call sites.
package store

import (
	"context"

	"github.com/slopeside/waiverboard/internal/domain/model"
)

// Store is the durable handoff between webhook ingestion and delivery.
type Store interface {
	// Append serializes the event to the tail of the stream, trims the
	// stream to capacity (oldest dropped first), and bumps the version
	// counter. Events are never mutated after append.
	Append(ctx context.Context, ev model.WaiverEvent) error

	// ReadAll returns the full retained window, oldest first. Never
	// fails; store trouble yields an empty slice.
	ReadAll(ctx context.Context) []model.WaiverEvent

	// ReadSince returns entries from cursor to the tail plus the new
	// cursor. After a trim a poller may re-receive entries; delivery is
	// at-least-once across trims.
	ReadSince(ctx context.Context, cursor int64) ([]model.WaiverEvent, int64)

	// Version returns the monotonically-increasing change counter.
	Version(ctx context.Context) int64

	// BumpVersion increments the change counter without appending,
	// used when derived state (hidden rows) changes.
	BumpVersion(ctx context.Context) int64

	// Count returns the number of retained events.
	Count(ctx context.Context) int

	// Hidden-row bookkeeping for the dashboard.
	HiddenKeys(ctx context.Context) []string
	SetHidden(ctx context.Context, key string, hidden bool) error
	ToggleHidden(ctx context.Context, key string) (bool, error)

	Close() error
}
