// Package dedupe tracks already-ingested waiver ids so webhook
// redeliveries do not append the same event twice.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen waiver ids to keep store appends at-most-once.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it
	// if not. Returns true when id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an id from the seen set so a redelivery can be
	// retried after a failed enrichment or a full queue.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// seenSet implements Deduper with a map plus an insertion-order queue;
// when the set is full the oldest recorded id is evicted first.
// Unrecorded ids stay in the queue as stale entries and are skipped at
// eviction time, so correctness only depends on the map.
type seenSet struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	maxSize int
}

// New creates a bounded Deduper.
func New(opts ...Option) Deduper {
	s := &seenSet{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(s)
	}
	s.seen = make(map[string]struct{}, s.maxSize)
	s.order = make([]string, 0, s.maxSize)
	return s
}

func (s *seenSet) SeenAndRecord(_ context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return true
	}
	for len(s.seen) >= s.maxSize {
		s.evictOldest()
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	return false
}

// evictOldest pops queue entries until one that is still live is removed.
// Must be called with s.mu held.
func (s *seenSet) evictOldest() {
	for len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		if _, ok := s.seen[oldest]; ok {
			delete(s.seen, oldest)
			return
		}
	}
}

func (s *seenSet) Unrecord(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, id)
}

func (s *seenSet) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.seen))
}
