package store

import (
	"context"
	"sync"

	"github.com/slopeside/waiverboard/internal/domain/model"
)

// Memory implements Store in process memory. It serves single-instance
// deployments and tests; multi-instance deployments use the redis store.
type Memory struct {
	mu       sync.RWMutex
	events   []model.WaiverEvent
	appended int64 // total appends since start, survives trims
	version  int64
	hidden   map[string]struct{}
	capacity int
}

// NewMemory creates an in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		capacity: defaultCapacity,
		hidden:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Append(_ context.Context, ev model.WaiverEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, ev)
	if len(m.events) > m.capacity {
		m.events = m.events[len(m.events)-m.capacity:]
	}
	m.appended++
	m.version++
	return nil
}

func (m *Memory) ReadAll(_ context.Context) []model.WaiverEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.WaiverEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *Memory) ReadSince(_ context.Context, cursor int64) ([]model.WaiverEvent, int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// cursor counts appends since the start of the stream; entries older
	// than the retained window are gone.
	oldest := m.appended - int64(len(m.events))
	if cursor < oldest {
		cursor = oldest
	}
	if cursor > m.appended {
		cursor = m.appended
	}
	out := make([]model.WaiverEvent, m.appended-cursor)
	copy(out, m.events[len(m.events)-int(m.appended-cursor):])
	return out, m.appended
}

func (m *Memory) Version(_ context.Context) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

func (m *Memory) BumpVersion(_ context.Context) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version++
	return m.version
}

func (m *Memory) Count(_ context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

func (m *Memory) HiddenKeys(_ context.Context) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.hidden))
	for k := range m.hidden {
		out = append(out, k)
	}
	return out
}

func (m *Memory) SetHidden(_ context.Context, key string, hidden bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hidden {
		m.hidden[key] = struct{}{}
	} else {
		delete(m.hidden, key)
	}
	return nil
}

func (m *Memory) ToggleHidden(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.hidden[key]; ok {
		delete(m.hidden, key)
		return false, nil
	}
	m.hidden[key] = struct{}{}
	return true, nil
}

func (m *Memory) Close() error {
	return nil
}
