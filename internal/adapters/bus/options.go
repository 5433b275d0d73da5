package bus

import "time"

// Default delivery configuration constants.
const (
	defaultHeartbeat    = 15 * time.Second
	defaultPollInterval = time.Second
	defaultBufferSize   = 16
)

// Option applies a configuration option to either bus implementation.
type Option func(*settings)

type settings struct {
	heartbeat    time.Duration
	pollInterval time.Duration
	bufferSize   int
	now          func() time.Time
}

func newSettings(opts []Option) settings {
	s := settings{
		heartbeat:    defaultHeartbeat,
		pollInterval: defaultPollInterval,
		bufferSize:   defaultBufferSize,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithHeartbeat sets the ping interval that keeps proxies from closing
// idle connections.
func WithHeartbeat(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// WithPollInterval sets how often the polled bus checks the version
// counter.
func WithPollInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithBufferSize sets the per-subscription channel buffer. A subscriber
// that falls this far behind is dropped. The floor of two keeps room
// for the subscribe preamble (ping plus snapshot tick).
func WithBufferSize(n int) Option {
	return func(s *settings) {
		if n >= 2 {
			s.bufferSize = n
		}
	}
}

// WithClock overrides the time source used in heartbeat payloads.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}
