package store

import (
	"net/http"
	"time"
)

// Default store configuration constants.
const (
	defaultCapacity    = 500
	defaultStreamKey   = "wb:events:v1"
	defaultVersionKey  = "wb:version"
	defaultHiddenKey   = "wb:hidden:v1"
	defaultChannel     = "wb-events"
	defaultRESTTimeout = 10 * time.Second
)

// MemoryOption applies a configuration option to the memory store.
type MemoryOption func(*Memory)

// WithMemoryCapacity bounds the number of retained events.
func WithMemoryCapacity(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// RedisOption applies a configuration option to the redis store.
type RedisOption func(*Redis)

// WithCapacity bounds the number of retained events.
func WithCapacity(n int) RedisOption {
	return func(r *Redis) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithStreamKey overrides the list key holding the event log.
func WithStreamKey(key string) RedisOption {
	return func(r *Redis) {
		if key != "" {
			r.streamKey = key
		}
	}
}

// WithVersionKey overrides the version counter key.
func WithVersionKey(key string) RedisOption {
	return func(r *Redis) {
		if key != "" {
			r.versionKey = key
		}
	}
}

// WithHiddenSetKey overrides the hidden-row set key.
func WithHiddenSetKey(key string) RedisOption {
	return func(r *Redis) {
		if key != "" {
			r.hiddenKey = key
		}
	}
}

// WithChannel overrides the pub/sub channel events are announced on.
func WithChannel(ch string) RedisOption {
	return func(r *Redis) {
		if ch != "" {
			r.channel = ch
		}
	}
}

// WithHTTPClient injects the HTTP client used for REST calls.
func WithHTTPClient(c *http.Client) RedisOption {
	return func(r *Redis) {
		if c != nil {
			r.client = c
		}
	}
}
