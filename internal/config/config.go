// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer sources.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// SmartwaiverBaseURL points at the waiver provider API. The /v4 path
	// segment is appended when missing.
	SmartwaiverBaseURL string `koanf:"sw_base_url"`

	// SmartwaiverAPIKey authenticates upstream requests.
	SmartwaiverAPIKey string `koanf:"sw_api_key"`

	// IntakeTemplateID and LiabilityTemplateID classify incoming webhooks.
	// Notifications for any other template are ignored.
	IntakeTemplateID    string `koanf:"intake_template_id"`
	LiabilityTemplateID string `koanf:"liability_template_id"`

	// RedisRESTURL and RedisRESTToken select the Upstash-compatible REST
	// store. When either is empty the service runs on the in-memory store.
	RedisRESTURL   string `koanf:"redis_rest_url"`
	RedisRESTToken string `koanf:"redis_rest_token"`

	// StoreCapacity bounds the persisted event log.
	StoreCapacity int `koanf:"store_capacity"`

	// BusMode selects the fan-out strategy: "inprocess" or "polled".
	BusMode string `koanf:"bus_mode"`

	// HeartbeatSeconds sets the SSE keepalive interval.
	HeartbeatSeconds int `koanf:"heartbeat_seconds"`

	// PollSeconds sets the polled bus version-check interval.
	PollSeconds int `koanf:"poll_seconds"`

	// IngestQueueSize bounds the in-memory ingest queue.
	IngestQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of enrichment workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the webhook deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// UpstreamTimeoutSeconds bounds each upstream API request.
	UpstreamTimeoutSeconds int `koanf:"upstream_timeout_seconds"`

	// UpstreamPageLimit and UpstreamMaxPages control list pagination.
	UpstreamPageLimit int `koanf:"upstream_page_limit"`
	UpstreamMaxPages  int `koanf:"upstream_max_pages"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		SmartwaiverBaseURL:     "https://api.smartwaiver.com",
		BusMode:                "inprocess",
		StoreCapacity:          500,
		HeartbeatSeconds:       15,
		PollSeconds:            1,
		IngestQueueSize:        1024,
		WorkerCount:            runtime.NumCPU() * 2,
		DedupeSize:             10_000,
		UpstreamTimeoutSeconds: 10,
		UpstreamPageLimit:      100,
		UpstreamMaxPages:       5,
	}
}

// UpstreamConfigured reports whether the waiver provider API is usable.
func (c *Config) UpstreamConfigured() bool {
	return c.SmartwaiverAPIKey != ""
}

// RedisConfigured reports whether the REST store is usable.
func (c *Config) RedisConfigured() bool {
	return c.RedisRESTURL != "" && c.RedisRESTToken != ""
}
