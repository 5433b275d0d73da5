// Package metrics provides Prometheus metrics for the waiverboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus collectors for the service.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	// Ingestion
	webhooksReceived  prometheus.Counter
	webhooksIgnored   prometheus.Counter
	webhooksDuplicate prometheus.Counter
	eventsPublished   *prometheus.CounterVec

	// Store
	storeErrors prometheus.Counter
	storeEvents prometheus.Gauge
	version     prometheus.Gauge

	// Delivery
	sseConnections prometheus.Gauge

	// Upstream waiver API
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  prometheus.Histogram

	// Ingest queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge
	workerErrors       prometheus.Counter

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var defaultManager *Manager

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	defaultManager = NewManager()
}

// NewManager builds a Manager with its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "waiverboard",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.webhooksReceived = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "webhooks_received_total",
		Help:      "Webhook deliveries accepted for processing.",
	})
	m.webhooksIgnored = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "webhooks_ignored_total",
		Help:      "Webhook deliveries ignored (unknown template or missing ids).",
	})
	m.webhooksDuplicate = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "webhooks_duplicate_total",
		Help:      "Webhook redeliveries skipped by the deduper.",
	})
	m.eventsPublished = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "events_published_total",
		Help:      "Normalized events appended and broadcast, by type.",
	}, []string{"type"})

	m.storeErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "store_errors_total",
		Help:      "Record store transport or command failures.",
	})
	m.storeEvents = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "store_events",
		Help:      "Events currently retained in the record store.",
	})
	m.version = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "version_counter",
		Help:      "Last observed value of the change version counter.",
	})

	m.sseConnections = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "sse_connections",
		Help:      "Currently registered SSE connections.",
	})

	m.upstreamRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "upstream_requests_total",
		Help:      "Requests to the waiver API, by operation and outcome.",
	}, []string{"op", "outcome"})
	m.upstreamLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "upstream_request_duration_ms",
		Help:      "Waiver API request latency in milliseconds.",
		Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})

	m.queueSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "ingest_queue_size",
		Help:      "Jobs currently waiting in the ingest queue.",
	})
	m.queueCapacity = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "ingest_queue_capacity",
		Help:      "Configured ingest queue capacity.",
	})
	m.queueEnqueueErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "ingest_queue_enqueue_errors_total",
		Help:      "Ingest jobs rejected by the queue.",
	})
	m.workerCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "ingest_workers",
		Help:      "Running enrichment workers.",
	})
	m.workerErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "ingest_worker_errors_total",
		Help:      "Enrichment jobs that failed.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method, and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
	}, []string{"endpoint", "method", "status"})
}

// Package-level helpers operate on the default manager.

func RecordWebhookReceived() { defaultManager.webhooksReceived.Inc() }

func RecordWebhookIgnored() { defaultManager.webhooksIgnored.Inc() }

func RecordWebhookDuplicate() { defaultManager.webhooksDuplicate.Inc() }

func RecordEventPublished(eventType string) {
	defaultManager.eventsPublished.WithLabelValues(eventType).Inc()
}

func RecordStoreError() { defaultManager.storeErrors.Inc() }

func UpdateStoreEvents(n int) { defaultManager.storeEvents.Set(float64(n)) }

func UpdateVersion(v int64) { defaultManager.version.Set(float64(v)) }

func UpdateSSEConnections(n int) { defaultManager.sseConnections.Set(float64(n)) }

func RecordUpstreamRequest(op, outcome string) {
	defaultManager.upstreamRequests.WithLabelValues(op, outcome).Inc()
}

func RecordUpstreamLatency(ms float64) {
	defaultManager.upstreamLatency.Observe(ms)
}

func UpdateQueueSize(n int) { defaultManager.queueSize.Set(float64(n)) }

func UpdateQueueCapacity(n int) { defaultManager.queueCapacity.Set(float64(n)) }

func RecordQueueEnqueueError() { defaultManager.queueEnqueueErrors.Inc() }

func UpdateWorkerCount(n int) { defaultManager.workerCount.Set(float64(n)) }

func RecordWorkerError() { defaultManager.workerErrors.Inc() }

func RecordHTTPRequest(endpoint, method, status string) {
	defaultManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	defaultManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

// GetRegistry exposes the default registry for promhttp.
func GetRegistry() *prometheus.Registry {
	return defaultManager.registry
}
