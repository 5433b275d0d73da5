// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/slopeside/waiverboard/internal/adapters/bus"
	"github.com/slopeside/waiverboard/internal/adapters/mq/queue"
	"github.com/slopeside/waiverboard/internal/domain/dedupe"
	"github.com/slopeside/waiverboard/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Classify maps a webhook template id to an event kind. The second
	// return is false for templates the service does not track.
	Classify(templateID string) (model.EventType, bool)

	// EnqueueIngest hands a classified notification to the enrichment
	// pipeline. Returns false on backpressure.
	EnqueueIngest(ctx context.Context, job queue.Job) bool

	// OpenRows reconciles intake participants against liability waivers.
	// A nil window means the full retained log.
	OpenRows(ctx context.Context, win *RowsWindow) (RowsResponse, error)

	// Subscribe attaches a live connection to the event bus.
	Subscribe(ctx context.Context) *bus.Subscription

	// Hidden-row bookkeeping. Mutations return the new change version.
	HiddenKeys(ctx context.Context) []string
	SetHidden(ctx context.Context, key string, hidden bool) (int64, error)
	ToggleHidden(ctx context.Context, key string) (bool, int64, error)

	// Version returns the change counter.
	Version(ctx context.Context) int64

	// ConfigInfo reports which integrations are configured, without
	// leaking secret values.
	ConfigInfo(ctx context.Context) map[string]any
}

// RowsWindow is a half-open signing-time range [From, To).
type RowsWindow struct {
	From time.Time
	To   time.Time
}

// RowsResponse is the body of GET /rows/open. The endpoint always
// answers 200; failures surface through the Error field so dashboard
// polling never breaks on a transient store outage.
type RowsResponse struct {
	Rows    []model.OpenRow `json:"rows"`
	Open    int             `json:"open"`
	Closed  int             `json:"closed"`
	Hidden  []string        `json:"hidden,omitempty"`
	Version int64           `json:"version"`
	Source  string          `json:"source,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Server wires HTTP routes for the business API.
type Server struct {
	webhookHandler   *WebhookHandler
	streamHandler    *StreamHandler
	rowsHandler      *RowsHandler
	hiddenHandler    *HiddenHandler
	configHandler    *ConfigHandler
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	dashboardHandler *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		webhookHandler:   NewWebhookHandler(deps),
		streamHandler:    NewStreamHandler(deps),
		rowsHandler:      NewRowsHandler(deps),
		hiddenHandler:    NewHiddenHandler(deps),
		configHandler:    NewConfigHandler(deps),
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		dashboardHandler: newDashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/webhook", MetricsMiddleware(s.webhookHandler.HandleWebhook, "webhook"))
	mux.HandleFunc("/rows/open", MetricsMiddleware(s.rowsHandler.HandleOpenRows, "rows_open"))
	mux.HandleFunc("/hidden", MetricsMiddleware(s.hiddenHandler.HandleHidden, "hidden"))
	mux.HandleFunc("/config", MetricsMiddleware(s.configHandler.HandleConfig, "config"))

	// The stream stays outside the metrics middleware: wrapping a
	// long-lived SSE connection would skew the latency histogram.
	mux.HandleFunc("/stream", s.streamHandler.HandleStream)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
