// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/slopeside/waiverboard/internal/adapters/bus"
	"github.com/slopeside/waiverboard/pkg/logger"
)

// StreamDependencies defines the interface for live event delivery.
type StreamDependencies interface {
	Subscribe(ctx context.Context) *bus.Subscription
}

// StreamHandler handles SSE connections.
type StreamHandler struct {
	deps StreamDependencies
	log  logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps StreamDependencies) *StreamHandler {
	return &StreamHandler{deps: deps, log: logger.Get().Named("stream")}
}

// HandleStream handles GET /stream requests. The connection stays open
// until the client disconnects; the bus delivers a ping immediately so
// proxies see traffic before the first real event.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	const op = "api.stream"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", NewKind(op, ErrStreaming))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Nginx buffers responses by default, which stalls SSE.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.deps.Subscribe(r.Context())
	defer sub.Cancel()

	h.log.Debug(r.Context(), "stream opened", logger.String("subscription", sub.ID))
	for env := range sub.C {
		if err := writeEvent(w, flusher, env); err != nil {
			break
		}
	}
	h.log.Debug(r.Context(), "stream closed", logger.String("subscription", sub.ID))
}

func writeEvent(w io.Writer, flusher http.Flusher, env bus.Envelope) error {
	data, err := json.Marshal(env.Data)
	if err != nil {
		data = []byte("{}")
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Event, data); err != nil {
		return fmt.Errorf("write sse event: %w", err)
	}
	flusher.Flush()
	return nil
}
