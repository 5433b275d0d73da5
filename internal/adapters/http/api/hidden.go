// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// HiddenDependencies defines the interface for hidden-row bookkeeping.
type HiddenDependencies interface {
	HiddenKeys(ctx context.Context) []string
	SetHidden(ctx context.Context, key string, hidden bool) (int64, error)
	ToggleHidden(ctx context.Context, key string) (bool, int64, error)
	Version(ctx context.Context) int64
}

// HiddenHandler handles hidden-row requests.
type HiddenHandler struct {
	deps HiddenDependencies
}

// NewHiddenHandler creates a new hidden handler.
func NewHiddenHandler(deps HiddenDependencies) *HiddenHandler {
	return &HiddenHandler{deps: deps}
}

type hiddenRequest struct {
	Key    string `json:"key"`
	Action string `json:"action,omitempty"`
	Hidden *bool  `json:"hidden,omitempty"`
}

type hiddenResponse struct {
	Key     string   `json:"key,omitempty"`
	Hidden  *bool    `json:"hidden,omitempty"`
	Keys    []string `json:"keys,omitempty"`
	Version int64    `json:"version"`
	Error   string   `json:"error,omitempty"`
}

// HandleHidden handles GET and POST /hidden.
//
// GET lists the hidden row keys. POST mutates one key: an explicit
// "hidden" boolean or an action of "hide"/"show" sets the state, and
// anything else toggles it. Mutations bump the change version so open
// connections repaint. Like the other dashboard endpoints this one
// always answers 200 with any failure in the body.
func (h *HiddenHandler) HandleHidden(w http.ResponseWriter, r *http.Request) {
	const op = "api.hidden"
	switch r.Method {
	case http.MethodGet:
		keys := h.deps.HiddenKeys(r.Context())
		if keys == nil {
			keys = []string{}
		}
		writeJSON(w, http.StatusOK, hiddenResponse{
			Keys:    keys,
			Version: h.deps.Version(r.Context()),
		})
	case http.MethodPost:
		var req hiddenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusOK, hiddenResponse{Error: "unparseable body"})
			return
		}
		if req.Key == "" {
			writeJSON(w, http.StatusOK, hiddenResponse{Error: "missing key"})
			return
		}
		hidden, version, err := h.mutate(r.Context(), req)
		if err != nil {
			writeJSON(w, http.StatusOK, hiddenResponse{Key: req.Key, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, hiddenResponse{Key: req.Key, Hidden: &hidden, Version: version})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
	}
}

func (h *HiddenHandler) mutate(ctx context.Context, req hiddenRequest) (bool, int64, error) {
	switch {
	case req.Hidden != nil:
		version, err := h.deps.SetHidden(ctx, req.Key, *req.Hidden)
		return *req.Hidden, version, err
	case req.Action == "hide" || req.Action == "show":
		hidden := req.Action == "hide"
		version, err := h.deps.SetHidden(ctx, req.Key, hidden)
		return hidden, version, err
	default:
		return h.deps.ToggleHidden(ctx, req.Key)
	}
}
