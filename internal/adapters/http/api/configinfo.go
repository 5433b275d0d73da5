// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
)

// ConfigInfoProvider reports integration presence for troubleshooting.
type ConfigInfoProvider interface {
	ConfigInfo(ctx context.Context) map[string]any
}

// ConfigHandler handles configuration presence requests.
type ConfigHandler struct {
	deps ConfigInfoProvider
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(deps ConfigInfoProvider) *ConfigHandler {
	return &ConfigHandler{deps: deps}
}

// HandleConfig handles GET /config requests. The report says which
// integrations are wired, never their secret values.
func (h *ConfigHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	const op = "api.config"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ConfigInfo(r.Context()))
}
