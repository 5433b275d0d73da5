// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"io"
	"net/http"
	"time"
)

// dashboardHandler handles dashboard requests.
type dashboardHandler struct{}

// newDashboardHandler creates a new dashboard handler.
func newDashboardHandler() *dashboardHandler {
	return &dashboardHandler{}
}

// HandleDashboard handles GET /dashboard requests.
// Returns an HTML page that subscribes to /stream and renders open rows.
func (h *dashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	// Serve embedded dashboard page
	// http.ServeFileFS requires Go 1.22; serve the embedded file the
	// equivalent way on the Go 1.21 toolchain.
	f, err := dashboardFS.Open("dashboard.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	http.ServeContent(w, r, "dashboard.html", time.Time{}, f.(io.ReadSeeker))
}
