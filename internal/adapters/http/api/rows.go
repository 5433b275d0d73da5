// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/slopeside/waiverboard/internal/domain/model"
)

const dateLayout = "2006-01-02"

// RowsDependencies defines the interface for reconciliation queries.
type RowsDependencies interface {
	OpenRows(ctx context.Context, win *RowsWindow) (RowsResponse, error)
}

// RowsHandler handles open-row queries.
type RowsHandler struct {
	deps RowsDependencies
}

// NewRowsHandler creates a new rows handler.
func NewRowsHandler(deps RowsDependencies) *RowsHandler {
	return &RowsHandler{deps: deps}
}

// HandleOpenRows handles GET /rows/open?from=...&to=... where each bound
// is a plain YYYY-MM-DD date or a full RFC 3339 timestamp. Plain dates
// are interpreted in the server's local zone as whole days, upper bound
// exclusive; timestamps are used as-is. Omitting both means the full
// retained log; giving one implies the other. The response is always 200
// so the dashboard poll loop never breaks; failures ride the error field.
func (h *RowsHandler) HandleOpenRows(w http.ResponseWriter, r *http.Request) {
	const op = "api.open_rows"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
		return
	}

	win, err := parseWindow(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusOK, RowsResponse{Rows: []model.OpenRow{}, Error: err.Error()})
		return
	}

	res, err := h.deps.OpenRows(r.Context(), win)
	if err != nil {
		res.Error = err.Error()
	}
	if res.Rows == nil {
		res.Rows = []model.OpenRow{}
	}
	writeJSON(w, http.StatusOK, res)
}

func parseWindow(q url.Values) (*RowsWindow, error) {
	fromStr, toStr := q.Get("from"), q.Get("to")
	if fromStr == "" && toStr == "" {
		return nil, nil
	}
	if fromStr == "" {
		fromStr = toStr
	}
	if toStr == "" {
		toStr = fromStr
	}
	from, _, err := parseBound(fromStr)
	if err != nil {
		return nil, fmt.Errorf("invalid from value %q: want YYYY-MM-DD or RFC 3339", fromStr)
	}
	to, toDateOnly, err := parseBound(toStr)
	if err != nil {
		return nil, fmt.Errorf("invalid to value %q: want YYYY-MM-DD or RFC 3339", toStr)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("to value %s precedes from value %s", toStr, fromStr)
	}
	if toDateOnly {
		// A plain date covers that whole day, so the exclusive upper
		// bound is the next midnight.
		to = to.AddDate(0, 0, 1)
	}
	return &RowsWindow{From: from, To: to}, nil
}

// parseBound accepts a plain date (local midnight, dateOnly true) or a
// full RFC 3339 timestamp taken as-is.
func parseBound(s string) (t time.Time, dateOnly bool, err error) {
	if t, err = time.ParseInLocation(dateLayout, s, time.Local); err == nil {
		return t, true, nil
	}
	if t, err = time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, err
}
