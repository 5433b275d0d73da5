// Package upstream is the client seam for the waiver provider's REST
// API. The core only needs list-by-template-and-range and
// fetch-detail-by-id; everything else about the provider stays opaque.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/slopeside/waiverboard/pkg/logger"
	"github.com/slopeside/waiverboard/pkg/metrics"
)

// Sentinel kinds for upstream errors.
var (
	ErrMissingKey = errors.New("missing api key")
	ErrStatus     = errors.New("unexpected upstream status")
)

const (
	defaultBaseURL = "https://api.smartwaiver.com/v4"
	defaultTimeout = 15 * time.Second
	defaultLimit   = 100
	defaultPages   = 5
	maxErrorBody   = 500

	// The provider's gateway has accepted either of these header names
	// depending on deployment; the client retries with the alternate on
	// a 401.
	primaryKeyHeader  = "sw-api-key"
	fallbackKeyHeader = "x-api-key"
)

// Client calls the waiver provider with bounded timeouts and page caps.
type Client struct {
	base      string
	apiKey    string
	client    *http.Client
	pageLimit int
	maxPages  int
	log       logger.Logger
}

// New creates a Client. baseURL may be bare ("api.smartwaiver.com") or
// versioned; it is normalized to scheme + /v4.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		base:      normalizeBase(baseURL),
		apiKey:    strings.TrimSpace(apiKey),
		client:    &http.Client{Timeout: defaultTimeout},
		pageLimit: defaultLimit,
		maxPages:  defaultPages,
		log:       logger.Get().Named("upstream"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// normalizeBase ensures a scheme, trims trailing slashes, and appends
// the versioned path when absent.
func normalizeBase(base string) string {
	s := strings.TrimSpace(base)
	if s == "" {
		return defaultBaseURL
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	s = strings.TrimRight(s, "/")
	if !strings.HasSuffix(s, "/v4") {
		s += "/v4"
	}
	return s
}

// getJSON performs one GET with the api key, retrying once with the
// alternate header name when the gateway rejects the first with a 401.
func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	if c.apiKey == "" {
		return ErrMissingKey
	}

	start := time.Now()
	defer func() {
		metrics.RecordUpstreamLatency(float64(time.Since(start).Milliseconds()))
	}()

	resp, err := c.do(ctx, path, primaryKeyHeader)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		resp, err = c.do(ctx, path, fallbackKeyHeader)
	}
	if err != nil {
		metrics.RecordUpstreamRequest(op, "error")
		return fmt.Errorf("%s: %w", op, err)
	}
	defer drain(resp)

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode != http.StatusOK {
		metrics.RecordUpstreamRequest(op, "error")
		peek := string(raw)
		if len(peek) > maxErrorBody {
			peek = peek[:maxErrorBody]
		}
		return fmt.Errorf("%s: %w: %d %s", op, ErrStatus, resp.StatusCode, peek)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		metrics.RecordUpstreamRequest(op, "error")
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	metrics.RecordUpstreamRequest(op, "ok")
	return nil
}

func (c *Client) do(ctx context.Context, path, keyHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(keyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}

// FetchWaiver retrieves the full detail record for one waiver id,
// unwrapping the provider's "waiver" envelope when present.
func (c *Client) FetchWaiver(ctx context.Context, waiverID string) (map[string]any, error) {
	var payload map[string]any
	path := "/waivers/" + url.PathEscape(waiverID)
	if err := c.getJSON(ctx, "fetch_waiver", path, &payload); err != nil {
		return nil, err
	}
	if w, ok := payload["waiver"].(map[string]any); ok {
		return w, nil
	}
	return payload, nil
}

// ListWaivers returns raw waiver summaries for one template within the
// time window, paging until a short page or the hard page cap. Zero
// times omit the corresponding bound.
func (c *Client) ListWaivers(ctx context.Context, templateID string, from, to time.Time) ([]map[string]any, error) {
	var all []map[string]any
	for page := 0; page < c.maxPages; page++ {
		q := url.Values{}
		q.Set("templateId", templateID)
		q.Set("verified", "true")
		q.Set("limit", strconv.Itoa(c.pageLimit))
		if !from.IsZero() {
			q.Set("fromDts", from.UTC().Format(time.RFC3339))
		}
		if !to.IsZero() {
			q.Set("toDts", to.UTC().Format(time.RFC3339))
		}
		if page > 0 {
			q.Set("offset", strconv.Itoa(page*c.pageLimit))
		}

		var payload struct {
			Waivers []map[string]any `json:"waivers"`
		}
		if err := c.getJSON(ctx, "list_waivers", "/waivers?"+q.Encode(), &payload); err != nil {
			return all, err
		}
		all = append(all, payload.Waivers...)
		if len(payload.Waivers) < c.pageLimit {
			break
		}
	}
	return all, nil
}
