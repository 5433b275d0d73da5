// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/slopeside/waiverboard/internal/adapters/mq/queue"
	"github.com/slopeside/waiverboard/internal/domain/dedupe"
	"github.com/slopeside/waiverboard/internal/domain/model"
	"github.com/slopeside/waiverboard/pkg/logger"
	"github.com/slopeside/waiverboard/pkg/metrics"
)

// maxWebhookBody bounds how much of a notification body is read.
const maxWebhookBody = 1 << 20

// Webhook bodies arrive in several shapes depending on provider settings:
// plain JSON, JSON with the real body nested under "waiver" or "data", a
// JSON "payload" field holding a second JSON document as a string, or a
// form post. These path lists cover the id spellings seen across them.
var (
	waiverIDPaths = []string{
		"unique_id", "waiverId", "waiver_id",
		"waiver.waiverId", "waiver.waiver_id",
		"data.waiverId", "data.unique_id",
	}
	templateIDPaths = []string{
		"templateId", "template_id",
		"waiver.templateId", "waiver.template_id",
		"data.templateId",
	}
)

// WebhookDependencies defines the interface for webhook ingestion.
type WebhookDependencies interface {
	dedupe.Deduper
	Classify(templateID string) (model.EventType, bool)
	EnqueueIngest(ctx context.Context, job queue.Job) bool
}

// WebhookHandler handles waiver notification requests.
type WebhookHandler struct {
	deps WebhookDependencies
	log  logger.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(deps WebhookDependencies) *WebhookHandler {
	return &WebhookHandler{deps: deps, log: logger.Get().Named("webhook")}
}

type webhookResponse struct {
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// HandleWebhook handles POST /webhook requests.
//
// The provider disables an endpoint that keeps failing, so every parse
// or classification problem is acknowledged with 200 and an explanatory
// body instead of an error status. Only a wrong method gets 405.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "api.webhook"
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
		return
	}
	metrics.RecordWebhookReceived()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.ignore(w, r.Context(), "unreadable body")
		return
	}

	payload := decodeNotification(body)
	if payload == nil {
		h.ignore(w, r.Context(), "unparseable body")
		return
	}

	waiverID := stringField(payload, waiverIDPaths...)
	if waiverID == "" {
		h.ignore(w, r.Context(), "missing waiver id")
		return
	}

	templateID := stringField(payload, templateIDPaths...)
	kind, tracked := h.deps.Classify(templateID)
	if !tracked {
		h.ignore(w, r.Context(), "unrecognized template")
		return
	}

	if h.deps.SeenAndRecord(r.Context(), waiverID) {
		metrics.RecordWebhookDuplicate()
		writeJSON(w, http.StatusOK, webhookResponse{Status: "duplicate", Duplicate: true})
		return
	}

	job := queue.Job{WaiverID: waiverID, TemplateID: templateID, Kind: kind}
	if ok := h.deps.EnqueueIngest(r.Context(), job); !ok {
		// Roll back the seen record so a provider redelivery is retried.
		h.deps.Unrecord(r.Context(), waiverID)
		h.log.Warn(r.Context(), "ingest queue full; notification dropped",
			logger.String("waiverID", waiverID),
		)
		writeJSON(w, http.StatusOK, webhookResponse{Status: "error", Reason: "backpressure"})
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{Status: "accepted", Kind: string(kind)})
}

func (h *WebhookHandler) ignore(w http.ResponseWriter, ctx context.Context, reason string) {
	metrics.RecordWebhookIgnored()
	h.log.Debug(ctx, "webhook ignored", logger.String("reason", reason))
	writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored", Reason: reason})
}

// decodeNotification parses a webhook body as JSON, falling back to a
// form post. Returns nil when neither shape fits.
func decodeNotification(body []byte) map[string]any {
	raw := map[string]any{}
	if err := json.Unmarshal(body, &raw); err == nil {
		return unwrapPayload(raw)
	}
	vals, err := url.ParseQuery(string(body))
	if err != nil || len(vals) == 0 {
		return nil
	}
	m := make(map[string]any, len(vals))
	for k := range vals {
		m[k] = vals.Get(k)
	}
	return unwrapPayload(m)
}

// unwrapPayload handles the double-encoded shape where the real body is
// a JSON string under "payload".
func unwrapPayload(m map[string]any) map[string]any {
	s, ok := m["payload"].(string)
	if !ok || s == "" {
		return m
	}
	inner := map[string]any{}
	if err := json.Unmarshal([]byte(s), &inner); err != nil {
		return m
	}
	return inner
}

// stringField returns the first non-empty string found at the given
// dotted paths.
func stringField(m map[string]any, paths ...string) string {
	for _, path := range paths {
		cur := any(m)
		found := true
		for _, part := range strings.Split(path, ".") {
			mm, isMap := cur.(map[string]any)
			if !isMap {
				found = false
				break
			}
			cur, found = mm[part]
			if !found {
				break
			}
		}
		if !found {
			continue
		}
		if s, isStr := cur.(string); isStr && s != "" {
			return s
		}
	}
	return ""
}
