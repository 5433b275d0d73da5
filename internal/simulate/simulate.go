// Package simulate posts synthetic waiver notifications at a running
// instance for demos and manual testing. It exercises both notification
// body shapes the webhook accepts: plain JSON and the double-encoded
// payload wrapper.
package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Config drives one simulation run.
type Config struct {
	BaseURL             string
	Count               int
	LiabilityPercent    int
	IntakeTemplateID    string
	LiabilityTemplateID string
	Interval            time.Duration
	Timeout             time.Duration
}

// Result summarizes a run.
type Result struct {
	Sent       int
	Accepted   int
	Ignored    int
	Duplicates int
	Failures   int
}

// Run posts Count synthetic notifications and reports the outcome tally.
func Run(ctx context.Context, cfg *Config) (Result, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	var res Result

	for i := 0; i < cfg.Count; i++ {
		select {
		case <-ctx.Done():
			return res, fmt.Errorf("simulation interrupted: %w", ctx.Err())
		default:
		}

		templateID := cfg.IntakeTemplateID
		if rand.Intn(100) < cfg.LiabilityPercent {
			templateID = cfg.LiabilityTemplateID
		}
		body, err := notificationBody(uuid.NewString(), templateID, i%2 == 0)
		if err != nil {
			return res, err
		}

		status, err := post(ctx, client, cfg.BaseURL+"/webhook", body)
		res.Sent++
		switch {
		case err != nil:
			res.Failures++
		case status == "accepted":
			res.Accepted++
		case status == "duplicate":
			res.Duplicates++
		default:
			res.Ignored++
		}

		if cfg.Interval > 0 {
			time.Sleep(cfg.Interval)
		}
	}
	return res, nil
}

// notificationBody renders a webhook body. Wrapped bodies carry the
// real document as a JSON string under "payload", matching one of the
// provider's delivery modes.
func notificationBody(waiverID, templateID string, wrapped bool) ([]byte, error) {
	inner := map[string]any{
		"unique_id":  waiverID,
		"templateId": templateID,
	}
	if !wrapped {
		b, err := json.Marshal(inner)
		if err != nil {
			return nil, fmt.Errorf("marshal notification: %w", err)
		}
		return b, nil
	}
	innerJSON, err := json.Marshal(inner)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	b, err := json.Marshal(map[string]any{"payload": string(innerJSON)})
	if err != nil {
		return nil, fmt.Errorf("marshal wrapper: %w", err)
	}
	return b, nil
}

func post(ctx context.Context, client *http.Client, url string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var ack struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return "", fmt.Errorf("decode ack: %w", err)
	}
	return ack.Status, nil
}
