package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/slopeside/waiverboard/internal/domain/model"
	"github.com/slopeside/waiverboard/pkg/logger"
	"github.com/slopeside/waiverboard/pkg/metrics"
)

// Sentinel kinds for redis store errors.
var (
	ErrRESTStatus = errors.New("kv rest call failed")
	ErrRESTResult = errors.New("kv command rejected")
)

const maxErrorBody = 300

// Redis implements Store against an Upstash-style Redis REST endpoint.
// Commands go through the /pipeline endpoint with a bearer token; the
// append-and-trim sequence rides a single pipeline call so the capacity
// bound is enforced by the store, not by read-modify-write on our side.
type Redis struct {
	base       string
	token      string
	client     *http.Client
	capacity   int
	streamKey  string
	versionKey string
	hiddenKey  string
	channel    string
	log        logger.Logger
}

// command is one Redis command in REST form, e.g. {"RPUSH", key, value}.
type command []string

// result is one entry of a pipeline response.
type result struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// NewRedis creates a store speaking the Redis REST protocol.
func NewRedis(baseURL, token string, opts ...RedisOption) *Redis {
	r := &Redis{
		base:       strings.TrimRight(baseURL, "/"),
		token:      token,
		client:     &http.Client{Timeout: defaultRESTTimeout},
		capacity:   defaultCapacity,
		streamKey:  defaultStreamKey,
		versionKey: defaultVersionKey,
		hiddenKey:  defaultHiddenKey,
		channel:    defaultChannel,
		log:        logger.Get().Named("store"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// pipeline posts a batch of commands and returns one result per command.
func (r *Redis) pipeline(ctx context.Context, cmds []command) ([]result, error) {
	body, err := json.Marshal(cmds)
	if err != nil {
		return nil, fmt.Errorf("marshal pipeline: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/pipeline", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build pipeline request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("pipeline request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		metrics.RecordStoreError()
		peek := string(raw)
		if len(peek) > maxErrorBody {
			peek = peek[:maxErrorBody]
		}
		return nil, fmt.Errorf("%w: %d %s", ErrRESTStatus, resp.StatusCode, peek)
	}

	var results []result
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("decode pipeline response: %w", err)
	}
	for _, res := range results {
		if res.Error != "" {
			return results, fmt.Errorf("%w: %s", ErrRESTResult, res.Error)
		}
	}
	return results, nil
}

func (r *Redis) Append(ctx context.Context, ev model.WaiverEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = r.pipeline(ctx, []command{
		{"RPUSH", r.streamKey, string(payload)},
		{"LTRIM", r.streamKey, strconv.Itoa(-r.capacity), "-1"},
		{"INCR", r.versionKey},
		{"PUBLISH", r.channel, string(payload)},
	})
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (r *Redis) ReadAll(ctx context.Context) []model.WaiverEvent {
	results, err := r.pipeline(ctx, []command{{"LRANGE", r.streamKey, "0", "-1"}})
	if err != nil || len(results) == 0 {
		r.log.Warn(ctx, "read all degraded to empty", logger.Error(err))
		return nil
	}
	return decodeEvents(ctx, r.log, results[0].Result)
}

func (r *Redis) ReadSince(ctx context.Context, cursor int64) ([]model.WaiverEvent, int64) {
	results, err := r.pipeline(ctx, []command{
		{"LRANGE", r.streamKey, strconv.FormatInt(cursor, 10), "-1"},
		{"LLEN", r.streamKey},
	})
	if err != nil || len(results) < 2 {
		r.log.Warn(ctx, "read since degraded to empty", logger.Error(err))
		return nil, cursor
	}
	events := decodeEvents(ctx, r.log, results[0].Result)
	var llen int64
	_ = json.Unmarshal(results[1].Result, &llen)
	return events, llen
}

func decodeEvents(ctx context.Context, log logger.Logger, raw json.RawMessage) []model.WaiverEvent {
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Warn(ctx, "unexpected list payload", logger.Error(err))
		return nil
	}
	out := make([]model.WaiverEvent, 0, len(items))
	for _, item := range items {
		var ev model.WaiverEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			log.Warn(ctx, "skipping undecodable event", logger.Error(err))
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (r *Redis) Version(ctx context.Context) int64 {
	results, err := r.pipeline(ctx, []command{{"GET", r.versionKey}})
	if err != nil || len(results) == 0 {
		return 0
	}
	return parseCounter(results[0].Result)
}

func (r *Redis) BumpVersion(ctx context.Context) int64 {
	results, err := r.pipeline(ctx, []command{{"INCR", r.versionKey}})
	if err != nil || len(results) == 0 {
		r.log.Warn(ctx, "version bump failed", logger.Error(err))
		return 0
	}
	return parseCounter(results[0].Result)
}

// parseCounter reads a counter that Redis may return as integer or
// string, or null when the key does not exist yet.
func parseCounter(raw json.RawMessage) int64 {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v
		}
	}
	return 0
}

func (r *Redis) Count(ctx context.Context) int {
	results, err := r.pipeline(ctx, []command{{"LLEN", r.streamKey}})
	if err != nil || len(results) == 0 {
		return 0
	}
	return int(parseCounter(results[0].Result))
}

func (r *Redis) HiddenKeys(ctx context.Context) []string {
	results, err := r.pipeline(ctx, []command{{"SMEMBERS", r.hiddenKey}})
	if err != nil || len(results) == 0 {
		return nil
	}
	var members []string
	if err := json.Unmarshal(results[0].Result, &members); err != nil {
		return nil
	}
	return members
}

func (r *Redis) SetHidden(ctx context.Context, key string, hidden bool) error {
	cmd := command{"SADD", r.hiddenKey, key}
	if !hidden {
		cmd = command{"SREM", r.hiddenKey, key}
	}
	if _, err := r.pipeline(ctx, []command{cmd}); err != nil {
		return fmt.Errorf("set hidden: %w", err)
	}
	return nil
}

func (r *Redis) ToggleHidden(ctx context.Context, key string) (bool, error) {
	results, err := r.pipeline(ctx, []command{{"SISMEMBER", r.hiddenKey, key}})
	if err != nil || len(results) == 0 {
		return false, fmt.Errorf("toggle hidden: %w", err)
	}
	hidden := parseCounter(results[0].Result) == 0
	if err := r.SetHidden(ctx, key, hidden); err != nil {
		return false, err
	}
	return hidden, nil
}

func (r *Redis) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
