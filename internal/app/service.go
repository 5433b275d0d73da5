// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/slopeside/waiverboard/internal/adapters/bus"
	"github.com/slopeside/waiverboard/internal/adapters/http/api"
	"github.com/slopeside/waiverboard/internal/adapters/mq/queue"
	"github.com/slopeside/waiverboard/internal/adapters/mq/worker"
	"github.com/slopeside/waiverboard/internal/adapters/store"
	"github.com/slopeside/waiverboard/internal/adapters/upstream"
	"github.com/slopeside/waiverboard/internal/domain/dedupe"
	"github.com/slopeside/waiverboard/internal/domain/model"
	"github.com/slopeside/waiverboard/internal/domain/normalize"
	"github.com/slopeside/waiverboard/internal/domain/reconcile"
	"github.com/slopeside/waiverboard/pkg/logger"
	"github.com/slopeside/waiverboard/pkg/metrics"
)

// BusModePolled selects the version-polling fan-out; anything else
// gets the in-process broadcast.
const BusModePolled = "polled"

// fetchAdapter bridges the upstream client to the worker's Fetcher.
// Without credentials it passes the thin notification through so the
// pipeline still produces stub events in development.
type fetchAdapter struct {
	client *upstream.Client
}

func (f *fetchAdapter) FetchWaiver(ctx context.Context, waiverID string) (map[string]any, error) {
	if f.client == nil {
		return map[string]any{"waiverId": waiverID}, nil
	}
	return f.client.FetchWaiver(ctx, waiverID)
}

// Service implements the API dependencies for the waiver board.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       store.Store
	eventBus    bus.Bus
	deduper     dedupe.Deduper
	ingestQueue *queue.InMemory
	workerPool  *worker.Pool
	upstream    *upstream.Client
	normalizer  *normalize.Normalizer

	// Configuration
	workerCount         int
	queueSize           int
	dedupeSize          int
	storeCapacity       int
	busMode             string
	heartbeat           time.Duration
	pollInterval        time.Duration
	intakeTemplateID    string
	liabilityTemplateID string
	redisRESTURL        string
	redisRESTToken      string
	swBaseURL           string
	swAPIKey            string
	upstreamTimeout     time.Duration
	upstreamPageLimit   int
	upstreamMaxPages    int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of enrichment workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize bounds the ingest queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithStoreCapacity bounds the retained event log.
func WithStoreCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.storeCapacity = n
		}
	}
}

// WithBusMode selects the fan-out strategy ("inprocess" or "polled").
func WithBusMode(mode string) Option {
	return func(s *Service) {
		if mode != "" {
			s.busMode = mode
		}
	}
}

// WithHeartbeat sets the SSE keepalive interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// WithPollInterval sets the polled bus version-check interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithTemplates sets the tracked waiver template ids.
func WithTemplates(intakeID, liabilityID string) Option {
	return func(s *Service) {
		s.intakeTemplateID = intakeID
		s.liabilityTemplateID = liabilityID
	}
}

// WithRedisREST points the store at an Upstash-compatible REST endpoint.
// Empty values keep the in-memory store.
func WithRedisREST(url, token string) Option {
	return func(s *Service) {
		s.redisRESTURL = url
		s.redisRESTToken = token
	}
}

// WithSmartwaiver configures the upstream waiver API.
func WithSmartwaiver(baseURL, apiKey string) Option {
	return func(s *Service) {
		s.swBaseURL = baseURL
		s.swAPIKey = apiKey
	}
}

// WithUpstreamTuning adjusts upstream timeouts and pagination.
func WithUpstreamTuning(timeout time.Duration, pageLimit, maxPages int) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.upstreamTimeout = timeout
		}
		if pageLimit > 0 {
			s.upstreamPageLimit = pageLimit
		}
		if maxPages > 0 {
			s.upstreamMaxPages = maxPages
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:       runtime.NumCPU() * 2,
		queueSize:         1024,
		dedupeSize:        10_000,
		storeCapacity:     500,
		busMode:           "inprocess",
		heartbeat:         15 * time.Second,
		pollInterval:      time.Second,
		swBaseURL:         "https://api.smartwaiver.com",
		upstreamTimeout:   10 * time.Second,
		upstreamPageLimit: 100,
		upstreamMaxPages:  5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting waiver board service...")

	if s.redisRESTURL != "" && s.redisRESTToken != "" {
		s.store = store.NewRedis(s.redisRESTURL, s.redisRESTToken,
			store.WithCapacity(s.storeCapacity),
		)
		s.logger.Info(ctx, "using redis rest store")
	} else {
		s.store = store.NewMemory(store.WithMemoryCapacity(s.storeCapacity))
		s.logger.Info(ctx, "using in-memory store")
	}

	if s.busMode == BusModePolled {
		s.eventBus = bus.NewPolled(s.store,
			bus.WithHeartbeat(s.heartbeat),
			bus.WithPollInterval(s.pollInterval),
		)
	} else {
		s.eventBus = bus.NewInProcess(s.store,
			bus.WithHeartbeat(s.heartbeat),
		)
	}

	s.deduper = dedupe.New(dedupe.WithMaxSize(s.dedupeSize))
	s.ingestQueue = queue.NewInMemory(queue.WithCapacity(s.queueSize))
	s.normalizer = normalize.New()

	if s.swAPIKey != "" {
		s.upstream = upstream.New(s.swBaseURL, s.swAPIKey,
			upstream.WithTimeout(s.upstreamTimeout),
			upstream.WithPageLimit(s.upstreamPageLimit),
			upstream.WithMaxPages(s.upstreamMaxPages),
		)
	}

	fetcher := &fetchAdapter{client: s.upstream}
	s.workerPool = worker.NewPool(s.workerCount, s.ingestQueue, fetcher, s.normalizer, s.store, s.eventBus, s.deduper)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "waiver board service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("busMode", s.busMode),
		logger.Any("upstream", s.upstream != nil),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping waiver board service...")

	if s.workerPool != nil {
		s.workerPool.Stop()
	}
	if s.ingestQueue != nil {
		_ = s.ingestQueue.Close()
	}
	if s.eventBus != nil {
		_ = s.eventBus.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "waiver board service stopped")
}

// SeenAndRecord atomically checks whether a waiver id was seen and
// records it if not. Returns true for a duplicate.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord removes a waiver id from the seen list so a redelivery gets
// another chance.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Classify maps a template id to the event kind it represents.
func (s *Service) Classify(templateID string) (model.EventType, bool) {
	switch {
	case templateID == "":
		return "", false
	case templateID == s.intakeTemplateID:
		return model.TypeIntake, true
	case templateID == s.liabilityTemplateID:
		return model.TypeLiability, true
	default:
		return "", false
	}
}

// EnqueueIngest submits a classified notification for enrichment.
func (s *Service) EnqueueIngest(ctx context.Context, job queue.Job) bool {
	return s.ingestQueue.Enqueue(ctx, job)
}

// Subscribe attaches a live connection to the event bus.
func (s *Service) Subscribe(ctx context.Context) *bus.Subscription {
	return s.eventBus.Subscribe(ctx)
}

// Version returns the change counter.
func (s *Service) Version(ctx context.Context) int64 {
	return s.store.Version(ctx)
}

// HiddenKeys lists the hidden row keys.
func (s *Service) HiddenKeys(ctx context.Context) []string {
	return s.store.HiddenKeys(ctx)
}

// SetHidden sets a row's hidden state, bumps the change version, and
// nudges live connections.
func (s *Service) SetHidden(ctx context.Context, key string, hidden bool) (int64, error) {
	if err := s.store.SetHidden(ctx, key, hidden); err != nil {
		return s.store.Version(ctx), err
	}
	version := s.store.BumpVersion(ctx)
	s.eventBus.PublishTick(ctx, "hidden")
	return version, nil
}

// ToggleHidden flips a row's hidden state.
func (s *Service) ToggleHidden(ctx context.Context, key string) (bool, int64, error) {
	hidden, err := s.store.ToggleHidden(ctx, key)
	if err != nil {
		return hidden, s.store.Version(ctx), err
	}
	version := s.store.BumpVersion(ctx)
	s.eventBus.PublishTick(ctx, "hidden")
	return hidden, version, nil
}

// OpenRows reconciles the retained log over the window. When the log is
// empty and upstream credentials exist, the window is fetched from the
// waiver API instead, so a fresh process can still serve the dashboard.
func (s *Service) OpenRows(ctx context.Context, win *api.RowsWindow) (api.RowsResponse, error) {
	events := s.store.ReadAll(ctx)
	source := "store"

	if len(events) == 0 && s.upstream != nil {
		fetched, err := s.fetchWindow(ctx, win)
		if err != nil {
			return api.RowsResponse{Version: s.store.Version(ctx), Source: source}, err
		}
		events = fetched
		source = "upstream"
	}

	if win != nil {
		events = filterWindow(events, win.From, win.To)
	}

	summary := reconcile.Summarize(events)
	rows := reconcile.OpenParticipants(events)

	hidden := s.store.HiddenKeys(ctx)
	hiddenSet := make(map[string]struct{}, len(hidden))
	for _, k := range hidden {
		hiddenSet[k] = struct{}{}
	}
	visible := rows[:0]
	for _, row := range rows {
		if _, ok := hiddenSet[row.Key()]; !ok {
			visible = append(visible, row)
		}
	}

	return api.RowsResponse{
		Rows:    visible,
		Open:    summary.Open,
		Closed:  summary.Closed,
		Hidden:  hidden,
		Version: s.store.Version(ctx),
		Source:  source,
	}, nil
}

// fetchWindow pulls both tracked templates from the upstream API and
// normalizes the results. A nil window means the current local day.
func (s *Service) fetchWindow(ctx context.Context, win *api.RowsWindow) ([]model.WaiverEvent, error) {
	from, to := windowBounds(win)

	var events []model.WaiverEvent
	templates := []struct {
		id   string
		kind model.EventType
	}{
		{s.intakeTemplateID, model.TypeIntake},
		{s.liabilityTemplateID, model.TypeLiability},
	}
	for _, t := range templates {
		if t.id == "" {
			continue
		}
		raws, err := s.upstream.ListWaivers(ctx, t.id, from, to)
		if err != nil {
			return nil, err
		}
		for _, raw := range raws {
			events = append(events, s.normalizer.Normalize(raw, t.kind))
		}
	}
	return events, nil
}

func windowBounds(win *api.RowsWindow) (time.Time, time.Time) {
	if win != nil {
		return win.From, win.To
	}
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	return start, start.AddDate(0, 0, 1)
}

func filterWindow(events []model.WaiverEvent, from, to time.Time) []model.WaiverEvent {
	out := make([]model.WaiverEvent, 0, len(events))
	for _, ev := range events {
		if ev.SignedOn.Before(from) || !ev.SignedOn.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// ConfigInfo reports which integrations are wired, never their values.
func (s *Service) ConfigInfo(_ context.Context) map[string]any {
	storeKind := "memory"
	if s.redisRESTURL != "" && s.redisRESTToken != "" {
		storeKind = "redis"
	}
	return map[string]any{
		"smartwaiver":        s.swAPIKey != "",
		"redis":              s.redisRESTURL != "" && s.redisRESTToken != "",
		"intake_template":    s.intakeTemplateID != "",
		"liability_template": s.liabilityTemplateID != "",
		"store":              storeKind,
		"bus_mode":           s.busMode,
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"busMode":     s.busMode,
	}

	if s.started {
		version := s.store.Version(ctx)
		count := s.store.Count(ctx)
		conns := s.eventBus.ConnCount()

		stats["queueLength"] = s.ingestQueue.Len(ctx)
		stats["storedEvents"] = count
		stats["version"] = version
		stats["sseConnections"] = conns
		stats["dedupeEntries"] = s.deduper.Size()

		metrics.UpdateQueueSize(s.ingestQueue.Len(ctx))
		metrics.UpdateStoreEvents(count)
		metrics.UpdateVersion(version)
		metrics.UpdateSSEConnections(conns)
	}

	return stats
}
