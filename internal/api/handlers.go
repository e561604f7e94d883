// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/middleware"
	"github.com/tomtom215/lectern/internal/recommend"
)

// RecommendationService is the engine surface the handlers drive.
// *recommend.Service implements it.
type RecommendationService interface {
	GetRecommendations(ctx context.Context, userID string, k int) (*recommend.Response, error)
	GetSimilar(ctx context.Context, itemID string, k int, tier recommend.Tier) (*recommend.Response, error)
	GetTrending(ctx context.Context, k int, tier recommend.Tier) (*recommend.Response, error)
	RecordEvent(ctx context.Context, event recommend.InteractionEvent) error
	PublishItem(ctx context.Context, item *recommend.ItemFeatures) (*recommend.ItemFeatures, error)
	SetPreferences(ctx context.Context, prefs *recommend.Preferences) error
	GetPreferences(ctx context.Context, userID string) (*recommend.Preferences, error)
	History(ctx context.Context, userID string, filter recommend.HistoryFilter) ([]recommend.InteractionEvent, error)
	ReadingStats(ctx context.Context, userID string, days int) (*recommend.ReadingStats, error)
	EngagementMetrics(ctx context.Context, userID string) (*recommend.EngagementMetrics, error)
	CheckAccess(ctx context.Context, userID, itemID string) (*recommend.AccessDecision, error)
	QualityInsights(ctx context.Context, days int) (*recommend.QualityInsights, error)
	Status() recommend.ServiceStatus
}

var _ RecommendationService = (*recommend.Service)(nil)

// HealthChecks report on the dependencies behind the service. Any nil
// check is skipped.
type HealthChecks struct {
	// Store returns nil while the document store is open.
	Store func(ctx context.Context) error

	// Events reports whether the aggregation consumer is running.
	Events func() bool

	// IndexedItems returns the similarity index size.
	IndexedItems func() int
}

// HandlerConfig tunes request handling.
type HandlerConfig struct {
	// RequestTimeout bounds each engine call.
	RequestTimeout time.Duration

	// Version is reported by the health endpoint.
	Version string

	// MaxBatchEvents caps POST /events/batch.
	MaxBatchEvents int

	// HistoryLimit is the default page size for history; MaxHistoryLimit caps it.
	HistoryLimit    int
	MaxHistoryLimit int
}

// DefaultHandlerConfig returns the handler defaults.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		RequestTimeout:  10 * time.Second,
		Version:         "dev",
		MaxBatchEvents:  100,
		HistoryLimit:    50,
		MaxHistoryLimit: 500,
	}
}

// Handler holds the dependencies of the HTTP handlers.
//
// Handler methods are split across files:
//   - handlers_recommend.go: recommendations, similar items, trending
//   - handlers_ingest.go: events and item publishing
//   - handlers_users.go: preferences, history, reading stats
//   - handlers_health.go: health checks and status
type Handler struct {
	service   RecommendationService
	checks    HealthChecks
	perfMon   *middleware.PerformanceMonitor
	config    HandlerConfig
	startTime time.Time
	logger    zerolog.Logger
}

// NewHandler creates the API handler. perfMon may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(service RecommendationService, checks HealthChecks, perfMon *middleware.PerformanceMonitor, cfg HandlerConfig, logger zerolog.Logger) *Handler {
	def := DefaultHandlerConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	if cfg.MaxBatchEvents <= 0 {
		cfg.MaxBatchEvents = def.MaxBatchEvents
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.MaxHistoryLimit < cfg.HistoryLimit {
		cfg.MaxHistoryLimit = max(def.MaxHistoryLimit, cfg.HistoryLimit)
	}

	return &Handler{
		service:   service,
		checks:    checks,
		perfMon:   perfMon,
		config:    cfg,
		startTime: time.Now(),
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// requestContext bounds an engine call by the configured timeout.
func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.config.RequestTimeout)
}
