// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

// Package metrics holds Lectern's Prometheus collectors. Collectors are
// registered on the default registry at init via promauto and exposed on
// /metrics by the API router.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Document store
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lectern_store_op_duration_seconds",
			Help:    "Duration of BadgerDB store operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"operation"},
	)

	StoreOpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lectern_store_op_errors_total",
			Help: "Total number of failed BadgerDB store operations",
		},
		[]string{"operation"},
	)

	// Event ingestion
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lectern_events_ingested_total",
			Help: "Total number of interaction events durably recorded",
		},
		[]string{"action"},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lectern_events_rejected_total",
			Help: "Total number of interaction events rejected by validation",
		},
		[]string{"reason"},
	)

	EventsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lectern_events_deduplicated_total",
			Help: "Total number of duplicate interaction events ignored",
		},
	)

	EventsPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lectern_events_publish_failures_total",
			Help: "Total number of aggregation triggers that could not be published",
		},
	)

	// Profile aggregation
	ProfileUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lectern_profile_updates_total",
			Help: "Total number of profile aggregations by outcome",
		},
		[]string{"outcome"}, // "updated", "unchanged", "error"
	)

	ProfileUpdateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lectern_profile_update_duration_seconds",
			Help:    "Duration of profile aggregation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Quality scoring
	QualityComputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lectern_quality_computations_total",
			Help: "Total number of quality score requests by outcome",
		},
		[]string{"outcome"}, // "recomputed", "reused", "error"
	)

	// Embedding cache
	EmbeddingCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lectern_embedding_cache_lookups_total",
			Help: "Total number of embedding cache lookups by tier and result",
		},
		[]string{"tier", "result"}, // tier: memory, store; result: hit, miss, stale
	)

	EmbeddingGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lectern_embedding_generations_total",
			Help: "Total number of embedding generations by outcome",
		},
		[]string{"outcome"}, // "ok", "unavailable", "conflict", "superseded"
	)

	ProfileVectorResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lectern_profile_vector_resolutions_total",
			Help: "Total number of profile vectors resolved from the store or built per request",
		},
		[]string{"source"}, // "stored", "built"
	)

	EmbeddingGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lectern_embedding_generation_duration_seconds",
			Help:    "Duration of embedding generations in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	EmbeddingBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lectern_embedding_breaker_state",
			Help: "Embedding circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Similarity index and collaborative graph
	IndexItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lectern_index_items",
			Help: "Number of item vectors in the current similarity index snapshot",
		},
	)

	IndexRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lectern_index_refreshes_total",
			Help: "Total number of similarity index refreshes by kind",
		},
		[]string{"kind"}, // "full", "forced"
	)

	CollabUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lectern_collab_users",
			Help: "Number of users in the collaborative interaction graph",
		},
	)

	CollabEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lectern_collab_edges",
			Help: "Number of positive user-item edges in the collaborative interaction graph",
		},
	)

	// Ranking
	RankDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lectern_rank_duration_seconds",
			Help:    "Duration of recommendation ranking in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"path"}, // "personalized", "cold_start", "similar", "trending"
	)

	RankDegradations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lectern_rank_degradations_total",
			Help: "Total number of ranking runs that lost a signal source",
		},
		[]string{"source", "reason"},
	)

	// Recommendation cache
	RecCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lectern_rec_cache_requests_total",
			Help: "Total number of recommendation cache requests by result",
		},
		[]string{"result"}, // "hit", "miss", "shared"
	)

	RecCacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lectern_rec_cache_invalidations_total",
			Help: "Total number of recommendation cache invalidations",
		},
	)

	// Maintenance
	MaintenancePasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lectern_maintenance_passes_total",
			Help: "Total number of background maintenance passes by task and outcome",
		},
		[]string{"task", "outcome"},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lectern_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lectern_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordStoreOp records a store operation and its failure, if any.
func RecordStoreOp(operation string, duration time.Duration, err error) {
	StoreOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreOpErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRank records ranking latency for a path.
func RecordRank(path string, duration time.Duration) {
	RankDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// RecordDegradation records a lost signal source during ranking.
func RecordDegradation(source, reason string) {
	RankDegradations.WithLabelValues(source, reason).Inc()
}

// RecordMaintenance records the outcome of a background pass.
func RecordMaintenance(task string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	MaintenancePasses.WithLabelValues(task, outcome).Inc()
}
