// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/lectern/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil chiMiddleware uses the defaults.
func NewRouter(handler *Handler, chiMiddleware *ChiMiddleware) *Router {
	if chiMiddleware == nil {
		chiMiddleware = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: chiMiddleware}
}

// SetupChi builds the HTTP handler with every route and middleware.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, outermost first.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(chimiddleware.Compress(5, "application/json"))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		if router.handler.perfMon != nil {
			r.Use(router.handler.perfMon.Middleware)
		}

		// Reads
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Get("/recommendations/{userID}", router.handler.GetRecommendations)
			r.Get("/items/{itemID}/similar", router.handler.GetSimilar)
			r.Get("/trending", router.handler.GetTrending)
			r.Get("/users/{userID}/preferences", router.handler.GetPreferences)
			r.Get("/users/{userID}/history", router.handler.GetHistory)
			r.Get("/users/{userID}/reading-stats", router.handler.GetReadingStats)
			r.Get("/users/{userID}/engagement", router.handler.GetEngagement)
			r.Get("/users/{userID}/access/{itemID}", router.handler.CheckAccess)
			r.Get("/quality/insights", router.handler.GetQualityInsights)
			r.Get("/status", router.handler.Status)
		})

		// Event ingestion
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitEvents())
			r.Post("/events", router.handler.RecordEvent)
			r.Post("/events/batch", router.handler.RecordEventBatch)
		})

		// Writes that trigger embedding and index work
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitWrite())
			r.Put("/items/{itemID}", router.handler.PublishItem)
			r.Put("/users/{userID}/preferences", router.handler.PutPreferences)
		})
	})

	return r
}
