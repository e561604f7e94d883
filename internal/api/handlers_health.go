// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/lectern/internal/middleware"
	"github.com/tomtom215/lectern/internal/models"
	"github.com/tomtom215/lectern/internal/recommend"
)

// healthStatus checks the dependencies.
func (h *Handler) healthStatus(r *http.Request) models.HealthStatus {
	storeOK := h.checks.Store == nil || h.checks.Store(r.Context()) == nil
	eventsOK := h.checks.Events == nil || h.checks.Events()

	status := "healthy"
	switch {
	case !storeOK:
		status = "unhealthy"
	case !eventsOK:
		// Requests are served; derived state lags until the consumer restarts.
		status = "degraded"
	}

	health := models.HealthStatus{
		Status:         status,
		Version:        h.config.Version,
		StoreConnected: storeOK,
		EventsRunning:  eventsOK,
		Uptime:         time.Since(h.startTime).Seconds(),
	}
	if h.checks.IndexedItems != nil {
		health.IndexedItems = h.checks.IndexedItems()
	}
	return health
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, h.healthStatus(r))
}

// HealthLive handles GET /api/v1/health/live. It is 200 while the process
// can serve HTTP at all.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /api/v1/health/ready. It is 503 while the store
// is unavailable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	health := h.healthStatus(r)
	if !health.StoreConnected {
		respondJSON(w, http.StatusServiceUnavailable, &models.APIResponse{
			Status:   models.StatusError,
			Data:     health,
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
			Error: &models.APIError{
				Code:    ErrCodeUnavailable,
				Message: "document store unavailable",
			},
		})
		return
	}
	respondSuccess(w, r, map[string]interface{}{
		"ready":  true,
		"status": health.Status,
	})
}

// StatusReport is returned by the status endpoint.
type StatusReport struct {
	Version   string                     `json:"version"`
	Uptime    float64                    `json:"uptime_seconds"`
	Service   recommend.ServiceStatus    `json:"service"`
	Endpoints []middleware.EndpointStats `json:"endpoints,omitempty"`
}

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	report := StatusReport{
		Version: h.config.Version,
		Uptime:  time.Since(h.startTime).Seconds(),
		Service: h.service.Status(),
	}
	if h.perfMon != nil {
		report.Endpoints = h.perfMon.Stats()
	}
	respondSuccess(w, r, report)
}
