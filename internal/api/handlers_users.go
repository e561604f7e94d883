// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/lectern/internal/recommend"
)

// GetPreferences handles GET /api/v1/users/{userID}/preferences.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	prefs, err := h.service.GetPreferences(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, prefs)
}

// PutPreferences handles PUT /api/v1/users/{userID}/preferences.
// The stored document replaces the previous one.
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var prefs recommend.Preferences
	if err := decodeJSONBody(w, r, &prefs); err != nil {
		badRequest(w, err.Error())
		return
	}
	if prefs.UserID != "" && prefs.UserID != userID {
		respondServiceError(w, r, recommend.NewValidationError("user_id", "eqfield", "user_id does not match the path"))
		return
	}
	prefs.UserID = userID

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.service.SetPreferences(ctx, &prefs); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, &prefs)
}

// GetHistory handles GET /api/v1/users/{userID}/history.
//
// Query: actions (comma-separated), since and until (RFC 3339), limit.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit, err := queryInt(r, "limit", h.config.HistoryLimit)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	switch {
	case limit == 0:
		limit = h.config.HistoryLimit
	case limit > h.config.MaxHistoryLimit:
		limit = h.config.MaxHistoryLimit
	}
	since, err := queryTime(r, "since")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	until, err := queryTime(r, "until")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	filter := recommend.HistoryFilter{Since: since, Until: until, Limit: limit}
	for _, a := range parseCommaSeparated(r.URL.Query().Get("actions")) {
		filter.Actions = append(filter.Actions, recommend.Action(a))
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	events, err := h.service.History(ctx, userID, filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []recommend.InteractionEvent{}
	}
	respondSuccess(w, r, map[string]interface{}{
		"user_id": userID,
		"events":  events,
		"count":   len(events),
	})
}

// GetReadingStats handles GET /api/v1/users/{userID}/reading-stats?days=
func (h *Handler) GetReadingStats(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	stats, err := h.service.ReadingStats(ctx, chi.URLParam(r, "userID"), days)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, stats)
}

// GetEngagement handles GET /api/v1/users/{userID}/engagement
func (h *Handler) GetEngagement(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	m, err := h.service.EngagementMetrics(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, m)
}

// CheckAccess handles GET /api/v1/users/{userID}/access/{itemID}
//
// A denial is a successful answer; the decision carries the reason.
func (h *Handler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	d, err := h.service.CheckAccess(ctx, chi.URLParam(r, "userID"), chi.URLParam(r, "itemID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, d)
}

// GetQualityInsights handles GET /api/v1/quality/insights?days=
func (h *Handler) GetQualityInsights(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	insights, err := h.service.QualityInsights(ctx, days)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, insights)
}
