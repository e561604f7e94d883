// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/lectern/internal/logging"
	"github.com/tomtom215/lectern/internal/models"
	"github.com/tomtom215/lectern/internal/recommend"
)

// parseTierParam reads the tier query parameter. A missing tier is the
// anonymous free tier.
func parseTierParam(r *http.Request) (recommend.Tier, error) {
	tier, err := recommend.ParseTier(r.URL.Query().Get("tier"))
	if err != nil {
		return recommend.TierFree, recommend.NewValidationError("tier", "oneof", err.Error())
	}
	return tier, nil
}

// respondRecommendations writes a ranked list, lifting latency and cache
// state into the envelope metadata.
func respondRecommendations(w http.ResponseWriter, r *http.Request, resp *recommend.Response) {
	if resp.Items == nil {
		resp.Items = []recommend.ScoredItem{}
	}
	env := models.NewSuccess(resp)
	env.Metadata.RequestID = logging.RequestIDFromContext(r.Context())
	env.Metadata.QueryTimeMS = resp.Metadata.LatencyMS
	env.Metadata.Cached = resp.Metadata.CacheHit
	respondJSON(w, http.StatusOK, env)
}

// GetRecommendations handles GET /api/v1/recommendations/{userID}?k=
//
// Unknown users get the cold-start list, never a 404.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	k, err := queryInt(r, "k", 0)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	resp, err := h.service.GetRecommendations(ctx, userID, k)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Debug().
		Str("user_id", userID).
		Str("path", resp.Metadata.Path).
		Int("items", len(resp.Items)).
		Bool("cache_hit", resp.Metadata.CacheHit).
		Msg("recommendations served")

	respondRecommendations(w, r, resp)
}

// GetSimilar handles GET /api/v1/items/{itemID}/similar?k=&tier=
func (h *Handler) GetSimilar(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	k, err := queryInt(r, "k", 0)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	tier, err := parseTierParam(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	resp, err := h.service.GetSimilar(ctx, itemID, k, tier)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondRecommendations(w, r, resp)
}

// GetTrending handles GET /api/v1/trending?k=&tier=
func (h *Handler) GetTrending(w http.ResponseWriter, r *http.Request) {
	k, err := queryInt(r, "k", 0)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	tier, err := parseTierParam(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	resp, err := h.service.GetTrending(ctx, k, tier)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondRecommendations(w, r, resp)
}
