// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/lectern/internal/recommend"
)

// stampEvent fills in the receive time when the client sent none.
func stampEvent(ev *recommend.InteractionEvent, now time.Time) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now
	}
}

// RecordEvent handles POST /api/v1/events.
//
// The response is 202: the event is durable, derived state catches up
// asynchronously.
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var ev recommend.InteractionEvent
	if err := decodeJSONBody(w, r, &ev); err != nil {
		badRequest(w, err.Error())
		return
	}
	stampEvent(&ev, time.Now().UTC())

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.service.RecordEvent(ctx, ev); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondStatus(w, r, http.StatusAccepted, map[string]interface{}{
		"recorded": 1,
	})
}

// batchRequest is the body of POST /api/v1/events/batch.
type batchRequest struct {
	Events []recommend.InteractionEvent `json:"events"`
}

// BatchEventResult reports the outcome of one event in a batch.
type BatchEventResult struct {
	Index int    `json:"index"`
	Error string `json:"error,omitempty"`
}

// RecordEventBatch handles POST /api/v1/events/batch.
//
// Events are recorded independently: an invalid event is reported in the
// results without rejecting its neighbours.
func (h *Handler) RecordEventBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if len(req.Events) == 0 {
		badRequest(w, "events must not be empty")
		return
	}
	if len(req.Events) > h.config.MaxBatchEvents {
		badRequest(w, fmt.Sprintf("at most %d events per batch", h.config.MaxBatchEvents))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	now := time.Now().UTC()
	recorded := 0
	var failed []BatchEventResult
	for i := range req.Events {
		ev := req.Events[i]
		stampEvent(&ev, now)
		err := h.service.RecordEvent(ctx, ev)
		if err == nil {
			recorded++
			continue
		}
		if !recommend.IsValidation(err) {
			// Store or context failure: later events would fail the same way.
			respondServiceError(w, r, err)
			return
		}
		failed = append(failed, BatchEventResult{Index: i, Error: err.Error()})
	}

	respondStatus(w, r, http.StatusAccepted, map[string]interface{}{
		"recorded": recorded,
		"failed":   failed,
	})
}

// PublishItem handles PUT /api/v1/items/{itemID}.
//
// The path ID wins; a body carrying a different item_id is rejected.
func (h *Handler) PublishItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	var item recommend.ItemFeatures
	if err := decodeJSONBody(w, r, &item); err != nil {
		badRequest(w, err.Error())
		return
	}
	if item.ItemID != "" && item.ItemID != itemID {
		respondServiceError(w, r, recommend.NewValidationError("item_id", "eqfield", "item_id does not match the path"))
		return
	}
	item.ItemID = itemID

	ctx, cancel := h.requestContext(r)
	defer cancel()

	stored, err := h.service.PublishItem(ctx, &item)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.logger.Info().
		Str("item_id", stored.ItemID).
		Str("status", string(stored.Status)).
		Str("tier", stored.AccessTier.String()).
		Msg("item published")
	respondSuccess(w, r, stored)
}
