// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/lectern/internal/logging"
	"github.com/tomtom215/lectern/internal/recommend"
)

// Error codes returned in models.APIError.
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeBadRequest  = "BAD_REQUEST"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeConflict    = "CONFLICT"
	ErrCodeRateLimited = "RATE_LIMIT_EXCEEDED"
	ErrCodeTimeout     = "TIMEOUT"
	ErrCodeUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeInternal    = "INTERNAL_ERROR"
)

// respondServiceError maps a service error onto an HTTP status and envelope.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *recommend.ValidationError
	switch {
	case errors.As(err, &ve):
		apiErr := ve.APIError()
		respondErrorDetails(w, http.StatusBadRequest, ErrCodeValidation, apiErr.Message, apiErr.Details)
	case errors.Is(err, recommend.ErrNotFound):
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Resource not found", nil)
	case errors.Is(err, recommend.ErrTierImmutable):
		respondError(w, http.StatusConflict, ErrCodeConflict, err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "Request timed out", err)
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the response.
		logging.Ctx(r.Context()).Debug().Msg("request cancelled by client")
	case errors.Is(err, recommend.ErrClosed):
		respondError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "Service is shutting down", err)
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", sanitizeLogValue(r.URL.Path)).Msg("request failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Internal server error", nil)
	}
}
