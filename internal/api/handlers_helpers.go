// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/lectern/internal/logging"
	"github.com/tomtom215/lectern/internal/models"
)

// maxBodyBytes bounds request bodies. Item bodies carry full article text.
const maxBodyBytes = 4 << 20

// sanitizeLogValue replaces control characters so client input cannot
// forge log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// respondJSON writes response with status.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess writes a 200 envelope around data, stamped with the
// request ID.
func respondSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	respondStatus(w, r, http.StatusOK, data)
}

func respondStatus(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	resp := models.NewSuccess(data)
	resp.Metadata.RequestID = logging.RequestIDFromContext(r.Context())
	respondJSON(w, status, resp)
}

// respondError writes an error envelope. err, when given, is logged but
// never sent to the client.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}
	respondJSON(w, status, models.NewError(code, message, nil))
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	respondJSON(w, status, models.NewError(code, message, details))
}

// decodeJSONBody decodes a bounded JSON body into dst, rejecting trailing
// data.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// queryInt parses an integer query parameter. Missing means def; a
// malformed value is an error.
func queryInt(r *http.Request, key string, def int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

// queryTime parses an RFC 3339 query parameter. Missing is the zero time.
func queryTime(r *http.Request, key string) (time.Time, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp", key)
	}
	return t, nil
}

// parseCommaSeparated splits a comma-separated list, dropping empty parts.
func parseCommaSeparated(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// badRequest writes a 400 for malformed transport-level input.
func badRequest(w http.ResponseWriter, message string) {
	respondError(w, http.StatusBadRequest, ErrCodeBadRequest, message, nil)
}
