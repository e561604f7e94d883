// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package recommend

import (
	"errors"

	"github.com/tomtom215/lectern/internal/validation"
)

var (
	// ErrNotFound is returned when a user, item or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmbeddingUnavailable is returned when a vector could not be produced.
	// Callers degrade: content candidates are skipped for this request.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrStaleCacheConflict is returned when a concurrent writer stored a
	// different fingerprint for the same subject. The result must not be served.
	ErrStaleCacheConflict = errors.New("stale cache conflict")

	// ErrTierImmutable is returned when an update changes the access tier of a
	// published item.
	ErrTierImmutable = errors.New("access tier is immutable after publish")

	// ErrClosed is returned by components used after shutdown.
	ErrClosed = errors.New("closed")
)

// ValidationError reports a malformed request. Nothing was changed.
type ValidationError struct {
	details *validation.RequestValidationError
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, tag, message string) *ValidationError {
	return &ValidationError{details: validation.NewFieldError(field, tag, nil, message)}
}

// WrapValidation adapts struct-tag validation failures.
func WrapValidation(details *validation.RequestValidationError) *ValidationError {
	return &ValidationError{details: details}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.details.Error()
}

// Fields returns the failing field names.
func (e *ValidationError) Fields() []string {
	return e.details.Fields()
}

// APIError returns the error in the HTTP API format.
func (e *ValidationError) APIError() *validation.APIError {
	return e.details.ToAPIError()
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
