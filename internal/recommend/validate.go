// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package recommend

import (
	"fmt"
	"math"

	"github.com/tomtom215/lectern/internal/validation"
)

// Validate checks an event for structural and domain errors.
func (e *InteractionEvent) Validate() error {
	if verr := validation.ValidateStruct(e); verr != nil {
		return WrapValidation(verr)
	}
	if !e.Action.Known() {
		return NewValidationError("action", "action", fmt.Sprintf("unknown action %q", e.Action))
	}
	if e.Timestamp.IsZero() {
		return NewValidationError("timestamp", "required", "timestamp is required")
	}
	if math.IsNaN(e.Magnitude) || math.IsInf(e.Magnitude, 0) {
		return NewValidationError("magnitude", "finite", "magnitude must be a finite number")
	}
	switch e.Action {
	case ActionSearch:
		if e.Query == "" && e.ItemID == "" {
			return NewValidationError("query", "required", "query is required for search events")
		}
	default:
		if e.ItemID == "" {
			return NewValidationError("item_id", "required", "item_id is required")
		}
	}
	if e.Action == ActionScroll && e.Magnitude > 1 {
		return NewValidationError("magnitude", "range", "magnitude must be within [0, 1] for scroll")
	}
	return nil
}

// Validate checks an item for structural errors before it is stored.
func (i *ItemFeatures) Validate() error {
	if verr := validation.ValidateStruct(i); verr != nil {
		return WrapValidation(verr)
	}
	if i.AccessTier < TierFree || i.AccessTier > TierEnterprise {
		return NewValidationError("access_tier", "oneof", "access_tier must be free, premium or enterprise")
	}
	return nil
}

// Validate checks user preferences.
func (p *Preferences) Validate() error {
	if verr := validation.ValidateStruct(p); verr != nil {
		return WrapValidation(verr)
	}
	if p.Tier < TierFree || p.Tier > TierEnterprise {
		return NewValidationError("tier", "oneof", "tier must be free, premium or enterprise")
	}
	return nil
}

// validateIdentifier checks a bare id taken from a path or query.
func validateIdentifier(field, value string) error {
	if err := validation.GetValidator().Var(value, "required,identifier"); err != nil {
		return NewValidationError(field, "identifier", field+" must be a printable identifier without whitespace (max 128 bytes)")
	}
	return nil
}
