// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package profile

import (
	"fmt"
	"time"
)

// Config controls profile folding.
type Config struct {
	// DecayFactor is the per-day multiplier, in (0, 1].
	// Default: 0.95
	DecayFactor float64

	// ReadTimeUnit converts read_time seconds into a magnitude.
	// Default: 60s
	ReadTimeUnit time.Duration

	// MaxMagnitude caps any single event's magnitude.
	// Default: 3
	MaxMagnitude float64

	// MinWeight is the pruning threshold for all profile maps.
	// Default: 1e-6
	MinWeight float64

	// MaxInteractions bounds the interaction set; the lowest weights are
	// evicted first.
	// Default: 500
	MaxInteractions int

	// PreferenceSeed is added to the affinity of explicitly preferred categories.
	// Default: 1.0
	PreferenceSeed float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DecayFactor:     0.95,
		ReadTimeUnit:    60 * time.Second,
		MaxMagnitude:    3,
		MinWeight:       1e-6,
		MaxInteractions: 500,
		PreferenceSeed:  1.0,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DecayFactor <= 0 || c.DecayFactor > 1 {
		return fmt.Errorf("decay_factor must be in (0, 1], got %v", c.DecayFactor)
	}
	if c.ReadTimeUnit <= 0 {
		return fmt.Errorf("read_time_unit must be positive, got %v", c.ReadTimeUnit)
	}
	if c.MaxMagnitude <= 0 {
		return fmt.Errorf("max_magnitude must be positive, got %v", c.MaxMagnitude)
	}
	if c.MinWeight < 0 {
		return fmt.Errorf("min_weight must not be negative, got %v", c.MinWeight)
	}
	if c.MaxInteractions < 1 {
		return fmt.Errorf("max_interactions must be positive, got %d", c.MaxInteractions)
	}
	if c.PreferenceSeed < 0 {
		return fmt.Errorf("preference_seed must not be negative, got %v", c.PreferenceSeed)
	}
	return nil
}
