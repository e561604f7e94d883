// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package quality

import (
	"fmt"
	"math"
	"time"
)

// Weights combine the five sub-scores. They must sum to 1.
type Weights struct {
	Content    float64
	Engagement float64
	Social     float64
	Author     float64
	Recency    float64
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Content + w.Engagement + w.Social + w.Author + w.Recency
}

// Config controls quality scoring.
type Config struct {
	// Default: content 0.3, engagement 0.3, social 0.2, author 0.15, recency 0.05
	Weights Weights

	// RecomputeThreshold is the relative engagement change that triggers a
	// recompute.
	// Default: 0.10
	RecomputeThreshold float64

	// MaxAge forces a recompute of older scores.
	// Default: 7 days
	MaxAge time.Duration

	// RecencyHalfLife and RecencyFloor shape the recency sub-score.
	// Default: 30 days, 0.1
	RecencyHalfLife time.Duration
	RecencyFloor    float64

	// PopularViews marks an item as popular for the social sub-score.
	// Default: 1000
	PopularViews int64

	// CategoryWindow limits the peers used for the category percentile.
	// Default: 30 days
	CategoryWindow time.Duration

	// CorpusTTL is how long corpus statistics are reused.
	// Default: 5m
	CorpusTTL time.Duration

	// BatchLimit bounds how many stale items one Batch(nil) call scores.
	// Default: 100
	BatchLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Content:    0.3,
			Engagement: 0.3,
			Social:     0.2,
			Author:     0.15,
			Recency:    0.05,
		},
		RecomputeThreshold: 0.10,
		MaxAge:             7 * 24 * time.Hour,
		RecencyHalfLife:    30 * 24 * time.Hour,
		RecencyFloor:       0.1,
		PopularViews:       1000,
		CategoryWindow:     30 * 24 * time.Hour,
		CorpusTTL:          5 * time.Minute,
		BatchLimit:         100,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	w := c.Weights
	for name, v := range map[string]float64{
		"content": w.Content, "engagement": w.Engagement, "social": w.Social,
		"author": w.Author, "recency": w.Recency,
	} {
		if v < 0 {
			return fmt.Errorf("quality weight %s must not be negative, got %v", name, v)
		}
	}
	if math.Abs(w.Sum()-1) > 1e-9 {
		return fmt.Errorf("quality weights must sum to 1, got %v", w.Sum())
	}
	if c.RecomputeThreshold < 0 {
		return fmt.Errorf("recompute_threshold must not be negative, got %v", c.RecomputeThreshold)
	}
	if c.MaxAge <= 0 || c.RecencyHalfLife <= 0 || c.CategoryWindow <= 0 || c.CorpusTTL <= 0 {
		return fmt.Errorf("quality durations must be positive")
	}
	if c.RecencyFloor <= 0 || c.RecencyFloor >= 1 {
		return fmt.Errorf("recency_floor must be in (0, 1), got %v", c.RecencyFloor)
	}
	if c.BatchLimit < 1 {
		return fmt.Errorf("batch_limit must be positive, got %d", c.BatchLimit)
	}
	return nil
}
