// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package reranking

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/tomtom215/lectern/internal/recommend"
)

// FreshnessConfig contains configuration for the age decay.
type FreshnessConfig struct {
	// Horizon is the age after which decay starts.
	// Default: 30 days
	Horizon time.Duration

	// Rate is the exponential decay per day beyond Horizon.
	// Default: 0.02
	Rate float64

	// Floor is the smallest multiplier applied.
	// Default: 0.5
	Floor float64

	// Now returns the reference time. Default: time.Now.
	Now func() time.Time
}

// DefaultFreshnessConfig returns the default freshness configuration.
func DefaultFreshnessConfig() FreshnessConfig {
	return FreshnessConfig{
		Horizon: 30 * 24 * time.Hour,
		Rate:    0.02,
		Floor:   0.5,
	}
}

// Freshness decays the scores of old items and re-sorts the kept list. It
// never changes which items are kept.
type Freshness struct {
	config FreshnessConfig
}

// NewFreshness creates a freshness stage.
func NewFreshness(cfg FreshnessConfig) *Freshness {
	if cfg.Rate < 0 {
		cfg.Rate = 0
	}
	if cfg.Floor < 0 {
		cfg.Floor = 0
	}
	if cfg.Floor > 1 {
		cfg.Floor = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Freshness{config: cfg}
}

// Name returns the reranker identifier.
func (f *Freshness) Name() string {
	return "freshness"
}

// Multiplier returns the decay applied to an item published at publishedAt.
func (f *Freshness) Multiplier(publishedAt, now time.Time) float64 {
	if publishedAt.IsZero() {
		return 1
	}
	over := now.Sub(publishedAt) - f.config.Horizon
	if over <= 0 {
		return 1
	}
	days := over.Hours() / 24
	return math.Max(f.config.Floor, math.Exp(-f.config.Rate*days))
}

// Rerank returns a copy of the first k items with decayed scores, stably
// re-sorted by the decayed score. Only the first k are touched, so the kept
// set and therefore the diversity quota are unchanged.
func (f *Freshness) Rerank(_ context.Context, items []recommend.ScoredItem, k int) []recommend.ScoredItem {
	if k > len(items) {
		k = len(items)
	}
	if k < 0 {
		k = 0
	}
	now := f.config.Now()

	out := make([]recommend.ScoredItem, k)
	copy(out, items[:k])
	for i := range out {
		out[i].Score *= f.Multiplier(out[i].PublishedAt, now)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
