// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package reranking

import (
	"context"

	"github.com/tomtom215/lectern/internal/recommend"
)

// maxRerankSize limits slice allocations; k is also bounded by len(items).
const maxRerankSize = 10000

// DiversityConfig contains configuration for the category quota.
type DiversityConfig struct {
	// MaxPerCategory is the most items of one category in a list.
	// Default: 3
	MaxPerCategory int
}

// DefaultDiversityConfig returns the default diversity configuration.
func DefaultDiversityConfig() DiversityConfig {
	return DiversityConfig{MaxPerCategory: 3}
}

// Diversity enforces a per-category quota by skipping over-quota
// candidates in score order.
type Diversity struct {
	maxPerCategory int
}

// NewDiversity creates a diversity stage. A non-positive quota falls back to 1.
func NewDiversity(cfg DiversityConfig) *Diversity {
	if cfg.MaxPerCategory < 1 {
		cfg.MaxPerCategory = 1
	}
	return &Diversity{maxPerCategory: cfg.MaxPerCategory}
}

// Name returns the reranker identifier.
func (d *Diversity) Name() string {
	return "diversity"
}

// MaxPerCategory returns the configured quota.
func (d *Diversity) MaxPerCategory() int {
	return d.maxPerCategory
}

// Rerank keeps up to k items, skipping any whose category is full.
//
//nolint:gocritic // rangeValCopy: ScoredItem passed by value in range, acceptable for clarity
func (d *Diversity) Rerank(ctx context.Context, items []recommend.ScoredItem, k int) []recommend.ScoredItem {
	if k <= 0 || len(items) == 0 {
		return []recommend.ScoredItem{}
	}
	if k > maxRerankSize {
		k = maxRerankSize
	}

	capacity := k
	if len(items) < capacity {
		capacity = len(items)
	}
	kept := make([]recommend.ScoredItem, 0, capacity)
	perCategory := make(map[string]int)

	for i, item := range items {
		// Check context periodically for long candidate lists.
		if i%256 == 0 && ctx.Err() != nil {
			break
		}
		if perCategory[item.Category] >= d.maxPerCategory {
			continue
		}
		perCategory[item.Category]++
		kept = append(kept, item)
		if len(kept) == k {
			break
		}
	}
	return kept
}
