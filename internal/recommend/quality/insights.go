// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package quality

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/lectern/internal/recommend"
)

// Insight window bounds, in days.
const (
	DefaultInsightDays = 30
	MaxInsightDays     = 365
)

// Insights averages the scores computed within the last days and counts
// them per label. Days outside [1, MaxInsightDays] fall back to
// DefaultInsightDays.
func (s *Scorer) Insights(ctx context.Context, days int) (*recommend.QualityInsights, error) {
	if days < 1 || days > MaxInsightDays {
		days = DefaultInsightDays
	}
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)

	out := &recommend.QualityInsights{Days: days, Distribution: make(map[string]int)}
	var sum recommend.QualityAverages
	err := s.store.ScanQuality(ctx, func(q *recommend.QualityScore) error {
		if q.ComputedAt.Before(since) {
			return nil
		}
		out.Analyzed++
		sum.Overall += q.Overall
		sum.Content += q.Content
		sum.Engagement += q.Engagement
		sum.Social += q.Social
		sum.Author += q.Author
		out.Distribution[Label(q.Overall)]++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan quality scores: %w", err)
	}
	if out.Analyzed == 0 {
		return out, nil
	}

	n := float64(out.Analyzed)
	out.Averages = recommend.QualityAverages{
		Overall:    round4(sum.Overall / n),
		Content:    round4(sum.Content / n),
		Engagement: round4(sum.Engagement / n),
		Social:     round4(sum.Social / n),
		Author:     round4(sum.Author / n),
	}
	return out, nil
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

var _ recommend.QualityReporter = (*Scorer)(nil)
