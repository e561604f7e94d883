// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package recommend

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/lectern/internal/metrics"
)

type trendingItem struct {
	ItemMeta
	score float64
}

// trendingSnapshot holds the precomputed trending list per tier. A list for
// tier t contains only items gated at or below t.
type trendingSnapshot struct {
	byTier  map[Tier][]trendingItem
	builtAt time.Time
}

// engagementMass weights deeper engagement more heavily than views.
func engagementMass(e Engagement) float64 {
	return float64(e.Views) + 2*float64(e.Likes) + 3*float64(e.Bookmarks)
}

// RefreshTrending rebuilds the trending snapshot from the item store.
// Readers keep the previous snapshot until the swap.
func (e *Engine) RefreshTrending(ctx context.Context) error {
	e.trendingMu.Lock()
	defer e.trendingMu.Unlock()
	return e.refreshTrendingLocked(ctx)
}

func (e *Engine) refreshTrendingLocked(ctx context.Context) error {
	start := time.Now()

	var all []trendingItem
	var masses []float64
	maxMass := 0.0

	err := e.deps.Items.ScanItems(ctx, func(item *ItemFeatures) error {
		if !item.Published() {
			return nil
		}
		quality := 0.0
		if q, qerr := e.deps.Quality.GetQuality(ctx, item.ItemID); qerr == nil {
			quality = q.Overall
		}
		mass := engagementMass(item.Engagement)
		if mass > maxMass {
			maxMass = mass
		}
		all = append(all, trendingItem{ItemMeta: item.Meta(quality)})
		masses = append(masses, mass)
		return nil
	})
	if err != nil {
		return err
	}

	qw := e.config.Trending.QualityWeight
	denom := math.Log1p(maxMass)
	for i := range all {
		pop := 0.0
		if denom > 0 {
			pop = math.Log1p(masses[i]) / denom
		}
		all[i].score = qw*all[i].Quality + (1-qw)*pop
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		if all[i].Quality != all[j].Quality {
			return all[i].Quality > all[j].Quality
		}
		return all[i].ItemID < all[j].ItemID
	})

	snap := &trendingSnapshot{
		byTier:  make(map[Tier][]trendingItem, 3),
		builtAt: time.Now().UTC(),
	}
	for _, tier := range []Tier{TierFree, TierPremium, TierEnterprise} {
		list := make([]trendingItem, 0, e.config.Trending.MaxItems)
		for i := range all {
			if len(list) == e.config.Trending.MaxItems {
				break
			}
			if tier.Allows(all[i].AccessTier) {
				list = append(list, all[i])
			}
		}
		snap.byTier[tier] = list
	}
	e.trending.Store(snap)

	metrics.RecordMaintenance("trending", nil)
	e.logger.Debug().
		Int("items", len(all)).
		Dur("duration", time.Since(start)).
		Msg("trending snapshot refreshed")
	return nil
}

// trendingFor returns the trending list for tier, building the first
// snapshot on demand.
func (e *Engine) trendingFor(ctx context.Context, tier Tier) []trendingItem {
	snap := e.trending.Load()
	if snap == nil {
		e.trendingMu.Lock()
		if e.trending.Load() == nil {
			if err := e.refreshTrendingLocked(ctx); err != nil {
				e.logger.Warn().Err(err).Msg("trending snapshot unavailable")
			}
		}
		e.trendingMu.Unlock()
		snap = e.trending.Load()
		if snap == nil {
			return nil
		}
	}
	return snap.byTier[tier]
}

// Trending returns the top k trending items visible to tier.
func (e *Engine) Trending(ctx context.Context, k int, tier Tier) (*Response, error) {
	start := time.Now()
	k = e.ClampK(k)

	list := e.trendingFor(ctx, tier)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := make([]ScoredItem, 0, k)
	for i := range list {
		if len(items) == k {
			break
		}
		it := &list[i]
		if e.deps.Eligibility != nil && !e.deps.Eligibility.Eligible(&it.ItemMeta, tier) {
			continue
		}
		items = append(items, ScoredItem{
			ItemID:      it.ItemID,
			Score:       it.score,
			Category:    it.Category,
			AuthorID:    it.AuthorID,
			AccessTier:  it.AccessTier,
			PublishedAt: it.PublishedAt,
			Quality:     it.Quality,
			Sources:     map[string]float64{SourcePopularity: it.score},
			Reason:      "popular now",
		})
	}

	resp := &Response{
		Items:             items,
		NoRecommendations: len(items) == 0,
		Metadata: ResponseMetadata{
			RequestID:      uuid.New().String(),
			Path:           PathTrending,
			State:          StateDone,
			CandidateCount: len(list),
			Exhausted:      len(items) < k,
			LatencyMS:      time.Since(start).Milliseconds(),
			Timestamp:      time.Now().UTC(),
		},
	}
	if len(items) > 0 {
		resp.Metadata.Sources = []string{SourcePopularity}
	}
	metrics.RecordRank(PathTrending, time.Since(start))
	return resp, nil
}
