// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package quality

import (
	"context"
	"time"

	"github.com/tomtom215/lectern/internal/recommend"
)

type peer struct {
	itemID      string
	views       int64
	likes       int64
	publishedAt time.Time
}

// AuthorStats aggregates an author's published items.
type AuthorStats struct {
	Articles   int
	Views      int64
	Likes      int64
	QualitySum float64
	QualityN   int
}

// AvgQuality returns the mean stored overall score, or 0.5 when none exist.
func (a AuthorStats) AvgQuality() float64 {
	if a.QualityN == 0 {
		return 0.5
	}
	return a.QualitySum / float64(a.QualityN)
}

// CorpusStats holds the corpus-wide values the scorer normalizes against.
type CorpusStats struct {
	Max        recommend.Engagement
	Items      int
	BuiltAt    time.Time
	categories map[string][]peer
	authors    map[string]AuthorStats
}

// Author returns the stats of authorID.
func (c *CorpusStats) Author(authorID string) (AuthorStats, bool) {
	a, ok := c.authors[authorID]
	return a, ok
}

// BuildCorpus scans published items and stored quality scores.
func BuildCorpus(ctx context.Context, items recommend.ItemSource, scores Store, now time.Time) (*CorpusStats, error) {
	quality := make(map[string]float64)
	err := scores.ScanQuality(ctx, func(q *recommend.QualityScore) error {
		quality[q.ItemID] = q.Overall
		return nil
	})
	if err != nil {
		return nil, err
	}

	c := &CorpusStats{
		BuiltAt:    now,
		categories: make(map[string][]peer),
		authors:    make(map[string]AuthorStats),
	}
	err = items.ScanItems(ctx, func(it *recommend.ItemFeatures) error {
		if !it.Published() {
			return nil
		}
		c.Items++
		e := it.Engagement
		c.Max.Views = max(c.Max.Views, e.Views)
		c.Max.Likes = max(c.Max.Likes, e.Likes)
		c.Max.Bookmarks = max(c.Max.Bookmarks, e.Bookmarks)
		c.Max.Comments = max(c.Max.Comments, e.Comments)

		c.categories[it.Category] = append(c.categories[it.Category], peer{
			itemID: it.ItemID, views: e.Views, likes: e.Likes, publishedAt: it.PublishedAt,
		})

		a := c.authors[it.AuthorID]
		a.Articles++
		a.Views += e.Views
		a.Likes += e.Likes
		if q, ok := quality[it.ItemID]; ok {
			a.QualitySum += q
			a.QualityN++
		}
		c.authors[it.AuthorID] = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// categoryPercentile is the mean of the item's view and like percentile
// among category peers published within window, or 0.5 without peers.
func (c *CorpusStats) categoryPercentile(it *recommend.ItemFeatures, now time.Time, window time.Duration) float64 {
	cutoff := now.Add(-window)
	var n, viewRank, likeRank int
	for _, p := range c.categories[it.Category] {
		if p.itemID == it.ItemID || p.publishedAt.Before(cutoff) {
			continue
		}
		n++
		if p.views <= it.Engagement.Views {
			viewRank++
		}
		if p.likes <= it.Engagement.Likes {
			likeRank++
		}
	}
	if n == 0 {
		return 0.5
	}
	return (float64(viewRank)/float64(n) + float64(likeRank)/float64(n)) / 2
}
