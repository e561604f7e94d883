// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package recommend_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/lectern/internal/recommend"
)

var errSourceDown = errors.New("source down")

type fakeProfiles struct {
	profiles map[string]*recommend.UserProfile
}

func (f *fakeProfiles) Profile(_ context.Context, userID string) (*recommend.UserProfile, error) {
	if p, ok := f.profiles[userID]; ok {
		return p.Clone(), nil
	}
	return recommend.NewUserProfile(userID), nil
}

type fakeVectorizer struct {
	err error
}

func (f *fakeVectorizer) ProfileVector(_ context.Context, _ *recommend.UserProfile) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

// fakeIndex returns its hits in order, ignoring the query.
type fakeIndex struct {
	hits    []recommend.Hit
	vectors map[string][]float32
}

func (f *fakeIndex) TopK(_ []float32, k int, filter func(*recommend.ItemMeta) bool) []recommend.Hit {
	var out []recommend.Hit
	for i := range f.hits {
		h := f.hits[i]
		if filter != nil && !filter(&h.ItemMeta) {
			continue
		}
		out = append(out, h)
		if len(out) == k {
			break
		}
	}
	return out
}

func (f *fakeIndex) Vector(itemID string) ([]float32, bool) {
	v, ok := f.vectors[itemID]
	return v, ok
}

func (f *fakeIndex) Meta(itemID string) (recommend.ItemMeta, bool) {
	for i := range f.hits {
		if f.hits[i].ItemID == itemID {
			return f.hits[i].ItemMeta, true
		}
	}
	return recommend.ItemMeta{}, false
}

type fakeCollab struct {
	ids   []recommend.ScoredID
	err   error
	block bool
}

func (f *fakeCollab) RecommendFromNeighbors(ctx context.Context, _ string, _, k int) ([]recommend.ScoredID, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.ids) > k {
		return f.ids[:k], nil
	}
	return f.ids, nil
}

type fakeItems struct {
	mu    sync.Mutex
	items map[string]*recommend.ItemFeatures
}

func newFakeItems(items ...*recommend.ItemFeatures) *fakeItems {
	f := &fakeItems{items: make(map[string]*recommend.ItemFeatures)}
	for _, it := range items {
		f.items[it.ItemID] = it
	}
	return f
}

func (f *fakeItems) GetItem(_ context.Context, itemID string) (*recommend.ItemFeatures, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[itemID]
	if !ok {
		return nil, recommend.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (f *fakeItems) ScanItems(_ context.Context, fn func(*recommend.ItemFeatures) error) error {
	f.mu.Lock()
	ids := make([]string, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	f.mu.Unlock()
	sort.Strings(ids)
	for _, id := range ids {
		f.mu.Lock()
		cp := *f.items[id]
		f.mu.Unlock()
		if err := fn(&cp); err != nil {
			return err
		}
	}
	return nil
}

type fakeQuality struct {
	scores map[string]float64
}

func (f *fakeQuality) GetQuality(_ context.Context, itemID string) (*recommend.QualityScore, error) {
	q, ok := f.scores[itemID]
	if !ok {
		return nil, recommend.ErrNotFound
	}
	return &recommend.QualityScore{ItemID: itemID, Overall: q}, nil
}

type fakeEntitlements struct {
	tiers map[string]recommend.Tier
}

func (f *fakeEntitlements) TierOf(_ context.Context, userID string) (recommend.Tier, error) {
	if t, ok := f.tiers[userID]; ok {
		return t, nil
	}
	return recommend.TierFree, nil
}

func meta(id, category string, tier recommend.Tier, quality float64) recommend.ItemMeta {
	return recommend.ItemMeta{
		ItemID:      id,
		Category:    category,
		AuthorID:    "author-" + id,
		AccessTier:  tier,
		Status:      recommend.StatusPublished,
		PublishedAt: time.Now().Add(-time.Hour),
		Quality:     quality,
	}
}

func feature(id, category string, tier recommend.Tier, views int64) *recommend.ItemFeatures {
	return &recommend.ItemFeatures{
		ItemID:      id,
		Title:       "Title " + id,
		AuthorID:    "author-" + id,
		Category:    category,
		AccessTier:  tier,
		Status:      recommend.StatusPublished,
		PublishedAt: time.Now().Add(-time.Hour),
		Engagement:  recommend.Engagement{Views: views},
	}
}

func profileWith(userID string, items ...string) *recommend.UserProfile {
	p := recommend.NewUserProfile(userID)
	for _, id := range items {
		p.InteractionSet[id] = 1
	}
	p.EventCount = len(items)
	return p
}

// countingCompute records how often the ranker ran.
type countingCompute struct {
	calls atomic.Int32
	delay time.Duration
	resp  func(userID string, k int) *recommend.Response
	err   error
}

func (c *countingCompute) compute(ctx context.Context, userID string, k int) (*recommend.Response, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.resp(userID, k), nil
}

func listOf(n int) []recommend.ScoredItem {
	out := make([]recommend.ScoredItem, n)
	for i := range out {
		out[i] = recommend.ScoredItem{ItemID: string(rune('a' + i)), Score: float64(n - i)}
	}
	return out
}
