// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package profile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/lectern/internal/recommend"
)

const day = float64(24 * time.Hour)

// fold applies events to one profile. Item lookups are memoized for the
// duration of the fold.
type fold struct {
	cfg     *Config
	p       *recommend.UserProfile
	items   recommend.ItemSource
	seen    map[string]*recommend.ItemFeatures
	applied int
}

func newFold(cfg *Config, p *recommend.UserProfile, items recommend.ItemSource) *fold {
	return &fold{cfg: cfg, p: p, items: items, seen: make(map[string]*recommend.ItemFeatures)}
}

func (f *fold) item(ctx context.Context, id string) (*recommend.ItemFeatures, error) {
	if it, ok := f.seen[id]; ok {
		return it, nil
	}
	it, err := f.items.GetItem(ctx, id)
	if errors.Is(err, recommend.ErrNotFound) {
		it, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", id, err)
	}
	f.seen[id] = it
	return it, nil
}

func (f *fold) magnitude(ev *recommend.InteractionEvent) float64 {
	var m float64
	switch ev.Action {
	case recommend.ActionScroll:
		m = ev.Magnitude
	case recommend.ActionReadTime:
		m = ev.Magnitude / f.cfg.ReadTimeUnit.Seconds()
	default:
		m = ev.Magnitude
		if m == 0 {
			m = 1
		}
	}
	return math.Min(m, f.cfg.MaxMagnitude)
}

// apply folds one event. Events must arrive in timestamp order.
func (f *fold) apply(ctx context.Context, ev *recommend.InteractionEvent) error {
	base := ev.Action.BaseWeight()
	if base == 0 || ev.ItemID == "" {
		return nil
	}

	ts := ev.Timestamp.UTC()
	switch {
	case f.p.AsOf.IsZero():
		f.p.AsOf = ts
	case ts.After(f.p.AsOf):
		f.rescale(math.Pow(f.cfg.DecayFactor, float64(ts.Sub(f.p.AsOf))/day))
		f.p.AsOf = ts
	}

	w := f.magnitude(ev) * base
	if ts.Before(f.p.AsOf) {
		w *= math.Pow(f.cfg.DecayFactor, float64(f.p.AsOf.Sub(ts))/day)
	}
	if w == 0 {
		return nil
	}

	it, err := f.item(ctx, ev.ItemID)
	if err != nil {
		return err
	}
	f.applied++

	if ev.Action == recommend.ActionFollow || ev.Action == recommend.ActionUnfollow {
		if it != nil && it.AuthorID != "" {
			f.add(f.p.FollowedAuthors, it.AuthorID, w)
		}
		return nil
	}

	f.add(f.p.InteractionSet, ev.ItemID, w)
	if it != nil {
		f.add(f.p.CategoryAffinity, it.Category, w)
		for i, tag := range it.Tags {
			if tag == "" || containsBefore(it.Tags, i, tag) {
				continue
			}
			f.add(f.p.TagAffinity, tag, w)
		}
	}
	f.capInteractions()
	return nil
}

func (f *fold) keep(v float64) bool {
	return v > f.cfg.MinWeight
}

func (f *fold) add(m map[string]float64, key string, w float64) {
	if key == "" {
		return
	}
	v := m[key] + w
	if f.keep(v) {
		m[key] = v
	} else {
		delete(m, key)
	}
}

func (f *fold) rescale(factor float64) {
	for _, m := range []map[string]float64{f.p.InteractionSet, f.p.CategoryAffinity, f.p.TagAffinity, f.p.FollowedAuthors} {
		for k, v := range m {
			v *= factor
			if f.keep(v) {
				m[k] = v
			} else {
				delete(m, k)
			}
		}
	}
}

// capInteractions evicts the lowest weights, highest id first among ties.
func (f *fold) capInteractions() {
	for len(f.p.InteractionSet) > f.cfg.MaxInteractions {
		var victim string
		low := math.Inf(1)
		for id, w := range f.p.InteractionSet {
			if w < low || (w == low && id > victim) {
				victim, low = id, w
			}
		}
		delete(f.p.InteractionSet, victim)
	}
}

func containsBefore(tags []string, i int, tag string) bool {
	for _, t := range tags[:i] {
		if t == tag {
			return true
		}
	}
	return false
}

func ensureMaps(p *recommend.UserProfile) {
	if p.CategoryAffinity == nil {
		p.CategoryAffinity = make(map[string]float64)
	}
	if p.TagAffinity == nil {
		p.TagAffinity = make(map[string]float64)
	}
	if p.InteractionSet == nil {
		p.InteractionSet = make(map[string]float64)
	}
	if p.FollowedAuthors == nil {
		p.FollowedAuthors = make(map[string]float64)
	}
}
