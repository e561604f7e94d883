// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package recommend

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/lectern/internal/metrics"
)

// sharedLocalTTL caps the memory tier TTL when a shared tier is configured,
// bounding how long a replica can serve an entry invalidated elsewhere.
const sharedLocalTTL = 10 * time.Second

// ComputeFunc produces a fresh ranked list for a user.
type ComputeFunc func(ctx context.Context, userID string, k int) (*Response, error)

// SharedCache is an optional second tier shared between replicas.
type SharedCache interface {
	Load(ctx context.Context, userID string) (*RecommendationEntry, bool, error)
	Store(ctx context.Context, entry *RecommendationEntry, ttl time.Duration) error
	Delete(ctx context.Context, userIDs ...string) error
	Clear(ctx context.Context) error
}

// Invalidator drops cached lists.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string)
	InvalidateAll(ctx context.Context)
}

// CacheStats reports recommendation cache counters.
type CacheStats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	SharedHits    int64 `json:"shared_hits"`
	Invalidations int64 `json:"invalidations"`
	Entries       int   `json:"entries"`
}

// RecommendationCache holds ranked lists per user. Population is
// single-flighted per user, and an invalidation that lands while a
// population is running prevents its result from being stored.
type RecommendationCache struct {
	config   CacheConfig
	minItems int
	ttl      time.Duration

	entries *expirable.LRU[string, *RecommendationEntry]
	flights singleflight.Group
	shared  SharedCache
	logger  zerolog.Logger

	// seq orders invalidations. userSeq records the last invalidation per
	// user; globalSeq the last InvalidateAll.
	seq       atomic.Uint64
	globalSeq atomic.Uint64
	userSeq   *lru.Cache[string, uint64]

	hits          atomic.Int64
	misses        atomic.Int64
	sharedHits    atomic.Int64
	invalidations atomic.Int64
}

// NewRecommendationCache creates a cache. minItems is the smallest list
// length computed on a miss so that small-k requests share one entry.
// shared may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRecommendationCache(cfg CacheConfig, minItems int, shared SharedCache, logger zerolog.Logger) (*RecommendationCache, error) {
	size := cfg.MaxEntries
	if size < 1 {
		size = 1
	}
	ttl := cfg.TTL
	if shared != nil && ttl > sharedLocalTTL {
		ttl = sharedLocalTTL
	}

	userSeq, err := lru.New[string, uint64](size)
	if err != nil {
		return nil, err
	}

	return &RecommendationCache{
		config:   cfg,
		minItems: minItems,
		ttl:      ttl,
		entries:  expirable.NewLRU[string, *RecommendationEntry](size, nil, ttl),
		shared:   shared,
		userSeq:  userSeq,
		logger:   logger.With().Str("component", "rec_cache").Logger(),
	}, nil
}

type cacheToken struct {
	global uint64
	user   uint64
}

func (c *RecommendationCache) token(userID string) cacheToken {
	t := cacheToken{global: c.globalSeq.Load()}
	if v, ok := c.userSeq.Peek(userID); ok {
		t.user = v
	}
	return t
}

// Get returns a cached list for userID or computes one.
// A caller whose ctx ends returns ctx.Err() while a shared population
// continues for the other waiters.
func (c *RecommendationCache) Get(ctx context.Context, userID string, k int, compute ComputeFunc) (*Response, error) {
	if !c.config.Enabled || userID == "" {
		return compute(ctx, userID, k)
	}

	if entry, ok := c.entries.Get(userID); ok && usable(entry, k) {
		c.hits.Add(1)
		metrics.RecCacheRequests.WithLabelValues("hit").Inc()
		return entryResponse(entry, k), nil
	}

	if c.shared != nil {
		entry, ok, err := c.shared.Load(ctx, userID)
		switch {
		case err != nil:
			c.logger.Warn().Err(err).Str("user_id", userID).Msg("shared cache load failed")
		case ok && usable(entry, k) && time.Now().Before(entry.ExpiresAt):
			c.sharedHits.Add(1)
			metrics.RecCacheRequests.WithLabelValues("shared").Inc()
			c.entries.Add(userID, entry)
			return entryResponse(entry, k), nil
		}
	}

	c.misses.Add(1)
	metrics.RecCacheRequests.WithLabelValues("miss").Inc()

	want := k
	if want < c.minItems {
		want = c.minItems
	}

	ch := c.flights.DoChan(userID, func() (interface{}, error) {
		tok := c.token(userID)
		resp, err := compute(context.WithoutCancel(ctx), userID, want)
		if err != nil {
			return nil, err
		}
		if !resp.Partial() && c.token(userID) == tok {
			c.store(ctx, userID, resp, tok)
		}
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		resp, _ := res.Val.(*Response)
		if len(resp.Items) < k && !resp.Metadata.Exhausted {
			// A shared flight computed for a smaller k.
			return compute(ctx, userID, k)
		}
		return sliceResponse(resp, k), nil
	}
}

// store writes resp to both tiers. The token is re-read after each write;
// an invalidation that landed meanwhile wins and the write is undone.
func (c *RecommendationCache) store(ctx context.Context, userID string, resp *Response, tok cacheToken) {
	now := time.Now().UTC()
	entry := &RecommendationEntry{
		UserID:            userID,
		Items:             resp.Items,
		GeneratedAt:       now,
		ExpiresAt:         now.Add(c.config.TTL),
		Exhausted:         resp.Metadata.Exhausted,
		NoRecommendations: resp.NoRecommendations,
		Path:              resp.Metadata.Path,
		Sources:           resp.Metadata.Sources,
	}
	c.entries.Add(userID, entry)
	if c.token(userID) != tok {
		c.entries.Remove(userID)
		return
	}

	if c.shared == nil {
		return
	}
	sctx := context.WithoutCancel(ctx)
	if err := c.shared.Store(sctx, entry, c.config.TTL); err != nil {
		c.logger.Warn().Err(err).Str("user_id", userID).Msg("shared cache store failed")
		return
	}
	if c.token(userID) != tok {
		c.entries.Remove(userID)
		if err := c.shared.Delete(sctx, userID); err != nil {
			c.logger.Warn().Err(err).Str("user_id", userID).Msg("shared cache delete failed")
		}
	}
}

// Invalidate drops the user's cached list from both tiers and detaches any
// in-flight population so the next caller recomputes.
func (c *RecommendationCache) Invalidate(ctx context.Context, userID string) {
	c.userSeq.Add(userID, c.seq.Add(1))
	c.entries.Remove(userID)
	c.flights.Forget(userID)
	c.invalidations.Add(1)
	metrics.RecCacheInvalidations.Inc()

	if c.shared != nil {
		if err := c.shared.Delete(ctx, userID); err != nil {
			c.logger.Warn().Err(err).Str("user_id", userID).Msg("shared cache delete failed")
		}
	}
}

// InvalidateAll drops every cached list.
func (c *RecommendationCache) InvalidateAll(ctx context.Context) {
	c.globalSeq.Store(c.seq.Add(1))
	n := c.entries.Len()
	c.entries.Purge()
	c.invalidations.Add(int64(n))
	metrics.RecCacheInvalidations.Add(float64(n))

	if c.shared != nil {
		if err := c.shared.Clear(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("shared cache clear failed")
		}
	}
	c.logger.Debug().Int("entries", n).Msg("recommendation cache cleared")
}

// Stats returns cache counters.
func (c *RecommendationCache) Stats() CacheStats {
	return CacheStats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		SharedHits:    c.sharedHits.Load(),
		Invalidations: c.invalidations.Load(),
		Entries:       c.entries.Len(),
	}
}

// usable reports whether entry can serve a request for k items.
func usable(entry *RecommendationEntry, k int) bool {
	return len(entry.Items) >= k || entry.Exhausted
}

func entryResponse(entry *RecommendationEntry, k int) *Response {
	items := entry.Items
	if len(items) > k {
		items = items[:k]
	}
	out := make([]ScoredItem, len(items))
	copy(out, items)

	return &Response{
		Items:             out,
		NoRecommendations: entry.NoRecommendations,
		Metadata: ResponseMetadata{
			UserID:         entry.UserID,
			Path:           entry.Path,
			State:          StateDone,
			Sources:        entry.Sources,
			CandidateCount: len(entry.Items),
			Exhausted:      len(entry.Items) < k,
			CacheHit:       true,
			Timestamp:      time.Now().UTC(),
		},
	}
}

// sliceResponse returns a copy of resp limited to k items. Shared flight
// results are never mutated.
func sliceResponse(resp *Response, k int) *Response {
	out := *resp
	items := resp.Items
	if len(items) > k {
		items = items[:k]
	}
	out.Items = make([]ScoredItem, len(items))
	copy(out.Items, items)
	out.Metadata.Exhausted = len(resp.Items) < k
	return &out
}
