// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/lectern/internal/metrics"
)

// Response paths.
const (
	PathPersonalized = "personalized"
	PathColdStart    = "cold_start"
	PathSimilar      = "similar"
	PathTrending     = "trending"
)

// maxProfileAuthors bounds the followed-author set consulted for the author boost.
const maxProfileAuthors = 256

// Engine is the Hybrid Ranker. It merges content and collaborative candidates,
// enforces entitlements and runs the diversity and freshness stages.
// It is safe for concurrent use.
type Engine struct {
	config *Config
	deps   Dependencies
	logger zerolog.Logger

	rerankers []Reranker
	rrMu      sync.RWMutex

	trending   atomic.Pointer[trendingSnapshot]
	trendingMu sync.Mutex

	requestCount atomic.Int64
	degradeCount atomic.Int64
}

// NewEngine creates a new Hybrid Ranker.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, deps Dependencies, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	return &Engine{
		config: cfg,
		deps:   deps,
		logger: logger.With().Str("component", "recommend").Logger(),
	}, nil
}

// RegisterReranker appends a post-filter stage.
func (e *Engine) RegisterReranker(rr Reranker) {
	e.rrMu.Lock()
	defer e.rrMu.Unlock()

	e.rerankers = append(e.rerankers, rr)
	e.logger.Info().Str("reranker", rr.Name()).Msg("registered reranker")
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// ClampK applies the default and maximum list sizes.
func (e *Engine) ClampK(k int) int {
	if k <= 0 {
		return e.config.Limits.DefaultK
	}
	if k > e.config.Limits.MaxK {
		return e.config.Limits.MaxK
	}
	return k
}

// candidate accumulates per-source evidence for one item.
type candidate struct {
	meta       ItemMeta
	content    float64
	collab     float64
	popularity float64
	sources    map[string]float64
}

// rankRun is the state carried between ranker steps.
type rankRun struct {
	userID  string
	k       int
	state   RankState
	path    string
	tier    Tier
	profile *UserProfile
	prefs   *Preferences

	candidates map[string]*candidate
	sources    []string
	degraded   []string
	items      []ScoredItem
	exhausted  bool
}

func (r *rankRun) degrade(source, reason string) {
	r.degraded = append(r.degraded, source+":"+reason)
	metrics.RecordDegradation(source, reason)
}

// Rank runs the ranker state machine for a user. An empty userID is an
// anonymous request and is served from the free-tier trending list.
//
// Cancellation of ctx aborts the run and returns ctx.Err().
func (e *Engine) Rank(ctx context.Context, userID string, k int) (*Response, error) {
	start := time.Now()
	e.requestCount.Add(1)

	ctx, cancel := context.WithTimeout(ctx, e.config.Limits.RequestTimeout)
	defer cancel()

	run := &rankRun{
		userID:     userID,
		k:          e.ClampK(k),
		state:      StateNeedProfile,
		path:       PathPersonalized,
		candidates: make(map[string]*candidate),
	}

	logger := e.logger.With().Str("user_id", userID).Int("k", run.k).Logger()

	for run.state != StateDone {
		if err := ctx.Err(); err != nil {
			logger.Debug().Str("state", run.state.String()).Err(err).Msg("ranking aborted")
			return nil, err
		}

		switch run.state {
		case StateNeedProfile:
			e.needProfile(ctx, run, logger)
		case StateNeedCandidates:
			if err := e.needCandidates(ctx, run); err != nil {
				return nil, err
			}
		case StateScore:
			e.score(run)
		case StateFilter:
			e.filter(run)
		case StateDiversify:
			e.diversify(ctx, run)
		}
	}

	// A stage may have observed cancellation and returned early.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(run.degraded) > 0 {
		e.degradeCount.Add(1)
	}

	resp := &Response{
		Items:             run.items,
		NoRecommendations: len(run.items) == 0 && len(run.sources) == 0,
		Metadata: ResponseMetadata{
			RequestID:      uuid.New().String(),
			UserID:         userID,
			Path:           run.path,
			State:          run.state,
			Sources:        run.sources,
			Degraded:       run.degraded,
			CandidateCount: len(run.candidates),
			Exhausted:      run.exhausted,
			LatencyMS:      time.Since(start).Milliseconds(),
			Timestamp:      time.Now().UTC(),
		},
	}
	if resp.Items == nil {
		resp.Items = []ScoredItem{}
	}

	metrics.RecordRank(run.path, time.Since(start))
	logger.Debug().
		Str("path", run.path).
		Strs("sources", run.sources).
		Strs("degraded", run.degraded).
		Int("candidates", len(run.candidates)).
		Int("returned", len(run.items)).
		Int64("latency_ms", resp.Metadata.LatencyMS).
		Msg("ranking complete")

	return resp, nil
}

// needProfile resolves tier, preferences and profile. Users without any
// interaction signal take the cold-start path.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) needProfile(ctx context.Context, run *rankRun, logger zerolog.Logger) {
	if run.userID == "" {
		e.startColdStart(ctx, run)
		return
	}

	tier, err := e.deps.Entitlements.TierOf(ctx, run.userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		logger.Warn().Err(err).Msg("entitlement lookup failed, assuming free tier")
		run.degrade("entitlement", reasonFor(err))
		tier = TierFree
	}
	run.tier = tier

	if e.deps.Preferences != nil {
		prefs, perr := e.deps.Preferences.GetPreferences(ctx, run.userID)
		if perr == nil {
			run.prefs = prefs
		} else if !errors.Is(perr, ErrNotFound) {
			logger.Debug().Err(perr).Msg("preferences unavailable")
		}
	}

	profile, err := e.deps.Profiles.Profile(ctx, run.userID)
	switch {
	case errors.Is(err, ErrNotFound):
		profile = NewUserProfile(run.userID)
	case err != nil:
		logger.Warn().Err(err).Msg("profile unavailable")
		run.degrade("profile", reasonFor(err))
		profile = NewUserProfile(run.userID)
	}
	run.profile = profile

	if profile.IsEmpty() {
		e.startColdStart(ctx, run)
		return
	}
	run.state = StateNeedCandidates
}

// startColdStart serves trending items restricted to the free tier.
func (e *Engine) startColdStart(ctx context.Context, run *rankRun) {
	run.path = PathColdStart
	run.tier = TierFree

	trending := e.trendingFor(ctx, TierFree)
	for i := range trending {
		it := &trending[i]
		run.candidates[it.ItemID] = &candidate{
			meta:       it.ItemMeta,
			popularity: it.score,
			sources:    map[string]float64{SourcePopularity: it.score},
		}
	}
	if len(trending) > 0 {
		run.sources = append(run.sources, SourcePopularity)
	}
	run.state = StateScore
}

type sourceResult struct {
	ids  []ScoredID
	hits []Hit
	err  error
}

// needCandidates fans out to the content and collaborative sources, each
// under its own budget. A failed source contributes nothing. Every source is
// filtered by admits before its own cut, so a gated item never takes the slot
// of one the user may see.
func (e *Engine) needCandidates(ctx context.Context, run *rankRun) error {
	var content, collab sourceResult
	admits := e.admission(run)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		content.hits, content.err = withBudget(gctx, e.config.Candidates.SourceTimeout, func(sctx context.Context) ([]Hit, error) {
			vec, err := e.deps.Vectorizer.ProfileVector(sctx, run.profile)
			if err != nil {
				return nil, err
			}
			return e.deps.Index.TopK(vec, e.config.Candidates.ContentK, admits), nil
		})
		return nil
	})
	g.Go(func() error {
		// Neighbor scores are cheap to list in full; the CollabK cut happens
		// after admission below.
		collab.ids, collab.err = withBudget(gctx, e.config.Candidates.SourceTimeout, func(sctx context.Context) ([]ScoredID, error) {
			return e.deps.Collab.RecommendFromNeighbors(sctx, run.userID, e.config.Candidates.Neighbors, math.MaxInt32)
		})
		return nil
	})
	_ = g.Wait() // sources report through their results

	if err := ctx.Err(); err != nil {
		return err
	}

	if content.err != nil {
		run.degrade(SourceContent, reasonFor(content.err))
	} else if len(content.hits) > 0 {
		run.sources = append(run.sources, SourceContent)
		for i := range content.hits {
			h := &content.hits[i]
			c := run.candidate(h.ItemMeta)
			c.content = h.Similarity
			c.sources[SourceContent] = h.Similarity
		}
	}

	if collab.err != nil {
		run.degrade(SourceCollab, reasonFor(collab.err))
	} else if len(collab.ids) > 0 {
		added := 0
		for _, sid := range collab.ids {
			if added == e.config.Candidates.CollabK {
				break
			}
			meta, ok := e.resolveMeta(ctx, sid.ID)
			if !ok || !admits(&meta) {
				continue
			}
			c := run.candidate(meta)
			c.collab = sid.Score
			c.sources[SourceCollab] = sid.Score
			added++
		}
		if added > 0 {
			run.sources = append(run.sources, SourceCollab)
		}
	}

	if len(run.candidates) == 0 {
		e.addPopular(ctx, run, admits)
	}

	run.state = StateScore
	return nil
}

// addPopular seeds the run with trending items the user may see.
func (e *Engine) addPopular(ctx context.Context, run *rankRun, admits func(*ItemMeta) bool) {
	added := false
	for _, it := range e.trendingFor(ctx, run.tier) {
		if !admits(&it.ItemMeta) {
			continue
		}
		c := run.candidate(it.ItemMeta)
		c.popularity = it.score
		c.sources[SourcePopularity] = it.score
		added = true
	}
	if added {
		run.sources = append(run.sources, SourcePopularity)
	}
}

// admission returns the predicate every candidate must pass: published,
// within the user's tier, not yet seen, not in a disliked category and
// accepted by the eligibility rules.
func (e *Engine) admission(run *rankRun) func(*ItemMeta) bool {
	disliked := make(map[string]struct{})
	if run.prefs != nil {
		for _, c := range run.prefs.DislikedCategories {
			disliked[c] = struct{}{}
		}
	}
	var seen map[string]float64
	if run.profile != nil {
		seen = run.profile.InteractionSet
	}

	return func(m *ItemMeta) bool {
		if m.Status != StatusPublished || !run.tier.Allows(m.AccessTier) {
			return false
		}
		if _, ok := seen[m.ItemID]; ok {
			return false
		}
		if _, ok := disliked[m.Category]; ok {
			return false
		}
		if e.deps.Eligibility != nil && !e.deps.Eligibility.Eligible(m, run.tier) {
			return false
		}
		return true
	}
}

func (r *rankRun) candidate(meta ItemMeta) *candidate {
	c, ok := r.candidates[meta.ItemID]
	if !ok {
		c = &candidate{meta: meta, sources: make(map[string]float64, 2)}
		r.candidates[meta.ItemID] = c
	}
	return c
}

// resolveMeta prefers the index snapshot and falls back to the item store.
func (e *Engine) resolveMeta(ctx context.Context, itemID string) (ItemMeta, bool) {
	if meta, ok := e.deps.Index.Meta(itemID); ok {
		return meta, true
	}
	item, err := e.deps.Items.GetItem(ctx, itemID)
	if err != nil {
		return ItemMeta{}, false
	}
	quality := 0.0
	if q, qerr := e.deps.Quality.GetQuality(ctx, itemID); qerr == nil {
		quality = q.Overall
	}
	return item.Meta(quality), true
}

// score blends the normalized source scores with the popularity and author boosts.
func (e *Engine) score(run *rankRun) {
	blend := e.config.Blend

	contentNorm := normalizeSource(run.candidates, func(c *candidate) (float64, bool) {
		_, ok := c.sources[SourceContent]
		return c.content, ok
	})
	collabNorm := normalizeSource(run.candidates, func(c *candidate) (float64, bool) {
		_, ok := c.sources[SourceCollab]
		return c.collab, ok
	})
	popNorm := normalizeSource(run.candidates, func(c *candidate) (float64, bool) {
		_, ok := c.sources[SourcePopularity]
		return c.popularity, ok
	})

	authors := run.boostedAuthors()

	items := make([]ScoredItem, 0, len(run.candidates))
	for id, c := range run.candidates {
		final := blend.ContentWeight*contentNorm[id] + blend.CollabWeight*collabNorm[id]
		if _, ok := c.sources[SourcePopularity]; ok {
			// Popularity stands in for both personal sources when it is the only signal.
			final += (blend.ContentWeight + blend.CollabWeight) * popNorm[id]
		}
		final += blend.PopularityBoost * c.meta.Quality
		if _, ok := authors[c.meta.AuthorID]; ok && c.meta.AuthorID != "" {
			final += blend.AuthorBoost
		}

		sources := make(map[string]float64, len(c.sources))
		if v, ok := contentNorm[id]; ok {
			if _, has := c.sources[SourceContent]; has {
				sources[SourceContent] = v
			}
		}
		if v, ok := collabNorm[id]; ok {
			if _, has := c.sources[SourceCollab]; has {
				sources[SourceCollab] = v
			}
		}
		if v, ok := popNorm[id]; ok {
			if _, has := c.sources[SourcePopularity]; has {
				sources[SourcePopularity] = v
			}
		}

		items = append(items, ScoredItem{
			ItemID:      id,
			Score:       final,
			Category:    c.meta.Category,
			AuthorID:    c.meta.AuthorID,
			AccessTier:  c.meta.AccessTier,
			PublishedAt: c.meta.PublishedAt,
			Quality:     c.meta.Quality,
			Sources:     sources,
			Reason:      reasonText(sources),
		})
	}

	SortScoredItems(items)
	run.items = items
	run.state = StateFilter
}

// boostedAuthors returns authors the user follows or prefers.
func (r *rankRun) boostedAuthors() map[string]struct{} {
	out := make(map[string]struct{})
	if r.profile != nil {
		for _, a := range topKeys(r.profile.FollowedAuthors, maxProfileAuthors) {
			out[a] = struct{}{}
		}
	}
	if r.prefs != nil {
		for _, a := range r.prefs.PreferredAuthors {
			out[a] = struct{}{}
		}
	}
	return out
}

// filter drops candidates the user may not see. It runs before any truncation
// so a gated item never consumes a slot. Cold-start candidates reach it
// unscreened.
func (e *Engine) filter(run *rankRun) {
	admits := e.admission(run)

	kept := run.items[:0]
	for i := range run.items {
		it := run.items[i]
		meta := run.candidates[it.ItemID].meta
		if admits(&meta) {
			kept = append(kept, it)
		}
	}
	run.items = kept
	run.state = StateDiversify
}

// diversify runs the registered rerankers. Without any, the list is truncated to k.
func (e *Engine) diversify(ctx context.Context, run *rankRun) {
	e.rrMu.RLock()
	rerankers := e.rerankers
	e.rrMu.RUnlock()

	items := run.items
	for _, rr := range rerankers {
		items = rr.Rerank(ctx, items, run.k)
	}
	if len(items) > run.k {
		items = items[:run.k]
	}

	run.items = items
	run.exhausted = len(items) < run.k
	run.state = StateDone
}

// Similar returns items most similar to itemID that a holder of tier may see.
func (e *Engine) Similar(ctx context.Context, itemID string, k int, tier Tier) (*Response, error) {
	start := time.Now()
	k = e.ClampK(k)

	resp := &Response{
		Items: []ScoredItem{},
		Metadata: ResponseMetadata{
			RequestID: uuid.New().String(),
			Path:      PathSimilar,
			State:     StateDone,
			Timestamp: time.Now().UTC(),
		},
	}

	vec, ok := e.deps.Index.Vector(itemID)
	if !ok {
		if _, err := e.deps.Items.GetItem(ctx, itemID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("item %q: %w", itemID, ErrNotFound)
			}
			return nil, err
		}
		// Known item without a vector yet.
		resp.Metadata.Degraded = []string{SourceSimilar + ":" + reasonFor(ErrEmbeddingUnavailable)}
		resp.NoRecommendations = true
		return resp, nil
	}

	hits := e.deps.Index.TopK(vec, k, func(m *ItemMeta) bool {
		if m.ItemID == itemID || m.Status != StatusPublished || !tier.Allows(m.AccessTier) {
			return false
		}
		if e.deps.Eligibility != nil && !e.deps.Eligibility.Eligible(m, tier) {
			return false
		}
		return true
	})

	for i := range hits {
		h := &hits[i]
		resp.Items = append(resp.Items, ScoredItem{
			ItemID:      h.ItemID,
			Score:       h.Similarity,
			Category:    h.Category,
			AuthorID:    h.AuthorID,
			AccessTier:  h.AccessTier,
			PublishedAt: h.PublishedAt,
			Quality:     h.Quality,
			Sources:     map[string]float64{SourceSimilar: h.Similarity},
			Reason:      "similar content",
		})
	}
	if len(hits) > 0 {
		resp.Metadata.Sources = []string{SourceSimilar}
	}
	resp.Metadata.CandidateCount = len(hits)
	resp.Metadata.Exhausted = len(hits) < k
	resp.Metadata.LatencyMS = time.Since(start).Milliseconds()
	metrics.RecordRank(PathSimilar, time.Since(start))
	return resp, nil
}

// Status reports engine counters.
type Status struct {
	Requests      int64     `json:"requests"`
	Degraded      int64     `json:"degraded"`
	TrendingItems int       `json:"trending_items"`
	TrendingAt    time.Time `json:"trending_at"`
	Rerankers     []string  `json:"rerankers"`
}

// Status returns a snapshot of engine counters.
func (e *Engine) Status() Status {
	s := Status{
		Requests: e.requestCount.Load(),
		Degraded: e.degradeCount.Load(),
	}
	if snap := e.trending.Load(); snap != nil {
		s.TrendingItems = len(snap.byTier[TierEnterprise])
		s.TrendingAt = snap.builtAt
	}
	e.rrMu.RLock()
	for _, rr := range e.rerankers {
		s.Rerankers = append(s.Rerankers, rr.Name())
	}
	e.rrMu.RUnlock()
	return s
}

// withBudget runs fn under a timeout. It returns when fn finishes or the
// budget expires, whichever is first.
func withBudget[T any](ctx context.Context, budget time.Duration, fn func(context.Context) (T, error)) (T, error) {
	sctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(sctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		if r.err == nil && sctx.Err() != nil {
			var zero T
			return zero, sctx.Err()
		}
		return r.v, r.err
	case <-sctx.Done():
		var zero T
		return zero, sctx.Err()
	}
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func reasonText(sources map[string]float64) string {
	_, content := sources[SourceContent]
	_, collab := sources[SourceCollab]
	switch {
	case content && collab:
		return "matches your interests and readers like you"
	case content:
		return "matches your interests"
	case collab:
		return "readers like you enjoyed this"
	default:
		return "popular now"
	}
}

// normalizeSource min-max normalizes the values reported by get over the
// candidates that carry the source. A single distinct value normalizes to 1.
func normalizeSource(cands map[string]*candidate, get func(*candidate) (float64, bool)) map[string]float64 {
	out := make(map[string]float64)
	first := true
	var lo, hi float64
	for _, c := range cands {
		v, ok := get(c)
		if !ok {
			continue
		}
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if first {
		return out
	}
	span := hi - lo
	for id, c := range cands {
		v, ok := get(c)
		if !ok {
			continue
		}
		if span == 0 {
			out[id] = 1
			continue
		}
		out[id] = (v - lo) / span
	}
	return out
}

// SortScoredItems orders by score descending, then quality descending, then
// item id ascending.
func SortScoredItems(items []ScoredItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if items[i].Quality != items[j].Quality {
			return items[i].Quality > items[j].Quality
		}
		return items[i].ItemID < items[j].ItemID
	})
}

func topKeys(m map[string]float64, n int) []string {
	ids := make([]ScoredID, 0, len(m))
	for k, v := range m {
		if v > 0 {
			ids = append(ids, ScoredID{ID: k, Score: v})
		}
	}
	SortScoredIDs(ids)
	if len(ids) > n {
		ids = ids[:n]
	}
	out := make([]string, len(ids))
	for i := range ids {
		out[i] = ids[i].ID
	}
	return out
}
