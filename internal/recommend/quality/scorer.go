// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

// Package quality computes composite item quality scores.
//
// A score combines five sub-scores in [0, 1]: content (text features),
// engagement (log-dampened counters against the corpus maximum), social
// (author reach, editorial flags, category percentile), author credibility
// and recency. Stored scores are reused until the content fingerprint
// changes, an engagement counter moves by more than the relative threshold,
// or the score exceeds its maximum age.
package quality

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/keylock"
	"github.com/tomtom215/lectern/internal/metrics"
	"github.com/tomtom215/lectern/internal/recommend"
	"github.com/tomtom215/lectern/internal/recommend/embedding"
)

// Store persists quality scores.
type Store interface {
	GetQuality(ctx context.Context, itemID string) (*recommend.QualityScore, error)
	PutQuality(ctx context.Context, q *recommend.QualityScore) error
	ScanQuality(ctx context.Context, fn func(*recommend.QualityScore) error) error
}

// Scorer computes and caches quality scores. It implements
// recommend.QualitySource.
type Scorer struct {
	cfg    Config
	items  recommend.ItemSource
	store  Store
	locks  keylock.Map
	now    func() time.Time
	logger zerolog.Logger

	corpusMu sync.Mutex
	corpus   *CorpusStats
}

// New creates a scorer.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, items recommend.ItemSource, store Store, logger zerolog.Logger) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("quality config: %w", err)
	}
	return &Scorer{
		cfg:    cfg,
		items:  items,
		store:  store,
		now:    time.Now,
		logger: logger.With().Str("component", "quality_scorer").Logger(),
	}, nil
}

// GetQuality returns the stored score without recomputing.
func (s *Scorer) GetQuality(ctx context.Context, itemID string) (*recommend.QualityScore, error) {
	return s.store.GetQuality(ctx, itemID)
}

// Fingerprint returns the content fingerprint scores are keyed by.
func Fingerprint(it *recommend.ItemFeatures) string {
	if it.ContentFingerprint != "" {
		return it.ContentFingerprint
	}
	return embedding.ContentFingerprint(it.Title, it.Body, it.Tags)
}

// NeedsRecompute reports whether prev is stale for the item's current
// fingerprint and engagement.
func (s *Scorer) NeedsRecompute(prev *recommend.QualityScore, fingerprint string, eng recommend.Engagement) bool {
	if prev == nil || prev.Fingerprint != fingerprint {
		return true
	}
	if s.now().Sub(prev.ComputedAt) > s.cfg.MaxAge {
		return true
	}
	for _, c := range []string{recommend.CounterViews, recommend.CounterLikes, recommend.CounterBookmarks, recommend.CounterComments} {
		was, is := prev.Snapshot.Get(c), eng.Get(c)
		if was == 0 {
			if is != 0 {
				return true
			}
			continue
		}
		if math.Abs(float64(is-was))/float64(was) > s.cfg.RecomputeThreshold {
			return true
		}
	}
	return false
}

// Score returns the item's quality, recomputing it only when stale.
func (s *Scorer) Score(ctx context.Context, itemID string) (*recommend.QualityScore, error) {
	return s.score(ctx, itemID, false)
}

// Rescore recomputes the item's quality unconditionally.
func (s *Scorer) Rescore(ctx context.Context, itemID string) (*recommend.QualityScore, error) {
	return s.score(ctx, itemID, true)
}

func (s *Scorer) score(ctx context.Context, itemID string, force bool) (*recommend.QualityScore, error) {
	unlock, err := s.locks.Lock(ctx, itemID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	it, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		metrics.QualityComputations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load item %s: %w", itemID, err)
	}

	prev, err := s.store.GetQuality(ctx, itemID)
	switch {
	case errors.Is(err, recommend.ErrNotFound):
		prev = nil
	case err != nil:
		metrics.QualityComputations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load quality %s: %w", itemID, err)
	}

	fp := Fingerprint(it)
	if !force && !s.NeedsRecompute(prev, fp, it.Engagement) {
		metrics.QualityComputations.WithLabelValues("reused").Inc()
		return prev, nil
	}

	corpus, err := s.Corpus(ctx)
	if err != nil {
		metrics.QualityComputations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("corpus stats: %w", err)
	}

	q := s.Compute(it, corpus)
	q.Fingerprint = fp
	if err := s.store.PutQuality(ctx, q); err != nil {
		metrics.QualityComputations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("store quality %s: %w", itemID, err)
	}
	metrics.QualityComputations.WithLabelValues("recomputed").Inc()

	s.logger.Debug().
		Str("item_id", itemID).
		Float64("overall", q.Overall).
		Str("label", q.Label).
		Msg("quality recomputed")
	return q, nil
}

// Compute scores an item against corpus. It does not read or write the store.
func (s *Scorer) Compute(it *recommend.ItemFeatures, corpus *CorpusStats) *recommend.QualityScore {
	now := s.now().UTC()
	q := &recommend.QualityScore{
		ItemID:     it.ItemID,
		Content:    ContentScore(ExtractText(it.Body), len(it.Tags), len([]rune(it.Title))),
		Engagement: EngagementScore(it.Engagement, corpus.Max),
		Social:     s.socialScore(it, corpus, now),
		Author:     AuthorScore(corpus.authors[it.AuthorID]),
		Recency:    RecencyScore(now.Sub(it.PublishedAt), s.cfg.RecencyHalfLife, s.cfg.RecencyFloor),
		Snapshot:   it.Engagement,
		ComputedAt: now,
	}
	w := s.cfg.Weights
	q.Overall = clamp(w.Content*q.Content+w.Engagement*q.Engagement+w.Social*q.Social+w.Author*q.Author+w.Recency*q.Recency, 0, 1)
	q.Label = Label(q.Overall)
	return q
}

// dampen returns log(1+n)/log(1+max), capped at 1.
func dampen(n, maxN int64) float64 {
	if n <= 0 || maxN <= 0 {
		return 0
	}
	return math.Min(math.Log1p(float64(n))/math.Log1p(float64(maxN)), 1)
}

// EngagementScore weights log-dampened views, likes, bookmarks and comments
// 0.2, 0.3, 0.3 and 0.2.
func EngagementScore(e, corpusMax recommend.Engagement) float64 {
	return 0.2*dampen(e.Views, corpusMax.Views) +
		0.3*dampen(e.Likes, corpusMax.Likes) +
		0.3*dampen(e.Bookmarks, corpusMax.Bookmarks) +
		0.2*dampen(e.Comments, corpusMax.Comments)
}

func (s *Scorer) socialScore(it *recommend.ItemFeatures, corpus *CorpusStats, now time.Time) float64 {
	v := 0.0
	switch {
	case it.AuthorFollowers > 1000:
		v += 0.3
	case it.AuthorFollowers > 100:
		v += 0.2
	case it.AuthorFollowers > 10:
		v += 0.1
	}
	if it.Spotlight {
		v += 0.25
	}
	if it.Engagement.Views >= s.cfg.PopularViews {
		v += 0.15
	}
	v += 0.3 * corpus.categoryPercentile(it, now, s.cfg.CategoryWindow)
	return math.Min(v, 1)
}

// AuthorScore rates author credibility from output volume, reach and average
// quality. An author without published items scores 0.2.
func AuthorScore(a AuthorStats) float64 {
	if a.Articles == 0 {
		return 0.2
	}
	points := 0.0
	switch {
	case a.Articles > 50:
		points += 25
	case a.Articles > 20:
		points += 20
	case a.Articles > 10:
		points += 15
	case a.Articles > 5:
		points += 10
	default:
		points += 5
	}
	switch {
	case a.Views > 10000:
		points += 20
	case a.Views > 1000:
		points += 15
	case a.Views > 100:
		points += 10
	}
	switch {
	case a.Likes > 500:
		points += 15
	case a.Likes > 100:
		points += 10
	case a.Likes > 20:
		points += 5
	}
	switch avg := a.AvgQuality(); {
	case avg > 0.8:
		points += 40
	case avg > 0.7:
		points += 30
	case avg > 0.6:
		points += 20
	case avg > 0.5:
		points += 10
	}
	return math.Min(points/100, 1)
}

// RecencyScore is max(floor, 2^(-age/halfLife)). Future publish times score 1.
func RecencyScore(age, halfLife time.Duration, floor float64) float64 {
	if age <= 0 {
		return 1
	}
	return math.Max(floor, math.Exp(-math.Ln2*float64(age)/float64(halfLife)))
}

// Label maps an overall score to a quality band.
func Label(overall float64) string {
	switch {
	case overall >= 0.8:
		return "excellent"
	case overall >= 0.65:
		return "good"
	case overall >= 0.5:
		return "average"
	case overall >= 0.35:
		return "poor"
	default:
		return "very_poor"
	}
}

// Corpus returns corpus statistics, rebuilding them after CorpusTTL.
func (s *Scorer) Corpus(ctx context.Context) (*CorpusStats, error) {
	s.corpusMu.Lock()
	defer s.corpusMu.Unlock()
	if s.corpus != nil && s.now().Sub(s.corpus.BuiltAt) < s.cfg.CorpusTTL {
		return s.corpus, nil
	}
	c, err := BuildCorpus(ctx, s.items, s.store, s.now())
	if err != nil {
		return nil, err
	}
	s.corpus = c
	return c, nil
}

// InvalidateCorpus forces the next score to rebuild corpus statistics.
func (s *Scorer) InvalidateCorpus() {
	s.corpusMu.Lock()
	s.corpus = nil
	s.corpusMu.Unlock()
}

// BatchItem is the outcome for one item of a batch.
type BatchItem struct {
	ItemID  string  `json:"item_id"`
	Overall float64 `json:"overall,omitempty"`
	Label   string  `json:"label,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// BatchResult summarises a batch run.
type BatchResult struct {
	Processed int         `json:"processed"`
	Errors    int         `json:"errors"`
	Items     []BatchItem `json:"items"`
}

// Batch scores ids. With no ids it selects up to BatchLimit published items
// whose stored score is missing or older than MaxAge. Per-item failures are
// logged and counted; only a failure to select items is returned.
func (s *Scorer) Batch(ctx context.Context, ids []string) (*BatchResult, error) {
	if len(ids) == 0 {
		stale, err := s.staleItems(ctx)
		if err != nil {
			return nil, err
		}
		ids = stale
	}

	res := &BatchResult{Items: make([]BatchItem, 0, len(ids))}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		q, err := s.Score(ctx, id)
		if err != nil {
			res.Errors++
			res.Items = append(res.Items, BatchItem{ItemID: id, Error: err.Error()})
			s.logger.Warn().Err(err).Str("item_id", id).Msg("quality batch item failed")
			continue
		}
		res.Processed++
		res.Items = append(res.Items, BatchItem{ItemID: id, Overall: q.Overall, Label: q.Label})
	}
	return res, nil
}

var errBatchFull = errors.New("batch full")

func (s *Scorer) staleItems(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.items.ScanItems(ctx, func(it *recommend.ItemFeatures) error {
		if !it.Published() {
			return nil
		}
		prev, err := s.store.GetQuality(ctx, it.ItemID)
		switch {
		case errors.Is(err, recommend.ErrNotFound):
		case err != nil:
			return err
		case s.now().Sub(prev.ComputedAt) <= s.cfg.MaxAge:
			return nil
		}
		ids = append(ids, it.ItemID)
		if len(ids) >= s.cfg.BatchLimit {
			return errBatchFull
		}
		return nil
	})
	if err != nil && !errors.Is(err, errBatchFull) {
		return nil, fmt.Errorf("select stale items: %w", err)
	}
	return ids, nil
}

var _ recommend.QualitySource = (*Scorer)(nil)
