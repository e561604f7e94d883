// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/recommend"
	"github.com/tomtom215/lectern/internal/recommend/collab"
	"github.com/tomtom215/lectern/internal/recommend/embedding"
	"github.com/tomtom215/lectern/internal/recommend/index"
	"github.com/tomtom215/lectern/internal/recommend/profile"
	"github.com/tomtom215/lectern/internal/recommend/quality"
	"github.com/tomtom215/lectern/internal/recommend/storage"
	"github.com/tomtom215/lectern/internal/store"
)

// Config controls the pipeline.
type Config struct {
	// EmbedBatch bounds how many items one maintenance pass embeds.
	// Default: 200
	EmbedBatch int

	// ProfileBatch bounds how many stale profiles one catch-up pass folds.
	// Default: 500
	ProfileBatch int

	// SnapshotKeep is how many index snapshots are retained.
	// Default: 3
	SnapshotKeep int

	// GCDiscardRatio is passed to the store's value log GC.
	// Default: 0.5
	GCDiscardRatio float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		EmbedBatch:     200,
		ProfileBatch:   500,
		SnapshotKeep:   3,
		GCDiscardRatio: 0.5,
	}
}

// Deps are the components the pipeline drives.
type Deps struct {
	Store      *store.Store
	Profiles   *profile.Aggregator
	Quality    *quality.Scorer
	Embeddings *embedding.Cache
	Vectorizer recommend.ProfileVectorizer
	Index      *index.Index
	Collab     *collab.Engine

	// Optional.
	Engine      *recommend.Engine
	Invalidator recommend.Invalidator
	Snapshots   *storage.Store
}

// Pipeline implements recommend.ItemPublisher and the background passes.
type Pipeline struct {
	cfg    Config
	deps   Deps
	source *IndexSource
	logger zerolog.Logger
}

// New creates a pipeline.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, deps Deps, logger zerolog.Logger) (*Pipeline, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("pipeline: missing store")
	case deps.Profiles == nil:
		return nil, errors.New("pipeline: missing profile aggregator")
	case deps.Quality == nil:
		return nil, errors.New("pipeline: missing quality scorer")
	case deps.Embeddings == nil:
		return nil, errors.New("pipeline: missing embedding cache")
	case deps.Vectorizer == nil:
		return nil, errors.New("pipeline: missing profile vectorizer")
	case deps.Index == nil:
		return nil, errors.New("pipeline: missing similarity index")
	case deps.Collab == nil:
		return nil, errors.New("pipeline: missing collaborative engine")
	}
	if cfg.EmbedBatch <= 0 {
		cfg.EmbedBatch = DefaultConfig().EmbedBatch
	}
	if cfg.ProfileBatch <= 0 {
		cfg.ProfileBatch = DefaultConfig().ProfileBatch
	}
	if cfg.SnapshotKeep <= 0 {
		cfg.SnapshotKeep = DefaultConfig().SnapshotKeep
	}
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		source: NewIndexSource(deps.Store, deps.Embeddings, deps.Store),
		logger: logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Source returns the index source backed by the store and embedding cache.
func (p *Pipeline) Source() *IndexSource {
	return p.source
}

// Publish validates and stores an item, then refreshes its embedding, index
// entry and quality score. Derived-state failures are logged; the stored
// item is returned regardless and the maintenance passes catch up.
func (p *Pipeline) Publish(ctx context.Context, item *recommend.ItemFeatures) (*recommend.ItemFeatures, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if item.Status == "" {
		item.Status = recommend.StatusPublished
	}
	if item.Published() && item.PublishedAt.IsZero() {
		item.PublishedAt = now
	}
	item.UpdatedAt = now
	item.ContentFingerprint = embedding.ContentFingerprint(item.Title, item.Body, item.Tags)

	res, err := p.deps.Store.PutItem(ctx, item)
	if err != nil {
		return nil, err
	}

	logger := p.logger.With().Str("item_id", item.ItemID).Logger()
	contentChanged := res.Previous == nil || res.Previous.ContentFingerprint != item.ContentFingerprint

	if item.Published() {
		_, err := p.deps.Embeddings.GetOrGenerate(ctx, embedding.Item(item.ItemID), item.ContentFingerprint, item.UpdatedAt,
			embedding.PrepareText(item.Title, item.Body, item.Tags))
		if err != nil {
			logger.Warn().Err(err).Msg("item embedding deferred to maintenance")
		}

		score := p.deps.Quality.Score
		if contentChanged {
			score = p.deps.Quality.Rescore
		}
		if _, err := score(ctx, item.ItemID); err != nil {
			logger.Warn().Err(err).Msg("item quality deferred to maintenance")
		}
	}

	if err := p.deps.Index.ForceRefresh(ctx, p.source, item.ItemID); err != nil {
		logger.Warn().Err(err).Msg("index force refresh failed")
	}

	unpublished := res.Previous != nil && res.Previous.Published() && !item.Published()
	if p.deps.Invalidator != nil && (res.NewCategory || unpublished) {
		p.deps.Invalidator.InvalidateAll(ctx)
		logger.Info().
			Bool("new_category", res.NewCategory).
			Bool("unpublished", unpublished).
			Msg("invalidated all cached recommendations")
	}

	logger.Debug().
		Bool("created", res.Previous == nil).
		Bool("content_changed", contentChanged).
		Str("status", string(item.Status)).
		Msg("item published")

	stored, err := p.deps.Store.GetItem(ctx, item.ItemID)
	if err != nil {
		return nil, fmt.Errorf("reload item: %w", err)
	}
	return stored, nil
}

var _ recommend.ItemPublisher = (*Pipeline)(nil)
