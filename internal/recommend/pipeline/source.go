// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package pipeline

import (
	"context"
	"errors"

	"github.com/tomtom215/lectern/internal/recommend"
	"github.com/tomtom215/lectern/internal/recommend/embedding"
	"github.com/tomtom215/lectern/internal/recommend/index"
)

// LatestVectors returns the newest stored record of a subject.
type LatestVectors interface {
	Latest(ctx context.Context, s embedding.Subject) (*recommend.EmbeddingRecord, error)
}

// IndexSource feeds the similarity index from published items and their
// latest item embeddings. Records from an older model version stay indexed
// until they are regenerated.
type IndexSource struct {
	items   recommend.ItemSource
	vectors LatestVectors
	quality recommend.QualitySource
}

// NewIndexSource creates an index source.
func NewIndexSource(items recommend.ItemSource, vectors LatestVectors, quality recommend.QualitySource) *IndexSource {
	return &IndexSource{items: items, vectors: vectors, quality: quality}
}

// Entries calls fn for every published item that has a vector.
func (s *IndexSource) Entries(ctx context.Context, fn func(index.Entry) error) error {
	return s.items.ScanItems(ctx, func(it *recommend.ItemFeatures) error {
		e, err := s.entry(ctx, it)
		if errors.Is(err, recommend.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return fn(e)
	})
}

// Entry returns the entry of one item, or recommend.ErrNotFound.
func (s *IndexSource) Entry(ctx context.Context, itemID string) (index.Entry, error) {
	it, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return index.Entry{}, err
	}
	return s.entry(ctx, it)
}

func (s *IndexSource) entry(ctx context.Context, it *recommend.ItemFeatures) (index.Entry, error) {
	if !it.Published() {
		return index.Entry{}, recommend.ErrNotFound
	}
	rec, err := s.vectors.Latest(ctx, embedding.Item(it.ItemID))
	if err != nil {
		return index.Entry{}, err
	}
	q := 0.0
	if qs, err := s.quality.GetQuality(ctx, it.ItemID); err == nil {
		q = qs.Overall
	} else if !errors.Is(err, recommend.ErrNotFound) {
		return index.Entry{}, err
	}
	return index.Entry{Meta: it.Meta(q), Vector: rec.Vector}, nil
}

var _ index.Source = (*IndexSource)(nil)
