// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/lectern/internal/metrics"
	"github.com/tomtom215/lectern/internal/recommend"
	"github.com/tomtom215/lectern/internal/recommend/storage"
)

// Source supplies index entries from the embedding cache and item store.
type Source interface {
	// Entries calls fn for every indexable item.
	Entries(ctx context.Context, fn func(Entry) error) error

	// Entry returns the current entry of one item, or recommend.ErrNotFound
	// if the item is missing, unpublished or has no vector yet.
	Entry(ctx context.Context, itemID string) (Entry, error)
}

// Refresh rebuilds the index from src and swaps it in at once.
// On error the current snapshot is kept.
func (x *Index) Refresh(ctx context.Context, src Source) (int, error) {
	start := time.Now()
	var entries []Entry
	err := src.Entries(ctx, func(e Entry) error {
		if ctxDone(ctx) {
			return ctx.Err()
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("collect index entries: %w", err)
	}

	n := x.Replace(entries, time.Now())
	metrics.IndexRefreshes.WithLabelValues("full").Inc()
	x.logger.Info().
		Int("items", n).
		Int("skipped", len(entries)-n).
		Dur("duration", time.Since(start)).
		Msg("similarity index refreshed")
	return n, nil
}

// ForceRefresh re-reads one item from src so a newly published or changed
// item is queryable before the next full refresh. Items that are no longer
// indexable are removed.
func (x *Index) ForceRefresh(ctx context.Context, src Source, itemID string) error {
	metrics.IndexRefreshes.WithLabelValues("forced").Inc()
	e, err := src.Entry(ctx, itemID)
	if errors.Is(err, recommend.ErrNotFound) {
		x.Remove(itemID)
		return nil
	}
	if err != nil {
		return err
	}
	return x.Upsert(e)
}

// Save writes the current snapshot to store as a new version.
func (x *Index) Save(ctx context.Context, store *storage.Store, modelVersion string) (int, error) {
	s := x.snap.Load()
	state := storage.IndexState{
		Entries:      make([]storage.IndexEntryState, len(s.entries)),
		ModelVersion: modelVersion,
		BuiltAt:      s.builtAt,
	}
	for i := range s.entries {
		m := &s.entries[i].Meta
		state.Entries[i] = storage.IndexEntryState{
			ItemID:      m.ItemID,
			AuthorID:    m.AuthorID,
			Category:    m.Category,
			Tags:        m.Tags,
			AccessTier:  int(m.AccessTier),
			Status:      string(m.Status),
			PublishedAt: m.PublishedAt,
			Quality:     m.Quality,
			Vector:      s.entries[i].Vector,
		}
	}

	version := store.NextVersion(storage.IndexSnapshotName)
	err := store.Save(ctx, storage.IndexSnapshotName, version, state, storage.SnapshotMetadata{
		BuiltAt:      s.builtAt,
		ItemCount:    len(s.entries),
		Dimensions:   s.dims,
		ModelVersion: modelVersion,
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Load replaces the index with the latest snapshot in store. Snapshots built
// under a different model version are ignored and Load reports false.
func (x *Index) Load(ctx context.Context, store *storage.Store, modelVersion string) (bool, error) {
	var state storage.IndexState
	meta, err := store.Load(ctx, storage.IndexSnapshotName, 0, &state)
	if errors.Is(err, storage.ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if modelVersion != "" && state.ModelVersion != modelVersion {
		x.logger.Info().
			Str("snapshot_model", state.ModelVersion).
			Str("model", modelVersion).
			Msg("ignoring index snapshot from another model version")
		return false, nil
	}

	entries := make([]Entry, len(state.Entries))
	for i := range state.Entries {
		es := &state.Entries[i]
		entries[i] = Entry{
			Meta: recommend.ItemMeta{
				ItemID:      es.ItemID,
				AuthorID:    es.AuthorID,
				Category:    es.Category,
				Tags:        es.Tags,
				AccessTier:  recommend.Tier(es.AccessTier),
				Status:      recommend.ItemStatus(es.Status),
				PublishedAt: es.PublishedAt,
				Quality:     es.Quality,
			},
			Vector: es.Vector,
		}
	}
	n := x.Replace(entries, state.BuiltAt)
	x.logger.Info().Int("items", n).Int("version", meta.Version).Msg("similarity index loaded from snapshot")
	return true, nil
}
