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

	"github.com/tomtom215/lectern/internal/metrics"
	"github.com/tomtom215/lectern/internal/recommend"
	"github.com/tomtom215/lectern/internal/recommend/collab"
	"github.com/tomtom215/lectern/internal/recommend/embedding"
	"github.com/tomtom215/lectern/internal/recommend/storage"
	"github.com/tomtom215/lectern/internal/store"
)

// Maintenance task names, also used as metric labels.
const (
	TaskCollab   = "collab_rebuild"
	TaskIndex    = "index_refresh"
	TaskQuality  = "quality_batch"
	TaskSnapshot = "index_snapshot"
	TaskStoreGC  = "store_gc"
	TaskProfiles = "profile_catchup"
)

var (
	errEmbedBatchFull   = errors.New("embed batch full")
	errProfileBatchFull = errors.New("profile batch full")
)

// RebuildCollab replays the interaction log into a fresh collaborative graph.
func (p *Pipeline) RebuildCollab(ctx context.Context) (err error) {
	defer func() { metrics.RecordMaintenance(TaskCollab, err) }()

	edges, err := collab.EdgesFromEvents(ctx, p.deps.Store, p.deps.Collab.HighReadTime())
	if err != nil {
		return fmt.Errorf("replay interactions: %w", err)
	}
	return p.deps.Collab.Rebuild(ctx, edges)
}

// CatchUpProfiles folds events for users whose profile is behind the event
// log, which happens when an aggregation trigger was lost. Missing events
// after the profile cursor are folded incrementally; a missing event older
// than the cursor forces a refold.
func (p *Pipeline) CatchUpProfiles(ctx context.Context) (err error) {
	defer func() { metrics.RecordMaintenance(TaskProfiles, err) }()

	var behind []store.EventHead
	err = p.deps.Store.ScanEventHeads(ctx, func(h store.EventHead) error {
		prof, gerr := p.deps.Store.GetProfile(ctx, h.UserID)
		switch {
		case errors.Is(gerr, recommend.ErrNotFound):
		case gerr != nil:
			return gerr
		case prof.EventCount >= h.Count:
			return nil
		}
		behind = append(behind, h)
		if len(behind) >= p.cfg.ProfileBatch {
			return errProfileBatchFull
		}
		return nil
	})
	if errors.Is(err, errProfileBatchFull) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("scan event heads: %w", err)
	}

	updated, refolded := 0, 0
	for _, h := range behind {
		logger := p.logger.With().Str("user_id", h.UserID).Logger()
		prof, uerr := p.deps.Profiles.UpdateProfile(ctx, h.UserID)
		if uerr == nil && prof.EventCount < h.Count {
			prof, uerr = p.deps.Profiles.Refold(ctx, h.UserID)
			refolded++
		}
		if uerr != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			logger.Warn().Err(uerr).Msg("profile catch-up failed")
			continue
		}
		updated++
		if err := p.refreshUserEmbedding(ctx, prof); err != nil {
			logger.Debug().Err(err).Msg("user embedding not refreshed")
		}
		if p.deps.Invalidator != nil {
			p.deps.Invalidator.Invalidate(ctx, h.UserID)
		}
	}

	if len(behind) > 0 {
		p.logger.Info().
			Int("behind", len(behind)).
			Int("updated", updated).
			Int("refolded", refolded).
			Msg("profiles caught up")
	}
	return nil
}

// RefreshIndex embeds published items whose vector is missing or stale,
// rebuilds the similarity index and then the trending list.
func (p *Pipeline) RefreshIndex(ctx context.Context) (err error) {
	defer func() { metrics.RecordMaintenance(TaskIndex, err) }()

	embedded, err := p.EmbedStale(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Int("embedded", embedded).Msg("embedding backfill incomplete")
	}

	if _, err := p.deps.Index.Refresh(ctx, p.source); err != nil {
		return err
	}
	if p.deps.Engine != nil {
		if err := p.deps.Engine.RefreshTrending(ctx); err != nil {
			return fmt.Errorf("refresh trending: %w", err)
		}
	}
	return nil
}

// EmbedStale generates vectors for up to EmbedBatch published items whose
// latest record is missing, built from other content or from an older model
// version. It stops at the first embedder failure.
func (p *Pipeline) EmbedStale(ctx context.Context) (int, error) {
	mv := p.deps.Embeddings.ModelVersion()
	n := 0
	err := p.deps.Store.ScanItems(ctx, func(it *recommend.ItemFeatures) error {
		if !it.Published() {
			return nil
		}
		fp := it.ContentFingerprint
		if fp == "" {
			fp = embedding.ContentFingerprint(it.Title, it.Body, it.Tags)
		}
		cur, err := p.deps.Embeddings.Latest(ctx, embedding.Item(it.ItemID))
		switch {
		case err == nil && cur.Matches(fp, mv):
			return nil
		case err != nil && !errors.Is(err, recommend.ErrNotFound):
			return err
		}

		if _, err := p.deps.Embeddings.GetOrGenerate(ctx, embedding.Item(it.ItemID), fp, it.UpdatedAt,
			embedding.PrepareText(it.Title, it.Body, it.Tags)); err != nil {
			return err
		}
		n++
		if n >= p.cfg.EmbedBatch {
			return errEmbedBatchFull
		}
		return nil
	})
	if errors.Is(err, errEmbedBatchFull) {
		err = nil
	}
	if n > 0 {
		p.logger.Info().Int("items", n).Msg("embedded stale items")
	}
	return n, err
}

// RescoreQuality rebuilds corpus statistics and rescores stale items.
func (p *Pipeline) RescoreQuality(ctx context.Context) (err error) {
	defer func() { metrics.RecordMaintenance(TaskQuality, err) }()

	p.deps.Quality.InvalidateCorpus()
	res, err := p.deps.Quality.Batch(ctx, nil)
	if err != nil {
		return err
	}
	if res.Processed > 0 || res.Errors > 0 {
		p.logger.Info().
			Int("processed", res.Processed).
			Int("errors", res.Errors).
			Msg("quality batch complete")
	}
	return nil
}

// SnapshotIndex writes the index to the snapshot store and prunes old
// versions. It is a no-op without a snapshot store.
func (p *Pipeline) SnapshotIndex(ctx context.Context) (err error) {
	if p.deps.Snapshots == nil {
		return nil
	}
	defer func() { metrics.RecordMaintenance(TaskSnapshot, err) }()

	version, err := p.deps.Index.Save(ctx, p.deps.Snapshots, p.deps.Embeddings.ModelVersion())
	if err != nil {
		return fmt.Errorf("save index snapshot: %w", err)
	}
	if err := p.deps.Snapshots.Prune(ctx, storage.IndexSnapshotName, p.cfg.SnapshotKeep); err != nil {
		return fmt.Errorf("prune index snapshots: %w", err)
	}
	p.logger.Debug().Int("version", version).Msg("index snapshot written")
	return nil
}

// RestoreIndex loads the latest index snapshot for a warm start. It reports
// whether a usable snapshot was found.
func (p *Pipeline) RestoreIndex(ctx context.Context) (bool, error) {
	if p.deps.Snapshots == nil {
		return false, nil
	}
	return p.deps.Index.Load(ctx, p.deps.Snapshots, p.deps.Embeddings.ModelVersion())
}

// CompactStore reclaims value log space.
func (p *Pipeline) CompactStore(ctx context.Context) (err error) {
	defer func() { metrics.RecordMaintenance(TaskStoreGC, err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	if err := p.deps.Store.RunValueLogGC(p.cfg.GCDiscardRatio); err != nil {
		return fmt.Errorf("value log gc: %w", err)
	}
	lsm, vlog := p.deps.Store.Size()
	p.logger.Debug().
		Int64("lsm_bytes", lsm).
		Int64("vlog_bytes", vlog).
		Dur("duration", time.Since(start)).
		Msg("value log gc complete")
	return nil
}
