// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/keylock"
	"github.com/tomtom215/lectern/internal/metrics"
	"github.com/tomtom215/lectern/internal/recommend"
)

// Store persists profiles and reads the event log.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*recommend.UserProfile, error)
	PutProfile(ctx context.Context, p *recommend.UserProfile) error
	EventsSince(ctx context.Context, userID, cursor string, fn func(key string, ev *recommend.InteractionEvent) error) error
}

// Aggregator owns user profiles. It implements recommend.ProfileSource.
type Aggregator struct {
	cfg    Config
	store  Store
	items  recommend.ItemSource
	tiers  recommend.EntitlementSource
	prefs  recommend.PreferenceSource
	locks  keylock.Map
	now    func() time.Time
	logger zerolog.Logger
}

// New creates an aggregator. prefs may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, store Store, items recommend.ItemSource, tiers recommend.EntitlementSource, prefs recommend.PreferenceSource, logger zerolog.Logger) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("profile config: %w", err)
	}
	return &Aggregator{
		cfg:    cfg,
		store:  store,
		items:  items,
		tiers:  tiers,
		prefs:  prefs,
		now:    time.Now,
		logger: logger.With().Str("component", "profile_aggregator").Logger(),
	}, nil
}

// UpdateProfile folds the user's events recorded after the profile cursor
// and stores the result. A user with no events gets an empty profile.
func (a *Aggregator) UpdateProfile(ctx context.Context, userID string) (*recommend.UserProfile, error) {
	return a.update(ctx, userID, time.Time{}, false)
}

// UpdateProfileAt is UpdateProfile for a trigger carrying the event time. An
// event older than the newest folded one forces a full refold.
func (a *Aggregator) UpdateProfileAt(ctx context.Context, userID string, eventTime time.Time) (*recommend.UserProfile, error) {
	return a.update(ctx, userID, eventTime, false)
}

// Refold rebuilds the profile from the first event.
func (a *Aggregator) Refold(ctx context.Context, userID string) (*recommend.UserProfile, error) {
	return a.update(ctx, userID, time.Time{}, true)
}

func (a *Aggregator) update(ctx context.Context, userID string, eventTime time.Time, full bool) (*recommend.UserProfile, error) {
	unlock, err := a.locks.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()
	p, err := a.updateLocked(ctx, userID, eventTime, full)
	metrics.ProfileUpdateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProfileUpdates.WithLabelValues("error").Inc()
		return nil, err
	}
	return p, nil
}

func (a *Aggregator) updateLocked(ctx context.Context, userID string, eventTime time.Time, full bool) (*recommend.UserProfile, error) {
	stored, err := a.store.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, recommend.ErrNotFound):
		stored = nil
	case err != nil:
		return nil, fmt.Errorf("load profile: %w", err)
	}

	if stored != nil && !eventTime.IsZero() && eventTime.UTC().Before(stored.AsOf) {
		full = true
	}

	p := stored
	if p == nil || full {
		p = recommend.NewUserProfile(userID)
	} else {
		ensureMaps(p)
	}

	f := newFold(&a.cfg, p, a.items)
	folded := 0
	err = a.store.EventsSince(ctx, userID, p.Cursor, func(key string, ev *recommend.InteractionEvent) error {
		if err := f.apply(ctx, ev); err != nil {
			return err
		}
		p.Cursor = key
		p.EventCount++
		folded++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fold events for %s: %w", userID, err)
	}

	tier, err := a.tiers.TierOf(ctx, userID)
	if err != nil && !errors.Is(err, recommend.ErrNotFound) {
		return nil, fmt.Errorf("tier of %s: %w", userID, err)
	}

	if folded == 0 && !full && stored != nil && stored.Tier == tier {
		metrics.ProfileUpdates.WithLabelValues("unchanged").Inc()
		return p, nil
	}
	if stored == nil && folded == 0 {
		// Cold start: nothing to persist.
		p.Tier = tier
		metrics.ProfileUpdates.WithLabelValues("unchanged").Inc()
		return p, nil
	}

	p.Tier = tier
	p.UpdatedAt = a.now().UTC()
	if err := a.store.PutProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("store profile: %w", err)
	}
	metrics.ProfileUpdates.WithLabelValues("updated").Inc()

	a.logger.Debug().
		Str("user_id", userID).
		Int("folded", folded).
		Int("applied", f.applied).
		Bool("full", full).
		Int("interactions", len(p.InteractionSet)).
		Msg("profile updated")
	return p, nil
}

// Profile returns the stored profile with the current tier and explicit
// preferences applied. Preferred categories are seeded into the category
// affinity and disliked ones removed. It never folds.
func (a *Aggregator) Profile(ctx context.Context, userID string) (*recommend.UserProfile, error) {
	p, err := a.store.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, recommend.ErrNotFound):
		p = recommend.NewUserProfile(userID)
	case err != nil:
		return nil, fmt.Errorf("load profile: %w", err)
	default:
		ensureMaps(p)
	}

	tier, err := a.tiers.TierOf(ctx, userID)
	switch {
	case err == nil:
		p.Tier = tier
	case !errors.Is(err, recommend.ErrNotFound):
		a.logger.Warn().Err(err).Str("user_id", userID).Msg("tier lookup failed, using stored tier")
	}

	if a.prefs == nil {
		return p, nil
	}
	prefs, err := a.prefs.GetPreferences(ctx, userID)
	switch {
	case errors.Is(err, recommend.ErrNotFound):
		return p, nil
	case err != nil:
		a.logger.Debug().Err(err).Str("user_id", userID).Msg("preferences unavailable")
		return p, nil
	}
	for _, c := range prefs.PreferredCategories {
		p.CategoryAffinity[c] += a.cfg.PreferenceSeed
	}
	for _, c := range prefs.DislikedCategories {
		delete(p.CategoryAffinity, c)
	}
	return p, nil
}

var _ recommend.ProfileSource = (*Aggregator)(nil)
