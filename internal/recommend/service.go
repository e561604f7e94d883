// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// PreferenceStore reads and writes explicit user preferences.
type PreferenceStore interface {
	PreferenceSource
	PutPreferences(ctx context.Context, prefs *Preferences) error
}

// HistoryReader exposes a user's recorded activity.
type HistoryReader interface {
	History(ctx context.Context, userID string, filter HistoryFilter) ([]InteractionEvent, error)
	ReadingStats(ctx context.Context, userID string, days int) (*ReadingStats, error)
	EngagementMetrics(ctx context.Context, userID string) (*EngagementMetrics, error)
}

// QualityReporter summarises stored quality scores.
type QualityReporter interface {
	Insights(ctx context.Context, days int) (*QualityInsights, error)
}

// ServiceDeps are the collaborators of the public service.
type ServiceDeps struct {
	Engine      *Engine
	Cache       *RecommendationCache // optional
	Events      EventRecorder
	Publisher   ItemPublisher
	Preferences PreferenceStore
	History     HistoryReader
	Insights    QualityReporter

	// Now overrides the clock used for usage windows.
	Now func() time.Time
}

// Service is the public face of the recommendation engine: the four
// exposed operations plus preferences, history and status.
type Service struct {
	deps   ServiceDeps
	now    func() time.Time
	logger zerolog.Logger
}

// NewService creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewService(deps ServiceDeps, logger zerolog.Logger) (*Service, error) {
	switch {
	case deps.Engine == nil:
		return nil, errMissingDependency("Engine")
	case deps.Events == nil:
		return nil, errMissingDependency("Events")
	case deps.Publisher == nil:
		return nil, errMissingDependency("Publisher")
	case deps.Preferences == nil:
		return nil, errMissingDependency("Preferences")
	case deps.History == nil:
		return nil, errMissingDependency("History")
	case deps.Insights == nil:
		return nil, errMissingDependency("Insights")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		deps:   deps,
		now:    now,
		logger: logger.With().Str("component", "recommend_service").Logger(),
	}, nil
}

// GetRecommendations returns up to k ranked items for userID. An empty
// userID is served as an anonymous visitor.
func (s *Service) GetRecommendations(ctx context.Context, userID string, k int) (*Response, error) {
	if userID != "" {
		if err := validateIdentifier("user_id", userID); err != nil {
			return nil, err
		}
	}
	k = s.deps.Engine.ClampK(k)

	if s.deps.Cache == nil {
		return s.deps.Engine.Rank(ctx, userID, k)
	}
	return s.deps.Cache.Get(ctx, userID, k, s.deps.Engine.Rank)
}

// GetSimilar returns items similar to itemID visible to tier.
func (s *Service) GetSimilar(ctx context.Context, itemID string, k int, tier Tier) (*Response, error) {
	if err := validateIdentifier("item_id", itemID); err != nil {
		return nil, err
	}
	return s.deps.Engine.Similar(ctx, itemID, k, tier)
}

// GetTrending returns the trending list for tier.
func (s *Service) GetTrending(ctx context.Context, k int, tier Tier) (*Response, error) {
	return s.deps.Engine.Trending(ctx, k, tier)
}

// RecordEvent durably records an interaction.
//
//nolint:gocritic // hugeParam: events are passed by value throughout ingestion
func (s *Service) RecordEvent(ctx context.Context, event InteractionEvent) error {
	return s.deps.Events.Ingest(ctx, event)
}

// PublishItem stores an item and refreshes its derived state.
func (s *Service) PublishItem(ctx context.Context, item *ItemFeatures) (*ItemFeatures, error) {
	return s.deps.Publisher.Publish(ctx, item)
}

// SetPreferences validates and stores a user's preferences and drops the
// user's cached list.
func (s *Service) SetPreferences(ctx context.Context, prefs *Preferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	prefs.UpdatedAt = time.Now().UTC()
	if err := s.deps.Preferences.PutPreferences(ctx, prefs); err != nil {
		return fmt.Errorf("store preferences: %w", err)
	}
	if s.deps.Cache != nil {
		s.deps.Cache.Invalidate(ctx, prefs.UserID)
	}
	return nil
}

// GetPreferences returns a user's stored preferences.
func (s *Service) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	if err := validateIdentifier("user_id", userID); err != nil {
		return nil, err
	}
	return s.deps.Preferences.GetPreferences(ctx, userID)
}

// History returns the user's activity, newest first.
func (s *Service) History(ctx context.Context, userID string, filter HistoryFilter) ([]InteractionEvent, error) {
	if err := validateIdentifier("user_id", userID); err != nil {
		return nil, err
	}
	return s.deps.History.History(ctx, userID, filter)
}

// ReadingStats summarises the user's reading over the last days.
func (s *Service) ReadingStats(ctx context.Context, userID string, days int) (*ReadingStats, error) {
	if err := validateIdentifier("user_id", userID); err != nil {
		return nil, err
	}
	return s.deps.History.ReadingStats(ctx, userID, days)
}

// EngagementMetrics summarises every interaction the user recorded.
func (s *Service) EngagementMetrics(ctx context.Context, userID string) (*EngagementMetrics, error) {
	if err := validateIdentifier("user_id", userID); err != nil {
		return nil, err
	}
	return s.deps.History.EngagementMetrics(ctx, userID)
}

// QualityInsights summarises quality scores computed over the last days.
func (s *Service) QualityInsights(ctx context.Context, days int) (*QualityInsights, error) {
	return s.deps.Insights.Insights(ctx, days)
}

// ServiceStatus is reported by the status endpoint.
type ServiceStatus struct {
	Engine Status      `json:"engine"`
	Cache  *CacheStats `json:"cache,omitempty"`
}

// Status returns engine and cache counters.
func (s *Service) Status() ServiceStatus {
	st := ServiceStatus{Engine: s.deps.Engine.Status()}
	if s.deps.Cache != nil {
		cs := s.deps.Cache.Stats()
		st.Cache = &cs
	}
	return st
}
