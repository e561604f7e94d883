// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

// Package events records user interactions.
//
// Ingest validates an event, appends it to the durable log and bumps the
// item's engagement counter in one store transaction, then notifies the
// aggregation consumer without waiting for it. Duplicate events (same user,
// item, action and timestamp) are accepted and dropped.
package events

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/eventbus"
	"github.com/tomtom215/lectern/internal/metrics"
	"github.com/tomtom215/lectern/internal/recommend"
)

// Store is the durable event log.
type Store interface {
	// AppendEvent returns false if the event was already recorded.
	AppendEvent(ctx context.Context, ev recommend.InteractionEvent) (bool, error)
	History(ctx context.Context, userID string, filter recommend.HistoryFilter) ([]recommend.InteractionEvent, error)
}

// Notifier announces committed events to background consumers.
type Notifier interface {
	PublishRecorded(ctx context.Context, r eventbus.Recorded) error
}

// Ingestor implements recommend.EventRecorder and recommend.HistoryReader.
type Ingestor struct {
	store       Store
	notifier    Notifier
	invalidator recommend.Invalidator
	now         func() time.Time
	logger      zerolog.Logger
}

// New creates an ingestor. notifier and invalidator may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(store Store, notifier Notifier, invalidator recommend.Invalidator, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		store:       store,
		notifier:    notifier,
		invalidator: invalidator,
		now:         time.Now,
		logger:      logger.With().Str("component", "event_ingestor").Logger(),
	}
}

// Ingest records ev. Invalid events fail with a *recommend.ValidationError
// and leave no trace.
//
//nolint:gocritic // hugeParam: events are passed by value throughout ingestion
func (i *Ingestor) Ingest(ctx context.Context, ev recommend.InteractionEvent) error {
	if err := ev.Validate(); err != nil {
		metrics.EventsRejected.WithLabelValues(rejectReason(err)).Inc()
		return err
	}
	ev.Timestamp = ev.Timestamp.UTC()

	added, err := i.store.AppendEvent(ctx, ev)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if !added {
		metrics.EventsDeduplicated.Inc()
		i.logger.Debug().
			Str("user_id", ev.UserID).
			Str("item_id", ev.ItemID).
			Str("action", string(ev.Action)).
			Msg("duplicate event dropped")
		return nil
	}
	metrics.EventsIngested.WithLabelValues(string(ev.Action)).Inc()

	if ev.Action.IsStrong() && i.invalidator != nil {
		i.invalidator.Invalidate(ctx, ev.UserID)
	}

	if i.notifier != nil {
		err := i.notifier.PublishRecorded(ctx, eventbus.Recorded{
			UserID:    ev.UserID,
			ItemID:    ev.ItemID,
			Action:    string(ev.Action),
			Magnitude: ev.Magnitude,
			Timestamp: ev.Timestamp,
		})
		if err != nil {
			metrics.EventsPublishFailures.Inc()
			i.logger.Warn().Err(err).Str("user_id", ev.UserID).Msg("aggregation trigger not published; profile catch-up pass will fold it")
		}
	}
	return nil
}

func rejectReason(err error) string {
	var ve *recommend.ValidationError
	if errors.As(err, &ve) {
		if fields := ve.Fields(); len(fields) > 0 {
			return fields[0]
		}
	}
	return "invalid"
}

// History returns the user's activity, newest first.
func (i *Ingestor) History(ctx context.Context, userID string, filter recommend.HistoryFilter) ([]recommend.InteractionEvent, error) {
	if filter.Limit < 0 {
		return nil, recommend.NewValidationError("limit", "gte", "limit must not be negative")
	}
	if !filter.Since.IsZero() && !filter.Until.IsZero() && filter.Until.Before(filter.Since) {
		return nil, recommend.NewValidationError("until", "gtefield", "until must not be before since")
	}
	for _, a := range filter.Actions {
		if !a.Known() {
			return nil, recommend.NewValidationError("actions", "oneof", fmt.Sprintf("unknown action %q", a))
		}
	}
	return i.store.History(ctx, userID, filter)
}

// Reading-stats window bounds in days.
const (
	DefaultStatsDays = 30
	MaxStatsDays     = 365
)

// ReadingStats summarises views and reading time over the last days.
// Days outside [1, MaxStatsDays] fall back to DefaultStatsDays.
func (i *Ingestor) ReadingStats(ctx context.Context, userID string, days int) (*recommend.ReadingStats, error) {
	if days < 1 || days > MaxStatsDays {
		days = DefaultStatsDays
	}
	since := i.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	evs, err := i.store.History(ctx, userID, recommend.HistoryFilter{
		Actions: []recommend.Action{recommend.ActionView, recommend.ActionReadTime},
		Since:   since,
	})
	if err != nil {
		return nil, err
	}

	stats := &recommend.ReadingStats{UserID: userID, Days: days}
	activeDays := make(map[string]struct{})
	for idx := range evs {
		ev := &evs[idx]
		switch ev.Action {
		case recommend.ActionView:
			stats.TotalViews++
		case recommend.ActionReadTime:
			stats.TotalReadingSeconds += ev.Magnitude
		}
		activeDays[ev.Timestamp.UTC().Format(time.DateOnly)] = struct{}{}
	}
	stats.ReadingDays = len(activeDays)
	stats.AvgReadingSeconds = round2(stats.TotalReadingSeconds / float64(max(stats.TotalViews, 1)))
	stats.Frequency = round2(float64(stats.ReadingDays) / float64(days))
	return stats, nil
}

// EngagementMetrics counts every recorded action of userID and averages the
// magnitudes of scroll and read_time events.
func (i *Ingestor) EngagementMetrics(ctx context.Context, userID string) (*recommend.EngagementMetrics, error) {
	evs, err := i.store.History(ctx, userID, recommend.HistoryFilter{})
	if err != nil {
		return nil, err
	}

	m := &recommend.EngagementMetrics{
		UserID:      userID,
		TotalEvents: len(evs),
		Actions:     make(map[recommend.Action]recommend.ActionMetrics),
	}
	sums := make(map[recommend.Action]float64)
	weighted := make(map[recommend.Action]int)
	for idx := range evs {
		ev := &evs[idx]
		am := m.Actions[ev.Action]
		am.Count++
		m.Actions[ev.Action] = am
		if ev.Magnitude > 0 && (ev.Action == recommend.ActionScroll || ev.Action == recommend.ActionReadTime) {
			sums[ev.Action] += ev.Magnitude
			weighted[ev.Action]++
		}

		// History is newest first.
		ts := ev.Timestamp.UTC()
		if m.LastActive == nil {
			m.LastActive = &ts
		}
		m.FirstActive = &ts
	}
	for a, n := range weighted {
		am := m.Actions[a]
		am.AvgMagnitude = round2(sums[a] / float64(n))
		m.Actions[a] = am
	}
	m.AvgReadingSeconds = m.Actions[recommend.ActionReadTime].AvgMagnitude
	m.AvgScrollDepth = m.Actions[recommend.ActionScroll].AvgMagnitude
	return m, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var (
	_ recommend.EventRecorder = (*Ingestor)(nil)
	_ recommend.HistoryReader = (*Ingestor)(nil)
)
