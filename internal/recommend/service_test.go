// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package recommend_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/recommend"
)

var serviceNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// fakeActivity serves history from a fixed event list, newest first.
type fakeActivity struct {
	events []recommend.InteractionEvent
	err    error
}

func (f *fakeActivity) Ingest(context.Context, recommend.InteractionEvent) error { return nil }

func (f *fakeActivity) History(_ context.Context, userID string, filter recommend.HistoryFilter) ([]recommend.InteractionEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []recommend.InteractionEvent
	for _, ev := range f.events {
		if ev.UserID != userID || ev.Timestamp.Before(filter.Since) {
			continue
		}
		if len(filter.Actions) > 0 && !slices.Contains(filter.Actions, ev.Action) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeActivity) ReadingStats(_ context.Context, userID string, days int) (*recommend.ReadingStats, error) {
	return &recommend.ReadingStats{UserID: userID, Days: days}, nil
}

func (f *fakeActivity) EngagementMetrics(_ context.Context, userID string) (*recommend.EngagementMetrics, error) {
	return &recommend.EngagementMetrics{UserID: userID, TotalEvents: len(f.events)}, nil
}

func (f *fakeActivity) views(userID string, at time.Time, items ...string) {
	for _, id := range items {
		f.events = append(f.events, recommend.InteractionEvent{
			UserID: userID, ItemID: id, Action: recommend.ActionView, Timestamp: at,
		})
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(_ context.Context, item *recommend.ItemFeatures) (*recommend.ItemFeatures, error) {
	return item, nil
}

type noopPreferences struct{}

func (noopPreferences) GetPreferences(context.Context, string) (*recommend.Preferences, error) {
	return nil, recommend.ErrNotFound
}

func (noopPreferences) PutPreferences(context.Context, *recommend.Preferences) error { return nil }

type fixedInsights struct{ days int }

func (f *fixedInsights) Insights(_ context.Context, days int) (*recommend.QualityInsights, error) {
	f.days = days
	return &recommend.QualityInsights{Days: days, Analyzed: 3}, nil
}

func (e *testEnv) service(t *testing.T, activity *fakeActivity, insights recommend.QualityReporter) *recommend.Service {
	t.Helper()
	svc, err := recommend.NewService(recommend.ServiceDeps{
		Engine:      e.engine(t, nil),
		Events:      activity,
		Publisher:   noopPublisher{},
		Preferences: noopPreferences{},
		History:     activity,
		Insights:    insights,
		Now:         func() time.Time { return serviceNow },
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func itemNames(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func upgradeTiers(offers []recommend.UpgradeOffer) []recommend.Tier {
	out := make([]recommend.Tier, len(offers))
	for i := range offers {
		out[i] = offers[i].Tier
	}
	return out
}

func TestNewService_RequiresInsights(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	activity := &fakeActivity{}
	_, err := recommend.NewService(recommend.ServiceDeps{
		Engine:      env.engine(t, nil),
		Events:      activity,
		Publisher:   noopPublisher{},
		Preferences: noopPreferences{},
		History:     activity,
	}, zerolog.Nop())
	if err == nil {
		t.Fatal("NewService() expected error without Insights")
	}
}

func TestService_CheckAccess(t *testing.T) {
	t.Parallel()

	today := serviceNow.Add(-time.Hour)
	earlierThisMonth := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		userTier    recommend.Tier
		itemTier    recommend.Tier
		history     func(a *fakeActivity)
		historyErr  error
		wantAllowed bool
		wantKind    recommend.AccessKind
		wantToday   int
		wantUsage   bool
		wantOffers  []recommend.Tier
	}{
		{
			name:        "free user within limits",
			history:     func(a *fakeActivity) { a.views("u1", today, "x", "y", "x") },
			wantAllowed: true, wantKind: recommend.AccessFull, wantUsage: true, wantToday: 2,
		},
		{
			name:       "premium item for free user",
			itemTier:   recommend.TierPremium,
			wantKind:   recommend.AccessUpgradeRequired,
			wantOffers: []recommend.Tier{recommend.TierPremium, recommend.TierEnterprise},
		},
		{
			name:       "enterprise item for premium user",
			userTier:   recommend.TierPremium,
			itemTier:   recommend.TierEnterprise,
			wantKind:   recommend.AccessUpgradeRequired,
			wantOffers: []recommend.Tier{recommend.TierEnterprise},
		},
		{
			name:        "enterprise user is unlimited",
			userTier:    recommend.TierEnterprise,
			itemTier:    recommend.TierPremium,
			history:     func(a *fakeActivity) { a.views("u1", today, itemNames("d", 500)...) },
			wantAllowed: true, wantKind: recommend.AccessFull,
		},
		{
			name:       "daily limit reached",
			history:    func(a *fakeActivity) { a.views("u1", today, itemNames("d", 10)...) },
			wantKind:   recommend.AccessLimitExceeded,
			wantUsage:  true,
			wantToday:  10,
			wantOffers: []recommend.Tier{recommend.TierPremium, recommend.TierEnterprise},
		},
		{
			name: "reopening an item viewed this month",
			history: func(a *fakeActivity) {
				a.views("u1", today, itemNames("d", 10)...)
				a.views("u1", earlierThisMonth, "target")
			},
			wantAllowed: true, wantKind: recommend.AccessFull, wantUsage: true, wantToday: 10,
		},
		{
			name:       "monthly limit reached",
			history:    func(a *fakeActivity) { a.views("u1", earlierThisMonth, itemNames("m", 200)...) },
			wantKind:   recommend.AccessLimitExceeded,
			wantUsage:  true,
			wantOffers: []recommend.Tier{recommend.TierPremium, recommend.TierEnterprise},
		},
		{
			name:        "last month does not count",
			history:     func(a *fakeActivity) { a.views("u1", lastMonth, itemNames("m", 300)...) },
			wantAllowed: true, wantKind: recommend.AccessFull, wantUsage: true,
		},
		{
			name:        "premium user has a higher cap",
			userTier:    recommend.TierPremium,
			history:     func(a *fakeActivity) { a.views("u1", today, itemNames("d", 10)...) },
			wantAllowed: true, wantKind: recommend.AccessFull, wantUsage: true, wantToday: 10,
		},
		{
			name:        "usage lookup failure grants access",
			historyErr:  errSourceDown,
			wantAllowed: true, wantKind: recommend.AccessFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv()
			env.items = newFakeItems(feature("target", "tech", tt.itemTier, 0))
			env.ents.tiers["u1"] = tt.userTier
			activity := &fakeActivity{err: tt.historyErr}
			if tt.history != nil {
				tt.history(activity)
			}
			svc := env.service(t, activity, &fixedInsights{})

			d, err := svc.CheckAccess(context.Background(), "u1", "target")
			if err != nil {
				t.Fatalf("CheckAccess() error = %v", err)
			}
			if d.Allowed != tt.wantAllowed || d.Access != tt.wantKind {
				t.Errorf("decision = %v/%s, want %v/%s (reason %q)", d.Allowed, d.Access, tt.wantAllowed, tt.wantKind, d.Reason)
			}
			if d.UserTier != tt.userTier || d.ItemTier != tt.itemTier {
				t.Errorf("tiers = %s/%s, want %s/%s", d.UserTier, d.ItemTier, tt.userTier, tt.itemTier)
			}
			if (d.Usage != nil) != tt.wantUsage {
				t.Fatalf("Usage = %+v, want present=%v", d.Usage, tt.wantUsage)
			}
			if d.Usage != nil && d.Usage.Today != tt.wantToday {
				t.Errorf("Usage.Today = %d, want %d", d.Usage.Today, tt.wantToday)
			}
			if !d.Allowed && d.Reason == "" {
				t.Error("denial without a reason")
			}
			if got := upgradeTiers(d.Upgrades); !slices.Equal(got, tt.wantOffers) {
				t.Errorf("Upgrades = %v, want %v", got, tt.wantOffers)
			}
		})
	}
}

func TestService_CheckAccessUnknownItem(t *testing.T) {
	t.Parallel()

	draft := feature("draft", "tech", recommend.TierFree, 0)
	draft.Status = recommend.StatusDraft
	env := newTestEnv()
	env.items = newFakeItems(draft)
	svc := env.service(t, &fakeActivity{}, &fixedInsights{})

	for _, id := range []string{"missing", "draft"} {
		if _, err := svc.CheckAccess(context.Background(), "u1", id); !errors.Is(err, recommend.ErrNotFound) {
			t.Errorf("CheckAccess(%q) error = %v, want ErrNotFound", id, err)
		}
	}
	if _, err := svc.CheckAccess(context.Background(), "", "draft"); !recommend.IsValidation(err) {
		t.Errorf("CheckAccess(empty user) error = %v, want validation error", err)
	}
}

func TestService_EngagementAndInsights(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	activity := &fakeActivity{}
	activity.views("u1", serviceNow, "a", "b")
	insights := &fixedInsights{}
	svc := env.service(t, activity, insights)
	ctx := context.Background()

	m, err := svc.EngagementMetrics(ctx, "u1")
	if err != nil {
		t.Fatalf("EngagementMetrics() error = %v", err)
	}
	if m.UserID != "u1" || m.TotalEvents != 2 {
		t.Errorf("EngagementMetrics() = %+v", m)
	}
	if _, err := svc.EngagementMetrics(ctx, "bad id!"); !recommend.IsValidation(err) {
		t.Errorf("EngagementMetrics(bad id) error = %v, want validation error", err)
	}

	qi, err := svc.QualityInsights(ctx, 14)
	if err != nil {
		t.Fatalf("QualityInsights() error = %v", err)
	}
	if qi.Days != 14 || insights.days != 14 {
		t.Errorf("QualityInsights() days = %d (reporter saw %d), want 14", qi.Days, insights.days)
	}
}
