// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package recommend_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/recommend"
	"github.com/tomtom215/lectern/internal/recommend/reranking"
)

type testEnv struct {
	profiles *fakeProfiles
	vec      *fakeVectorizer
	index    *fakeIndex
	collab   *fakeCollab
	items    *fakeItems
	quality  *fakeQuality
	ents     *fakeEntitlements
}

func newTestEnv() *testEnv {
	return &testEnv{
		profiles: &fakeProfiles{profiles: map[string]*recommend.UserProfile{}},
		vec:      &fakeVectorizer{},
		index:    &fakeIndex{vectors: map[string][]float32{}},
		collab:   &fakeCollab{},
		items:    newFakeItems(),
		quality:  &fakeQuality{scores: map[string]float64{}},
		ents:     &fakeEntitlements{tiers: map[string]recommend.Tier{}},
	}
}

func (e *testEnv) engine(t *testing.T, cfg *recommend.Config, rerankers ...recommend.Reranker) *recommend.Engine {
	t.Helper()
	eng, err := recommend.NewEngine(cfg, recommend.Dependencies{
		Profiles:     e.profiles,
		Vectorizer:   e.vec,
		Index:        e.index,
		Collab:       e.collab,
		Items:        e.items,
		Quality:      e.quality,
		Entitlements: e.ents,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	for _, rr := range rerankers {
		eng.RegisterReranker(rr)
	}
	return eng
}

func itemIDs(items []recommend.ScoredItem) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].ItemID
	}
	return out
}

func TestNewEngine_MissingDependency(t *testing.T) {
	t.Parallel()

	_, err := recommend.NewEngine(nil, recommend.Dependencies{}, zerolog.Nop())
	if err == nil {
		t.Fatal("NewEngine() expected error for missing dependencies")
	}
	if !strings.Contains(err.Error(), "Profiles") {
		t.Errorf("error = %v, want mention of Profiles", err)
	}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := recommend.DefaultConfig()
	cfg.Limits.MaxK = 1
	env := newTestEnv()
	_, err := recommend.NewEngine(cfg, recommend.Dependencies{
		Profiles: env.profiles, Vectorizer: env.vec, Index: env.index, Collab: env.collab,
		Items: env.items, Quality: env.quality, Entitlements: env.ents,
	}, zerolog.Nop())
	if err == nil {
		t.Fatal("NewEngine() expected config validation error")
	}
}

func TestEngine_ClampK(t *testing.T) {
	t.Parallel()

	eng := newTestEnv().engine(t, nil)
	tests := []struct {
		in, want int
	}{
		{0, 10},
		{-3, 10},
		{5, 5},
		{1000, 100},
	}
	for _, tt := range tests {
		if got := eng.ClampK(tt.in); got != tt.want {
			t.Errorf("ClampK(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRank_DiversityExample(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.profiles.profiles["u1"] = profileWith("u1", "seen")
	env.index.hits = []recommend.Hit{
		{ItemMeta: meta("A", "ML", recommend.TierFree, 0.90), Similarity: 0.5},
		{ItemMeta: meta("B", "ML", recommend.TierFree, 0.85), Similarity: 0.5},
		{ItemMeta: meta("C", "Robotics", recommend.TierFree, 0.95), Similarity: 0.5},
	}

	eng := env.engine(t, nil, reranking.NewDiversity(reranking.DiversityConfig{MaxPerCategory: 1}))
	resp, err := eng.Rank(context.Background(), "u1", 2)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}

	got := itemIDs(resp.Items)
	if len(got) != 2 || got[0] != "C" || got[1] != "A" {
		t.Errorf("Rank() = %v, want [C A]", got)
	}
	if resp.Metadata.State != recommend.StateDone {
		t.Errorf("State = %v, want done", resp.Metadata.State)
	}
	if resp.Metadata.Path != recommend.PathPersonalized {
		t.Errorf("Path = %q, want %q", resp.Metadata.Path, recommend.PathPersonalized)
	}
}

func TestRank_EntitlementFilteredBeforeTruncation(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.profiles.profiles["u1"] = profileWith("u1", "seen")
	env.ents.tiers["u1"] = recommend.TierFree
	env.index.hits = []recommend.Hit{
		{ItemMeta: meta("p1", "a", recommend.TierPremium, 0.9), Similarity: 0.99},
		{ItemMeta: meta("e1", "b", recommend.TierEnterprise, 0.9), Similarity: 0.98},
		{ItemMeta: meta("p2", "c", recommend.TierPremium, 0.9), Similarity: 0.97},
		{ItemMeta: meta("f1", "d", recommend.TierFree, 0.5), Similarity: 0.5},
		{ItemMeta: meta("f2", "e", recommend.TierFree, 0.5), Similarity: 0.4},
		{ItemMeta: meta("f3", "f", recommend.TierFree, 0.5), Similarity: 0.3},
	}

	eng := env.engine(t, nil)
	resp, err := eng.Rank(context.Background(), "u1", 3)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("Rank() returned %d items, want 3: %v", len(resp.Items), itemIDs(resp.Items))
	}
	for _, it := range resp.Items {
		if it.AccessTier > recommend.TierFree {
			t.Errorf("item %s tier %v exceeds user tier free", it.ItemID, it.AccessTier)
		}
	}
}

func TestRank_GatedHitsDoNotFillCandidateSlots(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.profiles.profiles["u1"] = profileWith("u1", "seen")
	env.ents.tiers["u1"] = recommend.TierFree
	env.index.hits = []recommend.Hit{
		{ItemMeta: meta("p1", "a", recommend.TierPremium, 0.9), Similarity: 0.99},
		{ItemMeta: meta("p2", "b", recommend.TierPremium, 0.9), Similarity: 0.98},
		{ItemMeta: meta("f1", "c", recommend.TierFree, 0.5), Similarity: 0.90},
	}
	env.collab.ids = []recommend.ScoredID{{ID: "p1", Score: 3}, {ID: "p2", Score: 2}, {ID: "f2", Score: 1}}
	env.items = newFakeItems(feature("f2", "d", recommend.TierFree, 10))

	cfg := recommend.DefaultConfig()
	cfg.Candidates.ContentK = 2
	cfg.Candidates.CollabK = 1
	eng := env.engine(t, cfg)

	resp, err := eng.Rank(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	got := strings.Join(itemIDs(resp.Items), ",")
	if !strings.Contains(got, "f1") || !strings.Contains(got, "f2") {
		t.Errorf("Rank() = [%s], want f1 from content and f2 from collaborative", got)
	}
	if strings.Contains(got, "p") {
		t.Errorf("Rank() = [%s] contains premium items for a free user", got)
	}
	if resp.NoRecommendations {
		t.Error("NoRecommendations = true, want false")
	}
}

func TestRank_PopularityFallbackWhenAllHitsGated(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.profiles.profiles["u1"] = profileWith("u1", "seen")
	env.ents.tiers["u1"] = recommend.TierFree
	env.index.hits = []recommend.Hit{
		{ItemMeta: meta("p1", "a", recommend.TierPremium, 0.9), Similarity: 0.99},
	}
	env.items = newFakeItems(
		feature("p1", "a", recommend.TierPremium, 900),
		feature("pop", "b", recommend.TierFree, 50),
	)

	eng := env.engine(t, nil)
	resp, err := eng.Rank(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if got := itemIDs(resp.Items); len(got) != 1 || got[0] != "pop" {
		t.Errorf("Rank() = %v, want [pop]", got)
	}
	if len(resp.Metadata.Sources) != 1 || resp.Metadata.Sources[0] != recommend.SourcePopularity {
		t.Errorf("Sources = %v, want [%s]", resp.Metadata.Sources, recommend.SourcePopularity)
	}
}

func TestRank_EntitlementAcrossTiers(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	tiers := []recommend.Tier{recommend.TierFree, recommend.TierPremium, recommend.TierEnterprise}
	for i, tier := range []recommend.Tier{recommend.TierFree, recommend.TierPremium, recommend.TierEnterprise, recommend.TierFree, recommend.TierPremium} {
		id := string(rune('a' + i))
		env.index.hits = append(env.index.hits, recommend.Hit{
			ItemMeta:   meta(id, "cat-"+id, tier, 0.5),
			Similarity: 1 - float64(i)/10,
		})
	}
	eng := env.engine(t, nil)

	for _, tier := range tiers {
		user := "user-" + tier.String()
		env.profiles.profiles[user] = profileWith(user, "seen")
		env.ents.tiers[user] = tier

		resp, err := eng.Rank(context.Background(), user, 10)
		if err != nil {
			t.Fatalf("Rank(%s) error = %v", user, err)
		}
		for _, it := range resp.Items {
			if !tier.Allows(it.AccessTier) {
				t.Errorf("tier %v received item %s gated at %v", tier, it.ItemID, it.AccessTier)
			}
		}
	}
}

func TestRank_ColdStartServesFreeTrending(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.items = newFakeItems(
		feature("hot-premium", "ml", recommend.TierPremium, 1000),
		feature("warm-free", "ml", recommend.TierFree, 100),
		feature("cool-free", "db", recommend.TierFree, 10),
	)
	env.ents.tiers["newbie"] = recommend.TierEnterprise

	eng := env.engine(t, nil)
	for _, user := range []string{"newbie", ""} {
		resp, err := eng.Rank(context.Background(), user, 5)
		if err != nil {
			t.Fatalf("Rank(%q) error = %v", user, err)
		}
		if resp.Metadata.Path != recommend.PathColdStart {
			t.Errorf("Rank(%q) path = %q, want %q", user, resp.Metadata.Path, recommend.PathColdStart)
		}
		if len(resp.Items) == 0 {
			t.Fatalf("Rank(%q) returned no items", user)
		}
		for _, it := range resp.Items {
			if it.AccessTier != recommend.TierFree {
				t.Errorf("Rank(%q) returned %s gated at %v", user, it.ItemID, it.AccessTier)
			}
		}
		if resp.Items[0].ItemID != "warm-free" {
			t.Errorf("Rank(%q) first = %s, want warm-free", user, resp.Items[0].ItemID)
		}
	}
}

func TestRank_AllSourcesDown(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.profiles.profiles["u1"] = profileWith("u1", "seen")
	env.vec.err = recommend.ErrEmbeddingUnavailable
	env.collab.err = errSourceDown

	eng := env.engine(t, nil)
	resp, err := eng.Rank(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("Rank() error = %v, want nil", err)
	}
	if !resp.NoRecommendations {
		t.Error("NoRecommendations = false, want true")
	}
	if len(resp.Items) != 0 {
		t.Errorf("Items = %v, want empty", itemIDs(resp.Items))
	}
	if len(resp.Metadata.Degraded) != 2 {
		t.Errorf("Degraded = %v, want content and collaborative", resp.Metadata.Degraded)
	}
	if !resp.Partial() {
		t.Error("Partial() = false, want true")
	}
}

func TestRank_PopularityFallbackWhenPersonalSourcesEmpty(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.profiles.profiles["u1"] = profileWith("u1", "seen")
	env.vec.err = recommend.ErrEmbeddingUnavailable
	env.items = newFakeItems(
		feature("seen", "ml", recommend.TierFree, 500),
		feature("pop", "ml", recommend.TierFree, 50),
	)

	eng := env.engine(t, nil)
	resp, err := eng.Rank(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	got := itemIDs(resp.Items)
	if len(got) != 1 || got[0] != "pop" {
		t.Errorf("Rank() = %v, want [pop]", got)
	}
	if resp.NoRecommendations {
		t.Error("NoRecommendations = true, want false")
	}
}

func TestRank_CollabTimeoutDegrades(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.profiles.profiles["u1"] = profileWith("u1", "seen")
	env.collab.block = true
	env.index.hits = []recommend.Hit{
		{ItemMeta: meta("c1", "ml", recommend.TierFree, 0.5), Similarity: 0.9},
	}

	cfg := recommend.DefaultConfig()
	cfg.Candidates.SourceTimeout = 20 * time.Millisecond
	eng := env.engine(t, cfg)

	resp, err := eng.Rank(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if got := itemIDs(resp.Items); len(got) != 1 || got[0] != "c1" {
		t.Errorf("Rank() = %v, want [c1]", got)
	}
	found := false
	for _, d := range resp.Metadata.Degraded {
		if d == recommend.SourceCollab+":timeout" {
			found = true
		}
	}
	if !found {
		t.Errorf("Degraded = %v, want collaborative:timeout", resp.Metadata.Degraded)
	}
}

func TestRank_ExcludesInteractedItems(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.profiles.profiles["u1"] = profileWith("u1", "read-1")
	env.index.hits = []recommend.Hit{
		{ItemMeta: meta("read-1", "ml", recommend.TierFree, 0.9), Similarity: 0.99},
		{ItemMeta: meta("new-1", "ml", recommend.TierFree, 0.5), Similarity: 0.5},
	}
	env.collab.ids = []recommend.ScoredID{{ID: "read-1", Score: 3}, {ID: "new-1", Score: 1}}

	eng := env.engine(t, nil)
	resp, err := eng.Rank(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	for _, it := range resp.Items {
		if it.ItemID == "read-1" {
			t.Error("Rank() returned an item from the user's interaction set")
		}
	}
}

func TestRank_BlendsSources(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.profiles.profiles["u1"] = profileWith("u1", "seen")
	env.index.hits = []recommend.Hit{
		{ItemMeta: meta("both", "a", recommend.TierFree, 0), Similarity: 0.8},
		{ItemMeta: meta("content-only", "b", recommend.TierFree, 0), Similarity: 0.4},
	}
	env.collab.ids = []recommend.ScoredID{{ID: "both", Score: 2}, {ID: "collab-only", Score: 1}}
	env.items = newFakeItems(feature("collab-only", "c", recommend.TierFree, 0))

	eng := env.engine(t, nil)
	resp, err := eng.Rank(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}

	scores := make(map[string]float64)
	for _, it := range resp.Items {
		scores[it.ItemID] = it.Score
	}
	// both: 0.6*1 + 0.4*1; content-only: 0.6*0; collab-only: 0.4*0.
	if got := scores["both"]; got < 0.999 || got > 1.001 {
		t.Errorf("score(both) = %v, want 1.0", got)
	}
	if got := itemIDs(resp.Items); got[0] != "both" {
		t.Errorf("first = %s, want both", got[0])
	}
	if len(resp.Metadata.Sources) != 2 {
		t.Errorf("Sources = %v, want content and collaborative", resp.Metadata.Sources)
	}
}

func TestRank_Cancelled(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.profiles.profiles["u1"] = profileWith("u1", "seen")
	eng := env.engine(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Rank(ctx, "u1", 5)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Rank() error = %v, want context.Canceled", err)
	}
}

func TestSimilar(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.index.hits = []recommend.Hit{
		{ItemMeta: meta("base", "ml", recommend.TierFree, 0.5), Similarity: 1},
		{ItemMeta: meta("near", "ml", recommend.TierFree, 0.5), Similarity: 0.9},
		{ItemMeta: meta("paid", "ml", recommend.TierPremium, 0.5), Similarity: 0.8},
	}
	env.index.vectors["base"] = []float32{1, 0}
	env.items = newFakeItems(feature("novec", "ml", recommend.TierFree, 0))
	eng := env.engine(t, nil)

	t.Run("excludes self and gated", func(t *testing.T) {
		resp, err := eng.Similar(context.Background(), "base", 5, recommend.TierFree)
		if err != nil {
			t.Fatalf("Similar() error = %v", err)
		}
		if got := itemIDs(resp.Items); len(got) != 1 || got[0] != "near" {
			t.Errorf("Similar() = %v, want [near]", got)
		}
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := eng.Similar(context.Background(), "missing", 5, recommend.TierFree)
		if !errors.Is(err, recommend.ErrNotFound) {
			t.Errorf("Similar() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("known item without vector", func(t *testing.T) {
		resp, err := eng.Similar(context.Background(), "novec", 5, recommend.TierFree)
		if err != nil {
			t.Fatalf("Similar() error = %v", err)
		}
		if len(resp.Items) != 0 {
			t.Errorf("Similar() = %v, want empty", itemIDs(resp.Items))
		}
	})
}

func TestTrending(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	draft := feature("draft", "ml", recommend.TierFree, 10000)
	draft.Status = recommend.StatusDraft
	env.items = newFakeItems(
		feature("a", "ml", recommend.TierFree, 10),
		feature("b", "ml", recommend.TierPremium, 1000),
		feature("c", "db", recommend.TierFree, 100),
		draft,
	)
	env.quality.scores = map[string]float64{"a": 0.9, "b": 0.5, "c": 0.5}
	eng := env.engine(t, nil)

	if err := eng.RefreshTrending(context.Background()); err != nil {
		t.Fatalf("RefreshTrending() error = %v", err)
	}

	free, err := eng.Trending(context.Background(), 10, recommend.TierFree)
	if err != nil {
		t.Fatalf("Trending() error = %v", err)
	}
	for _, it := range free.Items {
		if it.ItemID == "b" || it.ItemID == "draft" {
			t.Errorf("free trending contains %s", it.ItemID)
		}
	}
	if len(free.Items) != 2 {
		t.Errorf("free trending = %v, want 2 items", itemIDs(free.Items))
	}

	premium, err := eng.Trending(context.Background(), 10, recommend.TierPremium)
	if err != nil {
		t.Fatalf("Trending() error = %v", err)
	}
	if len(premium.Items) != 3 {
		t.Errorf("premium trending = %v, want 3 items", itemIDs(premium.Items))
	}
	for i := 1; i < len(premium.Items); i++ {
		if premium.Items[i].Score > premium.Items[i-1].Score {
			t.Errorf("trending not ordered at %d: %v", i, itemIDs(premium.Items))
		}
	}
}
