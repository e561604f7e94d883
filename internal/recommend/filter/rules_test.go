// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package filter

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/recommend"
)

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		exprs []string
	}{
		{"syntax", []string{"item.quality >="}},
		{"unknown variable", []string{"article.quality > 0"}},
		{"non-bool", []string{"1 + 2"}},
	}
	for _, tt := range tests {
		if _, err := Compile(tt.exprs, zerolog.Nop()); err == nil {
			t.Errorf("%s: Compile(%v) succeeded", tt.name, tt.exprs)
		}
	}

	r, err := Compile([]string{"", "  "}, zerolog.Nop())
	if err != nil || r.Len() != 0 {
		t.Errorf("Compile(blank) = %d rules, %v", r.Len(), err)
	}
}

func TestRules_Eligible(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	meta := recommend.ItemMeta{
		ItemID:      "i1",
		AuthorID:    "a1",
		Category:    "ml",
		Tags:        []string{"go", "nsfw"},
		AccessTier:  recommend.TierPremium,
		Status:      recommend.StatusPublished,
		PublishedAt: now.Add(-72 * time.Hour),
		Quality:     0.4,
	}

	tests := []struct {
		name string
		expr string
		tier recommend.Tier
		want bool
	}{
		{"quality floor passes", `item.quality >= 0.2`, recommend.TierFree, true},
		{"quality floor fails", `item.quality >= 0.5`, recommend.TierFree, false},
		{"tag exclusion", `!("nsfw" in item.tags)`, recommend.TierFree, false},
		{"tier comparison", `item.tier_level <= user.tier_level`, recommend.TierEnterprise, true},
		{"tier comparison fails", `item.tier_level <= user.tier_level`, recommend.TierFree, false},
		{"tier names", `item.tier == "premium" && user.tier == "free"`, recommend.TierFree, true},
		{"age", `item.age_days < 7.0`, recommend.TierFree, true},
		{"string functions", `item.category.startsWith("m")`, recommend.TierFree, true},
		{"missing key errors closed", `item.missing == 1`, recommend.TierFree, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := Compile([]string{tt.expr}, zerolog.Nop())
			if err != nil {
				t.Fatalf("Compile(%q) error = %v", tt.expr, err)
			}
			r.now = func() time.Time { return now }
			m := meta
			if got := r.Eligible(&m, tt.tier); got != tt.want {
				t.Errorf("Eligible(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestRules_AllMustPass(t *testing.T) {
	t.Parallel()

	r, err := Compile([]string{`item.quality > 0.1`, `item.category != "spam"`}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	ok := recommend.ItemMeta{ItemID: "a", Category: "ml", Quality: 0.5}
	spam := recommend.ItemMeta{ItemID: "b", Category: "spam", Quality: 0.5}
	if !r.Eligible(&ok, recommend.TierFree) {
		t.Error("eligible item rejected")
	}
	if r.Eligible(&spam, recommend.TierFree) {
		t.Error("second rule not applied")
	}

	empty, _ := Compile(nil, zerolog.Nop())
	if !empty.Eligible(&spam, recommend.TierFree) {
		t.Error("no rules should admit everything")
	}
}

func TestRules_EvalErrorRejects(t *testing.T) {
	t.Parallel()

	r, err := Compile([]string{`item.region == "eu"`}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	meta := recommend.ItemMeta{ItemID: "a", Category: "ml"}
	if r.Eligible(&meta, recommend.TierFree) {
		t.Error("item with a failing rule admitted")
	}
	if got := r.EvalErrors(); got != 1 {
		t.Errorf("EvalErrors() = %d, want 1", got)
	}
}
