// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/tomtom215/lectern/internal/recommend"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello world"},
		{"<p>Hello</p>\n\n  <b>World</b>", "hello world"},
		{"Fish &amp; Chips", "fish & chips"},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContentFingerprint(t *testing.T) {
	t.Parallel()

	base := ContentFingerprint("Go Concurrency", "<p>Channels and   goroutines</p>", []string{"go", "concurrency"})
	same := ContentFingerprint("go concurrency", "channels and goroutines", []string{"concurrency", "go"})
	if base != same {
		t.Error("fingerprint changed with formatting or tag order")
	}
	if len(base) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(base))
	}

	for name, other := range map[string]string{
		"title": ContentFingerprint("Go Generics", "channels and goroutines", []string{"go", "concurrency"}),
		"body":  ContentFingerprint("Go Concurrency", "mutexes", []string{"go", "concurrency"}),
		"tags":  ContentFingerprint("Go Concurrency", "channels and goroutines", []string{"go"}),
	} {
		if other == base {
			t.Errorf("changing the %s did not change the fingerprint", name)
		}
	}
}

func TestPrepareText_RepeatsTitle(t *testing.T) {
	t.Parallel()
	if got := PrepareText("Title", "Body", []string{"b", "a"}); got != "title title body a b" {
		t.Errorf("PrepareText() = %q", got)
	}
}

func TestInteractionFingerprint(t *testing.T) {
	t.Parallel()

	a := InteractionFingerprint(map[string]float64{"x": 1.5, "y": 0.1234561})
	b := InteractionFingerprint(map[string]float64{"y": 0.1234564, "x": 1.5})
	if a != b {
		t.Error("fingerprint differs below the rounding precision")
	}
	if c := InteractionFingerprint(map[string]float64{"x": 1.5, "y": 0.2}); c == a {
		t.Error("fingerprint ignores weights")
	}
	if InteractionFingerprint(nil) == a {
		t.Error("empty set shares a fingerprint")
	}
}

func TestHashEmbedder(t *testing.T) {
	t.Parallel()

	e := NewHashEmbedder(64)
	ctx := context.Background()

	v1, err := e.Embed(ctx, "Distributed systems in Go")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	v2, _ := e.Embed(ctx, "distributed   SYSTEMS in go")
	if len(v1) != 64 {
		t.Fatalf("len = %d, want 64", len(v1))
	}
	var norm float64
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatal("Embed() is not deterministic over normalized text")
		}
		norm += float64(v1[i]) * float64(v1[i])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("squared norm = %v, want 1", norm)
	}

	if _, err := e.Embed(ctx, "  <br/> "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Embed(empty) error = %v, want ErrEmptyInput", err)
	}
}

type mapVectors map[string][]float32

func (m mapVectors) Vector(id string) ([]float32, bool) {
	v, ok := m[id]
	return v, ok
}

func TestProfiles_ProfileVector(t *testing.T) {
	t.Parallel()

	p := NewProfiles(mapVectors{"a": {1, 0}, "b": {0, 1}}, 0)
	profile := recommend.NewUserProfile("u1")
	profile.InteractionSet["a"] = 3
	profile.InteractionSet["b"] = 1
	profile.InteractionSet["unindexed"] = 10

	vec, err := p.ProfileVector(context.Background(), profile)
	if err != nil {
		t.Fatalf("ProfileVector() error = %v", err)
	}
	if math.Abs(float64(vec[0])-0.75) > 1e-6 || math.Abs(float64(vec[1])-0.25) > 1e-6 {
		t.Errorf("ProfileVector() = %v, want [0.75 0.25]", vec)
	}

	if _, err := p.ProfileVector(context.Background(), recommend.NewUserProfile("u2")); !errors.Is(err, recommend.ErrEmbeddingUnavailable) {
		t.Errorf("empty profile error = %v, want ErrEmbeddingUnavailable", err)
	}
	only := recommend.NewUserProfile("u3")
	only.InteractionSet["unindexed"] = 1
	if _, err := p.ProfileVector(context.Background(), only); !errors.Is(err, recommend.ErrEmbeddingUnavailable) {
		t.Errorf("unindexed profile error = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestStoredProfiles_ResolvesMatchingRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newTestCache(t, newMemStore(), &countingEmbedder{}, nil)
	p := NewStoredProfiles(c, NewProfiles(mapVectors{"a": {1, 0}, "b": {0, 1}}, 0))

	profile := recommend.NewUserProfile("u1")
	profile.InteractionSet["a"] = 1
	fp := InteractionFingerprint(profile.InteractionSet)
	if _, err := c.Put(ctx, User("u1"), fp, profile.AsOf, []float32{0.6, 0.8}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	vec, err := p.ProfileVector(ctx, profile)
	if err != nil {
		t.Fatalf("ProfileVector() error = %v", err)
	}
	if vec[0] != 0.6 || vec[1] != 0.8 {
		t.Errorf("ProfileVector() = %v, want the stored [0.6 0.8]", vec)
	}

	// A changed interaction set no longer matches and is built from items.
	profile.InteractionSet["b"] = 1
	vec, err = p.ProfileVector(ctx, profile)
	if err != nil {
		t.Fatalf("ProfileVector() error = %v", err)
	}
	if math.Abs(float64(vec[0])-0.5) > 1e-6 || math.Abs(float64(vec[1])-0.5) > 1e-6 {
		t.Errorf("ProfileVector() = %v, want built [0.5 0.5]", vec)
	}

	// A model version change invalidates the stored vector.
	profile = recommend.NewUserProfile("u1")
	profile.InteractionSet["a"] = 1
	c.SetModelVersion("v2")
	vec, err = p.ProfileVector(ctx, profile)
	if err != nil {
		t.Fatalf("ProfileVector() error = %v", err)
	}
	if vec[0] != 1 || vec[1] != 0 {
		t.Errorf("ProfileVector() after model change = %v, want built [1 0]", vec)
	}
}
