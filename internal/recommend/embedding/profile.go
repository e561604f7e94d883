// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package embedding

import (
	"context"
	"fmt"

	"github.com/tomtom215/lectern/internal/metrics"
	"github.com/tomtom215/lectern/internal/recommend"
)

// VectorLookup resolves item vectors, normally from the similarity index.
type VectorLookup interface {
	Vector(itemID string) ([]float32, bool)
}

// Profiles computes profile vectors as the weighted mean of the vectors of
// a user's interacted items. Interaction weights are already decayed, so
// recent items dominate.
type Profiles struct {
	vectors VectorLookup

	// maxItems bounds the items averaged, heaviest first.
	maxItems int
}

// NewProfiles creates a profile vectorizer. maxItems <= 0 means 200.
func NewProfiles(vectors VectorLookup, maxItems int) *Profiles {
	if maxItems <= 0 {
		maxItems = 200
	}
	return &Profiles{vectors: vectors, maxItems: maxItems}
}

// ProfileVector returns the query vector of profile. A profile with no
// indexed items yields recommend.ErrEmbeddingUnavailable.
func (p *Profiles) ProfileVector(ctx context.Context, profile *recommend.UserProfile) ([]float32, error) {
	if profile.IsEmpty() {
		return nil, fmt.Errorf("%w: empty profile", recommend.ErrEmbeddingUnavailable)
	}

	var sum []float64
	var total float64
	for _, it := range profile.TopInteractions(p.maxItems) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, ok := p.vectors.Vector(it.ID)
		if !ok || it.Score <= 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(vec))
		}
		if len(vec) != len(sum) {
			continue
		}
		for i, v := range vec {
			sum[i] += it.Score * float64(v)
		}
		total += it.Score
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: no indexed items in profile", recommend.ErrEmbeddingUnavailable)
	}

	out := make([]float32, len(sum))
	for i, v := range sum {
		out[i] = float32(v / total)
	}
	return out, nil
}

var _ recommend.ProfileVectorizer = (*Profiles)(nil)

// RecordLookup resolves a stored record by fingerprint under the current
// model version.
type RecordLookup interface {
	Lookup(ctx context.Context, s Subject, fingerprint string) (*recommend.EmbeddingRecord, bool)
}

// StoredProfiles resolves the profile vector the aggregation pipeline stored
// for the user's current interaction set, and builds it when none matches.
type StoredProfiles struct {
	records RecordLookup
	build   recommend.ProfileVectorizer
}

// NewStoredProfiles creates a resolving vectorizer over records and build.
func NewStoredProfiles(records RecordLookup, build recommend.ProfileVectorizer) *StoredProfiles {
	return &StoredProfiles{records: records, build: build}
}

// ProfileVector returns the stored vector of profile, or builds one.
func (p *StoredProfiles) ProfileVector(ctx context.Context, profile *recommend.UserProfile) ([]float32, error) {
	if !profile.IsEmpty() {
		fp := InteractionFingerprint(profile.InteractionSet)
		if rec, ok := p.records.Lookup(ctx, User(profile.UserID), fp); ok && len(rec.Vector) > 0 {
			metrics.ProfileVectorResolutions.WithLabelValues("stored").Inc()
			return rec.Vector, nil
		}
	}
	metrics.ProfileVectorResolutions.WithLabelValues("built").Inc()
	return p.build.ProfileVector(ctx, profile)
}

var _ recommend.ProfileVectorizer = (*StoredProfiles)(nil)
