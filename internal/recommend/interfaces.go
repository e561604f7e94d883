// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package recommend

import (
	"context"
)

// ProfileSource resolves a user's current profile. A user with no history
// gets an empty profile, not an error.
type ProfileSource interface {
	Profile(ctx context.Context, userID string) (*UserProfile, error)
}

// ProfileVectorizer turns a profile into a query vector for the similarity index.
type ProfileVectorizer interface {
	ProfileVector(ctx context.Context, profile *UserProfile) ([]float32, error)
}

// SimilarityIndex answers nearest-neighbour queries over item vectors.
// Implementations must never block readers.
type SimilarityIndex interface {
	TopK(query []float32, k int, filter func(*ItemMeta) bool) []Hit
	Vector(itemID string) ([]float32, bool)
	Meta(itemID string) (ItemMeta, bool)
}

// CollaborativeSource produces items liked by similar users.
type CollaborativeSource interface {
	RecommendFromNeighbors(ctx context.Context, userID string, neighbors, k int) ([]ScoredID, error)
}

// ItemSource reads item features.
type ItemSource interface {
	GetItem(ctx context.Context, itemID string) (*ItemFeatures, error)
	ScanItems(ctx context.Context, fn func(*ItemFeatures) error) error
}

// QualitySource reads stored quality scores.
type QualitySource interface {
	GetQuality(ctx context.Context, itemID string) (*QualityScore, error)
}

// EntitlementSource maps a user to a tier.
type EntitlementSource interface {
	TierOf(ctx context.Context, userID string) (Tier, error)
}

// PreferenceSource reads explicit user preferences.
type PreferenceSource interface {
	GetPreferences(ctx context.Context, userID string) (*Preferences, error)
}

// EligibilityRule decides whether a candidate may be shown to a user of the given tier.
type EligibilityRule interface {
	Eligible(meta *ItemMeta, tier Tier) bool
}

// Reranker reorders or trims a scored list. Stages run in registration order
// after filtering.
type Reranker interface {
	// Name returns the stage identifier (e.g., "diversity", "freshness").
	Name() string

	// Rerank returns up to k items.
	Rerank(ctx context.Context, items []ScoredItem, k int) []ScoredItem
}

// EventRecorder durably records an interaction event.
type EventRecorder interface {
	Ingest(ctx context.Context, event InteractionEvent) error
}

// ItemPublisher stores an item and refreshes everything derived from it.
type ItemPublisher interface {
	Publish(ctx context.Context, item *ItemFeatures) (*ItemFeatures, error)
}

// Dependencies are the collaborators of the Hybrid Ranker.
type Dependencies struct {
	Profiles     ProfileSource
	Vectorizer   ProfileVectorizer
	Index        SimilarityIndex
	Collab       CollaborativeSource
	Items        ItemSource
	Quality      QualitySource
	Entitlements EntitlementSource

	// Optional.
	Preferences PreferenceSource
	Eligibility EligibilityRule
}

func (d *Dependencies) validate() error {
	switch {
	case d.Profiles == nil:
		return errMissingDependency("Profiles")
	case d.Vectorizer == nil:
		return errMissingDependency("Vectorizer")
	case d.Index == nil:
		return errMissingDependency("Index")
	case d.Collab == nil:
		return errMissingDependency("Collab")
	case d.Items == nil:
		return errMissingDependency("Items")
	case d.Quality == nil:
		return errMissingDependency("Quality")
	case d.Entitlements == nil:
		return errMissingDependency("Entitlements")
	}
	return nil
}

type errMissingDependency string

func (e errMissingDependency) Error() string {
	return "recommend: missing dependency " + string(e)
}
