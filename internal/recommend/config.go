// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package recommend

import (
	"fmt"
	"time"
)

// Config contains the Hybrid Ranker and Recommendation Cache configuration.
type Config struct {
	// Blend controls how source scores are combined.
	Blend BlendConfig `json:"blend"`

	// Candidates controls candidate generation.
	Candidates CandidateConfig `json:"candidates"`

	// Limits contains operational limits.
	Limits LimitsConfig `json:"limits"`

	// Cache contains recommendation caching parameters.
	Cache CacheConfig `json:"cache"`

	// Trending contains trending list parameters.
	Trending TrendingConfig `json:"trending"`

	// Access caps how many items each tier may view.
	Access AccessConfig `json:"access"`
}

// BlendConfig defines final = ContentWeight*content + CollabWeight*collab
// + PopularityBoost*quality + AuthorBoost*[followed author].
type BlendConfig struct {
	// Default: 0.6
	ContentWeight float64 `json:"content_weight"`

	// Default: 0.4
	CollabWeight float64 `json:"collab_weight"`

	// PopularityBoost multiplies the item's overall quality score.
	// Default: 0.1
	PopularityBoost float64 `json:"popularity_boost"`

	// AuthorBoost is added when the user follows or prefers the item's author.
	// Default: 0.05
	AuthorBoost float64 `json:"author_boost"`
}

// CandidateConfig controls candidate generation.
type CandidateConfig struct {
	// ContentK is the number of nearest items fetched from the similarity index.
	// Default: 100
	ContentK int `json:"content_k"`

	// CollabK is the number of items taken from neighbor aggregation.
	// Default: 100
	CollabK int `json:"collab_k"`

	// Neighbors is the number of similar users consulted.
	// Default: 50
	Neighbors int `json:"neighbors"`

	// SourceTimeout bounds each candidate source independently.
	// Default: 300ms
	SourceTimeout time.Duration `json:"source_timeout"`
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	// Default: 10
	DefaultK int `json:"default_k"`

	// Default: 100
	MaxK int `json:"max_k"`

	// RequestTimeout bounds a whole ranking run.
	// Default: 2s
	RequestTimeout time.Duration `json:"request_timeout"`
}

// CacheConfig contains recommendation cache parameters.
type CacheConfig struct {
	// Default: true
	Enabled bool `json:"enabled"`

	// Default: 5m
	TTL time.Duration `json:"ttl"`

	// Default: 10000
	MaxEntries int `json:"max_entries"`
}

// TrendingConfig contains trending list parameters.
type TrendingConfig struct {
	// MaxItems bounds the precomputed trending snapshot.
	// Default: 500
	MaxItems int `json:"max_items"`

	// QualityWeight blends quality against log-dampened engagement.
	// Default: 0.5
	QualityWeight float64 `json:"quality_weight"`
}

// UsageLimits caps item views per UTC day and calendar month. Zero is unlimited.
type UsageLimits struct {
	Daily   int `json:"daily"`
	Monthly int `json:"monthly"`
}

// Unlimited reports whether neither cap applies.
func (l UsageLimits) Unlimited() bool {
	return l.Daily == 0 && l.Monthly == 0
}

// AccessConfig holds the view caps of each tier.
type AccessConfig struct {
	Free       UsageLimits `json:"free"`
	Premium    UsageLimits `json:"premium"`
	Enterprise UsageLimits `json:"enterprise"`
}

// For returns the caps of tier t.
func (a *AccessConfig) For(t Tier) UsageLimits {
	switch t {
	case TierPremium:
		return a.Premium
	case TierEnterprise:
		return a.Enterprise
	default:
		return a.Free
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Blend: BlendConfig{
			ContentWeight:   0.6,
			CollabWeight:    0.4,
			PopularityBoost: 0.1,
			AuthorBoost:     0.05,
		},
		Candidates: CandidateConfig{
			ContentK:      100,
			CollabK:       100,
			Neighbors:     50,
			SourceTimeout: 300 * time.Millisecond,
		},
		Limits: LimitsConfig{
			DefaultK:       10,
			MaxK:           100,
			RequestTimeout: 2 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
		},
		Trending: TrendingConfig{
			MaxItems:      500,
			QualityWeight: 0.5,
		},
		Access: AccessConfig{
			Free:    UsageLimits{Daily: 10, Monthly: 200},
			Premium: UsageLimits{Daily: 50, Monthly: 1000},
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Blend.ContentWeight < 0 || c.Blend.CollabWeight < 0 {
		return fmt.Errorf("blend weights must be non-negative, got content=%v collab=%v", c.Blend.ContentWeight, c.Blend.CollabWeight)
	}
	if c.Blend.ContentWeight+c.Blend.CollabWeight == 0 {
		return fmt.Errorf("blend.content_weight + blend.collab_weight must be positive")
	}
	if c.Blend.PopularityBoost < 0 || c.Blend.AuthorBoost < 0 {
		return fmt.Errorf("blend boosts must be non-negative")
	}
	if c.Candidates.ContentK < 1 || c.Candidates.CollabK < 1 {
		return fmt.Errorf("candidates.content_k and candidates.collab_k must be positive")
	}
	if c.Candidates.Neighbors < 1 {
		return fmt.Errorf("candidates.neighbors must be positive, got %d", c.Candidates.Neighbors)
	}
	if c.Candidates.SourceTimeout <= 0 {
		return fmt.Errorf("candidates.source_timeout must be positive, got %v", c.Candidates.SourceTimeout)
	}
	if c.Limits.DefaultK < 1 {
		return fmt.Errorf("limits.default_k must be positive, got %d", c.Limits.DefaultK)
	}
	if c.Limits.MaxK < c.Limits.DefaultK {
		return fmt.Errorf("limits.max_k must be >= limits.default_k, got %d < %d", c.Limits.MaxK, c.Limits.DefaultK)
	}
	if c.Cache.Enabled && (c.Cache.TTL <= 0 || c.Cache.MaxEntries < 1) {
		return fmt.Errorf("cache.ttl and cache.max_entries must be positive when caching is enabled")
	}
	if c.Trending.MaxItems < 1 {
		return fmt.Errorf("trending.max_items must be positive, got %d", c.Trending.MaxItems)
	}
	if c.Trending.QualityWeight < 0 || c.Trending.QualityWeight > 1 {
		return fmt.Errorf("trending.quality_weight must be in [0, 1], got %v", c.Trending.QualityWeight)
	}
	for _, t := range []Tier{TierFree, TierPremium, TierEnterprise} {
		if l := c.Access.For(t); l.Daily < 0 || l.Monthly < 0 {
			return fmt.Errorf("access limits for %s must be non-negative", t)
		}
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
