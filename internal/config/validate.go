// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package config

import (
	"fmt"
	"math"
	"strings"
)

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateEmbedding(); err != nil {
		return err
	}
	if err := c.validateRecommend(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	return c.validateCache()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Server.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("server.environment must be development, staging or production, got %q", c.Server.Environment)
	}
	if !c.Security.RateLimitDisabled && c.Security.RateLimitReqs <= 0 {
		return fmt.Errorf("security.rate_limit_reqs must be positive when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path is required unless store.in_memory is set")
	}
	return nil
}

func (c *Config) validateEvents() error {
	switch c.Events.Transport {
	case "gochannel":
	case "nats":
		if c.Events.NATSURL == "" {
			return fmt.Errorf("events.nats_url is required for the nats transport")
		}
	default:
		return fmt.Errorf("events.transport must be gochannel or nats, got %q", c.Events.Transport)
	}
	if c.Events.Topic == "" {
		return fmt.Errorf("events.topic is required")
	}
	return nil
}

func (c *Config) validateEmbedding() error {
	switch c.Embedding.Provider {
	case "hash":
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("embedding.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("embedding.provider must be hash or openai, got %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.ModelVersion == "" {
		return fmt.Errorf("embedding.model_version is required")
	}
	if c.Embedding.Timeout <= 0 {
		return fmt.Errorf("embedding.timeout must be positive")
	}
	return nil
}

func (c *Config) validateRecommend() error {
	r := c.Recommend
	if r.ContentWeight < 0 || r.CollabWeight < 0 {
		return fmt.Errorf("recommend blend weights must be non-negative")
	}
	if r.ContentWeight+r.CollabWeight == 0 {
		return fmt.Errorf("recommend.content_weight + recommend.collab_weight must be positive")
	}
	if r.MaxPerCategory < 1 {
		return fmt.Errorf("recommend.max_per_category must be >= 1, got %d", r.MaxPerCategory)
	}
	if r.DefaultK < 1 || r.MaxK < r.DefaultK {
		return fmt.Errorf("recommend.max_k must be >= recommend.default_k >= 1, got %d < %d", r.MaxK, r.DefaultK)
	}
	if r.DecayFactor <= 0 || r.DecayFactor > 1 {
		return fmt.Errorf("recommend.decay_factor must be in (0, 1], got %v", r.DecayFactor)
	}
	if r.FreshnessFloor < 0 || r.FreshnessFloor > 1 {
		return fmt.Errorf("recommend.freshness_floor must be in [0, 1], got %v", r.FreshnessFloor)
	}
	if r.Similarity != "jaccard" && r.Similarity != "cosine" {
		return fmt.Errorf("recommend.similarity must be jaccard or cosine, got %q", r.Similarity)
	}
	if min(r.FreeDailyViews, r.FreeMonthlyViews, r.PremiumDailyViews, r.PremiumMonthlyViews,
		r.EnterpriseDailyViews, r.EnterpriseMonthlyViews) < 0 {
		return fmt.Errorf("recommend view limits must be non-negative")
	}
	return nil
}

func (c *Config) validateQuality() error {
	q := c.Quality
	sum := q.ContentWeight + q.EngagementWeight + q.SocialWeight + q.AuthorWeight + q.RecencyWeight
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("quality weights must sum to 1, got %v", sum)
	}
	if q.RecencyFloor <= 0 || q.RecencyFloor >= 1 {
		return fmt.Errorf("quality.recency_floor must be in (0, 1), got %v", q.RecencyFloor)
	}
	if q.RecomputeThreshold < 0 {
		return fmt.Errorf("quality.recompute_threshold must be non-negative")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	return nil
}
