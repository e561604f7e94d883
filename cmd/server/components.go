// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/config"
	"github.com/tomtom215/lectern/internal/eventbus"
	"github.com/tomtom215/lectern/internal/logging"
	"github.com/tomtom215/lectern/internal/recommend"
	"github.com/tomtom215/lectern/internal/recommend/collab"
	"github.com/tomtom215/lectern/internal/recommend/embedding"
	"github.com/tomtom215/lectern/internal/recommend/events"
	"github.com/tomtom215/lectern/internal/recommend/filter"
	"github.com/tomtom215/lectern/internal/recommend/index"
	"github.com/tomtom215/lectern/internal/recommend/pipeline"
	"github.com/tomtom215/lectern/internal/recommend/profile"
	"github.com/tomtom215/lectern/internal/recommend/quality"
	"github.com/tomtom215/lectern/internal/recommend/reranking"
	"github.com/tomtom215/lectern/internal/recommend/storage"
	"github.com/tomtom215/lectern/internal/store"
)

// maxProfileVectorItems bounds how many interactions feed a user's content vector.
const maxProfileVectorItems = 200

// Components holds every long-lived part of the server.
type Components struct {
	Store    *store.Store
	Bus      *eventbus.Bus
	Redis    *goredis.Client // nil without a shared cache
	Index    *index.Index
	Engine   *recommend.Engine
	Cache    *recommend.RecommendationCache
	Service  *recommend.Service
	Pipeline *pipeline.Pipeline

	router atomic.Pointer[eventbus.Router]
}

// initComponents builds the store, the ranking stack and the service facade.
// On error every component opened so far is closed.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func initComponents(cfg *config.Config, logger zerolog.Logger) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	var err error
	c.Store, err = store.Open(store.Config{
		Path:       cfg.Store.Path,
		InMemory:   cfg.Store.InMemory,
		SyncWrites: cfg.Store.SyncWrites,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Info().Str("path", cfg.Store.Path).Bool("in_memory", cfg.Store.InMemory).Msg("Store opened")

	c.Bus, err = eventbus.New(buildEventbusConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("create event bus: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	embeddings, err := embedding.New(buildEmbeddingConfig(cfg), c.Store, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	logger.Info().
		Str("provider", cfg.Embedding.Provider).
		Str("model_version", cfg.Embedding.ModelVersion).
		Int("dimensions", cfg.Embedding.Dimensions).
		Msg("Embedding capability configured")

	c.Index = index.New(logger)

	graph, err := collab.New(collab.Config{
		Similarity:   cfg.Recommend.Similarity,
		HighReadTime: cfg.Recommend.HighReadTime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create collaborative engine: %w", err)
	}

	scorer, err := quality.New(buildQualityConfig(cfg), c.Store, c.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("create quality scorer: %w", err)
	}

	pcfg := profile.DefaultConfig()
	pcfg.DecayFactor = cfg.Recommend.DecayFactor
	profiles, err := profile.New(pcfg, c.Store, c.Store, c.Store, c.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("create profile aggregator: %w", err)
	}

	vectorizer := embedding.NewProfiles(c.Index, maxProfileVectorItems)

	deps := recommend.Dependencies{
		Profiles:     profiles,
		Vectorizer:   embedding.NewStoredProfiles(embeddings, vectorizer),
		Index:        c.Index,
		Collab:       graph,
		Items:        c.Store,
		Quality:      c.Store,
		Entitlements: c.Store,
		Preferences:  c.Store,
	}
	if rule := cfg.Recommend.EligibilityRule; rule != "" {
		rules, err := filter.Compile([]string{rule}, logger)
		if err != nil {
			return nil, fmt.Errorf("compile eligibility rule: %w", err)
		}
		deps.Eligibility = rules
		logger.Info().Str("rule", rule).Msg("Eligibility rule enabled")
	}

	c.Engine, err = recommend.NewEngine(buildEngineConfig(cfg), deps, logger)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	registerRerankers(c.Engine, cfg)

	var shared recommend.SharedCache
	if cfg.Cache.RedisAddr != "" {
		c.Redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.Redis.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("Redis unreachable; shared cache tier will retry per request")
		} else {
			logger.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Shared cache tier connected")
		}
		cancel()
		shared = recommend.NewRedisCache(c.Redis, cfg.Cache.KeyPrefix)
	}
	engineCfg := c.Engine.Config()
	c.Cache, err = recommend.NewRecommendationCache(engineCfg.Cache, engineCfg.Limits.DefaultK, shared, logger)
	if err != nil {
		return nil, fmt.Errorf("create recommendation cache: %w", err)
	}

	var snapshots *storage.Store
	if cfg.Maintenance.SnapshotPath != "" {
		snapshots, err = storage.NewStore(cfg.Maintenance.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
	}

	c.Pipeline, err = pipeline.New(pipeline.DefaultConfig(), pipeline.Deps{
		Store:       c.Store,
		Profiles:    profiles,
		Quality:     scorer,
		Embeddings:  embeddings,
		Vectorizer:  vectorizer,
		Index:       c.Index,
		Collab:      graph,
		Engine:      c.Engine,
		Invalidator: c.Cache,
		Snapshots:   snapshots,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	ingestor := events.New(c.Store, c.Bus, c.Cache, logger)

	c.Service, err = recommend.NewService(recommend.ServiceDeps{
		Engine:      c.Engine,
		Cache:       c.Cache,
		Events:      ingestor,
		Publisher:   c.Pipeline,
		Preferences: c.Store,
		History:     ingestor,
		Insights:    scorer,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	ok = true
	return c, nil
}

// Warm loads the newest index snapshot, or rebuilds the index from the store
// when none matches the current model version.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (c *Components) Warm(ctx context.Context, logger zerolog.Logger) {
	restored, err := c.Pipeline.RestoreIndex(ctx)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("Index snapshot restore failed; rebuilding")
	case restored:
		logger.Info().Int("items", c.Index.Len()).Msg("Similarity index restored from snapshot")
		return
	}
	if err := c.Pipeline.RefreshIndex(ctx); err != nil {
		logger.Warn().Err(err).Msg("Initial index build failed; maintenance will retry")
		return
	}
	logger.Info().Int("items", c.Index.Len()).Msg("Similarity index built")
}

// NewRouter builds an event router hosting the aggregation consumer. It is
// called by the supervised router service on every (re)start.
func (c *Components) NewRouter(cfg *config.Config) (*eventbus.Router, error) {
	rcfg := eventbus.DefaultRouterConfig()
	if cfg.Events.CloseTimeout > 0 {
		rcfg.CloseTimeout = cfg.Events.CloseTimeout
	}
	rcfg.RetryMaxRetries = cfg.Events.RetryCount
	if cfg.Events.RetryInitialInterval > 0 {
		rcfg.RetryInitialInterval = cfg.Events.RetryInitialInterval
	}

	router, err := eventbus.NewRouter(rcfg, c.Bus.WatermillLogger())
	if err != nil {
		return nil, err
	}
	router.AddConsumerHandler("aggregation", c.Bus.Topic(), c.Bus.Subscriber(), c.Pipeline.Handler())
	c.router.Store(router)
	return router, nil
}

// EventsRunning reports whether the aggregation router is consuming.
func (c *Components) EventsRunning() bool {
	r := c.router.Load()
	return r != nil && r.IsRunning()
}

// Close releases the bus, the shared cache client and the store, in that order.
func (c *Components) Close() {
	if c == nil {
		return
	}
	var errs []error
	if c.Bus != nil {
		if err := c.Bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		logging.Error().Err(err).Msg("Error closing components")
	}
}

func buildEventbusConfig(cfg *config.Config) eventbus.Config {
	ecfg := eventbus.DefaultConfig()
	ecfg.Transport = cfg.Events.Transport
	ecfg.Topic = cfg.Events.Topic
	ecfg.BufferSize = cfg.Events.BufferSize
	ecfg.NATSURL = cfg.Events.NATSURL
	ecfg.SubscribersCount = cfg.Events.SubscribersCount
	ecfg.DurableName = cfg.Events.DurableName
	ecfg.QueueGroup = cfg.Events.QueueGroup
	if cfg.Events.AckWaitTimeout > 0 {
		ecfg.AckWaitTimeout = cfg.Events.AckWaitTimeout
	}
	if cfg.Events.CloseTimeout > 0 {
		ecfg.CloseTimeout = cfg.Events.CloseTimeout
	}
	return ecfg
}

func buildEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "", "hash":
		return embedding.NewHashEmbedder(cfg.Embedding.Dimensions), nil
	case "openai":
		e, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func buildEmbeddingConfig(cfg *config.Config) embedding.Config {
	ecfg := embedding.DefaultConfig()
	ecfg.ModelVersion = cfg.Embedding.ModelVersion
	ecfg.Timeout = cfg.Embedding.Timeout
	ecfg.RateLimit = cfg.Embedding.RateLimit
	ecfg.RateBurst = cfg.Embedding.RateBurst
	ecfg.BreakerThreshold = cfg.Embedding.BreakerThreshold
	ecfg.BreakerTimeout = cfg.Embedding.BreakerTimeout
	ecfg.CacheSize = cfg.Embedding.CacheSize
	return ecfg
}

func buildQualityConfig(cfg *config.Config) quality.Config {
	qcfg := quality.DefaultConfig()
	qcfg.Weights = quality.Weights{
		Content:    cfg.Quality.ContentWeight,
		Engagement: cfg.Quality.EngagementWeight,
		Social:     cfg.Quality.SocialWeight,
		Author:     cfg.Quality.AuthorWeight,
		Recency:    cfg.Quality.RecencyWeight,
	}
	qcfg.RecomputeThreshold = cfg.Quality.RecomputeThreshold
	qcfg.MaxAge = cfg.Quality.MaxAge
	qcfg.RecencyHalfLife = cfg.Quality.RecencyHalfLife
	qcfg.RecencyFloor = cfg.Quality.RecencyFloor
	return qcfg
}

// buildEngineConfig maps the server configuration onto the ranker's.
func buildEngineConfig(cfg *config.Config) *recommend.Config {
	ecfg := recommend.DefaultConfig()

	ecfg.Blend.ContentWeight = cfg.Recommend.ContentWeight
	ecfg.Blend.CollabWeight = cfg.Recommend.CollabWeight
	ecfg.Blend.PopularityBoost = cfg.Recommend.PopularityBoost
	ecfg.Blend.AuthorBoost = cfg.Recommend.AuthorBoost

	if cfg.Recommend.CandidateK > 0 {
		ecfg.Candidates.ContentK = cfg.Recommend.CandidateK
		ecfg.Candidates.CollabK = cfg.Recommend.CandidateK
	}
	if cfg.Recommend.NeighborCount > 0 {
		ecfg.Candidates.Neighbors = cfg.Recommend.NeighborCount
	}
	if cfg.Recommend.SourceTimeout > 0 {
		ecfg.Candidates.SourceTimeout = cfg.Recommend.SourceTimeout
	}

	if cfg.Recommend.DefaultK > 0 {
		ecfg.Limits.DefaultK = cfg.Recommend.DefaultK
	}
	if cfg.Recommend.MaxK > 0 {
		ecfg.Limits.MaxK = cfg.Recommend.MaxK
	}

	ecfg.Access = recommend.AccessConfig{
		Free:       recommend.UsageLimits{Daily: cfg.Recommend.FreeDailyViews, Monthly: cfg.Recommend.FreeMonthlyViews},
		Premium:    recommend.UsageLimits{Daily: cfg.Recommend.PremiumDailyViews, Monthly: cfg.Recommend.PremiumMonthlyViews},
		Enterprise: recommend.UsageLimits{Daily: cfg.Recommend.EnterpriseDailyViews, Monthly: cfg.Recommend.EnterpriseMonthlyViews},
	}

	ecfg.Cache.TTL = cfg.Cache.TTL
	ecfg.Cache.MaxEntries = cfg.Cache.MaxEntries
	ecfg.Cache.Enabled = cfg.Cache.TTL > 0 && cfg.Cache.MaxEntries > 0
	return ecfg
}

func registerRerankers(engine *recommend.Engine, cfg *config.Config) {
	dcfg := reranking.DefaultDiversityConfig()
	if cfg.Recommend.MaxPerCategory > 0 {
		dcfg.MaxPerCategory = cfg.Recommend.MaxPerCategory
	}
	engine.RegisterReranker(reranking.NewDiversity(dcfg))

	fcfg := reranking.DefaultFreshnessConfig()
	if cfg.Recommend.FreshnessHorizon > 0 {
		fcfg.Horizon = cfg.Recommend.FreshnessHorizon
	}
	if cfg.Recommend.FreshnessRate > 0 {
		fcfg.Rate = cfg.Recommend.FreshnessRate
	}
	if cfg.Recommend.FreshnessFloor > 0 {
		fcfg.Floor = cfg.Recommend.FreshnessFloor
	}
	engine.RegisterReranker(reranking.NewFreshness(fcfg))
}
