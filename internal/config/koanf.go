// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/lectern/config.yaml",
	"/etc/lectern/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8470,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Security: SecurityConfig{
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Path:       "/data/lectern",
			SyncWrites: true,
			GCInterval: 10 * time.Minute,
		},
		Events: EventsConfig{
			Transport:            "gochannel",
			Topic:                "events.recorded",
			BufferSize:           1024,
			NATSURL:              "nats://127.0.0.1:4222",
			SubscribersCount:     4,
			DurableName:          "lectern-aggregator",
			QueueGroup:           "aggregators",
			AckWaitTimeout:       30 * time.Second,
			RetryCount:           3,
			RetryInitialInterval: 100 * time.Millisecond,
			CloseTimeout:         30 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:         "hash",
			Model:            "text-embedding-3-small",
			Dimensions:       256,
			ModelVersion:     "hash-v1",
			Timeout:          5 * time.Second,
			RateLimit:        20,
			RateBurst:        5,
			BreakerThreshold: 5,
			BreakerTimeout:   30 * time.Second,
			CacheSize:        50000,
		},
		Recommend: RecommendConfig{
			ContentWeight:    0.6,
			CollabWeight:     0.4,
			PopularityBoost:  0.1,
			AuthorBoost:      0.05,
			CandidateK:       100,
			NeighborCount:    50,
			SourceTimeout:    300 * time.Millisecond,
			Similarity:       "jaccard",
			MaxPerCategory:   3,
			FreshnessHorizon: 30 * 24 * time.Hour,
			FreshnessRate:    0.02,
			FreshnessFloor:   0.5,
			DefaultK:         10,
			MaxK:             100,
			DecayFactor:      0.95,
			HighReadTime:     60 * time.Second,

			FreeDailyViews:      10,
			FreeMonthlyViews:    200,
			PremiumDailyViews:   50,
			PremiumMonthlyViews: 1000,
		},
		Quality: QualityConfig{
			ContentWeight:      0.30,
			EngagementWeight:   0.30,
			SocialWeight:       0.20,
			AuthorWeight:       0.15,
			RecencyWeight:      0.05,
			RecomputeThreshold: 0.10,
			MaxAge:             7 * 24 * time.Hour,
			RecencyHalfLife:    30 * 24 * time.Hour,
			RecencyFloor:       0.05,
		},
		Cache: CacheConfig{
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
			KeyPrefix:  "lectern:recs:",
		},
		Maintenance: MaintenanceConfig{
			IndexInterval:   time.Minute,
			CollabInterval:  5 * time.Minute,
			QualityInterval: time.Hour,
			ProfileInterval: 10 * time.Minute,
			RunOnStartup:    true,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration in three layers: defaults, the optional
// config file, then environment variables. Precedence is ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when they arrive as strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to config paths.
var envMappings = map[string]string{
	// Server
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	// Security
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Store
	"store_path":        "store.path",
	"store_in_memory":   "store.in_memory",
	"store_sync_writes": "store.sync_writes",
	"store_gc_interval": "store.gc_interval",

	// Events
	"events_transport":         "events.transport",
	"events_topic":             "events.topic",
	"events_buffer_size":       "events.buffer_size",
	"nats_url":                 "events.nats_url",
	"nats_subscribers":         "events.subscribers_count",
	"nats_durable_name":        "events.durable_name",
	"nats_queue_group":         "events.queue_group",
	"events_retry_count":       "events.retry_count",
	"events_retry_interval":    "events.retry_initial_interval",
	"events_router_close_time": "events.close_timeout",

	// Embedding
	"embedding_provider":          "embedding.provider",
	"openai_api_key":              "embedding.api_key",
	"embedding_base_url":          "embedding.base_url",
	"embedding_model":             "embedding.model",
	"embedding_dimensions":        "embedding.dimensions",
	"embedding_model_version":     "embedding.model_version",
	"embedding_timeout":           "embedding.timeout",
	"embedding_rate_limit":        "embedding.rate_limit",
	"embedding_rate_burst":        "embedding.rate_burst",
	"embedding_breaker_threshold": "embedding.breaker_threshold",
	"embedding_breaker_timeout":   "embedding.breaker_timeout",
	"embedding_cache_size":        "embedding.cache_size",

	// Recommend
	"recommend_content_weight":    "recommend.content_weight",
	"recommend_collab_weight":     "recommend.collab_weight",
	"recommend_popularity_boost":  "recommend.popularity_boost",
	"recommend_author_boost":      "recommend.author_boost",
	"recommend_candidate_k":       "recommend.candidate_k",
	"recommend_neighbor_count":    "recommend.neighbor_count",
	"recommend_source_timeout":    "recommend.source_timeout",
	"recommend_similarity":        "recommend.similarity",
	"recommend_max_per_category":  "recommend.max_per_category",
	"recommend_freshness_horizon": "recommend.freshness_horizon",
	"recommend_freshness_rate":    "recommend.freshness_rate",
	"recommend_freshness_floor":   "recommend.freshness_floor",
	"recommend_default_k":         "recommend.default_k",
	"recommend_max_k":             "recommend.max_k",
	"recommend_decay_factor":      "recommend.decay_factor",
	"recommend_high_read_time":    "recommend.high_read_time",
	"recommend_eligibility_rule":  "recommend.eligibility_rule",

	"recommend_free_daily_views":         "recommend.free_daily_views",
	"recommend_free_monthly_views":       "recommend.free_monthly_views",
	"recommend_premium_daily_views":      "recommend.premium_daily_views",
	"recommend_premium_monthly_views":    "recommend.premium_monthly_views",
	"recommend_enterprise_daily_views":   "recommend.enterprise_daily_views",
	"recommend_enterprise_monthly_views": "recommend.enterprise_monthly_views",

	// Quality
	"quality_recompute_threshold": "quality.recompute_threshold",
	"quality_max_age":             "quality.max_age",
	"quality_recency_half_life":   "quality.recency_half_life",
	"quality_recency_floor":       "quality.recency_floor",

	// Cache
	"cache_ttl":         "cache.ttl",
	"cache_max_entries": "cache.max_entries",
	"redis_addr":        "cache.redis_addr",
	"redis_password":    "cache.redis_password",
	"redis_db":          "cache.redis_db",

	// Maintenance
	"maintenance_index_interval":   "maintenance.index_interval",
	"maintenance_collab_interval":  "maintenance.collab_interval",
	"maintenance_quality_interval": "maintenance.quality_interval",
	"maintenance_profile_interval": "maintenance.profile_interval",
	"maintenance_snapshot_path":    "maintenance.snapshot_path",
	"maintenance_run_on_startup":   "maintenance.run_on_startup",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - OPENAI_API_KEY -> embedding.api_key
//   - RECOMMEND_MAX_PER_CATEGORY -> recommend.max_per_category
//
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile invokes callback whenever the file at path changes.
// The caller is responsible for synchronising access to reloaded configuration.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
