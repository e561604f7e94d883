// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

// Package config loads Lectern's process configuration.
//
// Configuration is layered with koanf: built-in defaults, then an optional
// YAML file, then environment variables (highest priority). Only environment
// variables listed in the mapping table are honoured, so unrelated variables
// never leak into the configuration.
package config

import (
	"time"
)

// Config is the root configuration of the Lectern server.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
	Store       StoreConfig       `koanf:"store"`
	Events      EventsConfig      `koanf:"events"`
	Embedding   EmbeddingConfig   `koanf:"embedding"`
	Recommend   RecommendConfig   `koanf:"recommend"`
	Quality     QualityConfig     `koanf:"quality"`
	Cache       CacheConfig       `koanf:"cache"`
	Maintenance MaintenanceConfig `koanf:"maintenance"`
	Supervisor  SupervisorConfig  `koanf:"supervisor"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production
}

// SecurityConfig holds HTTP edge protection settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}

// StoreConfig holds BadgerDB document store settings.
type StoreConfig struct {
	// Path is the BadgerDB directory.
	// Default: /data/lectern
	Path string `koanf:"path"`

	// InMemory runs BadgerDB without touching disk. Data is lost on restart.
	// Default: false
	InMemory bool `koanf:"in_memory"`

	// SyncWrites fsyncs every transaction before acknowledging it.
	// Default: true
	SyncWrites bool `koanf:"sync_writes"`

	// GCInterval is how often value-log garbage collection runs.
	// Default: 10m
	GCInterval time.Duration `koanf:"gc_interval"`
}

// EventsConfig holds event bus settings for aggregation triggers.
type EventsConfig struct {
	// Transport is "gochannel" (in-process) or "nats" (JetStream).
	// Default: gochannel
	Transport string `koanf:"transport"`

	// Topic carries "event recorded" notifications.
	// Default: events.recorded
	Topic string `koanf:"topic"`

	// BufferSize is the gochannel output buffer.
	// Default: 1024
	BufferSize int64 `koanf:"buffer_size"`

	NATSURL          string        `koanf:"nats_url"`
	SubscribersCount int           `koanf:"subscribers_count"`
	DurableName      string        `koanf:"durable_name"`
	QueueGroup       string        `koanf:"queue_group"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`

	// Router retry middleware.
	RetryCount           int           `koanf:"retry_count"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`
}

// EmbeddingConfig holds embedding capability and cache settings.
type EmbeddingConfig struct {
	// Provider is "hash" (local feature hashing) or "openai".
	// Default: hash
	Provider string `koanf:"provider"`

	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`

	// Dimensions of generated vectors.
	// Default: 256
	Dimensions int `koanf:"dimensions"`

	// ModelVersion tags cached records; bumping it lazily invalidates them.
	// Default: hash-v1
	ModelVersion string `koanf:"model_version"`

	// Timeout bounds a single generation.
	// Default: 5s
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit is the sustained outbound embed calls per second. 0 disables pacing.
	// Default: 20
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	// Breaker trips after this many consecutive failures.
	// Default: 5
	BreakerThreshold uint32        `koanf:"breaker_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`

	// CacheSize is the in-memory LRU capacity (records).
	// Default: 50000
	CacheSize int `koanf:"cache_size"`
}

// RecommendConfig holds Hybrid Ranker tuning.
type RecommendConfig struct {
	ContentWeight   float64 `koanf:"content_weight"`
	CollabWeight    float64 `koanf:"collab_weight"`
	PopularityBoost float64 `koanf:"popularity_boost"`
	AuthorBoost     float64 `koanf:"author_boost"`

	CandidateK    int           `koanf:"candidate_k"`
	NeighborCount int           `koanf:"neighbor_count"`
	SourceTimeout time.Duration `koanf:"source_timeout"`
	Similarity    string        `koanf:"similarity"` // jaccard, cosine

	MaxPerCategory int `koanf:"max_per_category"`

	FreshnessHorizon time.Duration `koanf:"freshness_horizon"`
	FreshnessRate    float64       `koanf:"freshness_rate"`
	FreshnessFloor   float64       `koanf:"freshness_floor"`

	DefaultK int `koanf:"default_k"`
	MaxK     int `koanf:"max_k"`

	// DecayFactor is the per-day multiplier applied to profile weights.
	// Default: 0.95
	DecayFactor float64 `koanf:"decay_factor"`

	// HighReadTime marks a read_time event as a positive interaction.
	// Default: 60s
	HighReadTime time.Duration `koanf:"high_read_time"`

	// EligibilityRule is an optional CEL expression evaluated against each candidate.
	EligibilityRule string `koanf:"eligibility_rule"`

	// Per-tier caps on item views per UTC day and month. Zero is unlimited.
	FreeDailyViews         int `koanf:"free_daily_views"`
	FreeMonthlyViews       int `koanf:"free_monthly_views"`
	PremiumDailyViews      int `koanf:"premium_daily_views"`
	PremiumMonthlyViews    int `koanf:"premium_monthly_views"`
	EnterpriseDailyViews   int `koanf:"enterprise_daily_views"`
	EnterpriseMonthlyViews int `koanf:"enterprise_monthly_views"`
}

// QualityConfig holds Quality Scorer settings.
type QualityConfig struct {
	ContentWeight    float64 `koanf:"content_weight"`
	EngagementWeight float64 `koanf:"engagement_weight"`
	SocialWeight     float64 `koanf:"social_weight"`
	AuthorWeight     float64 `koanf:"author_weight"`
	RecencyWeight    float64 `koanf:"recency_weight"`

	RecomputeThreshold float64       `koanf:"recompute_threshold"`
	MaxAge             time.Duration `koanf:"max_age"`
	RecencyHalfLife    time.Duration `koanf:"recency_half_life"`
	RecencyFloor       float64       `koanf:"recency_floor"`
}

// CacheConfig holds Recommendation Cache settings.
type CacheConfig struct {
	TTL        time.Duration `koanf:"ttl"`
	MaxEntries int           `koanf:"max_entries"`

	// RedisAddr enables the shared redis tier when non-empty.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	KeyPrefix     string `koanf:"key_prefix"`
}

// MaintenanceConfig holds background pass intervals.
type MaintenanceConfig struct {
	IndexInterval   time.Duration `koanf:"index_interval"`
	CollabInterval  time.Duration `koanf:"collab_interval"`
	QualityInterval time.Duration `koanf:"quality_interval"`

	// ProfileInterval schedules the profile catch-up pass for users whose
	// aggregation trigger was lost.
	ProfileInterval time.Duration `koanf:"profile_interval"`

	// SnapshotPath persists the similarity index for warm start. Empty disables.
	SnapshotPath string `koanf:"snapshot_path"`

	RunOnStartup bool `koanf:"run_on_startup"`
}

// SupervisorConfig holds suture tree settings.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// Load reads configuration from defaults, an optional file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
