// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tomtom215/lectern/internal/metrics"
	"github.com/tomtom215/lectern/internal/recommend"
)

// maxWriteAttempts bounds compare-and-set retries after a stale conflict.
const maxWriteAttempts = 3

// Store persists the latest embedding record per subject.
type Store interface {
	GetEmbedding(ctx context.Context, kind recommend.SubjectKind, subjectID string) (*recommend.EmbeddingRecord, error)
	CompareAndPutEmbedding(ctx context.Context, rec *recommend.EmbeddingRecord, expected string) error
	ScanEmbeddings(ctx context.Context, kind recommend.SubjectKind, fn func(*recommend.EmbeddingRecord) error) error
}

// Subject identifies what a vector describes.
type Subject struct {
	Kind recommend.SubjectKind
	ID   string
}

// Item returns the subject of an item.
func Item(id string) Subject { return Subject{Kind: recommend.SubjectItem, ID: id} }

// User returns the subject of a user.
func User(id string) Subject { return Subject{Kind: recommend.SubjectUser, ID: id} }

// Config contains Embedding Cache configuration.
type Config struct {
	// ModelVersion tags every generated record.
	// Default: "v1"
	ModelVersion string

	// Timeout bounds one embedder call.
	// Default: 10s
	Timeout time.Duration

	// RateLimit is the maximum embedder calls per second. 0 disables limiting.
	// Default: 10
	RateLimit float64

	// Default: 5
	RateBurst int

	// BreakerThreshold is the number of consecutive failures that opens the breaker.
	// Default: 5
	BreakerThreshold uint32

	// BreakerTimeout is how long the breaker stays open.
	// Default: 30s
	BreakerTimeout time.Duration

	// CacheSize bounds the in-process LRU.
	// Default: 10000
	CacheSize int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ModelVersion:     "v1",
		Timeout:          10 * time.Second,
		RateLimit:        10,
		RateBurst:        5,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
		CacheSize:        10000,
	}
}

// Cache is the Embedding Cache. It is safe for concurrent use.
type Cache struct {
	cfg      Config
	store    Store
	embedder Embedder
	logger   zerolog.Logger

	mem     *lru.Cache[string, *recommend.EmbeddingRecord]
	flights singleflight.Group
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]float32]

	modelVersion atomic.Pointer[string]
}

// New creates an Embedding Cache.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, store Store, embedder Embedder, logger zerolog.Logger) (*Cache, error) {
	if store == nil || embedder == nil {
		return nil, errors.New("embedding: store and embedder are required")
	}
	def := DefaultConfig()
	if cfg.ModelVersion == "" {
		cfg.ModelVersion = def.ModelVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = def.BreakerThreshold
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}

	mem, err := lru.New[string, *recommend.EmbeddingRecord](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding lru: %w", err)
	}

	c := &Cache{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		logger:   logger.With().Str("component", "embedding").Logger(),
		mem:      mem,
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(limit, burst)

	c.breaker = gobreaker.NewCircuitBreaker[[]float32](gobreaker.Settings{
		Name:        "embedder",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.EmbeddingBreakerState.Set(float64(to))
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("embedder circuit breaker state change")
		},
	})

	mv := cfg.ModelVersion
	c.modelVersion.Store(&mv)
	return c, nil
}

// ModelVersion returns the current model version.
func (c *Cache) ModelVersion() string {
	return *c.modelVersion.Load()
}

// SetModelVersion switches generation to a new model version. Existing
// records stay readable through Latest until they are regenerated.
func (c *Cache) SetModelVersion(v string) {
	if v == "" || v == c.ModelVersion() {
		return
	}
	old := c.ModelVersion()
	c.modelVersion.Store(&v)
	c.logger.Info().Str("from", old).Str("to", v).Msg("embedding model version changed")
}

// BreakerState returns the embedder circuit breaker state.
func (c *Cache) BreakerState() string {
	return c.breaker.State().String()
}

func memKey(s Subject, fingerprint, modelVersion string) string {
	return string(s.Kind) + "\x00" + s.ID + "\x00" + fingerprint + "\x00" + modelVersion
}

// Lookup returns the record of subject for fingerprint under the current
// model version from memory or the store, without generating.
func (c *Cache) Lookup(ctx context.Context, s Subject, fingerprint string) (*recommend.EmbeddingRecord, bool) {
	rec, _, ok := c.lookup(ctx, s, fingerprint, c.ModelVersion())
	return rec, ok
}

// lookup consults the memory tier, then the store. On a store miss it also
// returns whatever the store holds for subject, which may be nil.
func (c *Cache) lookup(ctx context.Context, s Subject, fingerprint, mv string) (*recommend.EmbeddingRecord, *recommend.EmbeddingRecord, bool) {
	key := memKey(s, fingerprint, mv)
	if rec, ok := c.mem.Get(key); ok {
		metrics.EmbeddingCacheLookups.WithLabelValues("memory", "hit").Inc()
		return rec, rec, true
	}
	metrics.EmbeddingCacheLookups.WithLabelValues("memory", "miss").Inc()

	stored, err := c.store.GetEmbedding(ctx, s.Kind, s.ID)
	switch {
	case err == nil && stored.Matches(fingerprint, mv):
		metrics.EmbeddingCacheLookups.WithLabelValues("store", "hit").Inc()
		c.mem.Add(key, stored)
		return stored, stored, true
	case err == nil:
		metrics.EmbeddingCacheLookups.WithLabelValues("store", "stale").Inc()
		return nil, stored, false
	case errors.Is(err, recommend.ErrNotFound):
		metrics.EmbeddingCacheLookups.WithLabelValues("store", "miss").Inc()
	default:
		// A store read failure does not prevent generation.
		c.logger.Warn().Err(err).Str("subject", s.ID).Msg("embedding store read failed")
	}
	return nil, nil, false
}

// GetOrGenerate returns the vector of subject for fingerprint, generating it
// from text on a miss. sourceAt is when the source text last changed; a
// generated record older than the stored one is served but not persisted.
// Failures are recommend.ErrEmbeddingUnavailable.
func (c *Cache) GetOrGenerate(ctx context.Context, s Subject, fingerprint string, sourceAt time.Time, text string) (*recommend.EmbeddingRecord, error) {
	mv := c.ModelVersion()
	key := memKey(s, fingerprint, mv)

	if rec, _, ok := c.lookup(ctx, s, fingerprint, mv); ok {
		return rec, nil
	}

	ch := c.flights.DoChan(key, func() (interface{}, error) {
		// A flight that finished between our miss and this call already cached it.
		if rec, ok := c.mem.Get(key); ok {
			return rec, nil
		}
		return c.generate(context.WithoutCancel(ctx), s, fingerprint, mv, sourceAt, text)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*recommend.EmbeddingRecord), nil //nolint:forcetypeassert // flight returns records only
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", recommend.ErrEmbeddingUnavailable, ctx.Err())
	}
}

// generate runs one embedder call and stores the result.
func (c *Cache) generate(ctx context.Context, s Subject, fingerprint, mv string, sourceAt time.Time, text string) (*recommend.EmbeddingRecord, error) {
	start := time.Now()
	vec, err := c.embed(ctx, text)
	metrics.EmbeddingGenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EmbeddingGenerations.WithLabelValues("unavailable").Inc()
		c.logger.Warn().Err(err).Str("subject", s.ID).Str("kind", string(s.Kind)).Msg("embedding generation failed")
		return nil, fmt.Errorf("%w: %w", recommend.ErrEmbeddingUnavailable, err)
	}

	rec := &recommend.EmbeddingRecord{
		SubjectID:    s.ID,
		Kind:         s.Kind,
		Vector:       vec,
		Fingerprint:  fingerprint,
		ModelVersion: mv,
		GeneratedAt:  time.Now().UTC(),
		SourceAt:     sourceAt,
	}
	if err := c.write(ctx, rec); err != nil {
		c.logger.Warn().Err(err).Str("subject", s.ID).Msg("embedding store write failed")
	}
	metrics.EmbeddingGenerations.WithLabelValues("ok").Inc()
	c.mem.Add(memKey(s, fingerprint, mv), rec)
	return rec, nil
}

func (c *Cache) embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return c.breaker.Execute(func() ([]float32, error) {
		cctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		vec, err := c.embedder.Embed(cctx, text)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return nil, ErrNoEmbeddingInResponse
		}
		return vec, nil
	})
}

// write stores rec with compare-and-set against the observed fingerprint.
// After a stale conflict it re-reads and retries; a concurrent record for the
// same fingerprint is accepted as is. A stored record built from a newer
// source is kept and rec stays in memory only.
func (c *Cache) write(ctx context.Context, rec *recommend.EmbeddingRecord) error {
	expected := ""
	if cur, err := c.store.GetEmbedding(ctx, rec.Kind, rec.SubjectID); err == nil {
		if cur.Supersedes(rec) {
			metrics.EmbeddingGenerations.WithLabelValues("superseded").Inc()
			return nil
		}
		expected = cur.Fingerprint
	}

	var err error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		err = c.store.CompareAndPutEmbedding(ctx, rec, expected)
		if !errors.Is(err, recommend.ErrStaleCacheConflict) {
			return err
		}
		metrics.EmbeddingGenerations.WithLabelValues("conflict").Inc()
		cur, gerr := c.store.GetEmbedding(ctx, rec.Kind, rec.SubjectID)
		if gerr != nil {
			return gerr
		}
		if cur.Matches(rec.Fingerprint, rec.ModelVersion) || cur.Supersedes(rec) {
			return nil
		}
		expected = cur.Fingerprint
	}
	return err
}

// Put stores a vector computed elsewhere, such as a profile vector, under
// fingerprint without calling the embedder.
func (c *Cache) Put(ctx context.Context, s Subject, fingerprint string, sourceAt time.Time, vec []float32) (*recommend.EmbeddingRecord, error) {
	mv := c.ModelVersion()
	rec := &recommend.EmbeddingRecord{
		SubjectID:    s.ID,
		Kind:         s.Kind,
		Vector:       vec,
		Fingerprint:  fingerprint,
		ModelVersion: mv,
		GeneratedAt:  time.Now().UTC(),
		SourceAt:     sourceAt,
	}
	if err := c.write(ctx, rec); err != nil {
		return nil, err
	}
	c.mem.Add(memKey(s, fingerprint, mv), rec)
	return rec, nil
}

// Latest returns the stored record of subject regardless of fingerprint or
// model version.
func (c *Cache) Latest(ctx context.Context, s Subject) (*recommend.EmbeddingRecord, error) {
	return c.store.GetEmbedding(ctx, s.Kind, s.ID)
}

// ScanLatest calls fn for the latest record of every subject of kind.
func (c *Cache) ScanLatest(ctx context.Context, kind recommend.SubjectKind, fn func(*recommend.EmbeddingRecord) error) error {
	return c.store.ScanEmbeddings(ctx, kind, fn)
}

// Stats describes the cache.
type Stats struct {
	MemoryEntries int    `json:"memory_entries"`
	ModelVersion  string `json:"model_version"`
	BreakerState  string `json:"breaker_state"`
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	return Stats{
		MemoryEntries: c.mem.Len(),
		ModelVersion:  c.ModelVersion(),
		BreakerState:  c.BreakerState(),
	}
}
