// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/config"
	"github.com/tomtom215/lectern/internal/recommend"
	"github.com/tomtom215/lectern/internal/recommend/embedding"
	"github.com/tomtom215/lectern/internal/recommend/pipeline"
)

// loadTestConfig loads defaults with an in-memory store. It uses t.Setenv,
// so callers must not run in parallel.
func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("STORE_IN_MEMORY", "true")
	t.Setenv("MAINTENANCE_SNAPSHOT_PATH", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("EMBEDDING_PROVIDER", "hash")
	t.Setenv("EVENTS_TRANSPORT", "gochannel")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func TestBuildEngineConfig(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Recommend.ContentWeight = 0.7
	cfg.Recommend.CollabWeight = 0.3
	cfg.Recommend.CandidateK = 40
	cfg.Recommend.MaxK = 25

	got := buildEngineConfig(cfg)
	if got.Blend.ContentWeight != 0.7 || got.Blend.CollabWeight != 0.3 {
		t.Errorf("blend = %+v, want content=0.7 collab=0.3", got.Blend)
	}
	if got.Candidates.ContentK != 40 || got.Candidates.CollabK != 40 {
		t.Errorf("candidates = %+v, want 40/40", got.Candidates)
	}
	if got.Limits.MaxK != 25 {
		t.Errorf("MaxK = %d, want 25", got.Limits.MaxK)
	}
	if !got.Cache.Enabled {
		t.Error("cache should be enabled with a positive TTL and size")
	}
	if got.Access.Free.Daily != 10 || got.Access.Premium.Monthly != 1000 || !got.Access.Enterprise.Unlimited() {
		t.Errorf("access = %+v, want the configured view caps", got.Access)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	cfg.Cache.TTL = 0
	if buildEngineConfig(cfg).Cache.Enabled {
		t.Error("cache should be disabled with a zero TTL")
	}
}

func TestBuildEmbedder(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		apiKey   string
		wantErr  bool
		wantHash bool
	}{
		{name: "default", provider: "", wantHash: true},
		{name: "hash", provider: "hash", wantHash: true},
		{name: "openai without key", provider: "openai", wantErr: true},
		{name: "openai", provider: "openai", apiKey: "sk-test"},
		{name: "unknown", provider: "word2vec", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Embedding.Provider = tt.provider
			cfg.Embedding.APIKey = tt.apiKey
			cfg.Embedding.Dimensions = 16

			e, err := buildEmbedder(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildEmbedder() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			_, isHash := e.(*embedding.HashEmbedder)
			if isHash != tt.wantHash {
				t.Errorf("embedder = %T, want hash=%v", e, tt.wantHash)
			}
		})
	}
}

func TestMaintenanceTasks_SnapshotNeedsPath(t *testing.T) {
	cfg := loadTestConfig(t)
	c, err := initComponents(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("initComponents() error = %v", err)
	}
	defer c.Close()

	intervals := func() map[string]time.Duration {
		out := make(map[string]time.Duration)
		for _, task := range maintenanceTasks(cfg, c.Pipeline) {
			out[task.Name] = task.Interval
		}
		return out
	}

	got := intervals()
	if got[pipeline.TaskSnapshot] != 0 {
		t.Errorf("snapshot interval = %v, want 0 without a snapshot path", got[pipeline.TaskSnapshot])
	}
	if got[pipeline.TaskIndex] != cfg.Maintenance.IndexInterval {
		t.Errorf("index interval = %v, want %v", got[pipeline.TaskIndex], cfg.Maintenance.IndexInterval)
	}
	if got[taskCompact] != cfg.Store.GCInterval {
		t.Errorf("compact interval = %v, want %v", got[taskCompact], cfg.Store.GCInterval)
	}

	cfg.Maintenance.SnapshotPath = t.TempDir()
	if got := intervals(); got[pipeline.TaskSnapshot] != cfg.Maintenance.CollabInterval {
		t.Errorf("snapshot interval = %v, want %v", got[pipeline.TaskSnapshot], cfg.Maintenance.CollabInterval)
	}
}

func TestInitComponents_RejectsBadEligibilityRule(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Recommend.EligibilityRule = "item.category =="

	if _, err := initComponents(cfg, zerolog.Nop()); err == nil {
		t.Fatal("initComponents() expected error for an invalid CEL rule")
	}
}

func TestComponents_EndToEnd(t *testing.T) {
	cfg := loadTestConfig(t)
	c, err := initComponents(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("initComponents() error = %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, id := range []string{"a", "b"} {
		_, err := c.Service.PublishItem(ctx, &recommend.ItemFeatures{
			ItemID:   id,
			Title:    "Structured concurrency in practice " + id,
			Body:     "Goroutines and channels make concurrent programs simple to reason about.",
			AuthorID: "author-1",
			Category: "tech",
			Tags:     []string{"go", "concurrency"},
		})
		if err != nil {
			t.Fatalf("PublishItem(%q) error = %v", id, err)
		}
	}
	if got := c.Index.Len(); got != 2 {
		t.Errorf("Index.Len() = %d, want 2", got)
	}

	resp, err := c.Service.GetSimilar(ctx, "a", 5, recommend.TierFree)
	if err != nil {
		t.Fatalf("GetSimilar() error = %v", err)
	}
	for _, it := range resp.Items {
		if it.ItemID == "a" {
			t.Error("GetSimilar() returned the seed item")
		}
	}

	if c.EventsRunning() {
		t.Error("EventsRunning() = true before the router starts")
	}
	router, err := c.NewRouter(cfg)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	runCtx, stop := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- router.Run(runCtx) }()

	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
	if !c.EventsRunning() {
		t.Error("EventsRunning() = false while the router runs")
	}

	err = c.Service.RecordEvent(ctx, recommend.InteractionEvent{
		UserID:    "reader-1",
		ItemID:    "a",
		Action:    recommend.ActionLike,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("RecordEvent() error = %v", err)
	}
	history, err := c.Service.History(ctx, "reader-1", recommend.HistoryFilter{})
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].ItemID != "a" {
		t.Errorf("History() = %+v, want one like on a", history)
	}
	access, err := c.Service.CheckAccess(ctx, "reader-1", "a")
	if err != nil {
		t.Fatalf("CheckAccess() error = %v", err)
	}
	if !access.Allowed || access.Usage == nil || access.Usage.Limits.Daily != cfg.Recommend.FreeDailyViews {
		t.Errorf("CheckAccess() = %+v, want full access under the free caps", access)
	}

	stop()
	<-errCh
}
