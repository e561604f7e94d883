// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/api"
	"github.com/tomtom215/lectern/internal/config"
	"github.com/tomtom215/lectern/internal/eventbus"
	"github.com/tomtom215/lectern/internal/logging"
	"github.com/tomtom215/lectern/internal/middleware"
	"github.com/tomtom215/lectern/internal/recommend/pipeline"
	"github.com/tomtom215/lectern/internal/supervisor"
	"github.com/tomtom215/lectern/internal/supervisor/services"
)

const (
	// perfWindow is the number of recent requests kept for /api/v1/status.
	perfWindow = 2048

	slowRequestThreshold = time.Second

	taskCompact = "store_compact"
)

// initSupervisorTree builds the tree and registers the router, maintenance
// and HTTP services.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func initSupervisorTree(cfg *config.Config, c *Components, logger zerolog.Logger) *supervisor.Tree {
	tree := supervisor.NewTree(
		logging.NewSlogLogger(logger.With().Str("component", "supervisor").Logger()),
		supervisor.TreeConfig{
			FailureThreshold: cfg.Supervisor.FailureThreshold,
			FailureDecay:     cfg.Supervisor.FailureDecay,
			FailureBackoff:   cfg.Supervisor.FailureBackoff,
			ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
		},
	)
	treeCfg := tree.Config()

	tree.Add(supervisor.LayerData, services.NewRouterService(func() (*eventbus.Router, error) {
		return c.NewRouter(cfg)
	}, logger))

	tree.Add(supervisor.LayerMaintenance, services.NewMaintenanceService(
		maintenanceTasks(cfg, c.Pipeline),
		services.MaintenanceConfig{RunOnStartup: cfg.Maintenance.RunOnStartup},
		logger,
	))

	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(newHTTPServer(cfg, c, logger), treeCfg.ShutdownTimeout, logger))

	logger.Info().
		Float64("failure_threshold", treeCfg.FailureThreshold).
		Dur("failure_backoff", treeCfg.FailureBackoff).
		Dur("shutdown_timeout", treeCfg.ShutdownTimeout).
		Msg("Supervisor tree configured")
	return tree
}

// maintenanceTasks lists the background passes. A zero interval disables a pass.
func maintenanceTasks(cfg *config.Config, p *pipeline.Pipeline) []services.Task {
	snapshotInterval := time.Duration(0)
	if cfg.Maintenance.SnapshotPath != "" {
		snapshotInterval = cfg.Maintenance.CollabInterval
	}
	return []services.Task{
		{Name: pipeline.TaskIndex, Interval: cfg.Maintenance.IndexInterval, Run: p.RefreshIndex},
		{Name: pipeline.TaskCollab, Interval: cfg.Maintenance.CollabInterval, Run: p.RebuildCollab},
		{Name: pipeline.TaskQuality, Interval: cfg.Maintenance.QualityInterval, Run: p.RescoreQuality},
		{Name: pipeline.TaskProfiles, Interval: cfg.Maintenance.ProfileInterval, Run: p.CatchUpProfiles},
		{Name: pipeline.TaskSnapshot, Interval: snapshotInterval, Run: p.SnapshotIndex},
		{Name: taskCompact, Interval: cfg.Store.GCInterval, Run: p.CompactStore},
	}
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func newHTTPServer(cfg *config.Config, c *Components, logger zerolog.Logger) *http.Server {
	hcfg := api.DefaultHandlerConfig()
	hcfg.Version = version
	if cfg.Server.Timeout > 0 {
		hcfg.RequestTimeout = cfg.Server.Timeout
	}

	checks := api.HealthChecks{
		Store: func(ctx context.Context) error {
			return c.Store.Ping(ctx)
		},
		Events:       c.EventsRunning,
		IndexedItems: c.Index.Len,
	}
	perfMon := middleware.NewPerformanceMonitor(perfWindow, slowRequestThreshold, logger)
	handler := api.NewHandler(c.Service, checks, perfMon, hcfg, logger)
	router := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(cfg.Security))

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
}
