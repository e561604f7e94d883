// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/tomtom215/lectern/internal/config"
	"github.com/tomtom215/lectern/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// warmTimeout bounds the startup index restore or rebuild.
const warmTimeout = 5 * time.Minute

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogging(cfg)

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("events_transport", cfg.Events.Transport).
		Str("embedding_provider", cfg.Embedding.Provider).
		Bool("shared_cache", cfg.Cache.RedisAddr != "").
		Msg("Starting Lectern with supervisor tree")

	if cfg.IsProduction() && slices.Contains(cfg.Security.CORSOrigins, "*") {
		logging.Warn().Msg("CORS allows any origin in production; set CORS_ORIGINS")
	}

	logger := logging.Logger()
	watchConfig()

	components, err := initComponents(cfg, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize components")
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	warmCtx, warmCancel := context.WithTimeout(ctx, warmTimeout)
	components.Warm(warmCtx, logger)
	warmCancel()

	tree := initSupervisorTree(cfg, components, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

func initLogging(cfg *config.Config) {
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
}

// watchConfig reapplies logging settings when the file named by CONFIG_PATH
// changes. Other settings take effect on restart.
func watchConfig() {
	path := os.Getenv(config.ConfigPathEnvVar)
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		cfg, err := config.Load()
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid configuration change")
			return
		}
		initLogging(cfg)
		logging.Info().Str("level", cfg.Logging.Level).Msg("Logging configuration reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch disabled")
	}
}
