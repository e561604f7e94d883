// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is one scheduled maintenance pass.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// MaintenanceConfig controls the scheduler.
type MaintenanceConfig struct {
	// RunOnStartup runs every task once before the first tick.
	RunOnStartup bool

	// PassTimeout bounds a single pass.
	// Default: 30m
	PassTimeout time.Duration
}

// MaintenanceService runs each task on its own ticker. Passes of the same
// task never overlap; different tasks run concurrently.
type MaintenanceService struct {
	tasks  []Task
	config MaintenanceConfig
	logger zerolog.Logger
	name   string
}

// NewMaintenanceService creates the scheduler. Tasks with a non-positive
// interval or no Run func are skipped.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewMaintenanceService(tasks []Task, cfg MaintenanceConfig, logger zerolog.Logger) *MaintenanceService {
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = 30 * time.Minute
	}
	active := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Interval > 0 && t.Run != nil {
			active = append(active, t)
		}
	}
	return &MaintenanceService{
		tasks:  active,
		config: cfg,
		logger: logger.With().Str("service", "maintenance").Logger(),
		name:   "maintenance-scheduler",
	}
}

// Serve runs the task loops until ctx ends.
func (s *MaintenanceService) Serve(ctx context.Context) error {
	s.logger.Info().
		Int("tasks", len(s.tasks)).
		Bool("run_on_startup", s.config.RunOnStartup).
		Msg("maintenance scheduler starting")

	var wg sync.WaitGroup
	for i := range s.tasks {
		task := s.tasks[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, task)
		}()
	}
	wg.Wait()

	s.logger.Info().Msg("maintenance scheduler stopped")
	return ctx.Err()
}

func (s *MaintenanceService) loop(ctx context.Context, task Task) {
	if s.config.RunOnStartup {
		s.run(ctx, task)
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx, task)
		}
	}
}

func (s *MaintenanceService) run(ctx context.Context, task Task) {
	passCtx, cancel := context.WithTimeout(ctx, s.config.PassTimeout)
	defer cancel()

	start := time.Now()
	err := task.Run(passCtx)
	switch {
	case err == nil:
		s.logger.Debug().Str("task", task.Name).Dur("duration", time.Since(start)).Msg("maintenance pass complete")
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// shutting down
	default:
		s.logger.Warn().Err(err).Str("task", task.Name).Dur("duration", time.Since(start)).Msg("maintenance pass failed; retrying next tick")
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *MaintenanceService) String() string {
	return s.name
}
