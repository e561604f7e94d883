// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/eventbus"
)

// RouterFactory builds a router with its handlers registered. A watermill
// router cannot be run twice, so every start needs a new one.
type RouterFactory func() (*eventbus.Router, error)

// RouterService runs the event bus router that hosts the aggregation
// consumer.
type RouterService struct {
	build  RouterFactory
	logger zerolog.Logger
	name   string
}

// NewRouterService creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouterService(build RouterFactory, logger zerolog.Logger) *RouterService {
	return &RouterService{
		build:  build,
		logger: logger.With().Str("service", "event_router").Logger(),
		name:   "event-router",
	}
}

// Serve builds and runs a router until ctx ends. A router that stops on its
// own is reported as an error so suture restarts it.
func (s *RouterService) Serve(ctx context.Context) error {
	router, err := s.build()
	if err != nil {
		return fmt.Errorf("build event router: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Run(ctx)
	}()

	select {
	case <-router.Running():
		s.logger.Info().Msg("event router running")
	case err := <-errCh:
		return fmt.Errorf("event router failed to start: %w", err)
	case <-ctx.Done():
	}

	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			err = fmt.Errorf("event router stopped unexpectedly")
		}
		return err
	case <-ctx.Done():
		if err := router.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("event router close failed")
		}
		<-errCh
		s.logger.Info().Msg("event router stopped")
		return ctx.Err()
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *RouterService) String() string {
	return s.name
}
