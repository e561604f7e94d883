// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Layer names a branch of the tree. A crash restarts services within its
// own layer only.
type Layer int

const (
	// LayerData runs the event bus router and its consumers.
	LayerData Layer = iota
	// LayerMaintenance runs the scheduled passes.
	LayerMaintenance
	// LayerAPI runs the HTTP server.
	LayerAPI

	layerCount
)

func (l Layer) String() string {
	switch l {
	case LayerData:
		return "data-layer"
	case LayerMaintenance:
		return "maintenance-layer"
	case LayerAPI:
		return "api-layer"
	default:
		return "unknown-layer"
	}
}

// TreeConfig tunes restart behaviour. Zero fields take suture's defaults.
type TreeConfig struct {
	// FailureThreshold failures within the decay window trigger a backoff.
	FailureThreshold float64

	// FailureDecay is the failure half-life in seconds.
	FailureDecay float64

	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long a stopping service may take.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig mirrors suture's defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.FailureThreshold > 0 {
		d.FailureThreshold = c.FailureThreshold
	}
	if c.FailureDecay > 0 {
		d.FailureDecay = c.FailureDecay
	}
	if c.FailureBackoff > 0 {
		d.FailureBackoff = c.FailureBackoff
	}
	if c.ShutdownTimeout > 0 {
		d.ShutdownTimeout = c.ShutdownTimeout
	}
	return d
}

func (c TreeConfig) spec() suture.Spec {
	return suture.Spec{
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// Tree is the root "lectern" supervisor with one child supervisor per Layer.
type Tree struct {
	root   *suture.Supervisor
	layers [layerCount]*suture.Supervisor
	config TreeConfig
}

// NewTree builds the tree. Supervisor events go to logger through sutureslog.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	config = config.withDefaults()

	rootSpec := config.spec()
	rootSpec.EventHook = (&sutureslog.Handler{Logger: logger}).MustHook()

	t := &Tree{root: suture.New("lectern", rootSpec), config: config}
	for l := range t.layers {
		// Children report through the root's hook.
		t.layers[l] = suture.New(Layer(l).String(), config.spec())
		t.root.Add(t.layers[l])
	}
	return t
}

// Config returns the effective configuration.
func (t *Tree) Config() TreeConfig {
	return t.config
}

// Add registers svc under layer.
func (t *Tree) Add(layer Layer, svc suture.Service) suture.ServiceToken {
	return t.layers[layer].Add(svc)
}

// ServeBackground starts the tree. The channel yields its result once it stops.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
