// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

/*
Package supervisor runs Lectern's long-lived services under a suture v4
supervisor tree.

# Tree

	lectern (root)
	├── data-layer         event bus router (aggregation consumer)
	├── maintenance-layer  scheduled maintenance passes
	└── api-layer          HTTP server

A crash in one layer restarts only that layer's service. The API keeps
serving from the store and the in-memory snapshots while the aggregation
consumer or the scheduler is backing off.

# Services

Every service implements suture.Service and fmt.Stringer:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Serve blocks until ctx is cancelled. Returning an error makes suture restart
the service after FailureBackoff once FailureThreshold failures accumulate
within the FailureDecay window. The wrappers live in the services
subpackage.

# Logging

Supervisor events are logged through sutureslog. cmd/server passes a
*slog.Logger built by logging.NewSlogLogger, so they end up in the same
zerolog stream as the rest of the process.

	tree := supervisor.NewTree(slogger, supervisor.TreeConfig{
	    FailureThreshold: cfg.Supervisor.FailureThreshold,
	    FailureBackoff:   cfg.Supervisor.FailureBackoff,
	})
	tree.Add(supervisor.LayerData, services.NewRouterService(buildRouter, logger))
	tree.Add(supervisor.LayerMaintenance, services.NewMaintenanceService(tasks, mcfg, logger))
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, 10*time.Second, logger))
	errCh := tree.ServeBackground(ctx)
*/
package supervisor
