// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

/*
Package services provides suture.Service wrappers for Lectern's long-lived
components.

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server, translating ListenAndServe into Serve
  - Graceful Shutdown with a bounded timeout on cancellation

Event Router (RouterService):
  - Runs the watermill router that hosts the aggregation consumer
  - Builds a fresh router on every start, so a supervisor restart
    resubscribes cleanly

Maintenance Scheduler (MaintenanceService):
  - Runs named passes (collaborative rebuild, index refresh, quality batch,
    index snapshot, value log GC) each on its own ticker
  - A failing pass is logged and retried on its next tick; it never stops
    the scheduler

# Usage

	tree.Add(supervisor.LayerData, services.NewRouterService(buildRouter, logger))
	tree.Add(supervisor.LayerMaintenance, services.NewMaintenanceService([]services.Task{
	    {Name: "index_refresh", Interval: 5 * time.Minute, Run: p.RefreshIndex},
	}, services.MaintenanceConfig{RunOnStartup: true}, logger))
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, 10*time.Second, logger))

Every wrapper returns ctx.Err() after a clean shutdown so suture records the
stop as requested rather than as a failure.
*/
package services
