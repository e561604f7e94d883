// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

/*
Package middleware provides the HTTP middleware that Lectern's chi router
stacks in front of its handlers.

All middleware has the chi signature func(http.Handler) http.Handler:

  - RequestID: assigns or propagates X-Request-ID and seeds the logging
    context with request and correlation IDs
  - PrometheusMetrics: records request count and latency per chi route
    pattern, keeping label cardinality bounded by the route table
  - PerformanceMonitor: keeps a sliding window of recent request latencies
    per route for the status endpoint and logs slow requests

Typical stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(perf.Middleware)
*/
package middleware
