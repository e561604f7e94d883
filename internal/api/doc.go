// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

/*
Package api exposes the recommendation service over HTTP using the chi
router.

Routes (all JSON, wrapped in models.APIResponse):

	GET  /api/v1/recommendations/{userID}?k=          personalized list
	GET  /api/v1/items/{itemID}/similar?k=&tier=      items like this one
	GET  /api/v1/trending?k=&tier=                    trending, tier-filtered
	POST /api/v1/events                               record one interaction
	POST /api/v1/events/batch                         record up to MaxBatchEvents
	PUT  /api/v1/items/{itemID}                       publish or update an item
	GET  /api/v1/users/{userID}/preferences
	PUT  /api/v1/users/{userID}/preferences
	GET  /api/v1/users/{userID}/history?actions=&since=&until=&limit=
	GET  /api/v1/users/{userID}/reading-stats?days=
	GET  /api/v1/users/{userID}/engagement
	GET  /api/v1/users/{userID}/access/{itemID}       tier gate and view caps
	GET  /api/v1/quality/insights?days=               score averages and label counts
	GET  /api/v1/status                               engine, cache and latency counters
	GET  /api/v1/health[/live|/ready]
	GET  /metrics                                     Prometheus exposition

Middleware, outermost first: request ID with logging context, RealIP,
Recoverer, CORS, gzip compression, then per-group rate limiting
(go-chi/httprate), security headers, Prometheus instrumentation and the
latency monitor.

Error mapping:

	*recommend.ValidationError      400 VALIDATION_ERROR
	recommend.ErrNotFound           404 NOT_FOUND (single-entity lookups only)
	recommend.ErrTierImmutable      409 CONFLICT
	context.DeadlineExceeded        504 TIMEOUT
	anything else                   500 INTERNAL_ERROR
*/
package api
