// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

/*
Package models defines the HTTP response envelope shared by every Lectern
API endpoint.

Domain types (items, events, profiles, recommendations) live in
internal/recommend. This package only wraps them for the wire:

	{
	  "status": "success",
	  "data": {...},
	  "metadata": {"timestamp": "2026-03-10T12:00:00Z", "query_time_ms": 4},
	  "error": null
	}

Error responses carry a machine-readable code:

	{
	  "status": "error",
	  "data": null,
	  "metadata": {"timestamp": "2026-03-10T12:00:00Z"},
	  "error": {"code": "VALIDATION_ERROR", "message": "...", "details": {...}}
	}
*/
package models
