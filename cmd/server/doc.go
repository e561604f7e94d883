// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

/*
Package main is the entry point for the Lectern server.

Lectern ranks published articles for readers by blending content similarity
(item embeddings matched against a reader's interest vector) with
collaborative signals (what similar readers engaged with), then applies
entitlement filtering, category diversity and a freshness decay.

# Application Architecture

The server runs under Suture v4 process supervision:

	RootSupervisor ("lectern")
	├── DataSupervisor ("data-layer")
	│   └── Event router (aggregation consumer)
	├── MaintenanceSupervisor ("maintenance-layer")
	│   └── Maintenance scheduler (index, collab, quality, snapshot, GC)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (chi)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Store: BadgerDB document store
 4. Event bus: Watermill over gochannel or NATS JetStream
 5. Embeddings: feature hashing or an OpenAI-compatible endpoint
 6. Ranking stack: index, collaborative graph, quality, profiles, CEL rules
 7. Recommendation cache: in-process LRU with an optional Redis tier
 8. Warm start: index snapshot restore, or a full rebuild
 9. Supervisor tree and HTTP server

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Server
	HTTP_PORT=8470
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	# Storage
	STORE_PATH=/data/lectern
	MAINTENANCE_SNAPSHOT_PATH=/data/snapshots

	# Events
	EVENTS_TRANSPORT=gochannel   # gochannel or nats
	NATS_URL=nats://127.0.0.1:4222

	# Embeddings
	EMBEDDING_PROVIDER=hash      # hash or openai
	OPENAI_API_KEY=<key>

	# Shared cache tier (optional)
	REDIS_ADDR=localhost:6379

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections
 2. Waits for in-flight requests
 3. Stops the event router and maintenance passes
 4. Closes the event bus, Redis client and store
 5. Reports any services that failed to stop

# Usage Examples

Development:

	export STORE_IN_MEMORY=true LOG_FORMAT=console
	go run ./cmd/server

Production with NATS and Redis:

	export EVENTS_TRANSPORT=nats NATS_URL=nats://nats:4222
	export REDIS_ADDR=redis:6379
	export EMBEDDING_PROVIDER=openai OPENAI_API_KEY=xxx EMBEDDING_MODEL_VERSION=te3s-256
	./lectern

# See Also

  - internal/config: Configuration management
  - internal/supervisor: Process supervision
  - internal/api: HTTP handlers and routing
  - internal/recommend: Ranking engine and service facade
*/
package main
