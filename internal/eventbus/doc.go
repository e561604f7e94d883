// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

/*
Package eventbus carries aggregation triggers from the Event Ingestor to the
background aggregation consumer.

The durable record of an interaction is the event log in the store. The bus
only tells consumers that a user (and possibly an item) has new events, so a
lost message delays aggregation until the next scheduled pass but never loses
data.

# Transports

Two transports are supported:

  - gochannel: in-process Watermill pub/sub. Default; single replica.
  - nats: NATS JetStream through watermill-nats. Consumers share a queue
    group, so each message is handled by one replica.

# Message Flow

	Ingestor.Ingest
	    │ (after the badger commit)
	    ▼
	Bus.PublishRecorded ──► topic "events.recorded" ──► Router
	                                                   │  Recoverer
	                                                   │  Retry (exponential)
	                                                   ▼
	                                          aggregation handler
	                                          (profile, quality, user embedding)

Handlers must be idempotent: Retry and JetStream redelivery may run them more
than once for the same message.
*/
package eventbus
