// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

/*
Package pipeline connects the recommendation components to each other and
to the durable store.

It owns the three flows that are not part of a single component:

  - Publishing: an item upsert computes the content fingerprint, stores the
    item, embeds it, scores its quality and force-refreshes its index entry.
    A new category invalidates every cached list.

  - Aggregation: each events.recorded message folds the user's new events
    into the profile, rescores the item when an engagement counter moved,
    adds positive evidence to the collaborative graph and refreshes the
    user's interaction embedding. The handler is idempotent, so watermill
    retries are safe.

  - Maintenance: the periodic passes rebuild the collaborative graph from the
    log, embed items whose vectors are missing or stale, refresh the
    similarity index and the trending list, rescore stale quality and
    snapshot the index for warm start.

Request-path code never waits on aggregation. The two sides share only the
store, the bus and the keyed caches.
*/
package pipeline
