// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

/*
Package embedding caches item and user vectors keyed by content fingerprint.

# Lookup Order

GetOrGenerate consults three tiers:

 1. An in-process LRU keyed by (kind, subject, fingerprint, model version).
 2. The latest record in the document store, used only when both its
    fingerprint and model version match the request.
 3. Generation through the configured Embedder.

A record generated for an old fingerprint is never returned for a new one.

# Generation

At most one generation runs per (subject, fingerprint); concurrent callers
share its result. Each call to the Embedder passes, in order, a token
bucket limiter, a circuit breaker and a per-call timeout. Any failure is
reported as recommend.ErrEmbeddingUnavailable wrapping the cause, and the
ranker degrades to its other sources.

Writes to the store are compare-and-set on the previously observed
fingerprint. If another writer stored a different fingerprint in between,
the store reports recommend.ErrStaleCacheConflict; the cache re-reads and
writes again, and only a record matching the requested fingerprint is
ever returned. A record built from an older source than the stored one
(by SourceAt) stays in memory and is never written, so Latest keeps
serving the newest content.

# Profile Vectors

StoredProfiles resolves a user's query vector from the record stored under
the interaction fingerprint of the profile, and builds it from item vectors
when no matching record exists.

# Model Versions

SetModelVersion invalidates lazily. Records from the old model remain
readable through Latest, so the similarity index keeps serving them until
each subject is regenerated on its next request or refresh.
*/
package embedding
