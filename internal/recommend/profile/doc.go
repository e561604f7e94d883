// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

/*
Package profile folds a user's interaction log into a UserProfile.

# Decay

Each event contributes

	weight = magnitude × base_weight(action) × decay^(age_days)

where age_days is measured from the event to the profile's AsOf time, the
timestamp of the newest folded event. No wall clock is read during a fold.
When a newer event arrives every stored weight is multiplied by
decay^(Δdays) before the new event is added at age zero, so an incremental
fold performs exactly the same floating point operations, in the same order,
as a full refold of the same events. Both produce bit-identical maps.

Entries whose weight falls to MinWeight or below are removed at every step,
including after undo actions (unlike, unbookmark, unfollow), which subtract.

# Late Events

Events are read in key order, which is timestamp order. An event that
arrives with a timestamp older than the profile's AsOf sorts before the
cursor; UpdateProfileAt detects this and refolds from the first event.

# Concurrency

Updates for one user are serialized with a keyed mutex; different users
proceed in parallel. Profile reads never take the lock.
*/
package profile
