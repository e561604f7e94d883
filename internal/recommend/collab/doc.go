// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

/*
Package collab implements user-based collaborative filtering over a sparse
bipartite graph of positive interactions.

# Graph Layout

User and item ids are interned into dense int32 indices. The graph keeps two
adjacency lists, item to users and user to items, each sorted ascending:

	itemUsers[item] = [u0, u3, u9]
	userItems[user] = [i1, i2]

Neighbors of a user are found by walking the item to users lists of the
user's own items, so only users sharing at least one item are scored.
No user-user matrix is materialized.

# Similarity

Similarity between two users is computed over binary item sets:

  - jaccard (default): |A ∩ B| / |A ∪ B|
  - cosine: |A ∩ B| / sqrt(|A| * |B|)

Ties break by more total interactions, then by user id ascending.

# Concurrency

The graph is an immutable snapshot behind an atomic pointer. Rebuild and Add
publish a new snapshot under a writer mutex; readers never lock.
*/
package collab
