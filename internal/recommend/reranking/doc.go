// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

// Package reranking implements the post-filter stages of the Hybrid Ranker.
//
// Stages operate on an already filtered, score-ordered list and run in
// registration order:
//
//	filter -> Diversity -> Freshness -> done
//
// # Diversity
//
// Diversity walks candidates in score order and skips any whose category
// already holds MaxPerCategory kept items, stopping once k items are kept.
// It never reorders, so the kept items keep their relative score order.
//
// Example with MaxPerCategory=1 and k=2:
//
//	C (Robotics, 0.95), A (ML, 0.90), B (ML, 0.85)  ->  [C, A]
//
// # Freshness
//
// Freshness applies a mild decay to items older than Horizon:
//
//	score *= max(Floor, exp(-Rate * (age - Horizon) / day))
//
// It runs after Diversity and changes scores only. The kept set and the
// per-category counts are never affected.
//
// # Interface
//
// Both stages implement recommend.Reranker:
//
//	type Reranker interface {
//	    Name() string
//	    Rerank(ctx context.Context, items []ScoredItem, k int) []ScoredItem
//	}
//
// # Thread Safety
//
// All stages are stateless and safe for concurrent use.
package reranking
