// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

// Package recommend implements a hybrid recommendation engine for written content.
//
// # Architecture
//
// The engine blends two personal signal sources with item quality:
//
//   - Content: nearest items to the user's profile vector in the similarity index
//   - Collaborative: items liked by users with overlapping positive interactions
//   - Popularity: the trending list, used for cold start and as a fallback
//
// Subpackages provide the components (events, profile, quality, embedding,
// index, collab, reranking, filter). This package defines the shared types,
// the interfaces the components satisfy, the Hybrid Ranker and the
// Recommendation Cache.
//
// # Ranking
//
// Engine.Rank is a state machine:
//
//	need_profile -> need_candidates -> score -> filter -> diversify -> done
//
// Candidate sources run concurrently, each under its own budget. A source
// that fails or times out is reported in ResponseMetadata.Degraded and
// contributes nothing. Entitlement filtering runs before truncation so a
// gated item never consumes a slot.
//
// # Usage
//
//	engine, err := recommend.NewEngine(recommend.DefaultConfig(), deps, logger)
//	engine.RegisterReranker(reranking.NewDiversity(reranking.DefaultDiversityConfig()))
//	engine.RegisterReranker(reranking.NewFreshness(reranking.DefaultFreshnessConfig()))
//
//	cache, err := recommend.NewRecommendationCache(cfg.Cache, cfg.Limits.DefaultK, nil, logger)
//	resp, err := cache.Get(ctx, userID, 20, engine.Rank)
//
// # Thread Safety
//
// Engine, RecommendationCache and Service are safe for concurrent use.
// The request path takes no global lock: index and collaborative state are
// immutable snapshots, and cache population is single-flighted per user.
package recommend
