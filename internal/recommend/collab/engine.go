// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package collab

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/metrics"
	"github.com/tomtom215/lectern/internal/recommend"
)

// Similarity metric names.
const (
	SimilarityJaccard = "jaccard"
	SimilarityCosine  = "cosine"
)

// Config contains configuration for the collaborative engine.
type Config struct {
	// Similarity is "jaccard" or "cosine".
	// Default: jaccard
	Similarity string

	// HighReadTime is the read_time magnitude at which a read counts as positive.
	// Default: 60s
	HighReadTime time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Similarity:   SimilarityJaccard,
		HighReadTime: 60 * time.Second,
	}
}

// Neighbor is a similar user.
type Neighbor struct {
	UserID       string  `json:"user_id"`
	Similarity   float64 `json:"similarity"`
	Interactions int     `json:"interactions"`
}

// Engine is the collaborative candidate source. It is safe for concurrent use.
type Engine struct {
	cfg    Config
	logger zerolog.Logger

	snap atomic.Pointer[graph]
	mu   sync.Mutex // serializes writers
}

// New creates an engine with an empty graph.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, logger zerolog.Logger) (*Engine, error) {
	switch cfg.Similarity {
	case "":
		cfg.Similarity = SimilarityJaccard
	case SimilarityJaccard, SimilarityCosine:
	default:
		return nil, fmt.Errorf("unknown similarity metric %q", cfg.Similarity)
	}
	if cfg.HighReadTime <= 0 {
		cfg.HighReadTime = DefaultConfig().HighReadTime
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger.With().Str("component", "collab").Logger(),
	}
	e.snap.Store(emptyGraph())
	return e, nil
}

// HighReadTime returns the positive read-time threshold.
func (e *Engine) HighReadTime() time.Duration {
	return e.cfg.HighReadTime
}

// Rebuild replaces the graph with one built from edges.
func (e *Engine) Rebuild(ctx context.Context, edges []Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g := buildGraph(edges)
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	e.snap.Store(g)
	e.mu.Unlock()

	e.publishStats(g)
	e.logger.Info().
		Int("users", len(g.userIDs)).
		Int("items", len(g.itemIDs)).
		Int("edges", g.edges).
		Msg("collaborative graph rebuilt")
	return nil
}

// Add inserts a single edge. It reports whether the graph changed.
func (e *Engine) Add(userID, itemID string) bool {
	if userID == "" || itemID == "" {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next, changed := e.snap.Load().withEdge(userID, itemID)
	if changed {
		e.snap.Store(next)
		e.publishStats(next)
	}
	return changed
}

// Observe applies a recorded event to the graph if it is positive evidence.
// Undo actions are left to the next Rebuild.
//
//nolint:gocritic // hugeParam: events are passed by value throughout ingestion
func (e *Engine) Observe(ev recommend.InteractionEvent) bool {
	if !ev.Action.IsPositive(ev.Magnitude, e.cfg.HighReadTime) {
		return false
	}
	return e.Add(ev.UserID, ev.ItemID)
}

// Stats returns the graph size.
func (e *Engine) Stats() (users, items, edges int) {
	g := e.snap.Load()
	return len(g.userIDs), len(g.itemIDs), g.edges
}

func (e *Engine) publishStats(g *graph) {
	metrics.CollabUsers.Set(float64(len(g.userIDs)))
	metrics.CollabEdges.Set(float64(g.edges))
}

// Items returns the user's positive items in id order.
func (e *Engine) Items(userID string) []string {
	g := e.snap.Load()
	u, ok := g.userIdx[userID]
	if !ok {
		return nil
	}
	out := make([]string, len(g.userItems[u]))
	for j, i := range g.userItems[u] {
		out[j] = g.itemIDs[i]
	}
	sort.Strings(out)
	return out
}

// Neighbors returns up to n users sharing items with userID, most similar first.
// An unknown user has no neighbors.
func (e *Engine) Neighbors(userID string, n int) []Neighbor {
	g := e.snap.Load()
	idx := e.neighbors(context.Background(), g, userID, n)
	out := make([]Neighbor, len(idx))
	for j, nb := range idx {
		out[j] = Neighbor{
			UserID:       g.userIDs[nb.user],
			Similarity:   nb.sim,
			Interactions: len(g.userItems[nb.user]),
		}
	}
	return out
}

type scoredUser struct {
	user int32
	sim  float64
}

func (e *Engine) neighbors(ctx context.Context, g *graph, userID string, n int) []scoredUser {
	u, ok := g.userIdx[userID]
	if !ok || n <= 0 {
		return nil
	}
	own := g.userItems[u]
	if len(own) == 0 {
		return nil
	}

	overlap := make(map[int32]int)
	for _, item := range own {
		if ctx.Err() != nil {
			return nil
		}
		for _, v := range g.itemUsers[item] {
			if v != u {
				overlap[v]++
			}
		}
	}

	out := make([]scoredUser, 0, len(overlap))
	for v, common := range overlap {
		out = append(out, scoredUser{user: v, sim: e.similarity(len(own), len(g.userItems[v]), common)})
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].sim != out[b].sim {
			return out[a].sim > out[b].sim
		}
		na, nb := len(g.userItems[out[a].user]), len(g.userItems[out[b].user])
		if na != nb {
			return na > nb
		}
		return g.userIDs[out[a].user] < g.userIDs[out[b].user]
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (e *Engine) similarity(sizeA, sizeB, common int) float64 {
	if common == 0 {
		return 0
	}
	switch e.cfg.Similarity {
	case SimilarityCosine:
		return float64(common) / math.Sqrt(float64(sizeA)*float64(sizeB))
	default:
		return float64(common) / float64(sizeA+sizeB-common)
	}
}

// RecommendFromNeighbors aggregates the items of the user's n nearest
// neighbors, weighted by similarity, excluding the user's own items.
// It returns the top k by weight, ties by item id. A cold-start user gets an
// empty result.
func (e *Engine) RecommendFromNeighbors(ctx context.Context, userID string, n, k int) ([]recommend.ScoredID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g := e.snap.Load()
	nbs := e.neighbors(ctx, g, userID, n)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(nbs) == 0 || k <= 0 {
		return nil, nil
	}
	own := g.userItems[g.userIdx[userID]]

	scores := make(map[int32]float64)
	for _, nb := range nbs {
		for _, item := range g.userItems[nb.user] {
			if containsSorted(own, item) {
				continue
			}
			scores[item] += nb.sim
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]recommend.ScoredID, 0, len(scores))
	for item, s := range scores {
		out = append(out, recommend.ScoredID{ID: g.itemIDs[item], Score: s})
	}
	recommend.SortScoredIDs(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
