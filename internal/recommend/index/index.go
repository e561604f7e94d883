// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

// Package index is the similarity index over item embedding vectors.
//
// The index is an immutable snapshot behind an atomic pointer. Queries scan
// the snapshot without locking; Upsert, Remove and Refresh build a new
// snapshot under a writer mutex and swap it in.
package index

import (
	"container/heap"
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

// Entry is one indexed item.
type Entry struct {
	Meta   recommend.ItemMeta
	Vector []float32
}

type snapshot struct {
	entries []Entry // sorted by item id
	pos     map[string]int
	dims    int
	builtAt time.Time
}

func newSnapshot(entries []Entry, builtAt time.Time) *snapshot {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Meta.ItemID < entries[j].Meta.ItemID })
	s := &snapshot{
		entries: entries,
		pos:     make(map[string]int, len(entries)),
		builtAt: builtAt,
	}
	for i := range entries {
		s.pos[entries[i].Meta.ItemID] = i
		if s.dims == 0 {
			s.dims = len(entries[i].Vector)
		}
	}
	return s
}

// Index is the similarity index. It is safe for concurrent use.
type Index struct {
	snap   atomic.Pointer[snapshot]
	mu     sync.Mutex
	logger zerolog.Logger
}

// New creates an empty index.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(logger zerolog.Logger) *Index {
	idx := &Index{logger: logger.With().Str("component", "index").Logger()}
	idx.snap.Store(newSnapshot(nil, time.Time{}))
	return idx
}

// Len returns the number of indexed items.
func (x *Index) Len() int {
	return len(x.snap.Load().entries)
}

// BuiltAt returns when the current snapshot was built.
func (x *Index) BuiltAt() time.Time {
	return x.snap.Load().builtAt
}

// Vector returns the normalized vector of an item.
func (x *Index) Vector(itemID string) ([]float32, bool) {
	s := x.snap.Load()
	i, ok := s.pos[itemID]
	if !ok {
		return nil, false
	}
	return s.entries[i].Vector, true
}

// Meta returns the metadata of an item.
func (x *Index) Meta(itemID string) (recommend.ItemMeta, bool) {
	s := x.snap.Load()
	i, ok := s.pos[itemID]
	if !ok {
		return recommend.ItemMeta{}, false
	}
	return s.entries[i].Meta, true
}

// Upsert inserts or replaces an item.
func (x *Index) Upsert(entry Entry) error {
	vec, err := normalized(entry.Vector)
	if err != nil {
		return fmt.Errorf("item %s: %w", entry.Meta.ItemID, err)
	}
	entry.Vector = vec

	x.mu.Lock()
	defer x.mu.Unlock()

	cur := x.snap.Load()
	if cur.dims != 0 && len(vec) != cur.dims {
		return fmt.Errorf("item %s: vector has %d dimensions, index has %d", entry.Meta.ItemID, len(vec), cur.dims)
	}

	entries := make([]Entry, 0, len(cur.entries)+1)
	replaced := false
	for i := range cur.entries {
		if cur.entries[i].Meta.ItemID == entry.Meta.ItemID {
			entries = append(entries, entry)
			replaced = true
			continue
		}
		entries = append(entries, cur.entries[i])
	}
	if !replaced {
		entries = append(entries, entry)
	}
	x.swap(newSnapshot(entries, cur.builtAt))
	return nil
}

// Remove deletes an item. It reports whether the item was present.
func (x *Index) Remove(itemID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	cur := x.snap.Load()
	i, ok := cur.pos[itemID]
	if !ok {
		return false
	}
	entries := make([]Entry, 0, len(cur.entries)-1)
	entries = append(entries, cur.entries[:i]...)
	entries = append(entries, cur.entries[i+1:]...)
	x.swap(newSnapshot(entries, cur.builtAt))
	return true
}

// Replace swaps in a complete set of entries. Entries whose vector is empty
// or whose dimensions disagree with the first entry are skipped.
func (x *Index) Replace(entries []Entry, builtAt time.Time) int {
	kept := make([]Entry, 0, len(entries))
	dims := 0
	for _, e := range entries {
		vec, err := normalized(e.Vector)
		if err != nil {
			x.logger.Debug().Err(err).Str("item_id", e.Meta.ItemID).Msg("skipping index entry")
			continue
		}
		if dims == 0 {
			dims = len(vec)
		}
		if len(vec) != dims {
			x.logger.Warn().Str("item_id", e.Meta.ItemID).Int("dims", len(vec)).Int("want", dims).Msg("skipping index entry with mismatched dimensions")
			continue
		}
		e.Vector = vec
		kept = append(kept, e)
	}

	x.mu.Lock()
	x.swap(newSnapshot(kept, builtAt))
	x.mu.Unlock()
	return len(kept)
}

func (x *Index) swap(s *snapshot) {
	x.snap.Store(s)
	metrics.IndexItems.Set(float64(len(s.entries)))
}

// TopK returns up to k items most similar to query among those passing
// filter, by cosine similarity. Ties break by higher quality, then item id.
func (x *Index) TopK(query []float32, k int, filter func(*recommend.ItemMeta) bool) []recommend.Hit {
	if k <= 0 {
		return nil
	}
	q, err := normalized(query)
	if err != nil {
		return nil
	}
	s := x.snap.Load()
	if s.dims != 0 && len(q) != s.dims {
		x.logger.Warn().Int("dims", len(q)).Int("want", s.dims).Msg("query dimension mismatch")
		return nil
	}

	h := make(hitHeap, 0, k+1)
	for i := range s.entries {
		e := &s.entries[i]
		if filter != nil && !filter(&e.Meta) {
			continue
		}
		hit := recommend.Hit{ItemMeta: e.Meta, Similarity: dot(q, e.Vector)}
		if len(h) < k {
			heap.Push(&h, hit)
			continue
		}
		if better(hit, h[0]) {
			h[0] = hit
			heap.Fix(&h, 0)
		}
	}

	out := make([]recommend.Hit, len(h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(recommend.Hit) //nolint:errcheck,forcetypeassert // heap holds only hits
	}
	return out
}

// better reports whether a ranks ahead of b.
func better(a, b recommend.Hit) bool { //nolint:gocritic // hugeParam: hot comparison, values avoid aliasing
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if a.Quality != b.Quality {
		return a.Quality > b.Quality
	}
	return a.ItemID < b.ItemID
}

// hitHeap is a min-heap: the worst kept hit is at the root.
type hitHeap []recommend.Hit

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return better(h[j], h[i]) }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x interface{}) { *h = append(*h, x.(recommend.Hit)) } //nolint:forcetypeassert // heap holds only hits
func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func normalized(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("empty vector")
	}
	var sum float64
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, fmt.Errorf("vector contains non-finite values")
		}
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return nil, fmt.Errorf("zero vector")
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// Stats describes the index.
type Stats struct {
	Items      int       `json:"items"`
	Dimensions int       `json:"dimensions"`
	BuiltAt    time.Time `json:"built_at"`
}

// Stats returns the index size.
func (x *Index) Stats() Stats {
	s := x.snap.Load()
	return Stats{Items: len(s.entries), Dimensions: s.dims, BuiltAt: s.builtAt}
}

var _ recommend.SimilarityIndex = (*Index)(nil)

// ctxDone is a cheap cancellation check for long scans.
func ctxDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
