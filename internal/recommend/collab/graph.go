// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package collab

import (
	"sort"
)

// Edge is a positive interaction between a user and an item.
type Edge struct {
	UserID string
	ItemID string
}

// graph is an immutable snapshot of the interaction graph.
// Slices reachable from a published graph are never mutated.
type graph struct {
	userIDs []string
	userIdx map[string]int32
	itemIDs []string
	itemIdx map[string]int32

	userItems [][]int32
	itemUsers [][]int32
	edges     int
}

func emptyGraph() *graph {
	return &graph{
		userIdx: make(map[string]int32),
		itemIdx: make(map[string]int32),
	}
}

// buildGraph interns edges into a new graph. Duplicate edges collapse.
func buildGraph(edges []Edge) *graph {
	g := emptyGraph()
	for _, e := range edges {
		u := g.internUser(e.UserID)
		i := g.internItem(e.ItemID)
		g.userItems[u] = append(g.userItems[u], i)
		g.itemUsers[i] = append(g.itemUsers[i], u)
	}
	for u := range g.userItems {
		g.userItems[u] = sortUnique(g.userItems[u])
		g.edges += len(g.userItems[u])
	}
	for i := range g.itemUsers {
		g.itemUsers[i] = sortUnique(g.itemUsers[i])
	}
	return g
}

func (g *graph) internUser(id string) int32 {
	if idx, ok := g.userIdx[id]; ok {
		return idx
	}
	idx := int32(len(g.userIDs)) //nolint:gosec // bounded by graph size
	g.userIdx[id] = idx
	g.userIDs = append(g.userIDs, id)
	g.userItems = append(g.userItems, nil)
	return idx
}

func (g *graph) internItem(id string) int32 {
	if idx, ok := g.itemIdx[id]; ok {
		return idx
	}
	idx := int32(len(g.itemIDs)) //nolint:gosec // bounded by graph size
	g.itemIdx[id] = idx
	g.itemIDs = append(g.itemIDs, id)
	g.itemUsers = append(g.itemUsers, nil)
	return idx
}

// withEdge returns a copy of g with one more edge, or g itself if the edge
// already exists. Only the two touched adjacency lists are reallocated.
func (g *graph) withEdge(userID, itemID string) (*graph, bool) {
	u, uok := g.userIdx[userID]
	i, iok := g.itemIdx[itemID]
	if uok && iok && containsSorted(g.userItems[u], i) {
		return g, false
	}

	next := &graph{
		userIDs:   g.userIDs[:len(g.userIDs):len(g.userIDs)],
		userIdx:   g.userIdx,
		itemIDs:   g.itemIDs[:len(g.itemIDs):len(g.itemIDs)],
		itemIdx:   g.itemIdx,
		userItems: append([][]int32(nil), g.userItems...),
		itemUsers: append([][]int32(nil), g.itemUsers...),
		edges:     g.edges + 1,
	}
	// New ids need private maps; the old snapshot's maps stay untouched.
	if !uok {
		next.userIdx = cloneIndex(g.userIdx)
	}
	if !iok {
		next.itemIdx = cloneIndex(g.itemIdx)
	}
	u = next.internUser(userID)
	i = next.internItem(itemID)

	next.userItems[u] = insertSorted(next.userItems[u], i)
	next.itemUsers[i] = insertSorted(next.itemUsers[i], u)
	return next, true
}

func cloneIndex(m map[string]int32) map[string]int32 {
	c := make(map[string]int32, len(m)+1)
	for k, v := range m {
		c[k] = v
	}
	return c
}

func sortUnique(s []int32) []int32 {
	if len(s) < 2 {
		return s
	}
	sort.Slice(s, func(a, b int) bool { return s[a] < s[b] })
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func containsSorted(s []int32, v int32) bool {
	i := sort.Search(len(s), func(j int) bool { return s[j] >= v })
	return i < len(s) && s[i] == v
}

// insertSorted returns a new slice with v inserted in order. s is not modified.
func insertSorted(s []int32, v int32) []int32 {
	i := sort.Search(len(s), func(j int) bool { return s[j] >= v })
	out := make([]int32, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, v)
	return append(out, s[i:]...)
}
