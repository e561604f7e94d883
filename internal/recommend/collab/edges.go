// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package collab

import (
	"context"
	"sort"
	"time"

	"github.com/tomtom215/lectern/internal/recommend"
)

// EventScanner iterates the durable interaction log.
type EventScanner interface {
	ScanEvents(ctx context.Context, fn func(*recommend.InteractionEvent) error) error
}

type pairKey struct {
	user, item string
}

// EdgesFromEvents replays the log into positive edges. A like or bookmark
// cancelled by its undo action no longer counts. Shares, comments and
// long reads are permanent.
func EdgesFromEvents(ctx context.Context, scanner EventScanner, highReadTime time.Duration) ([]Edge, error) {
	active := make(map[pairKey]map[recommend.Action]struct{})

	err := scanner.ScanEvents(ctx, func(ev *recommend.InteractionEvent) error {
		if ev.ItemID == "" {
			return nil
		}
		key := pairKey{ev.UserID, ev.ItemID}
		if undone := ev.Action.Undoes(); undone != "" {
			if set := active[key]; set != nil {
				delete(set, undone)
			}
			return nil
		}
		if !ev.Action.IsPositive(ev.Magnitude, highReadTime) {
			return nil
		}
		set := active[key]
		if set == nil {
			set = make(map[recommend.Action]struct{}, 1)
			active[key] = set
		}
		set[ev.Action] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	edges := make([]Edge, 0, len(active))
	for key, set := range active {
		if len(set) > 0 {
			edges = append(edges, Edge{UserID: key.user, ItemID: key.item})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].UserID != edges[j].UserID {
			return edges[i].UserID < edges[j].UserID
		}
		return edges[i].ItemID < edges[j].ItemID
	})
	return edges, nil
}
