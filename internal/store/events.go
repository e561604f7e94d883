// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/lectern/internal/recommend"
)

const (
	prefixEvent   = "event:"
	prefixCounter = "counter:"
	sep           = "\x00"
)

func userEventPrefix(userID string) []byte {
	return []byte(prefixEvent + userID + sep)
}

// tsComponent renders a timestamp so that lexical order is time order.
// Pre-epoch times sort first.
func tsComponent(nanos int64) string {
	if nanos < 0 {
		nanos = 0
	}
	return fmt.Sprintf("%020d", nanos)
}

// EventKey returns the store key of an event. Two events with the same key
// are duplicates.
//
//nolint:gocritic // hugeParam: events are passed by value throughout ingestion
func EventKey(ev recommend.InteractionEvent) string {
	return prefixEvent + ev.UserID + sep + tsComponent(ev.Timestamp.UnixNano()) + sep + ev.ItemID + sep + string(ev.Action)
}

func counterKey(itemID string) []byte {
	return []byte(prefixCounter + itemID)
}

// AppendEvent records ev and increments the item's engagement counter in one
// transaction. It returns false, without writing anything, if the event was
// already recorded.
//
//nolint:gocritic // hugeParam: events are passed by value throughout ingestion
func (s *Store) AppendEvent(ctx context.Context, ev recommend.InteractionEvent) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key := []byte(EventKey(ev))
	ev.Timestamp = ev.Timestamp.UTC()

	var appended bool
	err := s.update("append_event", func(txn *badger.Txn) error {
		appended = false
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := setJSON(txn, key, &ev); err != nil {
			return err
		}

		if counter := ev.Action.Counter(); counter != "" && ev.ItemID != "" {
			var eng recommend.Engagement
			if err := getJSON(txn, counterKey(ev.ItemID), &eng); err != nil && !errors.Is(err, recommend.ErrNotFound) {
				return err
			}
			eng.Inc(counter)
			if err := setJSON(txn, counterKey(ev.ItemID), &eng); err != nil {
				return err
			}
		}
		appended = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}
	return appended, nil
}

// EventsSince calls fn, in time order, for each of the user's events stored
// after cursor. An empty cursor starts at the first event. The key passed to
// fn is the cursor to resume from.
func (s *Store) EventsSince(ctx context.Context, userID, cursor string, fn func(key string, ev *recommend.InteractionEvent) error) error {
	prefix := userEventPrefix(userID)
	return s.view("events_since", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		start := prefix
		if cursor != "" {
			start = []byte(cursor)
		}
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if cursor != "" && bytes.Equal(item.Key(), start) {
				continue
			}
			var ev recommend.InteractionEvent
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &ev) }); err != nil {
				s.logger.Warn().Err(err).Str("key", string(item.Key())).Msg("skipping malformed event")
				continue
			}
			if err := fn(string(item.KeyCopy(nil)), &ev); err != nil {
				return err
			}
		}
		return nil
	})
}

// History returns the user's events newest first, narrowed by filter.
func (s *Store) History(ctx context.Context, userID string, filter recommend.HistoryFilter) ([]recommend.InteractionEvent, error) {
	prefix := userEventPrefix(userID)

	actions := make(map[recommend.Action]struct{}, len(filter.Actions))
	for _, a := range filter.Actions {
		actions[a] = struct{}{}
	}

	var out []recommend.InteractionEvent
	err := s.view("history", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek to the newest key under the prefix (or the newest before Until).
		seek := append(append([]byte{}, prefix...), 0xff)
		if !filter.Until.IsZero() {
			seek = append(append([]byte{}, prefix...), []byte(tsComponent(filter.Until.UnixNano())+sep+"\xff")...)
		}

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var ev recommend.InteractionEvent
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &ev) }); err != nil {
				continue
			}
			if !filter.Since.IsZero() && ev.Timestamp.Before(filter.Since) {
				break
			}
			if !filter.Until.IsZero() && ev.Timestamp.After(filter.Until) {
				continue
			}
			if len(actions) > 0 {
				if _, ok := actions[ev.Action]; !ok {
					continue
				}
			}
			out = append(out, ev)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}

// ScanEvents calls fn for every recorded event, grouped by user in time order.
func (s *Store) ScanEvents(ctx context.Context, fn func(ev *recommend.InteractionEvent) error) error {
	return s.view("scan_events", func(txn *badger.Txn) error {
		return scanPrefix(ctx, txn, []byte(prefixEvent), func(key, val []byte) error {
			var ev recommend.InteractionEvent
			if err := json.Unmarshal(val, &ev); err != nil {
				s.logger.Warn().Err(err).Str("key", string(key)).Msg("skipping malformed event")
				return nil
			}
			return fn(&ev)
		})
	})
}

// EventHead summarizes one user's stored events.
type EventHead struct {
	UserID string
	Count  int
	Newest string // key of the newest event
}

// ScanEventHeads calls fn once per user with an event, in user order. Only
// keys are read.
func (s *Store) ScanEventHeads(ctx context.Context, fn func(EventHead) error) error {
	return s.view("scan_event_heads", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEvent)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var head EventHead
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := string(it.Item().Key())
			user := UserIDFromEventKey(key)
			if head.Count > 0 && user != head.UserID {
				if err := fn(head); err != nil {
					return err
				}
				head = EventHead{}
			}
			head.UserID = user
			head.Count++
			head.Newest = key
		}
		if head.Count > 0 {
			return fn(head)
		}
		return nil
	})
}

// UserIDFromEventKey extracts the user component of an event key.
func UserIDFromEventKey(key string) string {
	rest := strings.TrimPrefix(key, prefixEvent)
	if i := strings.Index(rest, sep); i >= 0 {
		return rest[:i]
	}
	return rest
}

// Engagement returns the item's counters. A missing item has zero counters.
func (s *Store) Engagement(ctx context.Context, itemID string) (recommend.Engagement, error) {
	var eng recommend.Engagement
	if err := ctx.Err(); err != nil {
		return eng, err
	}
	err := s.view("get_engagement", func(txn *badger.Txn) error {
		return getJSON(txn, counterKey(itemID), &eng)
	})
	if err != nil && !errors.Is(err, recommend.ErrNotFound) {
		return eng, err
	}
	return eng, nil
}
