// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/lectern/internal/recommend"
)

const (
	prefixItem     = "item:"
	prefixCategory = "category:"
)

func itemKey(itemID string) []byte {
	return []byte(prefixItem + itemID)
}

// PutResult describes the effect of PutItem.
type PutResult struct {
	// Previous is the stored item before the write, nil for a new item.
	Previous *recommend.ItemFeatures

	// NewCategory is set when no item had this category before.
	NewCategory bool
}

// PutItem upserts an item. Changing the access tier of a published item
// fails with recommend.ErrTierImmutable. Engagement counters are owned by
// AppendEvent and are not written here.
func (s *Store) PutItem(ctx context.Context, item *recommend.ItemFeatures) (PutResult, error) {
	var res PutResult
	if err := ctx.Err(); err != nil {
		return res, err
	}

	stored := *item
	stored.Engagement = recommend.Engagement{}

	err := s.update("put_item", func(txn *badger.Txn) error {
		res = PutResult{}

		var prev recommend.ItemFeatures
		err := getJSON(txn, itemKey(item.ItemID), &prev)
		switch {
		case err == nil:
			if prev.Published() && prev.AccessTier != item.AccessTier {
				return recommend.ErrTierImmutable
			}
			res.Previous = &prev
		case !errors.Is(err, recommend.ErrNotFound):
			return err
		}

		catKey := []byte(prefixCategory + item.Category)
		if _, err := txn.Get(catKey); errors.Is(err, badger.ErrKeyNotFound) {
			res.NewCategory = true
			if err := txn.Set(catKey, nil); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		return setJSON(txn, itemKey(item.ItemID), &stored)
	})
	if err != nil {
		return PutResult{}, fmt.Errorf("put item %s: %w", item.ItemID, err)
	}
	return res, nil
}

// GetItem returns an item with its current engagement counters.
func (s *Store) GetItem(ctx context.Context, itemID string) (*recommend.ItemFeatures, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var item recommend.ItemFeatures
	err := s.view("get_item", func(txn *badger.Txn) error {
		if err := getJSON(txn, itemKey(itemID), &item); err != nil {
			return err
		}
		return mergeCounters(txn, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func mergeCounters(txn *badger.Txn, item *recommend.ItemFeatures) error {
	var eng recommend.Engagement
	err := getJSON(txn, counterKey(item.ItemID), &eng)
	if err != nil && !errors.Is(err, recommend.ErrNotFound) {
		return err
	}
	item.Engagement = eng
	return nil
}

// ScanItems calls fn for every item in id order, with engagement counters merged.
func (s *Store) ScanItems(ctx context.Context, fn func(*recommend.ItemFeatures) error) error {
	return s.view("scan_items", func(txn *badger.Txn) error {
		return scanPrefix(ctx, txn, []byte(prefixItem), func(key, val []byte) error {
			var item recommend.ItemFeatures
			if err := json.Unmarshal(val, &item); err != nil {
				s.logger.Warn().Err(err).Str("key", string(key)).Msg("skipping malformed item")
				return nil
			}
			if err := mergeCounters(txn, &item); err != nil {
				return err
			}
			return fn(&item)
		})
	})
}
