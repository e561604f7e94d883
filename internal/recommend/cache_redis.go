// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"
)

// RedisCache is a SharedCache backed by Redis. Entries are JSON values
// written with SET EX under "<prefix><user>".
type RedisCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewRedisCache creates a shared cache on client. prefix namespaces keys.
func NewRedisCache(client goredis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (r *RedisCache) key(userID string) string {
	return r.prefix + userID
}

// Load reads a user's entry. A missing key is (nil, false, nil).
func (r *RedisCache) Load(ctx context.Context, userID string) (*RecommendationEntry, bool, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var entry RecommendationEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("decode entry: %w", err)
	}
	return &entry, true, nil
}

// Store writes entry with the given expiry.
func (r *RedisCache) Store(ctx context.Context, entry *RecommendationEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return r.client.Set(ctx, r.key(entry.UserID), data, ttl).Err()
}

// Delete removes the entries of the given users.
func (r *RedisCache) Delete(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = r.key(id)
	}
	return r.client.Del(ctx, keys...).Err()
}

// Clear removes every entry under the prefix.
func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()

	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.client.Del(ctx, batch...).Err()
	}
	return nil
}
