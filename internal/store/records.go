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
	prefixProfile   = "profile:"
	prefixQuality   = "quality:"
	prefixPref      = "pref:"
	prefixEmbedding = "emb:"
)

func embeddingKey(kind recommend.SubjectKind, subjectID string) []byte {
	return []byte(prefixEmbedding + string(kind) + ":" + subjectID)
}

func (s *Store) getRecord(ctx context.Context, op string, key []byte, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.view(op, func(txn *badger.Txn) error {
		return getJSON(txn, key, v)
	})
}

func (s *Store) putRecord(ctx context.Context, op string, key []byte, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(op, func(txn *badger.Txn) error {
		return setJSON(txn, key, v)
	})
}

// GetProfile returns a stored profile or recommend.ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, userID string) (*recommend.UserProfile, error) {
	var p recommend.UserProfile
	if err := s.getRecord(ctx, "get_profile", []byte(prefixProfile+userID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PutProfile stores a profile.
func (s *Store) PutProfile(ctx context.Context, p *recommend.UserProfile) error {
	return s.putRecord(ctx, "put_profile", []byte(prefixProfile+p.UserID), p)
}

// GetQuality returns a stored quality score or recommend.ErrNotFound.
func (s *Store) GetQuality(ctx context.Context, itemID string) (*recommend.QualityScore, error) {
	var q recommend.QualityScore
	if err := s.getRecord(ctx, "get_quality", []byte(prefixQuality+itemID), &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// PutQuality stores a quality score.
func (s *Store) PutQuality(ctx context.Context, q *recommend.QualityScore) error {
	return s.putRecord(ctx, "put_quality", []byte(prefixQuality+q.ItemID), q)
}

// ScanQuality calls fn for every stored quality score.
func (s *Store) ScanQuality(ctx context.Context, fn func(*recommend.QualityScore) error) error {
	return s.view("scan_quality", func(txn *badger.Txn) error {
		return scanPrefix(ctx, txn, []byte(prefixQuality), func(_, val []byte) error {
			var q recommend.QualityScore
			if err := json.Unmarshal(val, &q); err != nil {
				return nil
			}
			return fn(&q)
		})
	})
}

// GetPreferences returns a user's preferences or recommend.ErrNotFound.
func (s *Store) GetPreferences(ctx context.Context, userID string) (*recommend.Preferences, error) {
	var p recommend.Preferences
	if err := s.getRecord(ctx, "get_preferences", []byte(prefixPref+userID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PutPreferences stores a user's preferences.
func (s *Store) PutPreferences(ctx context.Context, p *recommend.Preferences) error {
	return s.putRecord(ctx, "put_preferences", []byte(prefixPref+p.UserID), p)
}

// TierOf returns the user's subscription tier. Users without stored
// preferences are on the free tier.
func (s *Store) TierOf(ctx context.Context, userID string) (recommend.Tier, error) {
	p, err := s.GetPreferences(ctx, userID)
	if errors.Is(err, recommend.ErrNotFound) {
		return recommend.TierFree, nil
	}
	if err != nil {
		return recommend.TierFree, err
	}
	return p.Tier, nil
}

// GetEmbedding returns the latest embedding record of a subject or recommend.ErrNotFound.
func (s *Store) GetEmbedding(ctx context.Context, kind recommend.SubjectKind, subjectID string) (*recommend.EmbeddingRecord, error) {
	var rec recommend.EmbeddingRecord
	if err := s.getRecord(ctx, "get_embedding", embeddingKey(kind, subjectID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// CompareAndPutEmbedding stores rec if the subject's current fingerprint is
// still expected (empty meaning absent) or already equals rec's. Otherwise a
// concurrent writer stored a different fingerprint and
// recommend.ErrStaleCacheConflict is returned.
func (s *Store) CompareAndPutEmbedding(ctx context.Context, rec *recommend.EmbeddingRecord, expected string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := embeddingKey(rec.Kind, rec.SubjectID)
	err := s.update("put_embedding", func(txn *badger.Txn) error {
		var cur recommend.EmbeddingRecord
		err := getJSON(txn, key, &cur)
		switch {
		case errors.Is(err, recommend.ErrNotFound):
			cur.Fingerprint = ""
		case err != nil:
			return err
		}
		if cur.Fingerprint != expected && cur.Fingerprint != rec.Fingerprint {
			return recommend.ErrStaleCacheConflict
		}
		return setJSON(txn, key, rec)
	})
	if err != nil {
		return fmt.Errorf("put embedding %s/%s: %w", rec.Kind, rec.SubjectID, err)
	}
	return nil
}

// ScanEmbeddings calls fn for every stored record of kind.
func (s *Store) ScanEmbeddings(ctx context.Context, kind recommend.SubjectKind, fn func(*recommend.EmbeddingRecord) error) error {
	prefix := []byte(prefixEmbedding + string(kind) + ":")
	return s.view("scan_embeddings", func(txn *badger.Txn) error {
		return scanPrefix(ctx, txn, prefix, func(key, val []byte) error {
			var rec recommend.EmbeddingRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				s.logger.Warn().Err(err).Str("key", string(key)).Msg("skipping malformed embedding")
				return nil
			}
			return fn(&rec)
		})
	})
}
