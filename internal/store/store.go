// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

// Package store is Lectern's durable document store.
//
// Records are JSON documents in BadgerDB under typed key prefixes:
//
//	event:<user>\x00<ts>\x00<item>\x00<action>   interaction log (also the dedup key)
//	counter:<item>                               engagement counters
//	item:<id>                                    item features
//	category:<name>                              category marker
//	profile:<user>                               aggregated profile
//	quality:<item>                               quality score
//	pref:<user>                                  explicit preferences
//	emb:<kind>:<subject>                         latest embedding record
//
// Identifiers never contain NUL (validation rejects non-printable input),
// so NUL separates key components. Event timestamps are zero-padded so a
// user's events iterate in time order.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/metrics"
	"github.com/tomtom215/lectern/internal/recommend"
)

// maxConflictRetries bounds retries of a transaction aborted by badger.ErrConflict.
const maxConflictRetries = 8

// Config configures the document store.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory.
	InMemory bool

	// SyncWrites fsyncs each transaction before it is acknowledged.
	SyncWrites bool
}

// Store is a BadgerDB-backed document store.
type Store struct {
	db     *badger.DB
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(cfg Config, logger zerolog.Logger) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("store path is required unless in_memory is set")
		}
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = cfg.SyncWrites
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
	s.logger.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("store opened")
	return s, nil
}

// OpenInMemory opens an in-memory store for tests and development.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true}, zerolog.Nop())
}

// Close flushes and closes the store. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return recommend.ErrClosed
	}
	return nil
}

// Ping reports whether the store is open for reads and writes.
func (s *Store) Ping(_ context.Context) error {
	return s.checkOpen()
}

// RunValueLogGC reclaims value-log space until nothing is left to rewrite.
func (s *Store) RunValueLogGC(ratio float64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	for {
		err := s.db.RunValueLogGC(ratio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Size returns the LSM and value-log sizes in bytes.
func (s *Store) Size() (lsm, vlog int64) {
	return s.db.Size()
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *Store) update(op string, fn func(txn *badger.Txn) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	start := time.Now()
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	metrics.RecordStoreOp(op, time.Since(start), ignoreNotFound(err))
	return err
}

// view runs fn in a read-only transaction.
func (s *Store) view(op string, fn func(txn *badger.Txn) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	start := time.Now()
	err := s.db.View(fn)
	metrics.RecordStoreOp(op, time.Since(start), ignoreNotFound(err))
	return err
}

func ignoreNotFound(err error) error {
	if errors.Is(err, recommend.ErrNotFound) {
		return nil
	}
	return err
}

// getJSON decodes the value at key into v. A missing key is recommend.ErrNotFound.
func getJSON(txn *badger.Txn, key []byte, v interface{}) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return recommend.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// scanPrefix calls fn for each value under prefix in key order.
func scanPrefix(ctx context.Context, txn *badger.Txn, prefix []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := it.Item()
		err := item.Value(func(val []byte) error {
			return fn(item.Key(), val)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
