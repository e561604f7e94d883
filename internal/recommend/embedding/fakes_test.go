// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/lectern/internal/recommend"
)

// memStore is an in-memory Store with the same compare-and-set rule as the
// badger store.
type memStore struct {
	mu      sync.Mutex
	records map[string]*recommend.EmbeddingRecord
	puts    int

	// beforePut runs once, before the next write, outside the lock.
	beforePut func()
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*recommend.EmbeddingRecord)}
}

func (m *memStore) GetEmbedding(_ context.Context, kind recommend.SubjectKind, id string) (*recommend.EmbeddingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[string(kind)+":"+id]
	if !ok {
		return nil, recommend.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) CompareAndPutEmbedding(_ context.Context, rec *recommend.EmbeddingRecord, expected string) error {
	m.mu.Lock()
	hook := m.beforePut
	m.beforePut = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(rec.Kind) + ":" + rec.SubjectID
	if cur, ok := m.records[key]; ok && cur.Fingerprint != expected && cur.Fingerprint != rec.Fingerprint {
		return recommend.ErrStaleCacheConflict
	}
	cp := *rec
	m.records[key] = &cp
	m.puts++
	return nil
}

func (m *memStore) ScanEmbeddings(_ context.Context, kind recommend.SubjectKind, fn func(*recommend.EmbeddingRecord) error) error {
	m.mu.Lock()
	var recs []*recommend.EmbeddingRecord
	for _, r := range m.records {
		if r.Kind == kind {
			cp := *r
			recs = append(recs, &cp)
		}
	}
	m.mu.Unlock()
	for _, r := range recs {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) set(rec *recommend.EmbeddingRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[string(rec.Kind)+":"+rec.SubjectID] = &cp
}

var errEmbedderDown = errors.New("embedder down")

// countingEmbedder returns a vector derived from the text and counts calls.
type countingEmbedder struct {
	calls atomic.Int32
	delay time.Duration
	fail  atomic.Bool
	block chan struct{}
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.fail.Load() {
		return nil, errEmbedderDown
	}
	return []float32{float32(len(text)), 1}, nil
}
