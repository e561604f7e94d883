// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package keylock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMap_SerializesPerKey(t *testing.T) {
	t.Parallel()

	var m Map
	var mu sync.Mutex
	active, peak := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(context.Background(), "k")
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Errorf("peak holders = %d, want 1", peak)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after all unlocks, want 0", m.Len())
	}
}

func TestMap_IndependentKeys(t *testing.T) {
	t.Parallel()

	var m Map
	unlockA, err := m.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("Lock(a) error = %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := m.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("Lock(b) blocked by a: %v", err)
	}
	unlockB()
}

func TestMap_ContextCancel(t *testing.T) {
	t.Parallel()

	var m Map
	unlock, err := m.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := m.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Lock() error = %v, want DeadlineExceeded", err)
	}

	unlock()
	unlock() // idempotent
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}
