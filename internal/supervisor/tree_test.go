// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// stubService runs until cancelled, failing its first failures starts.
type stubService struct {
	name     string
	failures int32
	starts   atomic.Int32
}

func (s *stubService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	if n <= s.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubService) String() string { return s.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewTree_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   TreeConfig
		want TreeConfig
	}{
		{"zero", TreeConfig{}, DefaultTreeConfig()},
		{
			name: "partial",
			in:   TreeConfig{FailureThreshold: 2, FailureBackoff: time.Second},
			want: TreeConfig{FailureThreshold: 2, FailureDecay: 30, FailureBackoff: time.Second, ShutdownTimeout: 10 * time.Second},
		},
		{
			name: "negative",
			in:   TreeConfig{FailureDecay: -1, ShutdownTimeout: -time.Second},
			want: DefaultTreeConfig(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NewTree(quietLogger(), tt.in).Config(); got != tt.want {
				t.Errorf("Config() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLayer_String(t *testing.T) {
	t.Parallel()

	want := map[Layer]string{LayerData: "data-layer", LayerMaintenance: "maintenance-layer", LayerAPI: "api-layer", Layer(9): "unknown-layer"}
	for l, name := range want {
		if l.String() != name {
			t.Errorf("Layer(%d).String() = %q, want %q", int(l), l.String(), name)
		}
	}
}

func TestSupervisorTree_StartsEveryLayer(t *testing.T) {
	t.Parallel()

	tree := NewTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	data := &stubService{name: "router"}
	maintenance := &stubService{name: "maintenance"}
	api := &stubService{name: "http"}
	tree.Add(LayerData, data)
	tree.Add(LayerMaintenance, maintenance)
	tree.Add(LayerAPI, api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if data.starts.Load() > 0 && maintenance.starts.Load() > 0 && api.starts.Load() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	for _, s := range []*stubService{data, maintenance, api} {
		if s.starts.Load() < 1 {
			t.Errorf("%s was not started", s.name)
		}
	}
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("tree did not shut down in time")
	}
}

func TestSupervisorTree_RestartsFailingService(t *testing.T) {
	t.Parallel()

	tree := NewTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	failing := &stubService{name: "flaky-consumer", failures: 2}
	stable := &stubService{name: "http"}
	tree.Add(LayerData, failing)
	tree.Add(LayerAPI, stable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for failing.starts.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := failing.starts.Load(); got < 3 {
		t.Errorf("failing service starts = %d, want at least 3", got)
	}
	if stable.starts.Load() != 1 {
		t.Errorf("stable service starts = %d, want 1", stable.starts.Load())
	}
}
