// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

var (
	_ suture.Service = (*MaintenanceService)(nil)
	_ suture.Service = (*RouterService)(nil)
	_ suture.Service = (*HTTPServerService)(nil)
)

type countingTask struct {
	calls atomic.Int32
	err   error
}

func (c *countingTask) run(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMaintenanceService_RunsTasksOnSchedule(t *testing.T) {
	t.Parallel()

	fast := &countingTask{}
	failing := &countingTask{err: errors.New("index refresh failed")}
	svc := NewMaintenanceService([]Task{
		{Name: "fast", Interval: 10 * time.Millisecond, Run: fast.run},
		{Name: "failing", Interval: 10 * time.Millisecond, Run: failing.run},
		{Name: "disabled", Interval: 0, Run: fast.run},
	}, MaintenanceConfig{}, zerolog.Nop())

	if len(svc.tasks) != 2 {
		t.Fatalf("active tasks = %d, want 2", len(svc.tasks))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	waitFor(t, func() bool { return fast.calls.Load() >= 3 && failing.calls.Load() >= 3 })
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestMaintenanceService_RunOnStartup(t *testing.T) {
	t.Parallel()

	task := &countingTask{}
	svc := NewMaintenanceService([]Task{
		{Name: "collab_rebuild", Interval: time.Hour, Run: task.run},
	}, MaintenanceConfig{RunOnStartup: true}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	waitFor(t, func() bool { return task.calls.Load() == 1 })
	cancel()
	<-done

	if got := task.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
	if svc.String() != "maintenance-scheduler" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestMaintenanceService_PassTimeout(t *testing.T) {
	t.Parallel()

	var sawDeadline atomic.Bool
	svc := NewMaintenanceService([]Task{{
		Name:     "slow",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			sawDeadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
			return ctx.Err()
		},
	}}, MaintenanceConfig{RunOnStartup: true, PassTimeout: 20 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	waitFor(t, sawDeadline.Load)
	cancel()
	<-done
}
