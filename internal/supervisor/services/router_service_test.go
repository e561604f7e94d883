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

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/eventbus"
)

func TestRouterService_DeliversAndStops(t *testing.T) {
	t.Parallel()

	bus, err := eventbus.New(eventbus.DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("eventbus.New() error = %v", err)
	}
	t.Cleanup(func() { _ = bus.Close() })

	var handled atomic.Int32
	built := make(chan *eventbus.Router, 1)
	svc := NewRouterService(func() (*eventbus.Router, error) {
		r, err := eventbus.NewRouter(eventbus.DefaultRouterConfig(), bus.WatermillLogger())
		if err != nil {
			return nil, err
		}
		r.AddConsumerHandler("aggregation", bus.Topic(), bus.Subscriber(), func(msg *message.Message) error {
			if _, err := eventbus.DecodeRecorded(msg); err != nil {
				return err
			}
			handled.Add(1)
			return nil
		})
		built <- r
		return r, nil
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// The gochannel subscription exists only once the router runs.
	select {
	case r := <-built:
		<-r.Running()
	case <-time.After(2 * time.Second):
		t.Fatal("router was not built")
	}

	rec := eventbus.Recorded{UserID: "u1", ItemID: "i1", Action: "like", Timestamp: time.Now().UTC()}
	if err := bus.PublishRecorded(context.Background(), rec); err != nil {
		t.Fatalf("PublishRecorded() error = %v", err)
	}
	waitFor(t, func() bool { return handled.Load() == 1 })

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestRouterService_BuildFailure(t *testing.T) {
	t.Parallel()

	buildErr := errors.New("no subscriber")
	svc := NewRouterService(func() (*eventbus.Router, error) { return nil, buildErr }, zerolog.Nop())
	if err := svc.Serve(context.Background()); !errors.Is(err, buildErr) {
		t.Errorf("Serve() error = %v, want %v", err, buildErr)
	}
	if svc.String() != "event-router" {
		t.Errorf("String() = %q", svc.String())
	}
}
