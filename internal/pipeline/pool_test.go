// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/dialogsync/internal/models"
)

func instanceEvent(party string) models.InstanceChangeEvent {
	return models.InstanceChangeEvent{
		AppID:      "ttd/app",
		PartyID:    party,
		InstanceID: uuid.New(),
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewPoolValidation(t *testing.T) {
	t.Parallel()

	ch := NewChannel[models.WorkItem](1)
	noop := HandlerFunc(func(context.Context, models.WorkItem) error { return nil })

	if _, err := NewPool(ch, 0, noop); err == nil {
		t.Error("NewPool with 0 workers: error = nil")
	}
	if _, err := NewPool(nil, 1, noop); err == nil {
		t.Error("NewPool with nil channel: error = nil")
	}
	if _, err := NewPool(ch, 1, nil); err == nil {
		t.Error("NewPool with nil handler: error = nil")
	}
}

func TestPoolWorkerIsolation(t *testing.T) {
	t.Parallel()

	ch := NewChannel[models.WorkItem](DefaultCapacity)

	var (
		mu      sync.Mutex
		handled []string
	)
	handler := HandlerFunc(func(_ context.Context, item models.WorkItem) error {
		evt := item.(models.InstanceChangeEvent)
		mu.Lock()
		handled = append(handled, evt.PartyID)
		mu.Unlock()
		switch evt.PartyID {
		case "fail":
			return errors.New("downstream rejected item")
		case "panic":
			panic("handler exploded")
		}
		return nil
	})

	pool, err := NewPool(ch, 1, handler)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	ctx := context.Background()
	for _, party := range []string{"fail", "panic", "ok"} {
		if err := ch.Enqueue(ctx, instanceEvent(party)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	ch.Close()

	if err := pool.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(handled) != 3 || handled[2] != "ok" {
		t.Errorf("handled = %v, want all three items with ok last", handled)
	}

	stats := pool.Stats()
	if stats.Processed != 1 {
		t.Errorf("Processed = %d, want 1", stats.Processed)
	}
	if stats.Failed != 2 {
		t.Errorf("Failed = %d, want 2", stats.Failed)
	}
	if stats.Busy != 0 {
		t.Errorf("Busy = %d, want 0", stats.Busy)
	}
}

func TestPoolResumesBlockedProducer(t *testing.T) {
	t.Parallel()

	ch := NewChannel[models.WorkItem](1)
	ctx := context.Background()

	if err := ch.Enqueue(ctx, instanceEvent("1")); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}

	second := make(chan error, 1)
	go func() {
		second <- ch.Enqueue(ctx, instanceEvent("2"))
	}()

	select {
	case <-second:
		t.Fatal("second Enqueue completed while the pool was paused")
	case <-time.After(50 * time.Millisecond):
	}

	var (
		mu      sync.Mutex
		handled []string
	)
	pool, _ := NewPool(ch, 1, HandlerFunc(func(_ context.Context, item models.WorkItem) error {
		mu.Lock()
		handled = append(handled, item.(models.InstanceChangeEvent).PartyID)
		mu.Unlock()
		return nil
	}))

	runDone := make(chan error, 1)
	go func() { runDone <- pool.Run(ctx) }()

	select {
	case err := <-second:
		if err != nil {
			t.Fatalf("second Enqueue: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("second Enqueue still blocked after the pool resumed")
	}

	ch.Close()
	if err := <-runDone; err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(handled) != 2 || handled[0] != "1" || handled[1] != "2" {
		t.Errorf("handled = %v, want [1 2]", handled)
	}
}

func TestPoolCancellationReachesInFlightHandler(t *testing.T) {
	t.Parallel()

	ch := NewChannel[models.WorkItem](DefaultCapacity)
	started := make(chan struct{})

	pool, _ := NewPool(ch, 2, HandlerFunc(func(ctx context.Context, _ models.WorkItem) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	_ = ch.Enqueue(ctx, instanceEvent("slow"))

	runDone := make(chan error, 1)
	go func() { runDone <- pool.Run(ctx) }()

	<-started
	cancel()

	select {
	case err := <-runDone:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if stats := pool.Stats(); stats.Failed != 0 {
		t.Errorf("Failed = %d, want 0 for a canceled item", stats.Failed)
	}
}

type recordingHandlers struct {
	mu         sync.Mutex
	instances  []models.InstanceChangeEvent
	partitions []models.PartitionPlan
}

func (r *recordingHandlers) HandleInstanceChange(_ context.Context, evt models.InstanceChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = append(r.instances, evt)
	return nil
}

func (r *recordingHandlers) HandlePartitionPlan(_ context.Context, plan models.PartitionPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partitions = append(r.partitions, plan)
	return nil
}

func TestDispatcherRoutesByVariant(t *testing.T) {
	t.Parallel()

	rec := &recordingHandlers{}
	d := &Dispatcher{Instances: rec, Partitions: rec}
	ctx := context.Background()

	if err := d.Handle(ctx, instanceEvent("42")); err != nil {
		t.Fatalf("Handle instance: %v", err)
	}
	plan := models.PartitionPlan{Day: models.Day{Year: 2024, Month: time.June, Dom: 1}, Organization: "ttd"}
	if err := d.Handle(ctx, plan); err != nil {
		t.Fatalf("Handle partition: %v", err)
	}

	if len(rec.instances) != 1 || rec.instances[0].PartyID != "42" {
		t.Errorf("instances = %+v", rec.instances)
	}
	if len(rec.partitions) != 1 || rec.partitions[0] != plan {
		t.Errorf("partitions = %+v", rec.partitions)
	}

	empty := &Dispatcher{}
	if err := empty.Handle(ctx, plan); !errors.Is(err, ErrUnhandledWorkItem) {
		t.Errorf("Handle without handler = %v, want ErrUnhandledWorkItem", err)
	}
}
