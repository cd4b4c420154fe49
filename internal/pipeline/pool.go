// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/dialogsync/internal/logging"
	"github.com/tomtom215/dialogsync/internal/metrics"
	"github.com/tomtom215/dialogsync/internal/models"
)

// Handler processes one work item. Returning an error marks the item as
// failed; the pool logs it and moves on without retrying.
type Handler interface {
	Handle(ctx context.Context, item models.WorkItem) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, item models.WorkItem) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, item models.WorkItem) error {
	return f(ctx, item)
}

// PoolStats is a point-in-time snapshot of pool activity.
type PoolStats struct {
	Workers   int   `json:"workers"`
	Busy      int64 `json:"busy"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Pool runs a fixed number of workers that drain a Channel.
type Pool struct {
	ch      *Channel[models.WorkItem]
	workers int
	handler Handler

	busy      atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a pool of workers consumers reading from ch.
func NewPool(ch *Channel[models.WorkItem], workers int, handler Handler) (*Pool, error) {
	if ch == nil {
		return nil, errors.New("pool requires a channel")
	}
	if handler == nil {
		return nil, errors.New("pool requires a handler")
	}
	if workers < 1 {
		return nil, fmt.Errorf("pool requires at least 1 worker, got %d", workers)
	}
	return &Pool{ch: ch, workers: workers, handler: handler}, nil
}

// Run starts the workers and blocks until all of them have exited.
//
// Workers exit when the channel is closed and drained, or when ctx is
// canceled. An item already being handled when ctx is canceled sees the
// cancellation through its own ctx argument. Run returns ctx.Err() if the
// pool stopped because of cancellation and nil after a clean drain.
func (p *Pool) Run(ctx context.Context) error {
	logging.Info().
		Int("workers", p.workers).
		Int("capacity", p.ch.Cap()).
		Msg("Consumer pool starting")

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.work(ctx, worker)
		}(i)
	}
	wg.Wait()

	stats := p.Stats()
	logging.Info().
		Int64("processed", stats.Processed).
		Int64("failed", stats.Failed).
		Msg("Consumer pool stopped")

	return ctx.Err()
}

// Stats returns the current counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:   p.workers,
		Busy:      p.busy.Load(),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

func (p *Pool) work(ctx context.Context, worker int) {
	for {
		item, ok, err := p.ch.Dequeue(ctx)
		if err != nil || !ok {
			return
		}
		p.process(ctx, worker, item)
	}
}

func (p *Pool) process(ctx context.Context, worker int, item models.WorkItem) {
	kind := string(item.Kind())

	p.busy.Add(1)
	start := time.Now()
	err := p.invoke(ctx, item)
	metrics.HandlerDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	p.busy.Add(-1)

	if err == nil {
		p.processed.Add(1)
		metrics.ItemsProcessed.WithLabelValues(kind, "success").Inc()
		return
	}

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		logging.Debug().
			Int("worker", worker).
			Str("item_kind", kind).
			Msg("Work item abandoned on shutdown")
		metrics.ItemsProcessed.WithLabelValues(kind, "canceled").Inc()
		return
	}

	p.failed.Add(1)
	metrics.ItemsProcessed.WithLabelValues(kind, "failure").Inc()
	logItemFailure(worker, item, err)
}

// invoke runs the handler, turning a panic into an error so one bad item
// cannot take the worker down.
func (p *Pool) invoke(ctx context.Context, item models.WorkItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	return p.handler.Handle(ctx, item)
}

func logItemFailure(worker int, item models.WorkItem, err error) {
	event := logging.Error().
		Err(err).
		Int("worker", worker).
		Str("item_kind", string(item.Kind()))

	switch v := item.(type) {
	case models.InstanceChangeEvent:
		event = event.
			Str("app_id", v.AppID).
			Str("party_id", v.PartyID).
			Str("instance_id", v.InstanceID.String()).
			Bool("is_migration", v.IsMigration)
	case models.PartitionPlan:
		event = event.
			Str("organization", v.Organization).
			Str("day", v.Day.String())
		if v.HasPartyFilter() {
			event = event.Int64("party_filter", v.PartyFilter)
		}
	}

	event.Msg("Work item failed")
}
