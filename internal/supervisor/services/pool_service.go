// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/dialogsync/internal/logging"
)

// PoolRunner matches *pipeline.Pool.
type PoolRunner interface {
	Run(ctx context.Context) error
}

// WorkQueue matches *pipeline.Channel.
type WorkQueue interface {
	Close()
	Len() int
}

// PoolService runs the consumer pool. On shutdown it closes the work channel
// so producers stop, then lets the workers drain what is buffered for up to
// drainTimeout before canceling in-flight handlers.
type PoolService struct {
	pool         PoolRunner
	queue        WorkQueue
	drainTimeout time.Duration
}

// NewPoolService creates a PoolService.
func NewPoolService(pool PoolRunner, queue WorkQueue, drainTimeout time.Duration) *PoolService {
	if drainTimeout <= 0 {
		drainTimeout = 5 * time.Second
	}
	return &PoolService{pool: pool, queue: queue, drainTimeout: drainTimeout}
}

// Serve implements suture.Service.
//
// The pool runs on its own context so that shutdown can drain before
// canceling. A pool that returns while ctx is live means the channel was
// closed elsewhere, which is terminal.
func (s *PoolService) Serve(ctx context.Context) error {
	workCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.pool.Run(workCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("consumer pool stopped: %w", err)
		}
		logging.Warn().Msg("Work channel closed, consumer pool will not restart")
		return suture.ErrDoNotRestart

	case <-ctx.Done():
		s.queue.Close()

		timer := time.NewTimer(s.drainTimeout)
		defer timer.Stop()

		select {
		case <-done:
			logging.Info().Msg("Consumer pool drained")
		case <-timer.C:
			logging.Warn().
				Int("remaining", s.queue.Len()).
				Dur("drain_timeout", s.drainTimeout).
				Msg("Consumer pool drain timed out, canceling in-flight items")
			cancel()
			<-done
		}
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *PoolService) String() string {
	return "consumer-pool"
}
