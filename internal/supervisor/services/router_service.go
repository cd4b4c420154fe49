// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package services

import (
	"context"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/dialogsync/internal/logging"
)

// MessageRouter matches *bus.Router.
type MessageRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// RouterService runs the Watermill router hosting the partition expander.
//
// A Watermill router cannot be started twice, so every exit is reported as
// ErrDoNotRestart. Redelivery of unacknowledged partitions is left to
// JetStream after the process restarts.
type RouterService struct {
	router MessageRouter
}

// NewRouterService creates a RouterService.
func NewRouterService(router MessageRouter) *RouterService {
	return &RouterService{router: router}
}

// Serve implements suture.Service.
func (s *RouterService) Serve(ctx context.Context) error {
	err := s.router.Run(ctx)
	if closeErr := s.router.Close(); closeErr != nil {
		logging.Warn().Err(closeErr).Msg("Bus router close failed")
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		logging.Error().Err(err).Msg("Bus router stopped, partition expansion halted")
	} else {
		logging.Warn().Msg("Bus router exited, partition expansion halted")
	}
	return suture.ErrDoNotRestart
}

// String implements fmt.Stringer for supervisor logs.
func (s *RouterService) String() string {
	return "bus-router"
}
