// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/dialogsync/internal/logging"
)

// StreamRunner matches *stream.Manager.
type StreamRunner interface {
	Run(ctx context.Context) error
}

// StreamService runs the update stream producers. Producers keep their
// watermarks across restarts because the Manager owns them.
type StreamService struct {
	manager StreamRunner
}

// NewStreamService creates a StreamService.
func NewStreamService(manager StreamRunner) *StreamService {
	return &StreamService{manager: manager}
}

// Serve implements suture.Service. Producers only return on their own once
// the work channel is closed, so that case is not restarted.
func (s *StreamService) Serve(ctx context.Context) error {
	err := s.manager.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("update streams failed: %w", err)
	}
	logging.Info().Msg("Update streams finished, not restarting")
	return suture.ErrDoNotRestart
}

// String implements fmt.Stringer for supervisor logs.
func (s *StreamService) String() string {
	return "stream-manager"
}
