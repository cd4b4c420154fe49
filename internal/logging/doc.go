// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

// Package logging provides the process-wide zerolog logger for Dialogsync.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("organization", org).Msg("Update stream starting")
//	logging.Error().Err(err).Int("worker", idx).Msg("Work item failed")
//	logging.Ctx(ctx).Info().Msg("Migration planned") // adds correlation_id
//
// # Adapters
//
// Two adapters route third-party logging into the same stream:
//
//   - NewSlogLogger: *slog.Logger for sutureslog supervisor events
//   - NewWatermillAdapter: watermill.LoggerAdapter for the bus router,
//     publishers and subscribers
//
// Always terminate event chains with Msg or Send; an unterminated chain is
// never written.
package logging
