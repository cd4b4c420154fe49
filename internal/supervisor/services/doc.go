// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

/*
Package services adapts dialogsync components to suture.Service.

Each wrapper depends on a small interface rather than the concrete type so
that it can be tested with fakes:

  - HTTPServerService: *http.Server with graceful shutdown
  - PoolService: *pipeline.Pool, closing and draining the work channel on shutdown
  - StreamService: *stream.Manager
  - RouterService: *bus.Router, never restarted after exit

Return values follow suture conventions. ctx.Err() after a requested shutdown,
a wrapped error to request a restart, and suture.ErrDoNotRestart for terminal
exits such as a closed work channel.
*/
package services
