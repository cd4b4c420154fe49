// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

/*
Package stream produces live InstanceChangeEvents, one polling loop per
organization.

Each Producer keeps an in-memory watermark and cycles through:

	Polling -> Emitting -> (Success | Failure) -> Backoff -> Polling

Polling lists instances whose created-or-last-changed time is at or after the
watermark. The bound is inclusive, so an instance changed exactly at the
watermark is emitted again on the next cycle; downstream handling is
idempotent and at-least-once delivery is the contract.

Emitting enqueues one event per instance, blocking while the work channel is
full. The watermark advances after each successful enqueue to the maximum of
its current value and the instance's last-changed time, so a crash mid-page
loses at most the items already emitted.

The watermark is never persisted. A restarted process begins at now minus the
configured lookback (10 minutes by default); changes older than that are
recovered with a migration.

Cancellation stops a producer cleanly: Run returns nil and nothing is logged
as a failure.

Manager runs one Producer per organization in the directory and reports
their watermarks for health checks.
*/
package stream
