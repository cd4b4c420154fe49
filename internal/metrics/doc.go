// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

/*
Package metrics exposes Prometheus instrumentation for the sync pipeline.

All collectors are registered on the default registry through promauto and are
served by the /metrics endpoint of the API server.

# Available Metrics

Pipeline:
  - dialogsync_channel_depth: buffered work items (gauge)
  - dialogsync_items_enqueued_total: accepted items (counter), labels: kind
  - dialogsync_items_processed_total: handled items (counter), labels: kind, result
  - dialogsync_handler_duration_seconds: handler latency (histogram), labels: kind

Update streams:
  - dialogsync_stream_watermark_timestamp: watermark per organization (gauge)
  - dialogsync_stream_items_emitted_total, dialogsync_stream_poll_failures_total
  - dialogsync_stream_invalid_keys_total: instances dropped on malformed keys

Migration:
  - dialogsync_partitions_planned_total: labels: mode
  - dialogsync_partitions_skipped_total
  - dialogsync_partitions_expanded_total, dialogsync_migration_instances_total

Infrastructure:
  - dialogsync_checkpoint_duration_seconds, dialogsync_checkpoint_errors_total
  - dialogsync_upstream_request_duration_seconds
  - dialogsync_bus_published_total, dialogsync_bus_consumed_total
  - dialogsync_circuit_breaker_state (0=closed, 1=half-open, 2=open)
  - dialogsync_http_requests_total, dialogsync_http_request_duration_seconds
*/
package metrics
