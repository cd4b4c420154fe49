// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

/*
Command dialogsync keeps the dialog registry in step with instance activity.

It polls the instance source once per organization for recently changed
instances, turns each into an InstanceChangeEvent and pushes it through a
bounded work channel to a pool of consumers that publish to the sync
transport (NATS JetStream). Historical backfills are triggered over HTTP: the
migration planner splits a day range into (day, organization) partitions,
checkpoints them and enqueues them, and the partition expander turns each
partition into events for every instance created on that day.

# Supervisor Tree

	dialogsync
	├── pipeline-layer
	│   └── consumer-pool
	├── ingest-layer
	│   ├── stream-manager   (STREAM_ENABLED)
	│   └── bus-router       (MIGRATION_ENABLED or in-process bus)
	└── api-layer
	    └── http-server

Initialization order:

 1. Configuration: koanf v2 with defaults, optional YAML file, environment
 2. Logging: zerolog with JSON or console output
 3. Organization directory: DIRECTORY_URL or the static ORGANIZATIONS list
 4. Checkpoint store: DuckDB, Badger or in-memory
 5. Work channel and consumer pool
 6. Bus: NATS JetStream (optionally embedded) or in-process gochannel
 7. Update streams, migration planner and partition expander
 8. HTTP API and the supervisor tree

# Shutdown

SIGINT or SIGTERM cancels the root context. The consumer pool closes the work
channel, which stops producers and in-flight migration enqueues, then drains
buffered items within three quarters of SUPERVISOR_SHUTDOWN_TIMEOUT before
canceling the remaining handlers.
*/
package main
