// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

/*
Package checkpoint records which migration partitions have already been
planned, so that repeated migration requests over overlapping ranges do not
enqueue the same (day, organization) partition twice.

Records are append-only. A record is written before its partition is
enqueued; a crash between the two leaves a partition marked as planned that
was never expanded. Operators recover from that with a forced migration.

# Backends

  - DuckDBStore: a SQL table named from the deployment environment,
    e.g. migration_partitions_production, keyed on (day, organization)
  - BadgerStore: an embedded key-value store, one key per partition
  - MemoryStore: process-local, for tests and single-shot runs

All backends answer GetExisting with work proportional to the number of
candidate keys, never to the size of the table.

# Usage

	store, err := checkpoint.Open(ctx, cfg.Checkpoint, cfg.Environment)
	if err != nil {
	    return err
	}
	defer store.Close()

	existing, err := store.GetExisting(ctx, candidates)
*/
package checkpoint
