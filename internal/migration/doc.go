// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

/*
Package migration backfills historical instances into the dialog registry.

A migration covers an inclusive day range and a set of organizations. The
Planner splits it into partitions, one per (day, organization), and enqueues
a PartitionPlan for each partition not planned before. The Expander later
turns each PartitionPlan into one InstanceChangeEvent per instance created on
that day.

Planning steps:

 1. Resolve organizations. An empty list means the whole directory. Any
    unknown name rejects the request before the checkpoint store or the work
    channel is touched.
 2. Build the cross product of days and organizations.
 3. Drop partitions that already have a checkpoint, unless Force is set or
    the request is a dry run.
 4. Record the remaining partitions in the checkpoint store, unless the
    request is a dry run.
 5. Enqueue one PartitionPlan per partition. Enqueues run concurrently, so
    plans reach the channel in no particular order.

A request with a party filter is a dry run: it neither reads nor writes
checkpoints, so it can be repeated while testing a single party.
*/
package migration
