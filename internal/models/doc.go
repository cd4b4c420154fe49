// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

/*
Package models defines the work items and partition types shared by the
pipeline, the update stream producers and the migration planner.

# Work Items

WorkItem is a closed sum type with two variants:

  - InstanceChangeEvent: one instance to synchronize downstream
  - PartitionPlan: one (Day, Organization) slice of a migration

Both are value types. Producers build them, the channel moves them and the
consumer pool dispatches on them with a type switch:

	switch item := item.(type) {
	case models.InstanceChangeEvent:
	    // forward to the sync transport
	case models.PartitionPlan:
	    // hand to the partition expander
	}

# Instance Keys

The instance source identifies instances by a composite "{partyId}/{instanceId}"
key. ParseInstanceKey splits it into the numeric party id and the instance UUID
and rejects anything else with ErrInvalidInstanceKey.
*/
package models
