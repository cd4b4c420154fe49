// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package models

import "time"

// PartitionKey identifies a migration partition.
type PartitionKey struct {
	Day          Day    `json:"day"`
	Organization string `json:"organization"`
}

func (k PartitionKey) String() string {
	return k.Organization + "@" + k.Day.String()
}

// PartitionRecord marks a partition as planned. Records are append-only:
// once written they are never updated or deleted.
type PartitionRecord struct {
	Day          Day       `json:"day"`
	Organization string    `json:"organization"`
	PlannedAt    time.Time `json:"planned_at"`
}

// Key returns the partition the record marks.
func (r PartitionRecord) Key() PartitionKey {
	return PartitionKey{Day: r.Day, Organization: r.Organization}
}

// PartitionSet is a set of partition keys.
type PartitionSet map[PartitionKey]struct{}

// Has reports whether k is in the set.
func (s PartitionSet) Has(k PartitionKey) bool {
	_, ok := s[k]
	return ok
}

// Add inserts k.
func (s PartitionSet) Add(k PartitionKey) {
	s[k] = struct{}{}
}
