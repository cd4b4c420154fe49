// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// WorkItemKind identifies the variant of a WorkItem.
type WorkItemKind string

const (
	KindInstanceChange WorkItemKind = "instance_change"
	KindPartitionPlan  WorkItemKind = "partition_plan"
)

// WorkItem is a unit of work carried by the pipeline channel.
// The set of variants is closed: only InstanceChangeEvent and PartitionPlan
// implement it. Consumers dispatch with a type switch.
type WorkItem interface {
	Kind() WorkItemKind
	workItem()
}

// InstanceChangeEvent signals that one instance must be (re)synchronized into
// the dialog registry. It is a value type and is never mutated after creation.
type InstanceChangeEvent struct {
	AppID       string    `json:"app_id"`
	PartyID     string    `json:"party_id"` // Numeric party id in decimal form
	InstanceID  uuid.UUID `json:"instance_id"`
	CreatedAt   time.Time `json:"created_at"`
	IsMigration bool      `json:"is_migration"`
}

func (InstanceChangeEvent) Kind() WorkItemKind { return KindInstanceChange }
func (InstanceChangeEvent) workItem()          {}

// PartitionPlan is one (Day, Organization) slice of a historical backfill.
type PartitionPlan struct {
	Day          Day    `json:"day"`
	Organization string `json:"organization"`
	PartyFilter  int64  `json:"party_filter,omitempty"` // 0 means no filter
}

func (PartitionPlan) Kind() WorkItemKind { return KindPartitionPlan }
func (PartitionPlan) workItem()          {}

// Key returns the checkpoint key of the plan.
func (p PartitionPlan) Key() PartitionKey {
	return PartitionKey{Day: p.Day, Organization: p.Organization}
}

// HasPartyFilter reports whether the plan is restricted to a single party.
func (p PartitionPlan) HasPartyFilter() bool {
	return p.PartyFilter != 0
}

// Instance is a record as returned by the instance source.
type Instance struct {
	ID          string    `json:"id"` // Composite "{partyId}/{instanceId}"
	AppID       string    `json:"appId"`
	Org         string    `json:"org"`
	CreatedAt   time.Time `json:"created"`
	LastChanged time.Time `json:"lastChanged"`
}

// InstancePage is one page of instance source results.
// An empty NextPageToken means there are no further pages.
type InstancePage struct {
	Instances     []Instance
	NextPageToken string
}

// NewInstanceChangeEvent builds the event for inst by parsing its composite
// key. A malformed key yields an error wrapping ErrInvalidInstanceKey.
func NewInstanceChangeEvent(inst Instance, isMigration bool) (InstanceChangeEvent, error) {
	partyID, instanceID, err := ParseInstanceKey(inst.ID)
	if err != nil {
		return InstanceChangeEvent{}, fmt.Errorf("instance of app %s: %w", inst.AppID, err)
	}
	return InstanceChangeEvent{
		AppID:       inst.AppID,
		PartyID:     strconv.FormatInt(partyID, 10),
		InstanceID:  instanceID,
		CreatedAt:   inst.CreatedAt,
		IsMigration: isMigration,
	}, nil
}
