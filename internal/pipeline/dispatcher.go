// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/dialogsync/internal/models"
)

// ErrUnhandledWorkItem is returned for a work item variant with no handler.
var ErrUnhandledWorkItem = errors.New("unhandled work item")

// InstanceChangeHandler processes instance change events.
type InstanceChangeHandler interface {
	HandleInstanceChange(ctx context.Context, evt models.InstanceChangeEvent) error
}

// PartitionPlanHandler processes migration partition plans.
type PartitionPlanHandler interface {
	HandlePartitionPlan(ctx context.Context, plan models.PartitionPlan) error
}

// Dispatcher routes each work item to the handler for its variant.
type Dispatcher struct {
	Instances  InstanceChangeHandler
	Partitions PartitionPlanHandler
}

// Handle implements Handler.
func (d *Dispatcher) Handle(ctx context.Context, item models.WorkItem) error {
	switch v := item.(type) {
	case models.InstanceChangeEvent:
		if d.Instances == nil {
			return fmt.Errorf("%w: %s", ErrUnhandledWorkItem, v.Kind())
		}
		return d.Instances.HandleInstanceChange(ctx, v)
	case models.PartitionPlan:
		if d.Partitions == nil {
			return fmt.Errorf("%w: %s", ErrUnhandledWorkItem, v.Kind())
		}
		return d.Partitions.HandlePartitionPlan(ctx, v)
	default:
		return fmt.Errorf("%w: %T", ErrUnhandledWorkItem, item)
	}
}
