// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package migration

import (
	"context"
	"fmt"

	"github.com/tomtom215/dialogsync/internal/logging"
	"github.com/tomtom215/dialogsync/internal/metrics"
	"github.com/tomtom215/dialogsync/internal/models"
)

// CreatedInstanceSource lists the instances created on a day.
type CreatedInstanceSource interface {
	ListCreatedInstances(ctx context.Context, org string, day models.Day, partyFilter int64, pageToken string) (models.InstancePage, error)
}

// EventSender hands an instance event to the downstream sync transport.
type EventSender interface {
	SendInstanceChange(ctx context.Context, evt models.InstanceChangeEvent) error
}

// Expander turns a PartitionPlan into per-instance migration events.
type Expander struct {
	source CreatedInstanceSource
	sender EventSender
}

// NewExpander creates an expander.
func NewExpander(source CreatedInstanceSource, sender EventSender) *Expander {
	return &Expander{source: source, sender: sender}
}

// Expand pages through the partition's instances and sends one event per
// instance. Instances with a malformed key are logged and skipped. It
// returns the number of events sent; on error the partition is expanded
// again from the start by the caller's retry, which is safe because
// downstream handling is idempotent.
func (e *Expander) Expand(ctx context.Context, plan models.PartitionPlan) (sent int, err error) {
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		metrics.PartitionsExpanded.WithLabelValues(result).Inc()
	}()

	log := logging.Ctx(ctx).With().
		Str("organization", plan.Organization).
		Str("day", plan.Day.String()).
		Logger()

	pageToken := ""
	for {
		page, err := e.source.ListCreatedInstances(ctx, plan.Organization, plan.Day, plan.PartyFilter, pageToken)
		if err != nil {
			return sent, fmt.Errorf("list instances for %s: %w", plan.Key(), err)
		}

		for _, inst := range page.Instances {
			evt, err := models.NewInstanceChangeEvent(inst, true)
			if err != nil {
				metrics.StreamInvalidKeys.WithLabelValues("migration").Inc()
				log.Error().Err(err).Str("instance", inst.ID).Msg("Skipping instance with malformed key")
				continue
			}
			if err := e.sender.SendInstanceChange(ctx, evt); err != nil {
				return sent, fmt.Errorf("send instance %s: %w", inst.ID, err)
			}
			sent++
			metrics.MigrationInstances.Inc()
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	log.Info().Int("instances", sent).Bool("party_filter", plan.HasPartyFilter()).Msg("Partition expanded")
	return sent, nil
}
