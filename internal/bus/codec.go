// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package bus

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/dialogsync/internal/models"
)

// ErrInvalidPayload is returned for messages that decode but are incomplete.
var ErrInvalidPayload = errors.New("invalid message payload")

// EncodeInstanceChange serializes an event for the instance topic.
func EncodeInstanceChange(evt models.InstanceChangeEvent) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal instance change: %w", err)
	}
	return data, nil
}

// DecodeInstanceChange parses an instance topic payload.
func DecodeInstanceChange(data []byte) (models.InstanceChangeEvent, error) {
	var evt models.InstanceChangeEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return models.InstanceChangeEvent{}, fmt.Errorf("unmarshal instance change: %w", err)
	}
	if evt.InstanceID == uuid.Nil || evt.PartyID == "" {
		return models.InstanceChangeEvent{}, fmt.Errorf("%w: instance change without party or instance id", ErrInvalidPayload)
	}
	return evt, nil
}

// EncodePartitionPlan serializes a plan for the partition topic.
func EncodePartitionPlan(plan models.PartitionPlan) ([]byte, error) {
	data, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("marshal partition plan: %w", err)
	}
	return data, nil
}

// DecodePartitionPlan parses a partition topic payload.
func DecodePartitionPlan(data []byte) (models.PartitionPlan, error) {
	var plan models.PartitionPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return models.PartitionPlan{}, fmt.Errorf("unmarshal partition plan: %w", err)
	}
	if plan.Day.IsZero() || plan.Organization == "" {
		return models.PartitionPlan{}, fmt.Errorf("%w: partition plan without day or organization", ErrInvalidPayload)
	}
	return plan, nil
}
