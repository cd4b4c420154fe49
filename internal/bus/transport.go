// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/dialogsync/internal/breaker"
	"github.com/tomtom215/dialogsync/internal/logging"
	"github.com/tomtom215/dialogsync/internal/metrics"
	"github.com/tomtom215/dialogsync/internal/models"
)

// Metadata keys set on every published message.
const (
	MetadataKind          = "kind"
	MetadataOrganization  = "organization"
	MetadataCorrelationID = "correlation_id"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Transport publishes work items to the bus with circuit breaker
// protection. It implements the pipeline's per-variant handlers.
type Transport struct {
	pub    message.Publisher
	topics Topics
	cb     *gobreaker.CircuitBreaker[struct{}]

	mu     sync.RWMutex
	closed bool
}

// NewTransport creates a transport publishing through pub. The transport
// does not own pub.
func NewTransport(pub message.Publisher, topics Topics) *Transport {
	return &Transport{
		pub:    pub,
		topics: topics,
		cb:     breaker.New[struct{}](breaker.DefaultConfig("bus-publisher")),
	}
}

// SendInstanceChange publishes evt to the instance topic.
func (t *Transport) SendInstanceChange(ctx context.Context, evt models.InstanceChangeEvent) error {
	payload, err := EncodeInstanceChange(evt)
	if err != nil {
		return err
	}
	msg := t.newMessage(ctx, evt.Kind(), payload)
	return t.publish(t.topics.InstanceChange, msg)
}

// SendPartitionPlan publishes plan to the partition topic.
func (t *Transport) SendPartitionPlan(ctx context.Context, plan models.PartitionPlan) error {
	payload, err := EncodePartitionPlan(plan)
	if err != nil {
		return err
	}
	msg := t.newMessage(ctx, plan.Kind(), payload)
	msg.Metadata.Set(MetadataOrganization, plan.Organization)
	return t.publish(t.topics.PartitionPlan, msg)
}

// HandleInstanceChange implements pipeline.InstanceChangeHandler.
func (t *Transport) HandleInstanceChange(ctx context.Context, evt models.InstanceChangeEvent) error {
	return t.SendInstanceChange(ctx, evt)
}

// HandlePartitionPlan implements pipeline.PartitionPlanHandler.
func (t *Transport) HandlePartitionPlan(ctx context.Context, plan models.PartitionPlan) error {
	return t.SendPartitionPlan(ctx, plan)
}

func (t *Transport) newMessage(ctx context.Context, kind models.WorkItemKind, payload []byte) *message.Message {
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetadataKind, string(kind))
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(MetadataCorrelationID, id)
	}
	return msg
}

func (t *Transport) publish(topic string, msg *message.Message) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return ErrPublisherClosed
	}

	_, err := breaker.Execute(t.cb, func() (struct{}, error) {
		return struct{}{}, t.pub.Publish(topic, msg)
	})
	metrics.RecordPublish(topic, err)
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", msg.UUID, topic, err)
	}
	return nil
}

// Close rejects further sends. Close is idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
