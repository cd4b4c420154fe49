// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/dialogsync/internal/config"
	"github.com/tomtom215/dialogsync/internal/logging"
	"github.com/tomtom215/dialogsync/internal/metrics"
	"github.com/tomtom215/dialogsync/internal/models"
)

// RouterConfig holds configuration for the Watermill Router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for handlers to finish when closing.
	CloseTimeout time.Duration

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// PoisonQueueTopic receives messages that still fail after retries.
	// Empty disables the poison queue.
	PoisonQueueTopic string
}

// RouterConfigFor derives router settings from the NATS configuration.
func RouterConfigFor(cfg config.NATSConfig, topics Topics) RouterConfig {
	return RouterConfig{
		CloseTimeout:         cfg.CloseTimeout,
		RetryMaxRetries:      cfg.RouterRetryCount,
		RetryInitialInterval: cfg.RouterRetryInitialInterval,
		RetryMaxInterval:     time.Minute,
		RetryMultiplier:      2.0,
		PoisonQueueTopic:     topics.Poison,
	}
}

// PartitionExpander expands one partition plan.
type PartitionExpander interface {
	Expand(ctx context.Context, plan models.PartitionPlan) (int, error)
}

// Router wraps the Watermill Router with the middleware every handler
// shares: panic recovery, exponential retry and the poison queue.
type Router struct {
	router *message.Router
	logger watermill.LoggerAdapter
}

// NewRouter creates a router. poisonPub may be nil when the poison queue
// is disabled.
func NewRouter(cfg RouterConfig, poisonPub message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	// Outer to inner: poison queue sees the error left after all retries.
	if poisonPub != nil && cfg.PoisonQueueTopic != "" {
		poisonQueue, err := middleware.PoisonQueue(poisonPub, cfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poisonQueue)
	}

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware, middleware.Recoverer)

	return &Router{router: wmRouter, logger: logger}, nil
}

// AddExpanderHandler consumes partition plans from topic and expands them.
func (r *Router) AddExpanderHandler(topic string, sub message.Subscriber, exp PartitionExpander) {
	r.router.AddConsumerHandler("partition-expander", topic, sub, func(msg *message.Message) error {
		err := r.expand(msg, exp)
		metrics.RecordConsume(topic, err)
		return err
	})
}

func (r *Router) expand(msg *message.Message, exp PartitionExpander) error {
	plan, err := DecodePartitionPlan(msg.Payload)
	if err != nil {
		return fmt.Errorf("message %s: %w", msg.UUID, err)
	}

	ctx := msg.Context()
	if id := msg.Metadata.Get(MetadataCorrelationID); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}

	if _, err := exp.Expand(ctx, plan); err != nil {
		return fmt.Errorf("expand partition %s: %w", plan.Key(), err)
	}
	return nil
}

// AddLogSink consumes instance events from topic and logs them. It stands
// in for the dialog registry when the bus is in-process.
func (r *Router) AddLogSink(topic string, sub message.Subscriber) {
	r.router.AddConsumerHandler("instance-log-sink", topic, sub, func(msg *message.Message) error {
		evt, err := DecodeInstanceChange(msg.Payload)
		metrics.RecordConsume(topic, err)
		if err != nil {
			logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable instance event")
			return nil
		}
		logging.Debug().
			Str("app_id", evt.AppID).
			Str("party_id", evt.PartyID).
			Str("instance_id", evt.InstanceID.String()).
			Bool("is_migration", evt.IsMigration).
			Msg("Instance change delivered")
		return nil
	})
}

// Run starts the router and blocks until ctx is canceled or Close is
// called.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel closed once all handlers are subscribed.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// IsRunning reports whether the router is processing messages.
func (r *Router) IsRunning() bool {
	return r.router.IsRunning()
}

// Close stops the router, waiting up to CloseTimeout for in-flight
// handlers.
func (r *Router) Close() error {
	return r.router.Close()
}

// String implements fmt.Stringer for supervisor logs.
func (r *Router) String() string {
	return "bus-router"
}
