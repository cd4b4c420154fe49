// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/dialogsync/internal/config"
	"github.com/tomtom215/dialogsync/internal/logging"
)

// inProcessBuffer is the per-subscriber buffer of the in-process bus.
const inProcessBuffer = 256

// Bus owns the publisher, subscriber and, when embedded, the NATS server.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Topics     Topics
	InProcess  bool

	server *EmbeddedServer
	conn   *natsgo.Conn
}

// Open connects the bus described by cfg. With NATS disabled it returns an
// in-process gochannel bus.
func Open(ctx context.Context, cfg config.NATSConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	topics := TopicsFor(cfg)
	if !cfg.Enabled {
		return NewInProcess(topics, logger), nil
	}

	b := &Bus{Topics: topics}
	url := cfg.URL

	if cfg.EmbeddedServer {
		srv, err := StartEmbeddedServer(cfg)
		if err != nil {
			return nil, err
		}
		b.server = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Str("store_dir", cfg.StoreDir).Msg("Embedded NATS server started")
	}

	if err := b.connect(ctx, url, cfg, logger); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bus) connect(ctx context.Context, url string, cfg config.NATSConfig, logger watermill.LoggerAdapter) error {
	nc, err := natsgo.Connect(url, natsOptions("dialogsync-admin", logger)...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	b.conn = nc

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	streamCfg := StreamConfigFor(cfg, b.Topics)
	if err := EnsureStream(ctx, js, streamCfg); err != nil {
		return err
	}
	logging.Info().Str("stream", streamCfg.Name).Strs("subjects", streamCfg.Subjects).Msg("JetStream stream ready")

	if b.Publisher, err = NewNATSPublisher(url, logger); err != nil {
		return err
	}
	if b.Subscriber, err = NewNATSSubscriber(url, cfg, logger); err != nil {
		return err
	}
	return nil
}

// NewInProcess creates a bus backed by a Watermill gochannel. Messages
// never leave the process.
func NewInProcess(topics Topics, logger watermill.LoggerAdapter) *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: inProcessBuffer}, logger)
	return &Bus{
		Publisher:  ch,
		Subscriber: ch,
		Topics:     topics,
		InProcess:  true,
	}
}

// Healthy reports whether the bus can currently publish.
func (b *Bus) Healthy() bool {
	if b.InProcess {
		return true
	}
	if b.server != nil && !b.server.Running() {
		return false
	}
	return b.conn != nil && b.conn.IsConnected()
}

// Close releases every component, subscriber first. In-process buses share
// one gochannel for both sides and close it once.
func (b *Bus) Close() error {
	var errs []error
	if b.Subscriber != nil {
		errs = append(errs, b.Subscriber.Close())
	}
	if b.Publisher != nil && !b.InProcess {
		errs = append(errs, b.Publisher.Close())
	}
	if b.conn != nil {
		b.conn.Close()
	}
	if b.server != nil {
		b.server.Shutdown()
	}
	return errors.Join(errs...)
}
