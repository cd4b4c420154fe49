// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/dialogsync/internal/config"
	"github.com/tomtom215/dialogsync/internal/logging"
	"github.com/tomtom215/dialogsync/internal/supervisor"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: os.Stderr,
	})

	logging.Info().
		Str("environment", cfg.Environment).
		Int("workers", cfg.Pipeline.Workers).
		Int("channel_capacity", cfg.Pipeline.ChannelCapacity).
		Str("checkpoint_backend", cfg.Checkpoint.Backend).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Bool("stream_enabled", cfg.Stream.Enabled).
		Bool("migration_enabled", cfg.Migration.Enabled).
		Msg("Starting dialogsync")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := newApp(ctx, cfg)
	if err != nil {
		cancel()
		logging.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer app.Close()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	app.register(tree)

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Dialogsync stopped")
}
