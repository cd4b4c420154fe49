// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/dialogsync/internal/api"
	"github.com/tomtom215/dialogsync/internal/bus"
	"github.com/tomtom215/dialogsync/internal/checkpoint"
	"github.com/tomtom215/dialogsync/internal/config"
	"github.com/tomtom215/dialogsync/internal/directory"
	"github.com/tomtom215/dialogsync/internal/logging"
	"github.com/tomtom215/dialogsync/internal/metrics"
	"github.com/tomtom215/dialogsync/internal/migration"
	"github.com/tomtom215/dialogsync/internal/models"
	"github.com/tomtom215/dialogsync/internal/pipeline"
	"github.com/tomtom215/dialogsync/internal/stream"
	"github.com/tomtom215/dialogsync/internal/supervisor"
	"github.com/tomtom215/dialogsync/internal/supervisor/services"
	"github.com/tomtom215/dialogsync/internal/upstream"
)

// app holds every long-lived component. Construction order follows the
// data flow: directory, store, channel, bus, consumers, producers, API.
type app struct {
	cfg *config.Config

	dir       *directory.Cache
	store     checkpoint.Store
	ch        *pipeline.Channel[models.WorkItem]
	bus       *bus.Bus
	transport *bus.Transport
	pool      *pipeline.Pool
	streams   *stream.Manager
	router    *bus.Router
	routed    bool
	server    *http.Server
}

func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	client := upstream.NewClient(cfg.Upstream, cfg.Directory.URL)

	var src directory.Source = directory.StaticSource(cfg.Directory.Organizations)
	if cfg.Directory.URL != "" {
		src = client
	}
	a.dir, err = directory.Load(ctx, src, time.Now())
	if err != nil {
		return a, fmt.Errorf("load organization directory: %w", err)
	}
	logging.Info().Int("organizations", a.dir.Len()).Strs("list", a.dir.List()).Msg("Organization directory loaded")

	a.store, err = checkpoint.Open(ctx, cfg.Checkpoint, cfg.Environment)
	if err != nil {
		return a, fmt.Errorf("open checkpoint store: %w", err)
	}

	a.ch = pipeline.NewChannel[models.WorkItem](cfg.Pipeline.ChannelCapacity, pipeline.WithDepthGauge(metrics.ChannelDepth))

	wmLogger := logging.NewWatermillAdapter()
	a.bus, err = bus.Open(ctx, cfg.NATS, wmLogger)
	if err != nil {
		return a, fmt.Errorf("open bus: %w", err)
	}
	if a.bus.InProcess {
		logging.Warn().Msg("NATS disabled, using the in-process bus; events do not leave this process")
	}
	a.transport = bus.NewTransport(a.bus.Publisher, a.bus.Topics)

	a.pool, err = pipeline.NewPool(a.ch, cfg.Pipeline.Workers, &pipeline.Dispatcher{
		Instances:  a.transport,
		Partitions: a.transport,
	})
	if err != nil {
		return a, err
	}

	if cfg.Stream.Enabled {
		a.streams, err = stream.NewManager(a.dir, client, a.ch, stream.Config{
			PollInterval: cfg.Stream.PollInterval,
			Backoff:      cfg.Stream.Backoff,
			Lookback:     cfg.Stream.Lookback,
		})
		if err != nil {
			return a, fmt.Errorf("create update streams: %w", err)
		}
	}

	a.router, err = bus.NewRouter(bus.RouterConfigFor(cfg.NATS, a.bus.Topics), a.bus.Publisher, wmLogger)
	if err != nil {
		return a, err
	}
	if cfg.Migration.Enabled {
		a.router.AddExpanderHandler(a.bus.Topics.PartitionPlan, a.bus.Subscriber, migration.NewExpander(client, a.transport))
		a.routed = true
	}
	if a.bus.InProcess {
		a.router.AddLogSink(a.bus.Topics.InstanceChange, a.bus.Subscriber)
		a.routed = true
	}

	deps := api.Dependencies{
		Directory: a.dir,
		Pool:      a.pool,
		Queue:     a.ch,
		Bus:       a.bus,
	}
	if a.streams != nil {
		deps.Streams = a.streams
	}
	if cfg.Migration.Enabled {
		deps.Planner = migration.NewPlanner(a.dir, a.store, a.ch, migration.WithMaxDays(cfg.Migration.MaxDays))
	}
	router := api.NewRouter(api.NewHandler(deps), api.MiddlewareConfig{
		RateLimitRequests: cfg.Server.RateLimitReqs,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
	})
	a.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	return a, nil
}

// register adds the services to their supervisor layers.
func (a *app) register(tree *supervisor.SupervisorTree) {
	// Drain must finish inside the supervisor's shutdown timeout.
	drain := a.cfg.Supervisor.ShutdownTimeout * 3 / 4
	tree.AddPipelineService(services.NewPoolService(a.pool, a.ch, drain))

	if a.streams != nil {
		tree.AddIngestService(services.NewStreamService(a.streams))
	}
	if a.routed {
		tree.AddIngestService(services.NewRouterService(a.router))
	}

	tree.AddAPIService(services.NewHTTPServerService(a.server, a.cfg.Server.Timeout))
}

// Close releases resources in reverse construction order.
func (a *app) Close() {
	var errs []error
	if a.transport != nil {
		errs = append(errs, a.transport.Close())
	}
	if a.bus != nil {
		errs = append(errs, a.bus.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		logging.Error().Err(err).Msg("Error releasing resources")
	}
}
