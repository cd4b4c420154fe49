// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/dialogsync/internal/directory"
	"github.com/tomtom215/dialogsync/internal/migration"
	"github.com/tomtom215/dialogsync/internal/pipeline"
	"github.com/tomtom215/dialogsync/internal/stream"
)

// MigrationPlanner plans historical backfills.
type MigrationPlanner interface {
	Plan(ctx context.Context, req migration.Request) (migration.Result, error)
}

// PoolStatter reports consumer pool counters.
type PoolStatter interface {
	Stats() pipeline.PoolStats
}

// StreamStatter reports update stream state.
type StreamStatter interface {
	Status() []stream.ProducerStatus
}

// BusChecker reports transport health.
type BusChecker interface {
	Healthy() bool
}

// QueueLen reports the number of buffered work items.
type QueueLen interface {
	Len() int
	Cap() int
}

// Dependencies are the components the handlers read from. Planner, Streams
// and Bus may be nil when the corresponding feature is disabled.
type Dependencies struct {
	Directory *directory.Cache
	Planner   MigrationPlanner
	Pool      PoolStatter
	Queue     QueueLen
	Streams   StreamStatter
	Bus       BusChecker
}

// Handler serves the API endpoints.
type Handler struct {
	deps      Dependencies
	startTime time.Time
}

// NewHandler creates a Handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps, startTime: time.Now()}
}

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler    *Handler
	middleware MiddlewareConfig
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, cfg MiddlewareConfig) *Router {
	return &Router{handler: handler, middleware: cfg}
}

// Setup builds the route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(CorrelationID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestMetrics())

	r.Get("/health", router.handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(router.middleware))

		if router.handler.deps.Planner != nil {
			r.Post("/migrations", router.handler.TriggerMigration)
		}
	})

	return r
}
