// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Metrics
	ChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dialogsync_channel_depth",
			Help: "Number of work items buffered in the pipeline channel",
		},
	)

	ItemsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogsync_items_enqueued_total",
			Help: "Total number of work items accepted by the pipeline channel",
		},
		[]string{"kind"}, // "instance_change", "partition_plan"
	)

	ItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogsync_items_processed_total",
			Help: "Total number of work items handled by the consumer pool",
		},
		[]string{"kind", "result"}, // result: "success", "failure", "canceled"
	)

	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialogsync_handler_duration_seconds",
			Help:    "Time spent handling one work item",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Update Stream Metrics
	StreamWatermark = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dialogsync_stream_watermark_timestamp",
			Help: "Unix timestamp of the newest last-changed time seen per organization",
		},
		[]string{"organization"},
	)

	StreamItemsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogsync_stream_items_emitted_total",
			Help: "Total number of instance change events emitted by update streams",
		},
		[]string{"organization"},
	)

	StreamPollFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogsync_stream_poll_failures_total",
			Help: "Total number of failed update stream polls",
		},
		[]string{"organization"},
	)

	StreamInvalidKeys = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogsync_stream_invalid_keys_total",
			Help: "Total number of instances dropped because their composite key did not parse",
		},
		[]string{"source"}, // "stream", "migration"
	)

	// Migration Metrics
	PartitionsPlanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogsync_partitions_planned_total",
			Help: "Total number of partition plans enqueued",
		},
		[]string{"mode"}, // "normal", "forced", "dry_run"
	)

	PartitionsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dialogsync_partitions_skipped_total",
			Help: "Total number of partitions skipped because they were already planned",
		},
	)

	PartitionsExpanded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogsync_partitions_expanded_total",
			Help: "Total number of partition plans expanded into instance events",
		},
		[]string{"result"},
	)

	MigrationInstances = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dialogsync_migration_instances_total",
			Help: "Total number of instance events emitted by partition expansion",
		},
	)

	// Checkpoint Store Metrics
	CheckpointDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialogsync_checkpoint_duration_seconds",
			Help:    "Duration of checkpoint store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	CheckpointErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogsync_checkpoint_errors_total",
			Help: "Total number of failed checkpoint store operations",
		},
		[]string{"backend", "operation"},
	)

	// Upstream Metrics
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialogsync_upstream_request_duration_seconds",
			Help:    "Duration of requests to the instance source and organization directory",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status"},
	)

	// Bus Metrics
	BusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogsync_bus_published_total",
			Help: "Total number of messages published to the sync transport",
		},
		[]string{"topic", "result"},
	)

	BusConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogsync_bus_consumed_total",
			Help: "Total number of messages consumed from the sync transport",
		},
		[]string{"topic", "result"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dialogsync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogsync_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogsync_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogsync_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialogsync_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "route"},
	)
)

// RecordEnqueued counts one work item accepted by the channel.
func RecordEnqueued(kind string) {
	ItemsEnqueued.WithLabelValues(kind).Inc()
}

// RecordCheckpoint records a checkpoint store operation.
func RecordCheckpoint(backend, operation string, duration time.Duration, err error) {
	CheckpointDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if err != nil {
		CheckpointErrors.WithLabelValues(backend, operation).Inc()
	}
}

// RecordPublish records a bus publish attempt.
func RecordPublish(topic string, err error) {
	BusPublished.WithLabelValues(topic, resultLabel(err)).Inc()
}

// RecordConsume records the outcome of handling one consumed message.
func RecordConsume(topic string, err error) {
	BusConsumed.WithLabelValues(topic, resultLabel(err)).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetWatermark publishes the current watermark of an organization's stream.
func SetWatermark(organization string, t time.Time) {
	StreamWatermark.WithLabelValues(organization).Set(float64(t.Unix()))
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
