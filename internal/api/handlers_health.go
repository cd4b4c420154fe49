// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/dialogsync/internal/pipeline"
	"github.com/tomtom215/dialogsync/internal/stream"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status        string                  `json:"status"`
	Uptime        float64                 `json:"uptime_seconds"`
	Organizations int                     `json:"organizations"`
	DirectoryAt   *time.Time              `json:"directory_loaded_at,omitempty"`
	QueueDepth    int                     `json:"queue_depth"`
	QueueCapacity int                     `json:"queue_capacity"`
	Pool          *pipeline.PoolStats     `json:"pool,omitempty"`
	Streams       []stream.ProducerStatus `json:"streams,omitempty"`
	BusConnected  bool                    `json:"bus_connected"`
	Migration     bool                    `json:"migration_enabled"`
}

// Health reports pipeline state. The service is degraded while the bus is
// disconnected because every handled item would fail.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:       "healthy",
		Uptime:       time.Since(h.startTime).Seconds(),
		BusConnected: h.deps.Bus == nil || h.deps.Bus.Healthy(),
		Migration:    h.deps.Planner != nil,
	}

	if dir := h.deps.Directory; dir != nil {
		health.Organizations = dir.Len()
		loadedAt := dir.LoadedAt()
		health.DirectoryAt = &loadedAt
	}
	if q := h.deps.Queue; q != nil {
		health.QueueDepth = q.Len()
		health.QueueCapacity = q.Cap()
	}
	if p := h.deps.Pool; p != nil {
		stats := p.Stats()
		health.Pool = &stats
	}
	if s := h.deps.Streams; s != nil {
		health.Streams = s.Status()
	}

	status := http.StatusOK
	if !health.BusConnected {
		health.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	NewResponseWriter(w, r).success(status, health)
}
