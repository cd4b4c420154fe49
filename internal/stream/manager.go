// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package stream

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/dialogsync/internal/directory"
	"github.com/tomtom215/dialogsync/internal/logging"
	"github.com/tomtom215/dialogsync/internal/models"
	"github.com/tomtom215/dialogsync/internal/pipeline"
)

// ProducerStatus is a health snapshot of one producer.
type ProducerStatus struct {
	Organization string    `json:"organization"`
	State        string    `json:"state"`
	Watermark    time.Time `json:"watermark"`
}

// Manager runs one Producer per directory organization.
type Manager struct {
	producers []*Producer
}

// NewManager creates a producer for every organization in dir. An empty
// directory is a startup failure.
func NewManager(dir *directory.Cache, source InstanceSource, ch *pipeline.Channel[models.WorkItem], cfg Config) (*Manager, error) {
	if dir == nil || dir.Len() == 0 {
		return nil, directory.ErrEmptyDirectory
	}

	m := &Manager{}
	for _, org := range dir.List() {
		m.producers = append(m.producers, NewProducer(org, source, ch, cfg))
	}
	return m, nil
}

// Run starts every producer and blocks until all have stopped.
func (m *Manager) Run(ctx context.Context) error {
	logging.Info().Int("organizations", len(m.producers)).Msg("Starting update streams")

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range m.producers {
		g.Go(func() error {
			return p.Run(gctx)
		})
	}
	return g.Wait()
}

// String implements fmt.Stringer for supervisor logs.
func (m *Manager) String() string {
	return "stream-manager"
}

// Producers returns the managed producers.
func (m *Manager) Producers() []*Producer {
	return m.producers
}

// Status returns a snapshot of every producer, ordered by organization.
func (m *Manager) Status() []ProducerStatus {
	out := make([]ProducerStatus, 0, len(m.producers))
	for _, p := range m.producers {
		out = append(out, ProducerStatus{
			Organization: p.Organization(),
			State:        p.State().String(),
			Watermark:    p.Watermark(),
		})
	}
	return out
}
