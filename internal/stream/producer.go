// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tomtom215/dialogsync/internal/logging"
	"github.com/tomtom215/dialogsync/internal/metrics"
	"github.com/tomtom215/dialogsync/internal/models"
	"github.com/tomtom215/dialogsync/internal/pipeline"
)

// InstanceSource lists instances changed since a point in time.
type InstanceSource interface {
	ListChangedInstances(ctx context.Context, org string, since time.Time, pageToken string) (models.InstancePage, error)
}

// State is the phase a producer is in.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateEmitting
	StateBackoff
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateEmitting:
		return "emitting"
	case StateBackoff:
		return "backoff"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config tunes a producer.
type Config struct {
	// PollInterval is the wait after a successful cycle.
	PollInterval time.Duration

	// Backoff is the wait after a failed cycle.
	Backoff time.Duration

	// Lookback places the initial watermark this far before now.
	Lookback time.Duration

	// Now overrides the clock. Nil uses time.Now.
	Now func() time.Time
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		Backoff:      5 * time.Second,
		Lookback:     10 * time.Minute,
	}
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Producer polls the instance source for one organization and feeds the
// work channel.
type Producer struct {
	org       string
	source    InstanceSource
	ch        *pipeline.Channel[models.WorkItem]
	cfg       Config
	watermark *Watermark
	state     atomic.Int32
}

// NewProducer creates a producer whose watermark starts at now minus the
// configured lookback.
func NewProducer(org string, source InstanceSource, ch *pipeline.Channel[models.WorkItem], cfg Config) *Producer {
	p := &Producer{
		org:       org,
		source:    source,
		ch:        ch,
		cfg:       cfg,
		watermark: NewWatermark(cfg.now().Add(-cfg.Lookback)),
	}
	metrics.SetWatermark(org, p.watermark.Get())
	return p
}

// Organization returns the organization the producer polls.
func (p *Producer) Organization() string {
	return p.org
}

// Watermark returns the current watermark.
func (p *Producer) Watermark() time.Time {
	return p.watermark.Get()
}

// State returns the current phase.
func (p *Producer) State() State {
	return State(p.state.Load())
}

func (p *Producer) setState(s State) {
	p.state.Store(int32(s))
}

// String implements fmt.Stringer for supervisor logs.
func (p *Producer) String() string {
	return "stream-producer[" + p.org + "]"
}

// Run polls until ctx is canceled or the work channel is closed. Both are
// clean stops and return nil; Run never returns a poll failure.
func (p *Producer) Run(ctx context.Context) error {
	defer p.setState(StateStopped)

	log := logging.WithComponent("stream").With().Str("organization", p.org).Logger()
	log.Info().Time("watermark", p.Watermark()).Msg("Update stream starting")

	for {
		err := p.poll(ctx)

		if ctx.Err() != nil {
			log.Debug().Msg("Update stream canceled")
			return nil
		}
		if errors.Is(err, pipeline.ErrChannelClosed) {
			log.Info().Msg("Work channel closed, update stream stopping")
			return nil
		}

		wait := p.cfg.PollInterval
		if err != nil {
			metrics.StreamPollFailures.WithLabelValues(p.org).Inc()
			log.Warn().Err(err).
				Time("watermark", p.Watermark()).
				Dur("backoff", p.cfg.Backoff).
				Msg("Update stream poll failed")
			wait = p.cfg.Backoff
			p.setState(StateBackoff)
		} else {
			p.setState(StateIdle)
		}

		if !sleep(ctx, wait) {
			return nil
		}
	}
}

// poll runs one Polling/Emitting cycle, following continuation tokens until
// the listing is exhausted.
func (p *Producer) poll(ctx context.Context) error {
	since := p.Watermark()
	pageToken := ""

	for {
		p.setState(StatePolling)
		page, err := p.source.ListChangedInstances(ctx, p.org, since, pageToken)
		if err != nil {
			return fmt.Errorf("list changed instances: %w", err)
		}

		p.setState(StateEmitting)
		for _, inst := range page.Instances {
			if err := p.emit(ctx, inst); err != nil {
				return err
			}
		}

		if page.NextPageToken == "" {
			return nil
		}
		pageToken = page.NextPageToken
	}
}

func (p *Producer) emit(ctx context.Context, inst models.Instance) error {
	evt, err := models.NewInstanceChangeEvent(inst, false)
	if err != nil {
		metrics.StreamInvalidKeys.WithLabelValues("stream").Inc()
		logging.Error().Err(err).
			Str("organization", p.org).
			Str("instance", inst.ID).
			Msg("Skipping instance with malformed key")
		return nil
	}

	if err := p.ch.Enqueue(ctx, evt); err != nil {
		return err
	}
	metrics.RecordEnqueued(string(models.KindInstanceChange))
	metrics.StreamItemsEmitted.WithLabelValues(p.org).Inc()

	if p.watermark.Advance(inst.LastChanged) {
		metrics.SetWatermark(p.org, inst.LastChanged)
	}
	return nil
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
