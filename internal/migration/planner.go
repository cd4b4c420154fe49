// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package migration

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/dialogsync/internal/checkpoint"
	"github.com/tomtom215/dialogsync/internal/directory"
	"github.com/tomtom215/dialogsync/internal/logging"
	"github.com/tomtom215/dialogsync/internal/metrics"
	"github.com/tomtom215/dialogsync/internal/models"
	"github.com/tomtom215/dialogsync/internal/pipeline"
)

// DefaultMaxDays bounds the day range of a single request.
const DefaultMaxDays = 3660

// enqueueConcurrency bounds the goroutines blocked on a full channel.
const enqueueConcurrency = 64

var (
	// ErrUnknownOrganization is wrapped by UnknownOrganizationsError.
	ErrUnknownOrganization = errors.New("unknown organization")

	// ErrInvalidRange is returned for empty, reversed or oversized ranges.
	ErrInvalidRange = errors.New("invalid migration range")
)

// UnknownOrganizationsError lists the rejected names and the valid set.
type UnknownOrganizationsError struct {
	Invalid []string
	Valid   []string
}

func (e *UnknownOrganizationsError) Error() string {
	return fmt.Sprintf("unknown organizations [%s], valid organizations are [%s]",
		strings.Join(e.Invalid, ", "), strings.Join(e.Valid, ", "))
}

func (e *UnknownOrganizationsError) Unwrap() error {
	return ErrUnknownOrganization
}

// Request describes a migration.
type Request struct {
	From          models.Day `json:"from"`
	To            models.Day `json:"to"`
	Organizations []string   `json:"organizations,omitempty"`

	// PartyFilter restricts expansion to one instance owner. A nonzero
	// value makes the request a dry run.
	PartyFilter int64 `json:"party,omitempty"`

	// Force plans partitions even if they were planned before.
	Force bool `json:"force,omitempty"`
}

// DryRun reports whether the request bypasses the checkpoint store.
func (r Request) DryRun() bool {
	return r.PartyFilter != 0
}

func (r Request) mode() string {
	switch {
	case r.DryRun():
		return "dry_run"
	case r.Force:
		return "forced"
	default:
		return "normal"
	}
}

// Result summarizes a planning run.
type Result struct {
	Organizations []string `json:"organizations"`
	Days          int      `json:"days"`
	Candidates    int      `json:"candidates"`
	Skipped       int      `json:"skipped"`
	Partitions    int      `json:"partitions"`
	DryRun        bool     `json:"dry_run"`
}

// Planner turns migration requests into PartitionPlans.
type Planner struct {
	dir     *directory.Cache
	store   checkpoint.Store
	ch      *pipeline.Channel[models.WorkItem]
	maxDays int
	now     func() time.Time
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithMaxDays overrides DefaultMaxDays.
func WithMaxDays(n int) PlannerOption {
	return func(p *Planner) {
		if n > 0 {
			p.maxDays = n
		}
	}
}

// WithClock overrides the clock used for PlannedAt.
func WithClock(now func() time.Time) PlannerOption {
	return func(p *Planner) {
		p.now = now
	}
}

// NewPlanner creates a planner.
func NewPlanner(dir *directory.Cache, store checkpoint.Store, ch *pipeline.Channel[models.WorkItem], opts ...PlannerOption) *Planner {
	p := &Planner{
		dir:     dir,
		store:   store,
		ch:      ch,
		maxDays: DefaultMaxDays,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan runs a migration request. On an enqueue error the partitions already
// recorded stay recorded; rerun with Force to plan them again.
func (p *Planner) Plan(ctx context.Context, req Request) (Result, error) {
	days, err := p.days(req)
	if err != nil {
		return Result{}, err
	}
	orgs, err := p.resolve(req.Organizations)
	if err != nil {
		return Result{}, err
	}

	res := Result{Organizations: orgs, Days: len(days), DryRun: req.DryRun()}

	candidates := make([]models.PartitionKey, 0, len(days)*len(orgs))
	for _, d := range days {
		for _, org := range orgs {
			candidates = append(candidates, models.PartitionKey{Day: d, Organization: org})
		}
	}
	res.Candidates = len(candidates)

	pending := candidates
	if !req.Force && !req.DryRun() {
		existing, err := p.store.GetExisting(ctx, candidates)
		if err != nil {
			return res, fmt.Errorf("failed to read checkpoints: %w", err)
		}
		pending = slices.DeleteFunc(slices.Clone(candidates), existing.Has)
	}
	res.Skipped = len(candidates) - len(pending)

	if !req.DryRun() && len(pending) > 0 {
		plannedAt := p.now().UTC()
		records := make([]models.PartitionRecord, len(pending))
		for i, k := range pending {
			records[i] = models.PartitionRecord{Day: k.Day, Organization: k.Organization, PlannedAt: plannedAt}
		}
		if err := p.store.Upsert(ctx, records); err != nil {
			return res, fmt.Errorf("failed to record checkpoints: %w", err)
		}
	}

	if err := p.enqueue(ctx, pending, req.PartyFilter); err != nil {
		return res, err
	}
	res.Partitions = len(pending)

	metrics.PartitionsPlanned.WithLabelValues(req.mode()).Add(float64(res.Partitions))
	metrics.PartitionsSkipped.Add(float64(res.Skipped))

	logging.Ctx(ctx).Info().
		Str("from", req.From.String()).
		Str("to", req.To.String()).
		Strs("organizations", orgs).
		Int("partitions", res.Partitions).
		Int("skipped", res.Skipped).
		Bool("dry_run", res.DryRun).
		Bool("force", req.Force).
		Msg("Migration planned")

	return res, nil
}

func (p *Planner) days(req Request) ([]models.Day, error) {
	if req.From.IsZero() || req.To.IsZero() {
		return nil, fmt.Errorf("%w: from and to are required", ErrInvalidRange)
	}
	if req.To.Before(req.From) {
		return nil, fmt.Errorf("%w: to %s is before from %s", ErrInvalidRange, req.To, req.From)
	}
	days := models.DaysBetween(req.From, req.To)
	if len(days) > p.maxDays {
		return nil, fmt.Errorf("%w: %d days exceeds the limit of %d", ErrInvalidRange, len(days), p.maxDays)
	}
	return days, nil
}

// resolve validates requested organizations against the directory.
func (p *Planner) resolve(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return p.dir.List(), nil
	}

	var orgs, invalid []string
	seen := make(map[string]bool, len(requested))
	for _, org := range requested {
		if seen[org] {
			continue
		}
		seen[org] = true
		if p.dir.Contains(org) {
			orgs = append(orgs, org)
		} else {
			invalid = append(invalid, org)
		}
	}
	if len(invalid) > 0 {
		return nil, &UnknownOrganizationsError{Invalid: invalid, Valid: p.dir.List()}
	}
	slices.Sort(orgs)
	return orgs, nil
}

func (p *Planner) enqueue(ctx context.Context, keys []models.PartitionKey, partyFilter int64) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enqueueConcurrency)

	for _, k := range keys {
		plan := models.PartitionPlan{Day: k.Day, Organization: k.Organization, PartyFilter: partyFilter}
		g.Go(func() error {
			if err := p.ch.Enqueue(gctx, plan); err != nil {
				return fmt.Errorf("failed to enqueue partition %s: %w", plan.Key(), err)
			}
			metrics.RecordEnqueued(string(models.KindPartitionPlan))
			return nil
		})
	}
	return g.Wait()
}
