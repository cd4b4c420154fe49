// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dialogsync/internal/logging"
	"github.com/tomtom215/dialogsync/internal/migration"
	"github.com/tomtom215/dialogsync/internal/models"
	"github.com/tomtom215/dialogsync/internal/pipeline"
	"github.com/tomtom215/dialogsync/internal/validation"
)

const maxMigrationBodyBytes = 1 << 20

// MigrationRequest is the body of POST /api/v1/migrations.
type MigrationRequest struct {
	From          string   `json:"from" validate:"required,day"`
	To            string   `json:"to" validate:"required,day"`
	Organizations []string `json:"organizations" validate:"omitempty,max=1000,dive,organization"`
	Party         int64    `json:"party" validate:"min=0"`
	Force         bool     `json:"force"`
}

// UnknownOrganizationsDetails is the error detail for rejected organizations.
type UnknownOrganizationsDetails struct {
	Invalid []string `json:"invalid"`
	Valid   []string `json:"valid"`
}

// toPlannerRequest converts a validated request. Dates were checked by the
// day tag so parse failures here are programming errors.
func (m MigrationRequest) toPlannerRequest() (migration.Request, error) {
	from, err := models.ParseDay(m.From)
	if err != nil {
		return migration.Request{}, err
	}
	to, err := models.ParseDay(m.To)
	if err != nil {
		return migration.Request{}, err
	}
	return migration.Request{
		From:          from,
		To:            to,
		Organizations: m.Organizations,
		PartyFilter:   m.Party,
		Force:         m.Force,
	}, nil
}

// TriggerMigration plans a backfill and hands the partitions to the pipeline.
func (h *Handler) TriggerMigration(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var body MigrationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMigrationBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		rw.BadRequest("Invalid JSON request body")
		return
	}

	if verr := validation.ValidateStruct(&body); verr != nil {
		rw.ValidationError("Invalid migration request", verr.Fields)
		return
	}

	req, err := body.toPlannerRequest()
	if err != nil {
		rw.ValidationError("Invalid migration request", err.Error())
		return
	}

	// Detached so a client disconnect cannot leave checkpoints persisted
	// without their partitions enqueued. Shutdown closes the channel instead.
	ctx := context.WithoutCancel(r.Context())

	result, err := h.deps.Planner.Plan(ctx, req)
	if err != nil {
		h.respondPlanError(rw, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("from", req.From.String()).
		Str("to", req.To.String()).
		Int("organizations", len(result.Organizations)).
		Int("partitions", result.Partitions).
		Int("skipped", result.Skipped).
		Bool("dry_run", result.DryRun).
		Bool("force", req.Force).
		Msg("Migration accepted")

	rw.Accepted(result)
}

func (h *Handler) respondPlanError(rw *ResponseWriter, r *http.Request, err error) {
	var unknown *migration.UnknownOrganizationsError
	switch {
	case errors.As(err, &unknown):
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeUnknownOrganization, "Unknown organizations",
			UnknownOrganizationsDetails{Invalid: unknown.Invalid, Valid: unknown.Valid})
	case errors.Is(err, migration.ErrInvalidRange):
		rw.Error(http.StatusBadRequest, ErrCodeInvalidRange, err.Error())
	case errors.Is(err, pipeline.ErrChannelClosed):
		rw.ServiceUnavailable("Pipeline is shutting down")
	default:
		rw.InternalError("Migration planning failed", err)
	}
}
