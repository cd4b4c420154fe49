// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

/*
Package api provides the HTTP surface of dialogsync using the Chi router.

Routes:

	GET  /health              pipeline, stream and bus status
	GET  /metrics             Prometheus exposition
	POST /api/v1/migrations   plan a historical backfill (when migration is enabled)

# Migration Trigger

The request body names an inclusive day range and optionally a subset of
organizations, a party filter and a force flag:

	{"from": "2024-01-01", "to": "2024-01-31", "organizations": ["ttd"], "force": false}

A successful plan responds 202 Accepted with the planner result. Requests with
a non-zero party are dry runs: partitions are emitted but never checkpointed.
Unknown organizations are rejected with 400 and the response details list both
the rejected names and the valid set.

Planning runs detached from the request context. Once a plan has started
persisting checkpoints it runs to completion even if the client disconnects,
and only process shutdown (which closes the work channel) interrupts it.

# Middleware

Every request gets a correlation id (X-Request-ID is honored when present),
panic recovery and request metrics. The /api/v1 routes are rate limited per
client IP with go-chi/httprate.

All JSON responses use the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"timestamp": "...", "request_id": "..."}}
*/
package api
