// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package checkpoint

import (
	"context"
	"fmt"
	"regexp"

	"github.com/tomtom215/dialogsync/internal/config"
	"github.com/tomtom215/dialogsync/internal/models"
)

// Backend names accepted by Open.
const (
	BackendDuckDB = "duckdb"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Store persists planned partitions.
type Store interface {
	// GetExisting returns the subset of keys that already have a record.
	GetExisting(ctx context.Context, keys []models.PartitionKey) (models.PartitionSet, error)

	// Upsert inserts records that do not exist yet. Existing records are
	// left untouched.
	Upsert(ctx context.Context, records []models.PartitionRecord) error

	Close() error
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// validateTableName guards identifiers that are interpolated into SQL or
// used as key prefixes.
func validateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid checkpoint table name %q", name)
	}
	return nil
}

// Open creates the store selected by cfg. The table name is derived from
// the prefix and the deployment environment.
func Open(ctx context.Context, cfg config.CheckpointConfig, environment string) (Store, error) {
	table := cfg.TableName(environment)

	switch cfg.Backend {
	case BackendDuckDB:
		return OpenDuckDB(ctx, cfg.Path, table)
	case BackendBadger:
		return OpenBadger(cfg.Path, table)
	case BackendMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}

// dedupe drops repeated partitions, keeping the first record of each.
func dedupe(records []models.PartitionRecord) []models.PartitionRecord {
	seen := make(models.PartitionSet, len(records))
	out := make([]models.PartitionRecord, 0, len(records))
	for _, r := range records {
		if seen.Has(r.Key()) {
			continue
		}
		seen.Add(r.Key())
		out = append(out, r)
	}
	return out
}
