// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb driver

	"github.com/tomtom215/dialogsync/internal/logging"
	"github.com/tomtom215/dialogsync/internal/metrics"
	"github.com/tomtom215/dialogsync/internal/models"
)

// maxInListSize bounds the number of placeholders in one IN (...) lookup.
const maxInListSize = 500

// DuckDBStore stores partition records in a DuckDB table.
type DuckDBStore struct {
	db    *sql.DB
	table string
}

// OpenDuckDB opens the database file at path and prepares table.
// Use ":memory:" for a transient database.
func OpenDuckDB(ctx context.Context, path, table string) (*DuckDBStore, error) {
	// Extension autoloading can hang in restricted networks and is not needed here.
	connStr := path + "?autoinstall_known_extensions=false&autoload_known_extensions=false"

	db, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	store, err := NewDuckDBStore(ctx, db, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewDuckDBStore wraps an open database. The store takes ownership of db
// and closes it on Close.
func NewDuckDBStore(ctx context.Context, db *sql.DB, table string) (*DuckDBStore, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}

	s := &DuckDBStore{db: db, table: table}
	if err := s.CreateTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Table returns the table the store writes to.
func (s *DuckDBStore) Table() string {
	return s.table
}

// CreateTable creates the checkpoint table if it doesn't exist.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		day DATE NOT NULL,
		organization TEXT NOT NULL,
		planned_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (day, organization)
	)`, s.table)

	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create checkpoint table %s: %w", s.table, err)
	}

	logging.Info().Str("table", s.table).Msg("Checkpoint table created/verified")
	return nil
}

// GetExisting implements Store. Keys are looked up per organization in
// bounded IN lists so the primary key index serves every query.
func (s *DuckDBStore) GetExisting(ctx context.Context, keys []models.PartitionKey) (existing models.PartitionSet, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordCheckpoint(BackendDuckDB, "get_existing", time.Since(start), err)
	}()

	existing = make(models.PartitionSet)
	if len(keys) == 0 {
		return existing, nil
	}

	byOrg := make(map[string][]models.Day)
	var orgs []string
	for _, k := range keys {
		if _, ok := byOrg[k.Organization]; !ok {
			orgs = append(orgs, k.Organization)
		}
		byOrg[k.Organization] = append(byOrg[k.Organization], k.Day)
	}

	for _, org := range orgs {
		days := byOrg[org]
		for lo := 0; lo < len(days); lo += maxInListSize {
			hi := min(lo+maxInListSize, len(days))
			if err := s.lookup(ctx, org, days[lo:hi], existing); err != nil {
				return nil, err
			}
		}
	}
	return existing, nil
}

func (s *DuckDBStore) lookup(ctx context.Context, org string, days []models.Day, into models.PartitionSet) error {
	placeholders := make([]string, len(days))
	args := make([]any, 0, len(days)+1)
	args = append(args, org)
	for i, d := range days {
		placeholders[i] = "?::DATE"
		args = append(args, d.String())
	}

	query := fmt.Sprintf(
		`SELECT CAST(day AS VARCHAR) FROM %s WHERE organization = ? AND day IN (%s)`,
		s.table, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query checkpoints for %s: %w", org, err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		day, err := models.ParseDay(raw)
		if err != nil {
			return fmt.Errorf("invalid day in checkpoint table: %w", err)
		}
		into.Add(models.PartitionKey{Day: day, Organization: org})
	}
	return rows.Err()
}

// Upsert implements Store. All records are written in one transaction.
func (s *DuckDBStore) Upsert(ctx context.Context, records []models.PartitionRecord) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordCheckpoint(BackendDuckDB, "upsert", time.Since(start), err)
	}()

	records = dedupe(records)
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin checkpoint transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (day, organization, planned_at) VALUES (?::DATE, ?, ?)
		ON CONFLICT (day, organization) DO NOTHING`, s.table))
	if err != nil {
		return fmt.Errorf("failed to prepare checkpoint insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err = stmt.ExecContext(ctx, r.Day.String(), r.Organization, r.PlannedAt.UTC()); err != nil {
			return fmt.Errorf("failed to insert checkpoint %s: %w", r.Key(), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoints: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}
