// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package checkpoint

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/dialogsync/internal/config"
	"github.com/tomtom215/dialogsync/internal/models"
)

const testTable = "migration_partitions_test"

func day(t *testing.T, s string) models.Day {
	t.Helper()
	d, err := models.ParseDay(s)
	if err != nil {
		t.Fatalf("ParseDay(%q) error = %v", s, err)
	}
	return d
}

func newDuckDBStore(t *testing.T) Store {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	store, err := NewDuckDBStore(context.Background(), db, testTable)
	if err != nil {
		_ = db.Close()
		t.Fatalf("NewDuckDBStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newBadgerStore(t *testing.T) Store {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("badger.Open() error = %v", err)
	}
	store, err := NewBadgerStore(db, testTable)
	if err != nil {
		_ = db.Close()
		t.Fatalf("NewBadgerStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newMemoryStore(t *testing.T) Store {
	t.Helper()
	return NewMemoryStore()
}

var backends = []struct {
	name string
	open func(t *testing.T) Store
}{
	{BackendMemory, newMemoryStore},
	{BackendDuckDB, newDuckDBStore},
	{BackendBadger, newBadgerStore},
}

func TestStore_GetExisting(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx := context.Background()
			now := time.Now()

			planned := []models.PartitionRecord{
				{Day: day(t, "2024-01-01"), Organization: "ttd", PlannedAt: now},
				{Day: day(t, "2024-01-02"), Organization: "ttd", PlannedAt: now},
				{Day: day(t, "2024-01-01"), Organization: "digdir", PlannedAt: now},
			}
			if err := store.Upsert(ctx, planned); err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}

			candidates := []models.PartitionKey{
				{Day: day(t, "2024-01-01"), Organization: "ttd"},
				{Day: day(t, "2024-01-03"), Organization: "ttd"},
				{Day: day(t, "2024-01-01"), Organization: "digdir"},
				{Day: day(t, "2024-01-02"), Organization: "digdir"},
				{Day: day(t, "2024-01-01"), Organization: "skd"},
			}
			existing, err := store.GetExisting(ctx, candidates)
			if err != nil {
				t.Fatalf("GetExisting() error = %v", err)
			}

			if len(existing) != 2 {
				t.Errorf("GetExisting() returned %d keys, want 2: %v", len(existing), existing)
			}
			for _, want := range []models.PartitionKey{candidates[0], candidates[2]} {
				if !existing.Has(want) {
					t.Errorf("GetExisting() missing %s", want)
				}
			}
			// Keys that were never requested are not reported.
			if existing.Has(models.PartitionKey{Day: day(t, "2024-01-02"), Organization: "ttd"}) {
				t.Error("GetExisting() reported a key outside the candidate set")
			}
		})
	}
}

func TestStore_EmptyInputs(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx := context.Background()

			if err := store.Upsert(ctx, nil); err != nil {
				t.Fatalf("Upsert(nil) error = %v", err)
			}
			existing, err := store.GetExisting(ctx, nil)
			if err != nil {
				t.Fatalf("GetExisting(nil) error = %v", err)
			}
			if len(existing) != 0 {
				t.Errorf("GetExisting(nil) = %v, want empty", existing)
			}
		})
	}
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx := context.Background()

			rec := models.PartitionRecord{Day: day(t, "2024-02-29"), Organization: "ttd", PlannedAt: time.Now()}

			// Duplicates in one batch and across batches must both be accepted.
			if err := store.Upsert(ctx, []models.PartitionRecord{rec, rec}); err != nil {
				t.Fatalf("first Upsert() error = %v", err)
			}
			if err := store.Upsert(ctx, []models.PartitionRecord{rec}); err != nil {
				t.Fatalf("second Upsert() error = %v", err)
			}

			existing, err := store.GetExisting(ctx, []models.PartitionKey{rec.Key()})
			if err != nil {
				t.Fatalf("GetExisting() error = %v", err)
			}
			if !existing.Has(rec.Key()) {
				t.Errorf("GetExisting() missing %s", rec.Key())
			}
		})
	}
}

func TestStore_ManyCandidates(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx := context.Background()

			days := models.DaysBetween(day(t, "2020-01-01"), day(t, "2022-12-31"))
			records := make([]models.PartitionRecord, 0, len(days)/2)
			keys := make([]models.PartitionKey, 0, len(days))
			for i, d := range days {
				keys = append(keys, models.PartitionKey{Day: d, Organization: "ttd"})
				if i%2 == 0 {
					records = append(records, models.PartitionRecord{Day: d, Organization: "ttd", PlannedAt: time.Now()})
				}
			}
			if err := store.Upsert(ctx, records); err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}

			existing, err := store.GetExisting(ctx, keys)
			if err != nil {
				t.Fatalf("GetExisting() error = %v", err)
			}
			if len(existing) != len(records) {
				t.Errorf("GetExisting() returned %d keys, want %d", len(existing), len(records))
			}
		})
	}
}

func TestMemoryStore_KeepsFirstRecord(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	rec := models.PartitionRecord{Day: day(t, "2024-01-01"), Organization: "ttd", PlannedAt: first}
	if err := store.Upsert(ctx, []models.PartitionRecord{rec}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	rec.PlannedAt = first.Add(time.Hour)
	if err := store.Upsert(ctx, []models.PartitionRecord{rec}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, ok := store.Get(rec.Key())
	if !ok {
		t.Fatal("Get() found no record")
	}
	if !got.PlannedAt.Equal(first) {
		t.Errorf("PlannedAt = %v, want %v", got.PlannedAt, first)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestBadgerStore_KeepsFirstRecord(t *testing.T) {
	store := newBadgerStore(t).(*BadgerStore)
	ctx := context.Background()
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	rec := models.PartitionRecord{Day: day(t, "2024-01-01"), Organization: "ttd", PlannedAt: first}
	if err := store.Upsert(ctx, []models.PartitionRecord{rec}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	rec.PlannedAt = first.Add(time.Hour)
	if err := store.Upsert(ctx, []models.PartitionRecord{rec}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, ok, err := store.Get(rec.Key())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() found no record")
	}
	if !got.PlannedAt.Equal(first) {
		t.Errorf("PlannedAt = %v, want %v", got.PlannedAt, first)
	}
}

func TestDuckDBStore_TablesAreIsolated(t *testing.T) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	prod, err := NewDuckDBStore(ctx, db, "migration_partitions_production")
	if err != nil {
		t.Fatalf("NewDuckDBStore(production) error = %v", err)
	}
	staging, err := NewDuckDBStore(ctx, db, "migration_partitions_staging")
	if err != nil {
		t.Fatalf("NewDuckDBStore(staging) error = %v", err)
	}

	rec := models.PartitionRecord{Day: day(t, "2024-03-01"), Organization: "ttd", PlannedAt: time.Now()}
	if err := prod.Upsert(ctx, []models.PartitionRecord{rec}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	existing, err := staging.GetExisting(ctx, []models.PartitionKey{rec.Key()})
	if err != nil {
		t.Fatalf("GetExisting() error = %v", err)
	}
	if len(existing) != 0 {
		t.Errorf("staging table sees production records: %v", existing)
	}
}

func TestNewDuckDBStore_RejectsUnsafeTableName(t *testing.T) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer db.Close()

	for _, name := range []string{"", "1partitions", "partitions; DROP TABLE x", "Partitions", "a-b"} {
		if _, err := NewDuckDBStore(context.Background(), db, name); err == nil {
			t.Errorf("NewDuckDBStore(%q) succeeded, want error", name)
		}
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := Open(ctx, config.CheckpointConfig{Backend: BackendMemory, TablePrefix: "p"}, "test")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer store.Close()
		if _, ok := store.(*MemoryStore); !ok {
			t.Errorf("Open() = %T, want *MemoryStore", store)
		}
	})

	t.Run("duckdb names the table from the environment", func(t *testing.T) {
		cfg := config.CheckpointConfig{Backend: BackendDuckDB, Path: ":memory:", TablePrefix: "migration_partitions"}
		store, err := Open(ctx, cfg, "Production")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer store.Close()
		duck, ok := store.(*DuckDBStore)
		if !ok {
			t.Fatalf("Open() = %T, want *DuckDBStore", store)
		}
		if duck.Table() != "migration_partitions_production" {
			t.Errorf("Table() = %q, want migration_partitions_production", duck.Table())
		}
	})

	t.Run("badger", func(t *testing.T) {
		cfg := config.CheckpointConfig{Backend: BackendBadger, Path: t.TempDir(), TablePrefix: "migration_partitions"}
		store, err := Open(ctx, cfg, "test")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer store.Close()
		if _, ok := store.(*BadgerStore); !ok {
			t.Errorf("Open() = %T, want *BadgerStore", store)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		if _, err := Open(ctx, config.CheckpointConfig{Backend: "postgres", TablePrefix: "p"}, "test"); err == nil {
			t.Error("Open() succeeded for unknown backend")
		}
	})
}
