// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/dialogsync/internal/metrics"
	"github.com/tomtom215/dialogsync/internal/models"
)

// badgerBatchSize bounds the writes per transaction to stay under
// badger's transaction size limit.
const badgerBatchSize = 1000

// BadgerStore stores partition records as keys in BadgerDB.
//
// Key layout: <table>/partition/<organization>/<YYYY-MM-DD>
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

// OpenBadger opens (or creates) a BadgerDB in dir.
func OpenBadger(dir, table string) (*BadgerStore, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for checkpoints: %w", err)
	}
	return &BadgerStore{db: db, prefix: table + "/partition/"}, nil
}

// NewBadgerStore wraps an open database. The store takes ownership of db.
func NewBadgerStore(db *badger.DB, table string) (*BadgerStore, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, prefix: table + "/partition/"}, nil
}

func (s *BadgerStore) key(k models.PartitionKey) []byte {
	return []byte(s.prefix + k.Organization + "/" + k.Day.String())
}

// GetExisting implements Store with one point lookup per key.
func (s *BadgerStore) GetExisting(ctx context.Context, keys []models.PartitionKey) (existing models.PartitionSet, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordCheckpoint(BackendBadger, "get_existing", time.Since(start), err)
	}()

	existing = make(models.PartitionSet)
	err = s.db.View(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := txn.Get(s.key(k))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get checkpoint %s: %w", k, err)
			}
			existing.Add(k)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// Upsert implements Store. Records are written only when absent, so the
// original planned_at survives repeated plans.
func (s *BadgerStore) Upsert(ctx context.Context, records []models.PartitionRecord) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordCheckpoint(BackendBadger, "upsert", time.Since(start), err)
	}()

	records = dedupe(records)
	for lo := 0; lo < len(records); lo += badgerBatchSize {
		if err = ctx.Err(); err != nil {
			return err
		}
		batch := records[lo:min(lo+badgerBatchSize, len(records))]
		if err = s.db.Update(func(txn *badger.Txn) error {
			return s.insertAbsent(txn, batch)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerStore) insertAbsent(txn *badger.Txn, records []models.PartitionRecord) error {
	for _, r := range records {
		key := s.key(r.Key())
		_, err := txn.Get(key)
		if err == nil {
			continue
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get checkpoint %s: %w", r.Key(), err)
		}

		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal checkpoint: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set checkpoint %s: %w", r.Key(), err)
		}
	}
	return nil
}

// Get returns the stored record for k.
func (s *BadgerStore) Get(k models.PartitionKey) (models.PartitionRecord, bool, error) {
	var rec models.PartitionRecord
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(k))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return models.PartitionRecord{}, false, fmt.Errorf("get checkpoint %s: %w", k, err)
	}
	return rec, found, nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
