// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/dialogsync/internal/metrics"
	"github.com/tomtom215/dialogsync/internal/models"
)

// MemoryStore keeps partition records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[models.PartitionKey]models.PartitionRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[models.PartitionKey]models.PartitionRecord)}
}

// GetExisting implements Store.
func (s *MemoryStore) GetExisting(ctx context.Context, keys []models.PartitionKey) (models.PartitionSet, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	existing := make(models.PartitionSet)
	for _, k := range keys {
		if _, ok := s.records[k]; ok {
			existing.Add(k)
		}
	}
	metrics.RecordCheckpoint(BackendMemory, "get_existing", time.Since(start), nil)
	return existing, nil
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(ctx context.Context, records []models.PartitionRecord) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if _, ok := s.records[r.Key()]; !ok {
			s.records[r.Key()] = r
		}
	}
	metrics.RecordCheckpoint(BackendMemory, "upsert", time.Since(start), nil)
	return nil
}

// Get returns the stored record for k.
func (s *MemoryStore) Get(k models.PartitionKey) (models.PartitionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[k]
	return r, ok
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
