// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

// Package directory caches the set of known organizations.
//
// The directory is read once at startup and treated as fixed for the
// lifetime of the process. The cache carries the time it was loaded so
// callers can report staleness.
package directory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ErrEmptyDirectory is returned when the source lists no organizations.
var ErrEmptyDirectory = errors.New("organization directory is empty")

// Source lists organization identifiers.
type Source interface {
	ListOrganizations(ctx context.Context) ([]string, error)
}

// StaticSource is a fixed organization list.
type StaticSource []string

// ListOrganizations implements Source.
func (s StaticSource) ListOrganizations(context.Context) ([]string, error) {
	return slices.Clone(s), nil
}

// Cache is an immutable snapshot of the organization directory.
type Cache struct {
	orgs     map[string]struct{}
	sorted   []string
	loadedAt time.Time
}

// Load reads the directory from src. An empty directory is an error: no
// stream can run and no migration can resolve without organizations.
func Load(ctx context.Context, src Source, now time.Time) (*Cache, error) {
	orgs, err := src.ListOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization directory: %w", err)
	}
	c := newCache(orgs, now)
	if c.Len() == 0 {
		return nil, ErrEmptyDirectory
	}
	return c, nil
}

// NewStatic builds a cache from a fixed list, loaded at now.
func NewStatic(orgs []string, now time.Time) *Cache {
	return newCache(orgs, now)
}

func newCache(orgs []string, now time.Time) *Cache {
	c := &Cache{orgs: make(map[string]struct{}, len(orgs)), loadedAt: now}
	for _, o := range orgs {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if _, dup := c.orgs[o]; dup {
			continue
		}
		c.orgs[o] = struct{}{}
		c.sorted = append(c.sorted, o)
	}
	slices.Sort(c.sorted)
	return c
}

// List returns the organizations in sorted order. The slice is a copy.
func (c *Cache) List() []string {
	return slices.Clone(c.sorted)
}

// Contains reports whether org is a known organization.
func (c *Cache) Contains(org string) bool {
	_, ok := c.orgs[org]
	return ok
}

// LoadedAt returns when the snapshot was taken.
func (c *Cache) LoadedAt() time.Time {
	return c.loadedAt
}

// Len returns the number of organizations.
func (c *Cache) Len() int {
	return len(c.sorted)
}
