// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package stream

import (
	"sync"
	"time"
)

// Watermark is a monotonically non-decreasing timestamp.
type Watermark struct {
	mu sync.RWMutex
	t  time.Time
}

// NewWatermark starts a watermark at t.
func NewWatermark(t time.Time) *Watermark {
	return &Watermark{t: t}
}

// Get returns the current value.
func (w *Watermark) Get() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.t
}

// Advance moves the watermark to t if t is later. It reports whether the
// value changed.
func (w *Watermark) Advance(t time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !t.After(w.t) {
		return false
	}
	w.t = t
	return true
}
