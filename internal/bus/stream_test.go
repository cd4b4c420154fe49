// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package bus

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/dialogsync/internal/config"
)

type fakeJetStream struct {
	streamErr error
	createErr error
	created   []jetstream.StreamConfig
	updated   []jetstream.StreamConfig
}

func (f *fakeJetStream) Stream(context.Context, string) (jetstream.Stream, error) {
	return nil, f.streamErr
}

func (f *fakeJetStream) CreateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.created = append(f.created, cfg)
	return nil, f.createErr
}

func (f *fakeJetStream) UpdateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.updated = append(f.updated, cfg)
	return nil, nil
}

func testStreamConfig() jetstream.StreamConfig {
	cfg := config.NATSConfig{
		StreamName:      "DIALOG_SYNC",
		SubjectPrefix:   "dialogsync",
		RetentionDays:   7,
		DuplicateWindow: 2 * time.Minute,
	}
	return StreamConfigFor(cfg, TopicsFor(cfg))
}

func TestStreamConfigFor(t *testing.T) {
	sc := testStreamConfig()
	if sc.Name != "DIALOG_SYNC" {
		t.Errorf("Name = %q", sc.Name)
	}
	if !slices.Equal(sc.Subjects, []string{"dialogsync.>"}) {
		t.Errorf("Subjects = %v", sc.Subjects)
	}
	if sc.MaxAge != 7*24*time.Hour {
		t.Errorf("MaxAge = %v", sc.MaxAge)
	}
	if sc.Storage != jetstream.FileStorage || sc.Retention != jetstream.LimitsPolicy {
		t.Errorf("Storage = %v, Retention = %v", sc.Storage, sc.Retention)
	}
}

func TestEnsureStream(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a missing stream", func(t *testing.T) {
		js := &fakeJetStream{streamErr: jetstream.ErrStreamNotFound}
		if err := EnsureStream(ctx, js, testStreamConfig()); err != nil {
			t.Fatalf("EnsureStream() error = %v", err)
		}
		if len(js.created) != 1 || len(js.updated) != 0 {
			t.Errorf("created %d, updated %d; want 1, 0", len(js.created), len(js.updated))
		}
	})

	t.Run("updates an existing stream", func(t *testing.T) {
		js := &fakeJetStream{}
		if err := EnsureStream(ctx, js, testStreamConfig()); err != nil {
			t.Fatalf("EnsureStream() error = %v", err)
		}
		if len(js.created) != 0 || len(js.updated) != 1 {
			t.Errorf("created %d, updated %d; want 0, 1", len(js.created), len(js.updated))
		}
	})

	t.Run("propagates lookup failures", func(t *testing.T) {
		boom := errors.New("jetstream unavailable")
		js := &fakeJetStream{streamErr: boom}
		if err := EnsureStream(ctx, js, testStreamConfig()); !errors.Is(err, boom) {
			t.Errorf("EnsureStream() error = %v, want %v", err, boom)
		}
		if len(js.created)+len(js.updated) != 0 {
			t.Error("EnsureStream() modified streams after a lookup failure")
		}
	})

	t.Run("propagates create failures", func(t *testing.T) {
		boom := errors.New("insufficient resources")
		js := &fakeJetStream{streamErr: jetstream.ErrStreamNotFound, createErr: boom}
		if err := EnsureStream(ctx, js, testStreamConfig()); !errors.Is(err, boom) {
			t.Errorf("EnsureStream() error = %v, want %v", err, boom)
		}
	})
}
