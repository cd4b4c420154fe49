// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/dialogsync/internal/directory"
	"github.com/tomtom215/dialogsync/internal/models"
	"github.com/tomtom215/dialogsync/internal/pipeline"
)

var baseTime = time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)

// scriptedSource returns one scripted response per call, then empty pages.
type scriptedSource struct {
	mu     sync.Mutex
	script []sourceResponse
	calls  []sourceCall
}

type sourceResponse struct {
	page models.InstancePage
	err  error
}

type sourceCall struct {
	org       string
	since     time.Time
	pageToken string
}

func (s *scriptedSource) ListChangedInstances(_ context.Context, org string, since time.Time, pageToken string) (models.InstancePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sourceCall{org: org, since: since, pageToken: pageToken})
	if len(s.script) == 0 {
		return models.InstancePage{}, nil
	}
	r := s.script[0]
	s.script = s.script[1:]
	return r.page, r.err
}

func (s *scriptedSource) Calls() []sourceCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sourceCall(nil), s.calls...)
}

func instance(lastChanged time.Time) models.Instance {
	return models.Instance{
		ID:          models.FormatInstanceKey(50001, uuid.New()),
		AppID:       "ttd/app",
		Org:         "ttd",
		CreatedAt:   lastChanged.Add(-time.Hour),
		LastChanged: lastChanged,
	}
}

func page(next string, instances ...models.Instance) sourceResponse {
	return sourceResponse{page: models.InstancePage{Instances: instances, NextPageToken: next}}
}

func testConfig() Config {
	return Config{
		PollInterval: time.Millisecond,
		Backoff:      time.Millisecond,
		Lookback:     10 * time.Minute,
		Now:          func() time.Time { return baseTime },
	}
}

// drain collects n items from ch or fails after a timeout.
func drain(t *testing.T, ch *pipeline.Channel[models.WorkItem], n int) []models.WorkItem {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	items := make([]models.WorkItem, 0, n)
	for len(items) < n {
		item, ok, err := ch.Dequeue(ctx)
		if err != nil || !ok {
			t.Fatalf("Dequeue() after %d items: ok=%v err=%v", len(items), ok, err)
		}
		items = append(items, item)
	}
	return items
}

func TestProducer_InitialWatermarkIsLookback(t *testing.T) {
	p := NewProducer("ttd", &scriptedSource{}, pipeline.NewChannel[models.WorkItem](1), testConfig())
	if want := baseTime.Add(-10 * time.Minute); !p.Watermark().Equal(want) {
		t.Errorf("Watermark() = %v, want %v", p.Watermark(), want)
	}
	if p.State() != StateIdle {
		t.Errorf("State() = %v, want idle", p.State())
	}
}

func TestProducer_WatermarkMonotonic(t *testing.T) {
	t1 := baseTime.Add(1 * time.Minute)
	t2 := baseTime.Add(2 * time.Minute)
	t3 := baseTime.Add(3 * time.Minute)

	src := &scriptedSource{script: []sourceResponse{
		page("", instance(t2), instance(t1)), // out of order within a page
		page("", instance(t3)),
		page("", instance(t1)), // stale change re-reported
	}}
	ch := pipeline.NewChannel[models.WorkItem](0)
	p := NewProducer("ttd", src, ch, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	items := drain(t, ch, 4)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v, want nil on cancellation", err)
	}

	if !p.Watermark().Equal(t3) {
		t.Errorf("Watermark() = %v, want max last_changed %v", p.Watermark(), t3)
	}
	for i, item := range items {
		evt, ok := item.(models.InstanceChangeEvent)
		if !ok {
			t.Fatalf("item %d is %T, want InstanceChangeEvent", i, item)
		}
		if evt.IsMigration {
			t.Errorf("item %d IsMigration = true", i)
		}
		if evt.PartyID != "50001" {
			t.Errorf("item %d PartyID = %q", i, evt.PartyID)
		}
	}

	// Each poll starts from the watermark reached by the previous one.
	calls := src.Calls()
	if len(calls) < 3 {
		t.Fatalf("source called %d times, want at least 3", len(calls))
	}
	if want := baseTime.Add(-10 * time.Minute); !calls[0].since.Equal(want) {
		t.Errorf("first poll since = %v, want %v", calls[0].since, want)
	}
	if !calls[1].since.Equal(t2) {
		t.Errorf("second poll since = %v, want %v", calls[1].since, t2)
	}
	if !calls[2].since.Equal(t3) {
		t.Errorf("third poll since = %v, want %v", calls[2].since, t3)
	}
}

func TestProducer_RestartResumesFromLookback(t *testing.T) {
	src := &scriptedSource{script: []sourceResponse{page("", instance(baseTime.Add(time.Hour)))}}
	ch := pipeline.NewChannel[models.WorkItem](0)
	cfg := testConfig()

	first := NewProducer("ttd", src, ch, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- first.Run(ctx) }()
	drain(t, ch, 1)
	cancel()
	<-done

	restartAt := baseTime.Add(2 * time.Hour)
	cfg.Now = func() time.Time { return restartAt }
	second := NewProducer("ttd", src, ch, cfg)

	if want := restartAt.Add(-10 * time.Minute); !second.Watermark().Equal(want) {
		t.Errorf("restarted Watermark() = %v, want %v", second.Watermark(), want)
	}
}

func TestProducer_FollowsContinuationTokens(t *testing.T) {
	src := &scriptedSource{script: []sourceResponse{
		page("p2", instance(baseTime.Add(time.Minute))),
		page("", instance(baseTime.Add(2*time.Minute))),
	}}
	ch := pipeline.NewChannel[models.WorkItem](0)
	p := NewProducer("ttd", src, ch, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	drain(t, ch, 2)
	cancel()
	<-done

	calls := src.Calls()
	if calls[1].pageToken != "p2" {
		t.Errorf("second call pageToken = %q, want p2", calls[1].pageToken)
	}
	if !calls[1].since.Equal(calls[0].since) {
		t.Errorf("continuation changed since: %v -> %v", calls[0].since, calls[1].since)
	}
}

func TestProducer_SkipsMalformedKeys(t *testing.T) {
	bad := instance(baseTime.Add(5 * time.Minute))
	bad.ID = "abc/xyz"
	good := instance(baseTime.Add(time.Minute))

	src := &scriptedSource{script: []sourceResponse{page("", bad, good)}}
	ch := pipeline.NewChannel[models.WorkItem](0)
	p := NewProducer("ttd", src, ch, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	drain(t, ch, 1)
	cancel()
	<-done

	// The malformed item was never enqueued, so it does not move the watermark.
	if !p.Watermark().Equal(good.LastChanged) {
		t.Errorf("Watermark() = %v, want %v", p.Watermark(), good.LastChanged)
	}
}

func TestProducer_BacksOffAndRecovers(t *testing.T) {
	t1 := baseTime.Add(time.Minute)
	src := &scriptedSource{script: []sourceResponse{
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
		page("", instance(t1)),
	}}
	ch := pipeline.NewChannel[models.WorkItem](0)
	p := NewProducer("ttd", src, ch, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	drain(t, ch, 1)
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}

	calls := src.Calls()
	for i := 0; i < 3; i++ {
		if want := baseTime.Add(-10 * time.Minute); !calls[i].since.Equal(want) {
			t.Errorf("call %d since = %v, want unchanged %v", i, calls[i].since, want)
		}
	}
	if !p.Watermark().Equal(t1) {
		t.Errorf("Watermark() = %v, want %v", p.Watermark(), t1)
	}
}

func TestProducer_BackpressureHoldsWatermark(t *testing.T) {
	t1 := baseTime.Add(time.Minute)
	t2 := baseTime.Add(2 * time.Minute)
	src := &scriptedSource{script: []sourceResponse{page("", instance(t1), instance(t2))}}
	ch := pipeline.NewChannel[models.WorkItem](1)
	p := NewProducer("ttd", src, ch, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// First item fills the channel; the producer blocks on the second.
	deadline := time.Now().Add(5 * time.Second)
	for !p.Watermark().Equal(t1) {
		if time.Now().After(deadline) {
			t.Fatalf("watermark never reached %v", t1)
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if !p.Watermark().Equal(t1) {
		t.Fatalf("Watermark() = %v while blocked, want %v", p.Watermark(), t1)
	}
	if p.State() != StateEmitting {
		t.Errorf("State() = %v while blocked, want emitting", p.State())
	}

	drain(t, ch, 2)
	deadline = time.Now().Add(5 * time.Second)
	for !p.Watermark().Equal(t2) {
		if time.Now().After(deadline) {
			t.Fatalf("watermark never reached %v", t2)
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	<-done
}

func TestProducer_StopsWhenChannelClosed(t *testing.T) {
	ch := pipeline.NewChannel[models.WorkItem](0)
	ch.Close()
	src := &scriptedSource{script: []sourceResponse{page("", instance(baseTime))}}
	p := NewProducer("ttd", src, ch, testConfig())

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after the channel closed")
	}
	if p.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", p.State())
	}
}

func TestManager(t *testing.T) {
	t.Run("empty directory is fatal", func(t *testing.T) {
		_, err := NewManager(directory.NewStatic(nil, baseTime), &scriptedSource{}, pipeline.NewChannel[models.WorkItem](1), testConfig())
		if !errors.Is(err, directory.ErrEmptyDirectory) {
			t.Errorf("NewManager() error = %v, want ErrEmptyDirectory", err)
		}
	})

	t.Run("one producer per organization", func(t *testing.T) {
		src := &scriptedSource{}
		dir := directory.NewStatic([]string{"ttd", "digdir"}, baseTime)
		m, err := NewManager(dir, src, pipeline.NewChannel[models.WorkItem](0), testConfig())
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}

		status := m.Status()
		if len(status) != 2 || status[0].Organization != "digdir" || status[1].Organization != "ttd" {
			t.Fatalf("Status() = %+v", status)
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- m.Run(ctx) }()

		deadline := time.Now().Add(5 * time.Second)
		for {
			seen := map[string]bool{}
			for _, c := range src.Calls() {
				seen[c.org] = true
			}
			if seen["ttd"] && seen["digdir"] {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("not every organization was polled: %v", seen)
			}
			time.Sleep(time.Millisecond)
		}

		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	})
}

func TestWatermark_Advance(t *testing.T) {
	w := NewWatermark(baseTime)
	if w.Advance(baseTime.Add(-time.Second)) {
		t.Error("Advance to an earlier time reported a change")
	}
	if w.Advance(baseTime) {
		t.Error("Advance to the same time reported a change")
	}
	if !w.Advance(baseTime.Add(time.Second)) {
		t.Error("Advance to a later time reported no change")
	}
	if !w.Get().Equal(baseTime.Add(time.Second)) {
		t.Errorf("Get() = %v", w.Get())
	}
}
