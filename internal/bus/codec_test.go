// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package bus

import (
	"errors"
	"slices"
	"testing"

	"github.com/tomtom215/dialogsync/internal/config"
)

func TestDecodePartitionPlan(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"valid", `{"day":"2024-05-17","organization":"ttd","party_filter":50001}`, nil},
		{"missing organization", `{"day":"2024-05-17"}`, ErrInvalidPayload},
		{"missing day", `{"organization":"ttd"}`, ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := DecodePartitionPlan([]byte(tt.payload))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DecodePartitionPlan() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (plan.Organization != "ttd" || plan.PartyFilter != 50001 || plan.Day.String() != "2024-05-17") {
				t.Errorf("DecodePartitionPlan() = %+v", plan)
			}
		})
	}

	if _, err := DecodePartitionPlan([]byte(`{"day":"17/05/2024","organization":"ttd"}`)); err == nil {
		t.Error("DecodePartitionPlan() accepted a malformed day")
	}
}

func TestDecodeInstanceChange(t *testing.T) {
	if _, err := DecodeInstanceChange([]byte(`{"app_id":"ttd/app"}`)); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("DecodeInstanceChange() error = %v, want ErrInvalidPayload", err)
	}
	if _, err := DecodeInstanceChange([]byte(`not json`)); err == nil {
		t.Error("DecodeInstanceChange() accepted invalid JSON")
	}
}

func TestTopics(t *testing.T) {
	cfg := config.NATSConfig{
		SubjectPrefix:            "dialogsync",
		RouterPoisonQueueEnabled: true,
		RouterPoisonQueueTopic:   "dialogsync.partition.poison",
	}
	topics := TopicsFor(cfg)

	if topics.InstanceChange != "dialogsync.instance.changed" {
		t.Errorf("InstanceChange = %q", topics.InstanceChange)
	}
	if topics.PartitionPlan != "dialogsync.partition.planned" {
		t.Errorf("PartitionPlan = %q", topics.PartitionPlan)
	}
	if got := topics.StreamSubjects(cfg.SubjectPrefix); !slices.Equal(got, []string{"dialogsync.>"}) {
		t.Errorf("StreamSubjects() = %v", got)
	}

	cfg.RouterPoisonQueueTopic = "dlq.dialogsync"
	topics = TopicsFor(cfg)
	if got := topics.StreamSubjects(cfg.SubjectPrefix); !slices.Equal(got, []string{"dialogsync.>", "dlq.dialogsync"}) {
		t.Errorf("StreamSubjects() with foreign poison topic = %v", got)
	}

	cfg.RouterPoisonQueueEnabled = false
	if TopicsFor(cfg).Poison != "" {
		t.Error("Poison topic set while the poison queue is disabled")
	}
}

func TestListenAddr(t *testing.T) {
	host, port, err := listenAddr("nats://127.0.0.1:4222")
	if err != nil || host != "127.0.0.1" || port != 4222 {
		t.Errorf("listenAddr() = %q, %d, %v", host, port, err)
	}
	if _, _, err := listenAddr("nats://localhost"); err == nil {
		t.Error("listenAddr() accepted a URL without a port")
	}
}
