// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package bus

import (
	"strings"

	"github.com/tomtom215/dialogsync/internal/config"
)

// Topics names the subjects used by the bus.
type Topics struct {
	InstanceChange string
	PartitionPlan  string
	Poison         string // empty disables the poison queue
}

// TopicsFor derives topics from the configured subject prefix.
func TopicsFor(cfg config.NATSConfig) Topics {
	prefix := strings.TrimSuffix(cfg.SubjectPrefix, ".")
	t := Topics{
		InstanceChange: prefix + ".instance.changed",
		PartitionPlan:  prefix + ".partition.planned",
	}
	if cfg.RouterPoisonQueueEnabled {
		t.Poison = cfg.RouterPoisonQueueTopic
	}
	return t
}

// StreamSubjects returns the subjects the JetStream stream must capture.
func (t Topics) StreamSubjects(prefix string) []string {
	wildcard := strings.TrimSuffix(prefix, ".") + ".>"
	subjects := []string{wildcard}
	if t.Poison != "" && !strings.HasPrefix(t.Poison, strings.TrimSuffix(wildcard, ">")) {
		subjects = append(subjects, t.Poison)
	}
	return subjects
}
