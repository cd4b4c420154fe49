// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package config

import (
	"fmt"

	"github.com/tomtom215/dialogsync/internal/validation"
)

// Validate runs the struct tag rules and then the cross-field checks the
// tags cannot express.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := c.validateUpstream(); err != nil {
		return err
	}

	if err := c.validateDirectory(); err != nil {
		return err
	}

	if err := c.validateNATS(); err != nil {
		return err
	}

	return c.validateCheckpoint()
}

func (c *Config) validateUpstream() error {
	return validateHTTPURL(c.Upstream.InstancesURL, "INSTANCES_URL")
}

// validateDirectory requires some source of organizations: update streams
// cannot start without them.
func (c *Config) validateDirectory() error {
	if c.Directory.URL != "" {
		return validateHTTPURL(c.Directory.URL, "DIRECTORY_URL")
	}
	if len(c.Directory.Organizations) == 0 {
		return fmt.Errorf("either DIRECTORY_URL or ORGANIZATIONS must be set")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}

	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}

	// The embedded server supplies its own client URL.
	if !c.NATS.EmbeddedServer {
		if err := validateNATSURL(c.NATS.URL); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
	}

	if c.NATS.RouterPoisonQueueEnabled && c.NATS.RouterPoisonQueueTopic == "" {
		return fmt.Errorf("NATS_ROUTER_POISON_TOPIC is required when the poison queue is enabled")
	}

	return nil
}

func (c *Config) validateCheckpoint() error {
	table := c.Checkpoint.TableName(c.Environment)
	if len(table) > 63 {
		return fmt.Errorf("checkpoint table name %q exceeds 63 characters", table)
	}
	return nil
}
