// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

/*
Package config loads and validates Dialogsync configuration.

# Configuration Sources

Koanf v2 merges three layers, later layers winning:

  - Built-in defaults (defaultConfig)
  - An optional YAML file: $CONFIG_PATH, ./config.yaml or /etc/dialogsync/config.yaml
  - Environment variables listed in envMappings

Only mapped environment variables are read, so unrelated variables in the
process environment never leak into the configuration.

# Required Settings

  - INSTANCES_URL: base URL of the instance source
  - DIRECTORY_URL or ORGANIZATIONS: where the organization set comes from

# Validation

Struct tags are checked with the shared validator from internal/validation.
Cross-field rules (URL schemes, NATS mode, checkpoint table length) are
checked by Validate afterwards.

# Example

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	table := cfg.Checkpoint.TableName(cfg.Environment)
*/
package config
