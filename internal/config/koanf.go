// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/dialogsync/config.yaml",
	"/etc/dialogsync/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Environment: "development",
		Pipeline: PipelineConfig{
			ChannelCapacity: 10,
			Workers:         4,
		},
		Stream: StreamConfig{
			Enabled:      true,
			PollInterval: 5 * time.Second,
			Backoff:      5 * time.Second,
			Lookback:     10 * time.Minute,
		},
		Migration: MigrationConfig{
			Enabled: true,
			MaxDays: 3660,
		},
		Checkpoint: CheckpointConfig{
			Backend:     "duckdb",
			Path:        "/data/dialogsync.duckdb",
			TablePrefix: "migration_partitions",
		},
		Upstream: UpstreamConfig{
			Timeout:   30 * time.Second,
			RateLimit: 20,
			Burst:     10,
			PageSize:  100,
		},
		NATS: NATSConfig{
			Enabled:                    true,
			URL:                        "nats://127.0.0.1:4222",
			EmbeddedServer:             true,
			StoreDir:                   "/data/nats/jetstream",
			MaxMemory:                  256 << 20, // 256MB
			MaxStore:                   4 << 30,   // 4GB
			StreamName:                 "DIALOG_SYNC",
			SubjectPrefix:              "dialogsync",
			RetentionDays:              7,
			DuplicateWindow:            2 * time.Minute,
			SubscribersCount:           2,
			DurableName:                "partition-expander",
			QueueGroup:                 "expanders",
			AckWait:                    5 * time.Minute,
			CloseTimeout:               30 * time.Second,
			RouterRetryCount:           3,
			RouterRetryInitialInterval: time.Second,
			RouterPoisonQueueEnabled:   true,
			RouterPoisonQueueTopic:     "dialogsync.partition.poison",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8088,
			Timeout:         30 * time.Second,
			RateLimitReqs:   30,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any mapped setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// CHANNEL_CAPACITY -> pipeline.channel_capacity, NATS_URL -> nats.url
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "" if none.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when they come from env vars.
var sliceConfigPaths = []string{
	"directory.organizations",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			// Absent, or already a slice from the YAML file.
			continue
		}

		var items []string
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		if err := k.Set(path, items); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	"environment": "environment",

	// Pipeline
	"channel_capacity": "pipeline.channel_capacity",
	"workers":          "pipeline.workers",

	// Update streams
	"stream_enabled":       "stream.enabled",
	"stream_poll_interval": "stream.poll_interval",
	"stream_backoff":       "stream.backoff",
	"stream_lookback":      "stream.lookback",

	// Migration
	"migration_enabled":  "migration.enabled",
	"migration_max_days": "migration.max_days",

	// Checkpoint store
	"checkpoint_backend":      "checkpoint.backend",
	"checkpoint_path":         "checkpoint.path",
	"checkpoint_table_prefix": "checkpoint.table_prefix",

	// Organization directory
	"directory_url": "directory.url",
	"organizations": "directory.organizations",

	// Instance source
	"instances_url":       "upstream.instances_url",
	"upstream_token":      "upstream.token",
	"upstream_timeout":    "upstream.timeout",
	"upstream_rate_limit": "upstream.rate_limit",
	"upstream_burst":      "upstream.burst",
	"upstream_page_size":  "upstream.page_size",

	// NATS
	"nats_enabled":          "nats.enabled",
	"nats_url":              "nats.url",
	"nats_embedded":         "nats.embedded_server",
	"nats_store_dir":        "nats.store_dir",
	"nats_max_memory":       "nats.max_memory",
	"nats_max_store":        "nats.max_store",
	"nats_stream_name":      "nats.stream_name",
	"nats_subject_prefix":   "nats.subject_prefix",
	"nats_retention_days":   "nats.retention_days",
	"nats_duplicate_window": "nats.duplicate_window",
	"nats_subscribers":      "nats.subscribers_count",
	"nats_durable_name":     "nats.durable_name",
	"nats_queue_group":      "nats.queue_group",
	"nats_ack_wait":         "nats.ack_wait",
	"nats_close_timeout":    "nats.close_timeout",
	// Router configuration environment mappings
	"nats_router_retry_count":    "nats.router_retry_count",
	"nats_router_retry_interval": "nats.router_retry_initial_interval",
	"nats_router_poison_enabled": "nats.router_poison_queue_enabled",
	"nats_router_poison_topic":   "nats.router_poison_queue_topic",

	// Server
	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc maps an environment variable to its koanf path.
// Unmapped variables return "" and are skipped so unrelated environment
// does not leak into the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
