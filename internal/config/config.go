// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Config holds all process configuration.
//
// Loading order (see LoadWithKoanf):
//  1. Defaults built into defaultConfig
//  2. Optional YAML file (CONFIG_PATH, config.yaml, /etc/dialogsync/config.yaml)
//  3. Mapped environment variables
//
// Config is immutable after loading and safe for concurrent reads.
type Config struct {
	// Environment is the deployment tag (development, staging, production).
	// It namespaces the checkpoint table so environments sharing a database
	// never see each other's partitions.
	Environment string `koanf:"environment" validate:"required,max=32"`

	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Stream     StreamConfig     `koanf:"stream"`
	Migration  MigrationConfig  `koanf:"migration"`
	Checkpoint CheckpointConfig `koanf:"checkpoint"`
	Directory  DirectoryConfig  `koanf:"directory"`
	Upstream   UpstreamConfig   `koanf:"upstream"`
	NATS       NATSConfig       `koanf:"nats"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// PipelineConfig sizes the work channel and the consumer pool.
//
// Environment Variables:
//   - CHANNEL_CAPACITY: buffered work items, 0 for unbounded (default: 10)
//   - WORKERS: consumer workers (default: 4)
type PipelineConfig struct {
	ChannelCapacity int `koanf:"channel_capacity" validate:"min=0"`
	Workers         int `koanf:"workers" validate:"min=1,max=256"`
}

// StreamConfig controls the per-organization update streams.
//
// Environment Variables:
//   - STREAM_ENABLED (default: true)
//   - STREAM_POLL_INTERVAL: wait after a completed poll (default: 5s)
//   - STREAM_BACKOFF: wait after a failed poll (default: 5s)
//   - STREAM_LOOKBACK: initial watermark distance from now (default: 10m)
type StreamConfig struct {
	Enabled      bool          `koanf:"enabled"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"min=0"`
	Backoff      time.Duration `koanf:"backoff" validate:"gt=0"`
	Lookback     time.Duration `koanf:"lookback" validate:"gt=0"`
}

// MigrationConfig controls historical backfill.
//
// Environment Variables:
//   - MIGRATION_ENABLED: expose the migration trigger and expander (default: true)
//   - MIGRATION_MAX_DAYS: largest accepted date range (default: 3660)
type MigrationConfig struct {
	Enabled bool `koanf:"enabled"`
	MaxDays int  `koanf:"max_days" validate:"min=1"`
}

// CheckpointConfig selects the partition checkpoint store.
//
// Environment Variables:
//   - CHECKPOINT_BACKEND: duckdb, badger or memory (default: duckdb)
//   - CHECKPOINT_PATH: database file or directory (default: /data/dialogsync.duckdb)
//   - CHECKPOINT_TABLE_PREFIX (default: migration_partitions)
type CheckpointConfig struct {
	Backend     string `koanf:"backend" validate:"oneof=duckdb badger memory"`
	Path        string `koanf:"path" validate:"required_unless=Backend memory"`
	TablePrefix string `koanf:"table_prefix" validate:"required,identifier"`
}

var nonIdentifierChars = regexp.MustCompile(`[^a-z0-9_]+`)

// TableName derives the checkpoint table name from the prefix and the
// deployment environment, e.g. migration_partitions_production.
func (c CheckpointConfig) TableName(environment string) string {
	env := nonIdentifierChars.ReplaceAllString(strings.ToLower(environment), "_")
	env = strings.Trim(env, "_")
	if env == "" {
		return c.TablePrefix
	}
	return c.TablePrefix + "_" + env
}

// DirectoryConfig locates the organization directory.
// When URL is empty the static Organizations list is used instead.
//
// Environment Variables:
//   - DIRECTORY_URL: organization directory endpoint
//   - ORGANIZATIONS: comma-separated static organization list
type DirectoryConfig struct {
	URL           string   `koanf:"url" validate:"omitempty,url"`
	Organizations []string `koanf:"organizations" validate:"omitempty,dive,organization"`
}

// UpstreamConfig configures the instance source client.
//
// Environment Variables:
//   - INSTANCES_URL: instance source base URL (required)
//   - UPSTREAM_TOKEN: bearer token
//   - UPSTREAM_TIMEOUT (default: 30s)
//   - UPSTREAM_RATE_LIMIT: requests per second, 0 disables limiting (default: 20)
//   - UPSTREAM_BURST (default: 10)
//   - UPSTREAM_PAGE_SIZE (default: 100)
type UpstreamConfig struct {
	InstancesURL string        `koanf:"instances_url" validate:"required,url"`
	Token        string        `koanf:"token"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimit    float64       `koanf:"rate_limit" validate:"min=0"`
	Burst        int           `koanf:"burst" validate:"min=1"`
	PageSize     int           `koanf:"page_size" validate:"min=1,max=1000"`
}

// NATSConfig configures the downstream sync transport.
// When Enabled is false an in-process Watermill gochannel is used, which is
// only suitable for development because nothing leaves the process.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory" validate:"min=0"`
	MaxStore       int64  `koanf:"max_store" validate:"min=0"`

	StreamName      string        `koanf:"stream_name" validate:"required"`
	SubjectPrefix   string        `koanf:"subject_prefix" validate:"required"`
	RetentionDays   int           `koanf:"retention_days" validate:"min=1"`
	DuplicateWindow time.Duration `koanf:"duplicate_window" validate:"min=0"`

	SubscribersCount int           `koanf:"subscribers_count" validate:"min=1"`
	DurableName      string        `koanf:"durable_name" validate:"required"`
	QueueGroup       string        `koanf:"queue_group"`
	AckWait          time.Duration `koanf:"ack_wait" validate:"gt=0"`
	CloseTimeout     time.Duration `koanf:"close_timeout" validate:"gt=0"`

	// Router settings for the partition expander.
	RouterRetryCount           int           `koanf:"router_retry_count" validate:"min=0"`
	RouterRetryInitialInterval time.Duration `koanf:"router_retry_initial_interval" validate:"min=0"`
	RouterPoisonQueueEnabled   bool          `koanf:"router_poison_queue_enabled"`
	RouterPoisonQueueTopic     string        `koanf:"router_poison_queue_topic"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"min=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig tunes the suture supervisor tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}
