// Package config defines service configuration structures and loading.
//
// Conventions follow the rest of the service: defaults in New, layered
// loading in Load, sentinel errors in errors.go.
package config

import (
	"context"
	"runtime"
)

// RuleConfig is one unlock rule as it appears in configuration.
type RuleConfig struct {
	ID           string  `koanf:"id"`
	Name         string  `koanf:"name"`
	Criterion    string  `koanf:"criterion"` // level | count | streak | score
	CounterField string  `koanf:"counter_field"`
	Threshold    float64 `koanf:"threshold"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// JobQueueSize bounds the in-memory notification job queue.
	JobQueueSize int `koanf:"job_queue_size"`

	// DispatchWorkers sets the number of notification dispatch workers.
	DispatchWorkers int `koanf:"dispatch_workers"`

	// DispatchMaxAttempts bounds delivery attempts per job.
	DispatchMaxAttempts int `koanf:"dispatch_max_attempts"`

	// DedupeSize bounds the ingress idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// PollIntervalMS is the fallback poll interval in milliseconds.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// StatsBaseURL is the upstream stats service polled while the push
	// channel is down. Empty disables the poll fallback.
	StatsBaseURL string `koanf:"stats_base_url"`

	// WebhookURL is the downstream notification consumer. Empty keeps
	// jobs in-process (memory sink).
	WebhookURL string `koanf:"webhook_url"`

	// RedisAddr enables the redis snapshot store when non-empty.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`

	// SnapshotTTLHours is the expiry on persisted snapshots.
	SnapshotTTLHours int `koanf:"snapshot_ttl_hours"`

	// Rules overrides the built-in unlock catalog when non-empty.
	Rules []RuleConfig `koanf:"rules"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9090",
		JobQueueSize:        10_000,
		DispatchWorkers:     runtime.NumCPU(),
		DispatchMaxAttempts: 5,
		DedupeSize:          100_000,
		PollIntervalMS:      15_000,
		SnapshotTTLHours:    24 * 90,
	}
}
