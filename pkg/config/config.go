package config

import (
	"fmt"
	"slices"
	"time"
)

// SyncConfig is the complete configuration of a grantsync job. One file
// describes where rows come from, which deployment they belong to, and where
// reconciled entities go.
type SyncConfig struct {
	// Name identifies the job in logs, metrics and notifications
	Name string `yaml:"name" json:"name"`

	// Deployment selects a registered deployment preset (default, harvard)
	Deployment string `yaml:"deployment" json:"deployment"`
	// Domain overrides the preset's identity domain when set
	Domain string `yaml:"domain" json:"domain"`
	// PolicyBaseURL is the repository location funder policy paths are relative to
	PolicyBaseURL string `yaml:"policy_base_url" json:"policy_base_url"`

	Source    SourceConfig    `yaml:"source" json:"source"`
	Store     StoreConfig     `yaml:"store" json:"store"`
	Watermark WatermarkConfig `yaml:"watermark" json:"watermark"`
	Dump      DumpConfig      `yaml:"dump" json:"dump"`
	Notify    NotifyConfig    `yaml:"notify" json:"notify"`

	// Observability settings for monitoring and debugging
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// TimeoutConfig contains timeout settings shared by network backends.
type TimeoutConfig struct {
	// Request timeout for individual operations
	Request time.Duration `yaml:"request" json:"request"`
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection"`
	// Idle timeout before closing inactive connections
	Idle time.Duration `yaml:"idle" json:"idle"`
}

// ReliabilityConfig protects a remote STORE from a misbehaving client and
// the client from a failing STORE. Runs never retry individual calls.
type ReliabilityConfig struct {
	// CircuitBreaker enables the circuit breaker pattern
	CircuitBreaker bool `yaml:"circuit_breaker" json:"circuit_breaker"`
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`
	// ResetTimeout is how long the circuit stays open
	ResetTimeout time.Duration `yaml:"reset_timeout" json:"reset_timeout"`
	// RateLimitPerSec limits requests per second (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	// RateLimitBurst is the token bucket size
	RateLimitBurst int `yaml:"rate_limit_burst" json:"rate_limit_burst"`
}

// WatermarkConfig locates the watermark history file.
type WatermarkConfig struct {
	// File receives one watermark per successful run; the last line seeds the next pull
	File string `yaml:"file" json:"file"`
	// Initial is used as the lower bound when the file is empty or missing
	Initial string `yaml:"initial" json:"initial"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level       string   `yaml:"level" json:"level"`
	Encoding    string   `yaml:"encoding" json:"encoding"`
	Development bool     `yaml:"development" json:"development"`
	OutputPaths []string `yaml:"output_paths" json:"output_paths"`
}

// MetricsConfig controls Prometheus metrics. A batch job has nothing to
// scrape, so metrics are pushed when a run ends.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// PushGateway is the Pushgateway URL; empty disables pushing
	PushGateway string `yaml:"push_gateway" json:"push_gateway"`
	// Job is the Pushgateway job label
	Job string `yaml:"job" json:"job"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	ServiceName string  `yaml:"service_name" json:"service_name"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewSyncConfig returns a configuration with working defaults: the default
// deployment, an in-memory store, and JSON logs at info level.
func NewSyncConfig() *SyncConfig {
	return &SyncConfig{
		Name:       "grantsync",
		Deployment: "default",
		Source: SourceConfig{
			Driver:   DriverPostgres,
			MaxConns: 4,
			Timeouts: TimeoutConfig{
				Request:    5 * time.Minute,
				Connection: 10 * time.Second,
				Idle:       5 * time.Minute,
			},
		},
		Store: StoreConfig{
			Type: StoreMemory,
			SQLite: SQLiteConfig{
				Path: "grantsync.db",
			},
			MongoDB: MongoDBConfig{
				Database: "pass",
			},
			PASS: PassConfig{
				HTTP2: true,
				Timeouts: TimeoutConfig{
					Request:    30 * time.Second,
					Connection: 10 * time.Second,
					Idle:       90 * time.Second,
				},
				Reliability: ReliabilityConfig{
					CircuitBreaker:   true,
					FailureThreshold: 5,
					ResetTimeout:     30 * time.Second,
					RateLimitPerSec:  0,
					RateLimitBurst:   10,
				},
			},
		},
		Watermark: WatermarkConfig{
			File: "updates.txt",
		},
		Dump: DumpConfig{
			Compression: CompressionNone,
		},
		Notify: NotifyConfig{
			Type: NotifyLog,
			Kafka: KafkaConfig{
				Topic:        "grantsync.reports",
				ClientID:     "grantsync",
				RequiredAcks: "all",
				Timeout:      10 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			Job: "grantsync",
		},
		Tracing: TracingConfig{
			ServiceName: "grantsync",
			SampleRate:  1.0,
		},
	}
}

// Validate validates the configuration for correctness.
func (c *SyncConfig) Validate() error {
	if c.Deployment == "" {
		return fmt.Errorf("deployment is required")
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if c.Watermark.File == "" {
		return fmt.Errorf("watermark.file is required")
	}
	if err := c.Dump.Validate(); err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	if err := c.Notify.Validate(); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1")
	}
	return nil
}

// IsRateLimited returns true if rate limiting is enabled
func (r *ReliabilityConfig) IsRateLimited() bool {
	return r.RateLimitPerSec > 0
}

func oneOf(field, value string, allowed ...string) error {
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("%s must be one of %v, got %q", field, allowed, value)
	}
	return nil
}
