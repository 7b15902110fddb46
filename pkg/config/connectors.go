package config

import (
	"fmt"
	"strings"
	"time"
)

// Source drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// SourceConfig describes the grants database rows are pulled from.
type SourceConfig struct {
	// Driver selects the database client (postgres, mysql)
	Driver string `yaml:"driver" json:"driver"`
	// DSN is the connection string; prefer ${ENV} substitution for credentials
	DSN string `yaml:"dsn" json:"dsn"`
	// Queries overrides the built-in query of a mode (grant, user, funder).
	// Overrides must keep the two placeholders for the update window.
	Queries map[string]string `yaml:"queries" json:"queries"`
	// MaxConns caps the connection pool
	MaxConns int           `yaml:"max_conns" json:"max_conns"`
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`
}

// Validate checks the source settings.
func (s *SourceConfig) Validate() error {
	if err := oneOf("driver", s.Driver, DriverPostgres, DriverMySQL); err != nil {
		return err
	}
	if s.MaxConns < 0 {
		return fmt.Errorf("max_conns cannot be negative")
	}
	return nil
}

// Store types.
const (
	StoreMemory  = "memory"
	StoreSQLite  = "sqlite"
	StoreMongoDB = "mongodb"
	StorePASS    = "pass"
)

// StoreConfig selects and configures the STORE backend.
type StoreConfig struct {
	// Type selects the backend (memory, sqlite, mongodb, pass)
	Type    string        `yaml:"type" json:"type"`
	SQLite  SQLiteConfig  `yaml:"sqlite" json:"sqlite"`
	MongoDB MongoDBConfig `yaml:"mongodb" json:"mongodb"`
	PASS    PassConfig    `yaml:"pass" json:"pass"`
}

// Validate checks the settings of the selected backend only.
func (s *StoreConfig) Validate() error {
	if err := oneOf("type", s.Type, StoreMemory, StoreSQLite, StoreMongoDB, StorePASS); err != nil {
		return err
	}
	switch s.Type {
	case StoreSQLite:
		if s.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required")
		}
	case StoreMongoDB:
		if s.MongoDB.URI == "" {
			return fmt.Errorf("mongodb.uri is required")
		}
		if s.MongoDB.Database == "" {
			return fmt.Errorf("mongodb.database is required")
		}
	case StorePASS:
		if s.PASS.BaseURL == "" {
			return fmt.Errorf("pass.base_url is required")
		}
		if s.PASS.Reliability.RateLimitPerSec < 0 {
			return fmt.Errorf("pass.reliability.rate_limit_per_sec cannot be negative")
		}
	}
	return nil
}

// SQLiteConfig configures the embedded SQLite STORE.
type SQLiteConfig struct {
	// Path of the database file; ":memory:" keeps it in process
	Path string `yaml:"path" json:"path"`
}

// MongoDBConfig configures the MongoDB STORE.
type MongoDBConfig struct {
	URI      string        `yaml:"uri" json:"uri"`
	Database string        `yaml:"database" json:"database"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// PassConfig configures the PASS REST STORE: a Fedora repository for
// resources plus a search index answering attribute lookups.
type PassConfig struct {
	// BaseURL is the Fedora container root, e.g. https://pass.jhu.edu/fcrepo/rest/
	BaseURL string `yaml:"base_url" json:"base_url"`
	// SearchURL is the index search endpoint; defaults to BaseURL + "_search"
	SearchURL string `yaml:"search_url" json:"search_url"`
	Username  string `yaml:"username" json:"username"`
	Password  string `yaml:"password" json:"password"`
	// HTTP2 enables HTTP/2 on the transport
	HTTP2       bool              `yaml:"http2" json:"http2"`
	Timeouts    TimeoutConfig     `yaml:"timeouts" json:"timeouts"`
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability"`
}

// Dump compression codecs.
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

// DumpConfig configures the row files written by pull and read by load.
type DumpConfig struct {
	// Compression codec for new dump files (none, gzip, zstd, lz4)
	Compression string `yaml:"compression" json:"compression"`
	// S3 holds settings used when a dump location starts with s3://
	S3 S3Config `yaml:"s3" json:"s3"`
}

// Validate checks the dump settings.
func (d *DumpConfig) Validate() error {
	return oneOf("compression", d.Compression, CompressionNone, CompressionGzip, CompressionZstd, CompressionLZ4)
}

// S3Config holds AWS settings for dump files kept in S3.
type S3Config struct {
	Region string `yaml:"region" json:"region"`
	// Endpoint overrides the S3 endpoint (MinIO, localstack)
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// PathStyle forces path-style addressing
	PathStyle bool `yaml:"path_style" json:"path_style"`
}

// Notifier types.
const (
	NotifyNone  = "none"
	NotifyLog   = "log"
	NotifyKafka = "kafka"
)

// NotifyConfig selects where run reports are sent.
type NotifyConfig struct {
	Type  string      `yaml:"type" json:"type"`
	Kafka KafkaConfig `yaml:"kafka" json:"kafka"`
}

// Validate checks the notifier settings.
func (n *NotifyConfig) Validate() error {
	if err := oneOf("type", n.Type, NotifyNone, NotifyLog, NotifyKafka); err != nil {
		return err
	}
	if n.Type == NotifyKafka {
		if len(n.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required")
		}
		if n.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required")
		}
		if err := oneOf("kafka.required_acks", strings.ToLower(n.Kafka.RequiredAcks), "none", "local", "all"); err != nil {
			return err
		}
	}
	return nil
}

// KafkaConfig configures the Kafka report notifier.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers" json:"brokers"`
	Topic    string   `yaml:"topic" json:"topic"`
	ClientID string   `yaml:"client_id" json:"client_id"`
	// RequiredAcks is none, local or all
	RequiredAcks string        `yaml:"required_acks" json:"required_acks"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}
