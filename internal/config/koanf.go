// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

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
	"/etc/cartographus/config.yaml",
	"/etc/cartographus/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config is the root configuration for the audio library service.
type Config struct {
	Environment string `koanf:"environment"`

	Server      ServerConfig      `koanf:"server"`
	API         APIConfig         `koanf:"api"`
	DocStore    DocStoreConfig    `koanf:"docstore"`
	ObjectStore ObjectStoreConfig `koanf:"objectstore"`
	NATS        NATSConfig        `koanf:"nats"`
	Cache       CacheConfig       `koanf:"cache"`
	Auth        AuthConfig        `koanf:"auth"`
	Outbox      OutboxConfig      `koanf:"outbox"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Analyzer    AnalyzerConfig    `koanf:"analyzer"`
	Lifecycle   LifecycleConfig   `koanf:"lifecycle"`
	Audit       AuditConfig       `koanf:"audit"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`
}

// APIConfig controls pagination and rate-limit defaults for the HTTP surface.
type APIConfig struct {
	DefaultPageSize   int           `koanf:"default_page_size"`
	MaxPageSize       int           `koanf:"max_page_size"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// DocStoreConfig points at the BadgerDB directory backing the document store gateway.
type DocStoreConfig struct {
	Dir string `koanf:"dir"`
}

// ObjectStoreConfig configures the MinIO-compatible object store gateway.
type ObjectStoreConfig struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	UseTLS    bool   `koanf:"use_tls"`
}

// NATSConfig configures the JetStream-backed event bus.
type NATSConfig struct {
	URL              string        `koanf:"url"`
	EmbeddedServer   bool          `koanf:"embedded_server"`
	StoreDir         string        `koanf:"store_dir"`
	MaxMemory        int64         `koanf:"max_memory"`
	MaxStore         int64         `koanf:"max_store"`
	DurableName      string        `koanf:"durable_name"`
	QueueGroup       string        `koanf:"queue_group"`
	SubscribersCount int           `koanf:"subscribers_count"`
	MaxReconnects    int           `koanf:"max_reconnects"`
	ReconnectWait    time.Duration `koanf:"reconnect_wait"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`
	MaxDeliver       int           `koanf:"max_deliver"`
	MaxAckPending    int           `koanf:"max_ack_pending"`
}

// CacheConfig configures the encrypted presigned-URL cache (C5).
type CacheConfig struct {
	MaxEntries       int           `koanf:"max_entries"`
	DefaultTTL       time.Duration `koanf:"default_ttl"`
	EncryptionSecret string        `koanf:"encryption_secret"`
	KeyVersion       int           `koanf:"key_version"`
}

// AuthConfig configures the thin JWT principal boundary (internal/principal).
type AuthConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	AccessTokenTTL  time.Duration `koanf:"access_token_ttl"`
	RefreshTokenTTL time.Duration `koanf:"refresh_token_ttl"`
	DefaultRoles    []string      `koanf:"default_roles"`
}

// OutboxConfig tunes the transactional outbox poller (C6).
type OutboxConfig struct {
	PollInterval   time.Duration `koanf:"poll_interval"`
	BatchSize      int           `koanf:"batch_size"`
	MaxAttempts    int           `koanf:"max_attempts"`
	BaseBackoff    time.Duration `koanf:"base_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff"`
	Environment    string        `koanf:"environment_prefix"`
}

// IngestConfig tunes the upload ingestor's bounded worker pool (C8).
type IngestConfig struct {
	WorkerCount        int           `koanf:"worker_count"`
	MaxStoreRetries    int           `koanf:"max_store_retries"`
	RetryBaseBackoff   time.Duration `koanf:"retry_base_backoff"`
	ChecksumBufferSize int           `koanf:"checksum_buffer_size"`
	Environment        string        `koanf:"environment_prefix"`
}

// AnalyzerConfig controls the external media-probe worker pool (C9).
type AnalyzerConfig struct {
	FFProbePath  string        `koanf:"ffprobe_path"`
	FFMpegPath   string        `koanf:"ffmpeg_path"`
	WorkerCount  int           `koanf:"worker_count"`
	ProbeTimeout time.Duration `koanf:"probe_timeout"`
	PeakCount    int           `koanf:"peak_count"`
	ScratchDir   string        `koanf:"scratch_dir"`
}

// LifecycleConfig controls the periodic soft-delete purge sweep (C11).
type LifecycleConfig struct {
	GracePeriod   time.Duration `koanf:"grace_period"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	SweepBatch    int           `koanf:"sweep_batch"`
}

// AuditConfig controls the security-event audit trail (internal/audit),
// kept distinct from the tamper-evident admin hash chain in internal/api.
// When DBPath is empty the trail is kept in an in-process ring buffer
// instead of DuckDB, which is adequate for single-instance deployments
// that do not need the log to survive a restart.
type AuditConfig struct {
	Enabled         bool          `koanf:"enabled"`
	DBPath          string        `koanf:"db_path"`
	RetentionDays   int           `koanf:"retention_days"`
	BufferSize      int           `koanf:"buffer_size"`
	MemoryRingLen   int           `koanf:"memory_ring_len"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// LoggingConfig controls the zerolog sink.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:    3857,
			Host:    "0.0.0.0",
			Timeout: 30 * time.Second,
		},
		API: APIConfig{
			DefaultPageSize:   20,
			MaxPageSize:       100,
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		DocStore: DocStoreConfig{
			Dir: "/data/cartographus/docstore",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint: "127.0.0.1:9000",
			Bucket:   "audio-library",
			UseTLS:   false,
		},
		NATS: NATSConfig{
			URL:              "nats://127.0.0.1:4222",
			EmbeddedServer:   true,
			StoreDir:         "/data/nats/jetstream",
			MaxMemory:        1 << 30,
			MaxStore:         10 << 30,
			DurableName:      "audio-processor",
			QueueGroup:       "processors",
			SubscribersCount: 4,
			MaxReconnects:    -1,
			ReconnectWait:    2 * time.Second,
			AckWaitTimeout:   30 * time.Second,
			MaxDeliver:       5,
			MaxAckPending:    256,
		},
		Cache: CacheConfig{
			MaxEntries: 10000,
			DefaultTTL: 10 * time.Minute,
			KeyVersion: 1,
		},
		Auth: AuthConfig{
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 30 * 24 * time.Hour,
			DefaultRoles:    []string{"listener"},
		},
		Outbox: OutboxConfig{
			PollInterval: time.Second,
			BatchSize:    50,
			MaxAttempts:  10,
			BaseBackoff:  time.Second,
			MaxBackoff:   5 * time.Minute,
			Environment:  "dev",
		},
		Ingest: IngestConfig{
			WorkerCount:        4,
			MaxStoreRetries:    3,
			RetryBaseBackoff:   time.Second,
			ChecksumBufferSize: 64 * 1024,
			Environment:        "dev",
		},
		Analyzer: AnalyzerConfig{
			FFProbePath:  "ffprobe",
			FFMpegPath:   "ffmpeg",
			WorkerCount:  2,
			ProbeTimeout: 2 * time.Minute,
			PeakCount:    1000,
			ScratchDir:   os.TempDir(),
		},
		Lifecycle: LifecycleConfig{
			GracePeriod:   30 * 24 * time.Hour,
			SweepInterval: time.Hour,
			SweepBatch:    500,
		},
		Audit: AuditConfig{
			Enabled:         true,
			RetentionDays:   90,
			BufferSize:      1000,
			MemoryRingLen:   10000,
			CleanupInterval: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks invariants that defaults and env overrides must satisfy
// before the service starts.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.DocStore.Dir == "" {
		return fmt.Errorf("config: docstore.dir is required")
	}
	if c.ObjectStore.Bucket == "" {
		return fmt.Errorf("config: objectstore.bucket is required")
	}
	if c.Auth.JWTSecret == "" && c.Environment == "production" {
		return fmt.Errorf("config: auth.jwt_secret is required in production")
	}
	if len(c.Cache.EncryptionSecret) > 0 && len(c.Cache.EncryptionSecret) < 16 {
		return fmt.Errorf("config: cache.encryption_secret must be at least 16 bytes")
	}
	return nil
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
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

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
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

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"api.cors_origins",
	"auth.default_roles",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables are skipped so unrelated environment noise never pollutes
// the configuration tree.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"environment": "environment",

		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",

		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",
		"rate_limit_requests":   "api.rate_limit_reqs",
		"rate_limit_window":     "api.rate_limit_window",
		"disable_rate_limit":    "api.rate_limit_disabled",
		"cors_origins":          "api.cors_origins",

		"docstore_dir": "docstore.dir",

		"objectstore_endpoint":   "objectstore.endpoint",
		"objectstore_access_key": "objectstore.access_key",
		"objectstore_secret_key": "objectstore.secret_key",
		"objectstore_bucket":     "objectstore.bucket",
		"objectstore_use_tls":    "objectstore.use_tls",

		"nats_url":              "nats.url",
		"nats_embedded":         "nats.embedded_server",
		"nats_store_dir":        "nats.store_dir",
		"nats_max_memory":       "nats.max_memory",
		"nats_max_store":        "nats.max_store",
		"nats_durable_name":     "nats.durable_name",
		"nats_queue_group":      "nats.queue_group",
		"nats_subscribers":      "nats.subscribers_count",
		"nats_max_reconnects":   "nats.max_reconnects",
		"nats_reconnect_wait":   "nats.reconnect_wait",
		"nats_ack_wait_timeout": "nats.ack_wait_timeout",
		"nats_max_deliver":      "nats.max_deliver",
		"nats_max_ack_pending":  "nats.max_ack_pending",

		"cache_max_entries":       "cache.max_entries",
		"cache_default_ttl":       "cache.default_ttl",
		"cache_encryption_secret": "cache.encryption_secret",
		"cache_key_version":       "cache.key_version",

		"jwt_secret":        "auth.jwt_secret",
		"access_token_ttl":  "auth.access_token_ttl",
		"refresh_token_ttl": "auth.refresh_token_ttl",
		"default_roles":     "auth.default_roles",

		"outbox_poll_interval": "outbox.poll_interval",
		"outbox_batch_size":    "outbox.batch_size",
		"outbox_max_attempts":  "outbox.max_attempts",
		"outbox_base_backoff":  "outbox.base_backoff",
		"outbox_max_backoff":   "outbox.max_backoff",
		"outbox_environment":   "outbox.environment_prefix",

		"ffprobe_path":         "analyzer.ffprobe_path",
		"ffmpeg_path":          "analyzer.ffmpeg_path",
		"analyzer_workers":     "analyzer.worker_count",
		"analyzer_probe_timeout": "analyzer.probe_timeout",
		"analyzer_peak_count":  "analyzer.peak_count",
		"analyzer_scratch_dir": "analyzer.scratch_dir",

		"lifecycle_grace_period":   "lifecycle.grace_period",
		"lifecycle_sweep_interval": "lifecycle.sweep_interval",
		"lifecycle_sweep_batch":    "lifecycle.sweep_batch",

		"audit_enabled":          "audit.enabled",
		"audit_db_path":          "audit.db_path",
		"audit_retention_days":   "audit.retention_days",
		"audit_buffer_size":      "audit.buffer_size",
		"audit_memory_ring_len":  "audit.memory_ring_len",
		"audit_cleanup_interval": "audit.cleanup_interval",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage.
// This is useful for:
//   - Hot-reload scenarios (with proper mutex protection)
//   - Custom configuration sources
//   - Testing with mock configurations
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// Note: The caller is responsible for mutex protection when accessing
// configuration during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
