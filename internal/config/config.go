// Package config loads PetraCache's configuration from an optional YAML
// file with environment-variable overrides layered on top.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PETRACACHE"

// ServerConfig controls the TCP listener and connection engine.
//
// Environment overrides nest under the struct field name, e.g.
// PETRACACHE_SERVER_LISTEN_ADDR for ListenAddr.
type ServerConfig struct {
	ListenAddr               string `yaml:"listen_addr" envconfig:"LISTEN_ADDR"`
	MaxConnections           int    `yaml:"max_connections" envconfig:"MAX_CONNECTIONS"`
	ReadBufferSize           int    `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize          int    `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	WorkerThreads            int    `yaml:"worker_threads" envconfig:"WORKER_THREADS"`
	ConnectionIdleTimeoutSec int    `yaml:"connection_idle_timeout_secs" envconfig:"CONNECTION_IDLE_TIMEOUT_SECS"`
}

// IdleTimeout returns the configured idle timeout, or 0 if disabled.
func (s ServerConfig) IdleTimeout() time.Duration {
	if s.ConnectionIdleTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(s.ConnectionIdleTimeoutSec) * time.Second
}

// StorageConfig controls the embedded LSM engine.
type StorageConfig struct {
	DBPath              string `yaml:"db_path" envconfig:"DB_PATH"`
	BlockCacheBytes     int64  `yaml:"block_cache_bytes" envconfig:"BLOCK_CACHE_BYTES"`
	WriteBufferBytes    int64  `yaml:"write_buffer_bytes" envconfig:"WRITE_BUFFER_BYTES"`
	MaxWriteBufferCount int    `yaml:"max_write_buffer_count" envconfig:"MAX_WRITE_BUFFER_COUNT"`
	TargetFileSizeBytes int64  `yaml:"target_file_size_bytes" envconfig:"TARGET_FILE_SIZE_BYTES"`
	MaxBackgroundJobs   int    `yaml:"max_background_jobs" envconfig:"MAX_BACKGROUND_JOBS"`
	EnableCompression   bool   `yaml:"enable_compression" envconfig:"ENABLE_COMPRESSION"`
	EnableTTLCompaction bool   `yaml:"enable_ttl_compaction" envconfig:"ENABLE_TTL_COMPACTION"`
}

// MetricsConfig controls the counter-exposition HTTP endpoint.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" envconfig:"ENABLED"`
	ListenAddr string `yaml:"listen_addr" envconfig:"LISTEN_ADDR"`
}

// LoggingConfig controls the process-wide structured logger.
type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LEVEL"`
}

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// Default returns the configuration PetraCache boots with when no file
// and no environment overrides are supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:               "127.0.0.1:11211",
			MaxConnections:           10000,
			ReadBufferSize:           8192,
			WriteBufferSize:          8192,
			WorkerThreads:            0,
			ConnectionIdleTimeoutSec: 0,
		},
		Storage: StorageConfig{
			DBPath:              "./data/petracache",
			BlockCacheBytes:     1 << 30,
			WriteBufferBytes:    64 << 20,
			MaxWriteBufferCount: 3,
			TargetFileSizeBytes: 64 << 20,
			MaxBackgroundJobs:   4,
			EnableCompression:   false,
			EnableTTLCompaction: true,
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:9090",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds a Config starting from Default(), overlaying path's YAML
// contents (if path is non-empty), then overlaying PETRACACHE_* environment
// variables. Unknown YAML keys and unknown environment keys are ignored.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(contents, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: env overrides: %w", err)
	}

	return cfg, nil
}
