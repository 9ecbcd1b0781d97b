// Package config provides configuration types and defaults for cqlconn.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/cqlconn/internal/flags"
	"github.com/zjrosen/cqlconn/internal/log"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all configuration options for cqlconn.
type Config struct {
	Store   StoreConfig     `mapstructure:"store"`
	Flags   map[string]bool `mapstructure:"flags"`
	Tracing TracingConfig   `mapstructure:"tracing"`
	Log     LogConfig       `mapstructure:"log"`
}

// StoreConfig selects and configures the state store.
type StoreConfig struct {
	Backend      string        `mapstructure:"backend"`       // "file" (default), "sqlite", "redis", or "memory"
	Path         string        `mapstructure:"path"`          // state file for file/sqlite; derived from config dir when empty
	RedisURL     string        `mapstructure:"redis_url"`     // redis://host:port/db (required when backend=redis)
	RedisKey     string        `mapstructure:"redis_key"`     // key holding the state document
	FlushTimeout time.Duration `mapstructure:"flush_timeout"` // bound on a single store write
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"`      // "none", "file", "stdout", "otlp"
	FilePath     string  `mapstructure:"file_path"`     // trace file when exporter=file
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"` // collector address when exporter=otlp
	SampleRate   float64 `mapstructure:"sample_rate"`   // 0.0 to 1.0
}

// LogConfig controls the debug log file.
type LogConfig struct {
	Path  string `mapstructure:"path"`  // debug log file; derived from config dir when empty
	Level string `mapstructure:"level"` // "debug", "info", "warn", "error"
}

// DefaultConfigDir returns ~/.config/cqlconn, or ".cqlconn" if the home
// directory is unavailable.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cqlconn"
	}
	return filepath.Join(home, ".config", "cqlconn")
}

// DefaultTracesFilePath returns the default path for trace file export.
func DefaultTracesFilePath() string {
	return filepath.Join(DefaultConfigDir(), "traces", "traces.jsonl")
}

// DefaultLogPath returns the default debug log location.
func DefaultLogPath() string {
	return filepath.Join(DefaultConfigDir(), "debug.log")
}

// StatePath returns the configured state location, or the default file for
// the backend under the config directory. Redis and memory backends have no
// state path.
func (s StoreConfig) StatePath() string {
	if s.Path != "" {
		return s.Path
	}
	switch s.Backend {
	case BackendFile, "":
		return filepath.Join(DefaultConfigDir(), "connections.json")
	case BackendSQLite:
		return filepath.Join(DefaultConfigDir(), "connections.db")
	default:
		return ""
	}
}

// ValidateStore checks store configuration for errors.
func ValidateStore(store StoreConfig) error {
	switch store.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	case BackendRedis:
		if store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required when backend is %q", BackendRedis)
		}
	default:
		return fmt.Errorf("store.backend must be %q, %q, %q, or %q, got %q",
			BackendFile, BackendSQLite, BackendRedis, BackendMemory, store.Backend)
	}
	if store.FlushTimeout < 0 {
		return fmt.Errorf("store.flush_timeout must not be negative, got %s", store.FlushTimeout)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// ValidateLog checks the log level.
func ValidateLog(l LogConfig) error {
	if l.Level == "" {
		return nil
	}
	if _, err := log.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := ValidateStore(c.Store); err != nil {
		return err
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	return ValidateLog(c.Log)
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Store: StoreConfig{
			Backend:      BackendFile,
			Path:         "", // Derived from config dir at runtime
			RedisKey:     "cqlconn:state",
			FlushTimeout: 10 * time.Second,
		},
		Flags: flags.Defaults(),
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Log: LogConfig{
			Level: "debug",
		},
	}
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# cqlconn configuration

# Where connections and the current selection are stored.
store:
  # file (JSON document), sqlite, redis, or memory (nothing persisted)
  backend: file
  # State file for the file and sqlite backends.
  # Defaults to ~/.config/cqlconn/connections.json (or connections.db).
  # path: ~/.config/cqlconn/connections.json
  # Required for the redis backend.
  # redis_url: redis://localhost:6379/0
  redis_key: "cqlconn:state"
  # Bound on a single store write.
  flush_timeout: 10s

# Feature flags.
flags:
  # Return from a change before it is written. Disable to wait for every
  # write and report store failures immediately.
  async-flush: true
  # Refuse to start when stored state cannot be read.
  strict-load: false

# Debug log (written when --debug or CQLCONN_DEBUG is set).
log:
  level: debug
  # path: ~/.config/cqlconn/debug.log

# Distributed tracing for store loads and writes.
tracing:
  enabled: false
  exporter: file
  # file_path: ~/.config/cqlconn/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0
  #
  # Example: Send traces to Jaeger via OTLP
  # tracing:
  #   enabled: true
  #   exporter: otlp
  #   otlp_endpoint: jaeger.internal:4317
  #   sample_rate: 0.1
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
