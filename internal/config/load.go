package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/zjrosen/cqlconn/internal/log"
)

// LocalConfigPath is checked before the user config directory.
const LocalConfigPath = ".cqlconn/config.yaml"

// EnvPrefix prefixes environment overrides, e.g. CQLCONN_STORE_BACKEND.
const EnvPrefix = "CQLCONN"

// NewViper returns a viper instance with every default registered and
// environment overrides enabled.
func NewViper() *viper.Viper {
	v := viper.New()
	defaults := Defaults()
	v.SetDefault("store.backend", defaults.Store.Backend)
	v.SetDefault("store.path", defaults.Store.Path)
	v.SetDefault("store.redis_url", defaults.Store.RedisURL)
	v.SetDefault("store.redis_key", defaults.Store.RedisKey)
	v.SetDefault("store.flush_timeout", defaults.Store.FlushTimeout)
	v.SetDefault("flags", defaults.Flags)
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	v.SetDefault("log.path", defaults.Log.Path)
	v.SetDefault("log.level", defaults.Log.Level)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration into cfg. An explicit path must exist. Otherwise
// the lookup order is:
//  1. .cqlconn/config.yaml (current directory)
//  2. ~/.config/cqlconn/config.yaml (user config)
//
// When neither exists the defaults are used. Load returns the config file
// that was read, or "" if none.
func Load(v *viper.Viper, explicitPath string) (Config, string, error) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else if _, err := os.Stat(LocalConfigPath); err == nil {
		v.SetConfigFile(LocalConfigPath)
	} else {
		v.AddConfigPath(DefaultConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitPath != "" || !errors.As(err, &notFound) {
			return Config{}, "", fmt.Errorf("reading config: %w", err)
		}
		log.Debug(log.CatConfig, "No config file found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("decoding config: %w", err)
	}
	// Flags absent from the file keep their defaults.
	merged := Defaults().Flags
	for name, enabled := range cfg.Flags {
		merged[name] = enabled
	}
	cfg.Flags = merged

	used := v.ConfigFileUsed()
	if used != "" {
		if abs, err := filepath.Abs(used); err == nil {
			used = abs
		}
	}
	log.Debug(log.CatConfig, "Config loaded", "file", used, "backend", cfg.Store.Backend)
	return cfg, used, nil
}
