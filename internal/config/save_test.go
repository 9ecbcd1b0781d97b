package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/cqlconn/internal/flags"
)

func TestSaveStore_CreatesNewFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "sub", "config.yaml")

	err := SaveStore(configPath, StoreConfig{Backend: BackendSQLite, Path: "/data/c.db"})
	require.NoError(t, err)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "backend: sqlite")
	assert.Contains(t, string(data), "path: /data/c.db")
	assert.NotContains(t, string(data), "redis_url")
}

func TestSaveStore_PreservesOtherConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	initial := `# my settings
flags:
  strict-load: true # keep this
tracing:
  enabled: true
  exporter: stdout
store:
  backend: file
`
	require.NoError(t, os.WriteFile(configPath, []byte(initial), 0o600))

	err := SaveStore(configPath, StoreConfig{Backend: BackendRedis, RedisURL: "redis://localhost:6379/1", RedisKey: "k"})
	require.NoError(t, err)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "# my settings")
	assert.Contains(t, content, "# keep this")
	assert.Contains(t, content, "exporter: stdout")
	assert.Contains(t, content, "backend: redis")
	assert.NotContains(t, content, "backend: file")
}

func TestSaveStore_Roundtrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(configPath))

	want := StoreConfig{
		Backend:      BackendSQLite,
		Path:         "/srv/cqlconn/state.db",
		RedisKey:     "cqlconn:state",
		FlushTimeout: 3 * time.Second,
	}
	require.NoError(t, SaveStore(configPath, want))

	cfg, _, err := Load(NewViper(), configPath)
	require.NoError(t, err)
	require.Equal(t, want, cfg.Store)
	require.Equal(t, Defaults().Tracing, cfg.Tracing, "other sections survive")
}

func TestSaveFlag(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(configPath))

	require.NoError(t, SaveFlag(configPath, flags.FlagAsyncFlush, false))
	require.NoError(t, SaveFlag(configPath, "experimental", true))

	cfg, _, err := Load(NewViper(), configPath)
	require.NoError(t, err)
	require.False(t, cfg.Flags[flags.FlagAsyncFlush])
	require.False(t, cfg.Flags[flags.FlagStrictLoad])
	require.True(t, cfg.Flags["experimental"])

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Refuse to start when stored state cannot be read.")
}

func TestSaveFlag_NewFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveFlag(configPath, flags.FlagStrictLoad, true))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "flags:")
	assert.Contains(t, string(data), "strict-load: true")
}

func TestSave_InvalidExistingYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("store: [oops"), 0o600))

	err := SaveStore(configPath, StoreConfig{Backend: BackendFile})
	require.Error(t, err)
	require.Contains(t, err.Error(), "parsing config")
}

func TestSave_NonMappingRoot(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("- a\n- b\n"), 0o600))

	err := SaveFlag(configPath, flags.FlagStrictLoad, true)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a mapping")
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, SaveStore(configPath, StoreConfig{Backend: BackendMemory}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
