package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/cqlconn/internal/watcher"
)

func startWatcher(t *testing.T, cfg watcher.Config) <-chan struct{} {
	t.Helper()
	w, err := watcher.New(cfg)
	require.NoError(t, err, "failed to create watcher")
	t.Cleanup(func() { _ = w.Stop() })

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")
	return onChange
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "connections.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	onChange := startWatcher(t, watcher.Config{Path: path, DebounceDur: 50 * time.Millisecond})

	// Rapid writes should coalesce into a single notification
	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`{"n":%d}`, i)), 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-onChange:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification but got timeout")
	}

	select {
	case <-onChange:
		t.Fatal("unexpected second notification")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_SeesAtomicRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "connections.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	onChange := startWatcher(t, watcher.Config{Path: path, DebounceDur: 20 * time.Millisecond})

	tmp := filepath.Join(dir, ".connections.json.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(`{"connections":{}}`), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case <-onChange:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification for rename into place")
	}
}

func TestWatcher_IgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "connections.json")
	otherPath := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	// Pre-create the other file so writes to it are just Write events
	require.NoError(t, os.WriteFile(otherPath, []byte("initial"), 0o600))

	onChange := startWatcher(t, watcher.Config{Path: path, DebounceDur: 50 * time.Millisecond})

	require.NoError(t, os.WriteFile(otherPath, []byte("other content"), 0o600))

	select {
	case <-onChange:
		t.Fatal("should not notify for unrelated files")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_WatchesCompanionFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "connections.db")
	walPath := filepath.Join(dir, "connections.db-wal")
	require.NoError(t, os.WriteFile(dbPath, []byte("db"), 0o600))

	onChange := startWatcher(t, watcher.Config{
		Path:        dbPath,
		Companions:  []string{"connections.db-wal"},
		DebounceDur: 50 * time.Millisecond,
	})

	require.NoError(t, os.WriteFile(walPath, []byte("wal data"), 0o600))

	select {
	case <-onChange:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification for companion file write")
	}
}

func TestWatcher_Stop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "connections.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	w, err := watcher.New(watcher.Config{Path: path, DebounceDur: 50 * time.Millisecond})
	require.NoError(t, err, "failed to create watcher")

	_, err = w.Start()
	require.NoError(t, err, "failed to start watcher")

	done := make(chan struct{})
	go func() {
		assert.NoError(t, w.Stop(), "Stop returned error")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Stop() timed out - possible deadlock")
	}
}

func TestWatcher_StartFailsForMissingDirectory(t *testing.T) {
	w, err := watcher.New(watcher.DefaultConfig(filepath.Join(t.TempDir(), "missing", "connections.json")))
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	_, err = w.Start()
	require.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	path := "/test/connections.json"
	cfg := watcher.DefaultConfig(path)

	assert.Equal(t, path, cfg.Path)
	assert.Empty(t, cfg.Companions)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceDur)
}
