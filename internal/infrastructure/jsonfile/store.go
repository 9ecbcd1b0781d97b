// Package jsonfile stores registry state as a JSON document on disk.
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zjrosen/cqlconn/internal/connections/domain"
	"github.com/zjrosen/cqlconn/internal/log"
	"github.com/zjrosen/cqlconn/internal/watcher"
)

// DefaultFileName is the state file name used under a config directory.
const DefaultFileName = "connections.json"

// Store implements domain.StateStore over a single JSON file.
//
// Saves write a temp file in the same directory and rename it into place, so
// readers in other processes never observe a partially written document.
type Store struct {
	path string
}

var _ domain.StateStore = (*Store)(nil)

// New returns a store for the file at path. The file and its directory are
// created on the first Save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads and decodes the state file. A missing or empty file yields a
// nil state.
func (s *Store) Load(ctx context.Context) (*domain.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug(log.CatStore, "No state file", "path", s.path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	state, err := domain.DecodeState(data)
	if err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", s.path, err)
	}
	return state, nil
}

// Save encodes state and atomically replaces the state file.
func (s *Store) Save(ctx context.Context, state *domain.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := domain.EncodeState(state)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Sync(); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Close is a no-op; the store holds no open handles between calls.
func (s *Store) Close() error {
	return nil
}

// Watch reports the state document each time the file is rewritten, by this
// process or any other. The channel is closed when ctx is done. Documents
// that fail to load are logged and skipped.
func (s *Store) Watch(ctx context.Context) (<-chan *domain.State, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	w, err := watcher.New(watcher.DefaultConfig(s.path))
	if err != nil {
		return nil, err
	}
	changes, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return nil, err
	}

	out := make(chan *domain.State)
	go func() {
		defer close(out)
		defer func() { _ = w.Stop() }()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				state, err := s.Load(ctx)
				if err != nil {
					log.Warn(log.CatWatcher, "Reload failed", "path", s.path, "error", err)
					continue
				}
				if state == nil {
					state = domain.NewState()
				}
				log.Info(log.CatWatcher, "State reloaded", "path", s.path, "connections", len(state.Connections))
				select {
				case out <- state:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
