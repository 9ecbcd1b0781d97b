package domain

import "context"

// StateStore is the persistence backend a registry is hydrated from and
// flushed to. Implementations may use a JSON file, SQLite, Redis, or memory.
type StateStore interface {
	// Load returns the last saved document, or nil if nothing has been saved.
	Load(ctx context.Context) (*State, error)

	// Save durably replaces the stored document.
	Save(ctx context.Context, state *State) error

	// Close releases any resources held by the store.
	Close() error
}
