// Package memory provides an in-process state store for tests and
// ephemeral sessions.
package memory

import (
	"context"
	"fmt"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/cqlconn/internal/connections/domain"
	"github.com/zjrosen/cqlconn/internal/log"
)

const stateKey = "state"

// Store keeps the encoded state document in a go-cache instance that never
// expires. Keeping the encoded form means loads never share maps with the
// caller that saved them.
type Store struct {
	cache *gocache.Cache
}

var _ domain.StateStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{cache: gocache.New(gocache.NoExpiration, 0)}
}

// Load returns the last saved state, or nil if nothing was saved.
func (s *Store) Load(ctx context.Context) (*domain.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, found := s.cache.Get(stateKey)
	if !found {
		return nil, nil
	}
	data, ok := value.([]byte)
	if !ok {
		log.Error(log.CatStore, "wrong type assertion when loading state", "key", stateKey)
		return nil, fmt.Errorf("unexpected cached value %T", value)
	}
	return domain.DecodeState(data)
}

// Save replaces the stored state.
func (s *Store) Save(ctx context.Context, state *domain.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := domain.EncodeState(state)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	s.cache.Set(stateKey, data, gocache.NoExpiration)
	return nil
}

// Close discards the stored state.
func (s *Store) Close() error {
	s.cache.Flush()
	return nil
}
