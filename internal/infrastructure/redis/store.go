// Package redis stores the registry state document under a single Redis key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/zjrosen/cqlconn/internal/connections/domain"
	"github.com/zjrosen/cqlconn/internal/log"
)

// DefaultKey is the key used when none is configured.
const DefaultKey = "cqlconn:state"

// Store implements domain.StateStore with the JSON document stored as a
// Redis string.
type Store struct {
	client *redis.Client
	key    string
}

var _ domain.StateStore = (*Store)(nil)

// Dial parses a redis:// URL, connects, and verifies the server responds.
func Dial(ctx context.Context, redisURL, key string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Debug(log.CatStore, "Redis connected", "addr", opts.Addr, "db", opts.DB, "key", key)
	return NewStore(client, key), nil
}

// NewStore wraps an existing client. Closing the store closes the client.
func NewStore(client *redis.Client, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: client, key: key}
}

// Key returns the Redis key holding the document.
func (s *Store) Key() string {
	return s.key
}

// Load fetches and decodes the document. A missing key yields a nil state.
func (s *Store) Load(ctx context.Context) (*domain.State, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", s.key, err)
	}
	state, err := domain.DecodeState(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.key, err)
	}
	return state, nil
}

// Save replaces the document. The key never expires.
func (s *Store) Save(ctx context.Context, state *domain.State) error {
	data, err := domain.EncodeState(state)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", s.key, err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
