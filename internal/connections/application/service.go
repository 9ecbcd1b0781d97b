package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/cqlconn/internal/connections/domain"
	"github.com/zjrosen/cqlconn/internal/log"
	"github.com/zjrosen/cqlconn/internal/pubsub"
	"github.com/zjrosen/cqlconn/internal/tracing"
)

// FlushPolicy controls whether mutations wait for their state to be written.
type FlushPolicy string

const (
	// FlushAsync enqueues the write and returns immediately.
	FlushAsync FlushPolicy = "async"
	// FlushSync waits for the write and reports store failures to the caller.
	FlushSync FlushPolicy = "sync"
)

// Change is the payload of registry and flush events.
type Change struct {
	Connection string
	Context    domain.ContextKey
	Generation uint64
	Err        error
}

type options struct {
	policy       FlushPolicy
	tracer       trace.Tracer
	strictLoad   bool
	flushTimeout time.Duration
	backend      string
}

// Option configures a Service.
type Option func(*options)

// WithFlushPolicy sets the flush policy (default FlushAsync).
func WithFlushPolicy(p FlushPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithTracer sets the tracer used for load and flush spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithStrictLoad makes NewService fail when the stored state cannot be loaded
// instead of starting with an empty registry.
func WithStrictLoad(strict bool) Option {
	return func(o *options) { o.strictLoad = strict }
}

// WithFlushTimeout bounds each store write.
func WithFlushTimeout(d time.Duration) Option {
	return func(o *options) { o.flushTimeout = d }
}

// WithBackendName labels spans and log entries with the store backend.
func WithBackendName(name string) Option {
	return func(o *options) { o.backend = name }
}

// Service owns a Registry and its persistence lifecycle. It is constructed by
// the command layer and passed to every handler that needs the registry.
type Service struct {
	registry *domain.Registry
	store    domain.StateStore
	flusher  *Flusher
	broker   *pubsub.Broker[Change]
	policy   FlushPolicy

	// mu orders mutate+snapshot+enqueue so generations follow mutation order.
	mu      sync.Mutex
	loadErr error
	// detached is set while the stored document is unreadable. Changes stay
	// in memory so the document is not overwritten; ClearConnections
	// reattaches.
	detached bool
}

// NewService hydrates a registry from store and starts its flusher.
//
// If the stored state cannot be loaded the service starts empty and the
// failure is available from LoadError, unless WithStrictLoad is set, in which
// case NewService returns the failure.
func NewService(ctx context.Context, store domain.StateStore, opts ...Option) (*Service, error) {
	o := options{
		policy:       FlushAsync,
		flushTimeout: DefaultFlushTimeout,
		backend:      "unknown",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.policy != FlushAsync && o.policy != FlushSync {
		return nil, fmt.Errorf("unknown flush policy %q", o.policy)
	}

	reg := domain.NewRegistry()
	loadErr := load(ctx, store, reg, o)
	if loadErr != nil {
		if o.strictLoad {
			return nil, loadErr
		}
		log.Warn(log.CatStore, "Starting with empty registry", "backend", o.backend, "error", loadErr)
	}

	s := &Service{
		registry: reg,
		store:    store,
		broker:   pubsub.NewBroker[Change](),
		policy:   o.policy,
		loadErr:  loadErr,
		detached: loadErr != nil,
	}
	s.flusher = NewFlusher(store, o.tracer, o.flushTimeout, s.publishFlushResult)
	return s, nil
}

func load(ctx context.Context, store domain.StateStore, reg *domain.Registry, o options) error {
	ctx, span := tracing.StartStoreSpan(ctx, o.tracer, o.backend, "load")
	state, err := store.Load(ctx)
	if err == nil {
		err = reg.Restore(state)
	}
	tracing.EndSpan(span, err)
	if err != nil {
		return domain.NewPersistenceError("load state", err)
	}
	log.Info(log.CatStore, "Loaded state", "backend", o.backend,
		"connections", reg.Len(), "current", reg.CurrentName())
	return nil
}

// LoadError returns the load failure the service started with, if any.
func (s *Service) LoadError() error {
	return s.loadErr
}

// Persisting reports whether mutations are written to the store. It is false
// after a lenient load failure until ClearConnections discards the unreadable
// document.
func (s *Service) Persisting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.detached
}

// mutate applies op and, if it changed state, enqueues a snapshot and
// publishes an event. An empty event type means nothing changed.
func (s *Service) mutate(ctx context.Context, op func() (pubsub.EventType, Change, error)) error {
	s.mu.Lock()
	eventType, change, err := op()
	if err != nil || eventType == "" {
		s.mu.Unlock()
		return err
	}
	if s.detached {
		s.mu.Unlock()
		s.broker.Publish(eventType, change)
		log.Warn(log.CatFlush, "Change kept in memory only, stored state is unreadable",
			"event", eventType, "connection", change.Connection)
		return nil
	}
	gen := s.flusher.Enqueue(s.registry.Snapshot())
	s.mu.Unlock()

	change.Generation = gen
	s.broker.Publish(eventType, change)
	log.Debug(log.CatRegistry, "Registry changed", "event", eventType,
		"connection", change.Connection, "generation", gen)

	if s.policy == FlushSync {
		if err := s.flusher.Wait(ctx, gen); err != nil {
			return domain.NewPersistenceError("flush state", err)
		}
	}
	return nil
}

// UpsertConnection adds conn or merges it into the existing entry of the same name.
func (s *Service) UpsertConnection(ctx context.Context, conn domain.Connection) error {
	return s.mutate(ctx, func() (pubsub.EventType, Change, error) {
		if err := s.registry.UpsertConnection(conn); err != nil {
			return "", Change{}, err
		}
		return pubsub.UpsertedEvent, Change{Connection: conn.Name}, nil
	})
}

// UpsertContext stores c in the named connection.
func (s *Service) UpsertContext(ctx context.Context, connectionName string, c domain.Context) error {
	return s.mutate(ctx, func() (pubsub.EventType, Change, error) {
		if err := s.registry.UpsertContext(connectionName, c); err != nil {
			return "", Change{}, err
		}
		return pubsub.ContextEvent, Change{Connection: connectionName, Context: c.Key()}, nil
	})
}

// DeleteContext removes a context from the named connection.
func (s *Service) DeleteContext(ctx context.Context, connectionName string, key domain.ContextKey) error {
	return s.mutate(ctx, func() (pubsub.EventType, Change, error) {
		before, err := s.registry.GetConnection(connectionName)
		if err != nil {
			return "", Change{}, err
		}
		if _, ok := before.Context(key); !ok {
			return "", Change{}, nil
		}
		if err := s.registry.DeleteContext(connectionName, key); err != nil {
			return "", Change{}, err
		}
		return pubsub.ContextEvent, Change{Connection: connectionName, Context: key}, nil
	})
}

// DeleteConnection removes the named connection. Deleting a missing
// connection is not an error.
func (s *Service) DeleteConnection(ctx context.Context, name string) error {
	return s.mutate(ctx, func() (pubsub.EventType, Change, error) {
		if !s.registry.DeleteConnection(name) {
			return "", Change{}, nil
		}
		return pubsub.DeletedEvent, Change{Connection: name}, nil
	})
}

// ClearConnections removes every connection. After a lenient load failure
// it also replaces the unreadable stored document with the empty state.
func (s *Service) ClearConnections(ctx context.Context) error {
	return s.mutate(ctx, func() (pubsub.EventType, Change, error) {
		if !s.detached && s.registry.Len() == 0 && s.registry.CurrentName() == "" {
			return "", Change{}, nil
		}
		if s.detached {
			s.detached = false
			log.Info(log.CatStore, "Discarding unreadable stored state", "error", s.loadErr)
		}
		s.registry.ClearConnections()
		return pubsub.ClearedEvent, Change{}, nil
	})
}

// SetCurrentConnection selects the named connection.
func (s *Service) SetCurrentConnection(ctx context.Context, name string) error {
	return s.mutate(ctx, func() (pubsub.EventType, Change, error) {
		if err := s.registry.SetCurrentConnection(name); err != nil {
			return "", Change{}, err
		}
		return pubsub.SelectedEvent, Change{Connection: name}, nil
	})
}

// ClearCurrentConnection unsets the selection.
func (s *Service) ClearCurrentConnection(ctx context.Context) error {
	return s.mutate(ctx, func() (pubsub.EventType, Change, error) {
		if s.registry.CurrentName() == "" {
			return "", Change{}, nil
		}
		s.registry.ClearCurrentConnection()
		return pubsub.SelectedEvent, Change{}, nil
	})
}

// GetCurrentConnection returns a copy of the selected connection.
func (s *Service) GetCurrentConnection() (domain.Connection, bool) {
	return s.registry.GetCurrentConnection()
}

// GetConnection returns a copy of the named connection.
func (s *Service) GetConnection(name string) (domain.Connection, error) {
	return s.registry.GetConnection(name)
}

// GetAllConnections returns copies of all connections in listing order.
func (s *Service) GetAllConnections() []domain.Connection {
	return s.registry.GetAllConnections()
}

// Snapshot returns the current state document.
func (s *Service) Snapshot() *domain.State {
	return s.registry.Snapshot()
}

// Subscribe returns a channel of registry and flush events.
func (s *Service) Subscribe(ctx context.Context) <-chan pubsub.Event[Change] {
	return s.broker.Subscribe(ctx)
}

// Flush waits until every mutation made so far has been written and
// returns the result of the newest write.
func (s *Service) Flush(ctx context.Context) error {
	if err := s.flusher.Wait(ctx, s.flusher.Queued()); err != nil {
		return domain.NewPersistenceError("flush state", err)
	}
	return nil
}

// Close writes pending state, stops the flusher, and closes the store.
func (s *Service) Close() error {
	var flushErr error
	if err := s.flusher.Close(); err != nil {
		flushErr = domain.NewPersistenceError("flush state", err)
	}
	s.broker.Close()
	if err := s.store.Close(); err != nil {
		return errors.Join(flushErr, fmt.Errorf("close store: %w", err))
	}
	return flushErr
}

func (s *Service) publishFlushResult(r FlushResult) {
	change := Change{Generation: r.Generation, Err: r.Err}
	if r.Err != nil {
		s.broker.Publish(pubsub.FlushFailedEvent, change)
		return
	}
	s.broker.Publish(pubsub.FlushedEvent, change)
}
