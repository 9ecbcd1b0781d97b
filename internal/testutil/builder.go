// Package testutil provides fixtures for registry and store tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/cqlconn/internal/connections/domain"
)

// Builder accumulates connections and applies them to a registry in order.
type Builder struct {
	t           *testing.T
	connections []connectionData
	current     string
}

// NewBuilder creates an empty fixture builder.
func NewBuilder(t *testing.T) *Builder {
	t.Helper()
	return &Builder{t: t}
}

// WithConnection adds a connection with optional configuration.
func (b *Builder) WithConnection(name string, opts ...ConnectionOption) *Builder {
	c := defaultConnection(name)
	for _, opt := range opts {
		opt(&c)
	}
	b.connections = append(b.connections, c)
	return b
}

// WithCurrent selects a connection once all connections are added.
func (b *Builder) WithCurrent(name string) *Builder {
	b.current = name
	return b
}

// Registry builds a registry holding the accumulated connections.
func (b *Builder) Registry() *domain.Registry {
	b.t.Helper()
	r := domain.NewRegistry()
	for _, c := range b.connections {
		err := r.UpsertConnection(domain.NewConnection(c.name, c.endpoint, c.contexts...))
		require.NoError(b.t, err)
	}
	if b.current != "" {
		require.NoError(b.t, r.SetCurrentConnection(b.current))
	}
	return r
}

// State builds the state document for the accumulated connections.
func (b *Builder) State() *domain.State {
	b.t.Helper()
	return b.Registry().Snapshot()
}
