package domain

import (
	"cmp"
	"slices"
	"sync"
)

// Registry holds all connections and the current-selection pointer.
//
// Every method runs under a single lock covering both the collection and
// the pointer, so a reader never observes a current name whose connection
// has already been removed.
type Registry struct {
	mu          sync.RWMutex
	connections []*Connection // insertion order
	current     string
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make([]*Connection, 0),
	}
}

// indexOf returns the position of the named connection, or -1.
// Callers must hold r.mu.
func (r *Registry) indexOf(name string) int {
	for i, c := range r.connections {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// UpsertConnection appends conn if no connection with its name exists.
// Otherwise the existing endpoint is replaced and conn's contexts are merged
// key by key: incoming contexts overwrite, contexts absent from conn are kept.
// An update keeps the connection's listing position.
func (r *Registry) UpsertConnection(conn Connection) error {
	if reason := conn.invalidReason(); reason != "" {
		return invalidArgument("upsert connection", conn.Name, reason)
	}
	incoming := conn.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(incoming.Name)
	if i < 0 {
		r.connections = append(r.connections, &incoming)
		return nil
	}

	existing := r.connections[i]
	existing.Endpoint = incoming.Endpoint
	for k, ctx := range incoming.Contexts {
		existing.Contexts[k] = ctx
	}
	return nil
}

// UpsertContext stores ctx under its derived key in the named connection.
func (r *Registry) UpsertContext(connectionName string, ctx Context) error {
	if reason := ctx.missingField(); reason != "" {
		return invalidArgument("upsert context", connectionName, reason)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(connectionName)
	if i < 0 {
		return notFound("upsert context", connectionName)
	}
	r.connections[i].Contexts[ctx.Key()] = ctx
	return nil
}

// DeleteContext removes the context stored under key. Removing a key that
// does not exist is not an error.
func (r *Registry) DeleteContext(connectionName string, key ContextKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(connectionName)
	if i < 0 {
		return notFound("delete context", connectionName)
	}
	delete(r.connections[i].Contexts, key)
	return nil
}

// DeleteConnection removes the named connection if present and reports
// whether anything was removed. Deleting the current connection clears
// the selection.
func (r *Registry) DeleteConnection(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(name)
	if i < 0 {
		return false
	}
	r.connections = append(r.connections[:i], r.connections[i+1:]...)
	if r.current == name {
		r.current = ""
	}
	return true
}

// ClearConnections removes every connection and clears the selection.
func (r *Registry) ClearConnections() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections = make([]*Connection, 0)
	r.current = ""
}

// SetCurrentConnection selects the named connection.
func (r *Registry) SetCurrentConnection(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(name) < 0 {
		return notFound("set current connection", name)
	}
	r.current = name
	return nil
}

// ClearCurrentConnection unsets the selection.
func (r *Registry) ClearCurrentConnection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = ""
}

// GetCurrentConnection returns a copy of the selected connection.
func (r *Registry) GetCurrentConnection() (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == "" {
		return Connection{}, false
	}
	i := r.indexOf(r.current)
	if i < 0 {
		return Connection{}, false
	}
	return r.connections[i].Clone(), true
}

// CurrentName returns the name of the selected connection, or "".
func (r *Registry) CurrentName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// GetConnection returns a copy of the named connection.
func (r *Registry) GetConnection(name string) (Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(name)
	if i < 0 {
		return Connection{}, notFound("get connection", name)
	}
	return r.connections[i].Clone(), nil
}

// GetAllConnections returns deep copies of all connections in listing order.
// Mutating the result has no effect on the registry.
func (r *Registry) GetAllConnections() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Connection, len(r.connections))
	for i, c := range r.connections {
		out[i] = c.Clone()
	}
	return out
}

// Len returns the number of connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// Snapshot materializes the registry as a State document.
func (r *Registry) Snapshot() *State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byName := slices.IsSortedFunc(r.connections, func(a, b *Connection) int {
		return cmp.Compare(a.Name, b.Name)
	})
	s := NewState()
	for i, c := range r.connections {
		position := i + 1
		if byName {
			position = 0
		}
		s.Connections[c.Name] = toStoredConnection(*c, position)
	}
	s.CurrentConnection = r.current
	return s
}

// Restore replaces the registry contents with the given document.
// The document is validated first; on error the registry is unchanged.
// A current connection that does not resolve is dropped. A nil state
// empties the registry.
func (r *Registry) Restore(s *State) error {
	if s == nil {
		s = NewState()
	}
	conns, err := s.orderedConnections()
	if err != nil {
		return err
	}

	next := make([]*Connection, len(conns))
	current := ""
	for i := range conns {
		next[i] = &conns[i]
		if conns[i].Name == s.CurrentConnection {
			current = s.CurrentConnection
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections = next
	r.current = current
	return nil
}
