package domain

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// State is the serialized form of a Registry exchanged with a StateStore.
// Connections are keyed by name and contexts by their derived key.
type State struct {
	Connections       map[string]StoredConnection `json:"connections"`
	CurrentConnection string                      `json:"currentConnection,omitempty"`
}

// StoredConnection is the serialized form of a Connection.
// Position records listing order since the enclosing map is unordered. It is
// 1-based and omitted when listing order is plain name order.
type StoredConnection struct {
	Name     string                   `json:"name"`
	Endpoint string                   `json:"endpoint"`
	Position int                      `json:"position,omitempty"`
	Contexts map[string]StoredContext `json:"contexts"`
}

// StoredContext is the serialized form of a Context.
type StoredContext struct {
	ResourceID      string `json:"resourceID"`
	ResourceType    string `json:"resourceType"`
	ResourceDisplay string `json:"resourceDisplay,omitempty"`
}

// NewState returns an empty document.
func NewState() *State {
	return &State{Connections: make(map[string]StoredConnection)}
}

// EncodeState renders the document as indented JSON. Map keys are emitted
// in sorted order, so equal states encode to identical bytes.
func EncodeState(s *State) ([]byte, error) {
	if s == nil {
		s = NewState()
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeState parses a JSON document. Empty input yields a nil state.
func DecodeState(data []byte) (*State, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if s.Connections == nil {
		s.Connections = make(map[string]StoredConnection)
	}
	for name, sc := range s.Connections {
		if sc.Contexts == nil {
			sc.Contexts = make(map[string]StoredContext)
			s.Connections[name] = sc
		}
	}
	return &s, nil
}

func toStoredConnection(c Connection, position int) StoredConnection {
	sc := StoredConnection{
		Name:     c.Name,
		Endpoint: c.Endpoint,
		Position: position,
		Contexts: make(map[string]StoredContext, len(c.Contexts)),
	}
	for k, ctx := range c.Contexts {
		sc.Contexts[string(k)] = StoredContext{
			ResourceID:      ctx.ResourceID,
			ResourceType:    ctx.ResourceType,
			ResourceDisplay: ctx.ResourceDisplay,
		}
	}
	return sc
}

func (sc StoredConnection) toDomain() Connection {
	c := Connection{
		Name:     sc.Name,
		Endpoint: sc.Endpoint,
		Contexts: make(map[ContextKey]Context, len(sc.Contexts)),
	}
	// Keys are re-derived from content; sorted iteration keeps collisions deterministic.
	for _, k := range slices.Sorted(maps.Keys(sc.Contexts)) {
		stored := sc.Contexts[k]
		ctx := Context{
			ResourceID:      stored.ResourceID,
			ResourceType:    stored.ResourceType,
			ResourceDisplay: stored.ResourceDisplay,
		}
		c.Contexts[ctx.Key()] = ctx
	}
	return c
}

// orderedConnections validates the document and returns its connections in
// listing order (position, then name for documents written without positions).
func (s *State) orderedConnections() ([]Connection, error) {
	type positioned struct {
		conn     Connection
		position int
	}
	entries := make([]positioned, 0, len(s.Connections))
	for name, sc := range s.Connections {
		if sc.Name == "" {
			sc.Name = name
		}
		if sc.Name != name {
			return nil, invalidArgument("restore state", name, fmt.Sprintf("document key does not match name %q", sc.Name))
		}
		conn := sc.toDomain()
		if reason := conn.invalidReason(); reason != "" {
			return nil, invalidArgument("restore state", name, reason)
		}
		entries = append(entries, positioned{conn: conn, position: sc.Position})
	}
	slices.SortFunc(entries, func(a, b positioned) int {
		if c := cmp.Compare(a.position, b.position); c != 0 {
			return c
		}
		return cmp.Compare(a.conn.Name, b.conn.Name)
	})
	out := make([]Connection, len(entries))
	for i, e := range entries {
		out[i] = e.conn
	}
	return out, nil
}
