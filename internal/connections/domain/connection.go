package domain

import (
	"fmt"
	"maps"
	"slices"
)

// Connection is a named clinical-data endpoint plus the contexts it owns.
type Connection struct {
	Name     string
	Endpoint string
	Contexts map[ContextKey]Context
}

// NewConnection creates a connection keyed by name. Contexts are stored
// under their derived keys; a later context with the same key wins.
func NewConnection(name, endpoint string, contexts ...Context) Connection {
	c := Connection{
		Name:     name,
		Endpoint: endpoint,
		Contexts: make(map[ContextKey]Context, len(contexts)),
	}
	for _, ctx := range contexts {
		c.Contexts[ctx.Key()] = ctx
	}
	return c
}

// Validate checks the required fields of the connection and every context it owns.
func (c Connection) Validate() error {
	if reason := c.invalidReason(); reason != "" {
		return invalidArgument("validate connection", c.Name, reason)
	}
	return nil
}

func (c Connection) invalidReason() string {
	if c.Name == "" {
		return "name is required"
	}
	if c.Endpoint == "" {
		return "endpoint is required"
	}
	for _, k := range c.ContextKeys() {
		ctx := c.Contexts[k]
		if reason := ctx.missingField(); reason != "" {
			return fmt.Sprintf("context %q: %s", k, reason)
		}
	}
	return ""
}

// Clone returns a deep copy of the connection with contexts re-keyed by
// their derived keys, so map keys can never diverge from context content.
func (c Connection) Clone() Connection {
	out := Connection{
		Name:     c.Name,
		Endpoint: c.Endpoint,
		Contexts: make(map[ContextKey]Context, len(c.Contexts)),
	}
	// Iterate in key order so collisions after re-keying resolve deterministically.
	for _, k := range slices.Sorted(maps.Keys(c.Contexts)) {
		ctx := c.Contexts[k]
		out.Contexts[ctx.Key()] = ctx
	}
	return out
}

// Context returns the context stored under key.
func (c Connection) Context(key ContextKey) (Context, bool) {
	ctx, ok := c.Contexts[key]
	return ctx, ok
}

// ContextKeys returns the context keys sorted alphabetically.
func (c Connection) ContextKeys() []ContextKey {
	return slices.Sorted(maps.Keys(c.Contexts))
}

// ContextList returns the contexts ordered by key.
func (c Connection) ContextList() []Context {
	keys := c.ContextKeys()
	out := make([]Context, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.Contexts[k])
	}
	return out
}
