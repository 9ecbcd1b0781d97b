package domain

import (
	"fmt"
	"strings"
)

// KeySeparator joins resource type and resource ID in a ContextKey.
const KeySeparator = "/"

// ContextKey identifies a context within a connection.
// Format: {resourceType}/{resourceID}
type ContextKey string

// Context references a single clinical resource instance (e.g. a Patient)
// used to parameterize query evaluation against a connection.
type Context struct {
	ResourceID      string
	ResourceType    string
	ResourceDisplay string // optional human-readable label
}

// NewContext creates a context for the given resource type and ID.
func NewContext(resourceType, resourceID string) Context {
	return Context{ResourceType: resourceType, ResourceID: resourceID}
}

// WithDisplay returns a copy of c with the display label set.
func (c Context) WithDisplay(display string) Context {
	c.ResourceDisplay = display
	return c
}

// Key derives the identity key of the context. Two contexts with the same
// type and ID are the same entity regardless of their display label.
func (c Context) Key() ContextKey {
	return BuildContextKey(c.ResourceType, c.ResourceID)
}

// Validate checks that the required identifier fields are present.
func (c Context) Validate() error {
	if reason := c.missingField(); reason != "" {
		return invalidArgument("validate context", "", reason)
	}
	return nil
}

func (c Context) missingField() string {
	switch {
	case c.ResourceType == "":
		return "resource type is required"
	case c.ResourceID == "":
		return "resource id is required"
	}
	return ""
}

// BuildContextKey constructs a ContextKey from its components.
func BuildContextKey(resourceType, resourceID string) ContextKey {
	return ContextKey(resourceType + KeySeparator + resourceID)
}

// ParseContextKey splits a key such as "Patient/123" into its resource type
// and resource ID. The split happens on the first separator.
func ParseContextKey(key string) (resourceType, resourceID string, err error) {
	resourceType, resourceID, ok := strings.Cut(key, KeySeparator)
	if !ok || resourceType == "" || resourceID == "" {
		return "", "", invalidArgument("parse context key", "", fmt.Sprintf("expected {resourceType}/{resourceID}, got %q", key))
	}
	return resourceType, resourceID, nil
}
