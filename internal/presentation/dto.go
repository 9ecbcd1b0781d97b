package presentation

import (
	"github.com/zjrosen/cqlconn/internal/connections/domain"
)

// ContextDTO represents a connection context for presentation
type ContextDTO struct {
	Key             string `json:"key"`
	ResourceType    string `json:"resourceType"`
	ResourceID      string `json:"resourceID"`
	ResourceDisplay string `json:"resourceDisplay,omitempty"`
}

// ConnectionDTO represents a connection with its contexts in key order
type ConnectionDTO struct {
	Name     string       `json:"name"`
	Endpoint string       `json:"endpoint"`
	Current  bool         `json:"current"`
	Contexts []ContextDTO `json:"contexts"` // always present, empty when none
}

// ResultDTO reports the outcome of a mutating command.
type ResultDTO struct {
	Action     string `json:"action"`
	Connection string `json:"connection,omitempty"`
	Context    string `json:"context,omitempty"`
	Current    string `json:"current,omitempty"`
}

// FromDomainConnection converts a connection to a DTO. current is the name
// of the selected connection, if any.
func FromDomainConnection(c domain.Connection, current string) ConnectionDTO {
	contexts := make([]ContextDTO, 0, len(c.Contexts))
	for _, ctx := range c.ContextList() {
		contexts = append(contexts, ContextDTO{
			Key:             string(ctx.Key()),
			ResourceType:    ctx.ResourceType,
			ResourceID:      ctx.ResourceID,
			ResourceDisplay: ctx.ResourceDisplay,
		})
	}
	return ConnectionDTO{
		Name:     c.Name,
		Endpoint: c.Endpoint,
		Current:  current != "" && c.Name == current,
		Contexts: contexts,
	}
}

// FromDomainConnections converts connections in listing order.
func FromDomainConnections(conns []domain.Connection, current string) []ConnectionDTO {
	out := make([]ConnectionDTO, 0, len(conns))
	for _, c := range conns {
		out = append(out, FromDomainConnection(c, current))
	}
	return out
}
