package testutil

import "github.com/zjrosen/cqlconn/internal/connections/domain"

// connectionData holds the fields of a connection to be added.
type connectionData struct {
	name     string
	endpoint string
	contexts []domain.Context
}

func defaultConnection(name string) connectionData {
	return connectionData{
		name:     name,
		endpoint: "http://localhost:8080/" + name + "/fhir",
	}
}

// ConnectionOption configures a connection in a Builder.
type ConnectionOption func(*connectionData)

// Endpoint sets the connection endpoint.
func Endpoint(url string) ConnectionOption {
	return func(c *connectionData) { c.endpoint = url }
}

// Patient adds a Patient context.
func Patient(id string) ConnectionOption {
	return Resource("Patient", id, "")
}

// Resource adds a context with an optional display label.
func Resource(resourceType, id, display string) ConnectionOption {
	return func(c *connectionData) {
		c.contexts = append(c.contexts, domain.NewContext(resourceType, id).WithDisplay(display))
	}
}
