package sqlite

import "github.com/zjrosen/cqlconn/internal/connections/domain"

// ConnectionModel represents a row of the connections table.
type ConnectionModel struct {
	Name     string
	Endpoint string
	Position int
}

// ContextModel represents a row of the contexts table.
type ContextModel struct {
	ConnectionName  string
	ContextKey      string
	ResourceType    string
	ResourceID      string
	ResourceDisplay *string // nullable
}

// SelectionModel represents the single row of the selection table.
type SelectionModel struct {
	CurrentConnection *string // nullable
	Revision          string
	UpdatedAt         int64 // Unix timestamp
}

func toModels(state *domain.State) ([]ConnectionModel, []ContextModel) {
	conns := make([]ConnectionModel, 0, len(state.Connections))
	var contexts []ContextModel
	for _, sc := range state.Connections {
		conns = append(conns, ConnectionModel{Name: sc.Name, Endpoint: sc.Endpoint, Position: sc.Position})
		for key, ctx := range sc.Contexts {
			contexts = append(contexts, ContextModel{
				ConnectionName:  sc.Name,
				ContextKey:      key,
				ResourceType:    ctx.ResourceType,
				ResourceID:      ctx.ResourceID,
				ResourceDisplay: nullableString(ctx.ResourceDisplay),
			})
		}
	}
	return conns, contexts
}

func toState(conns []ConnectionModel, contexts []ContextModel, sel SelectionModel) *domain.State {
	state := domain.NewState()
	for _, m := range conns {
		state.Connections[m.Name] = domain.StoredConnection{
			Name:     m.Name,
			Endpoint: m.Endpoint,
			Position: m.Position,
			Contexts: make(map[string]domain.StoredContext),
		}
	}
	for _, m := range contexts {
		sc, ok := state.Connections[m.ConnectionName]
		if !ok {
			continue
		}
		sc.Contexts[m.ContextKey] = domain.StoredContext{
			ResourceID:      m.ResourceID,
			ResourceType:    m.ResourceType,
			ResourceDisplay: derefString(m.ResourceDisplay),
		}
	}
	state.CurrentConnection = derefString(sel.CurrentConnection)
	return state
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
