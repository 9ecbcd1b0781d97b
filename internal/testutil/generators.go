package testutil

import (
	"pgregory.net/rapid"

	"github.com/zjrosen/cqlconn/internal/connections/domain"
)

// ContextGen draws valid contexts from a small key space so collisions occur.
func ContextGen() *rapid.Generator[domain.Context] {
	return rapid.Custom(func(t *rapid.T) domain.Context {
		c := domain.NewContext(
			rapid.SampledFrom([]string{"Patient", "Encounter", "Observation"}).Draw(t, "type"),
			rapid.StringMatching(`[a-z0-9]{1,4}`).Draw(t, "id"),
		)
		if rapid.Bool().Draw(t, "hasDisplay") {
			c = c.WithDisplay(rapid.StringMatching(`[A-Za-z ]{1,12}`).Draw(t, "display"))
		}
		return c
	})
}

// StateGen draws state documents that a registry can produce, including
// listing positions and an optional current connection.
func StateGen() *rapid.Generator[*domain.State] {
	return rapid.Custom(func(t *rapid.T) *domain.State {
		r := domain.NewRegistry()
		names := rapid.SliceOfNDistinct(
			rapid.StringMatching(`[A-Za-z][A-Za-z0-9 _-]{0,10}`), 0, 6, rapid.ID[string],
		).Draw(t, "names")
		for _, name := range names {
			contexts := rapid.SliceOfN(ContextGen(), 0, 4).Draw(t, "contexts")
			endpoint := "http://" + rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "host") + "/fhir"
			if err := r.UpsertConnection(domain.NewConnection(name, endpoint, contexts...)); err != nil {
				t.Fatalf("upsert %q: %v", name, err)
			}
		}
		if len(names) > 0 && rapid.Bool().Draw(t, "hasCurrent") {
			if err := r.SetCurrentConnection(rapid.SampledFrom(names).Draw(t, "current")); err != nil {
				t.Fatalf("select: %v", err)
			}
		}
		return r.Snapshot()
	})
}
