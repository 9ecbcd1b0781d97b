package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBuilder_WithConnection(t *testing.T) {
	r := NewBuilder(t).
		WithConnection("Local").
		Registry()

	conn, err := r.GetConnection("Local")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/Local/fhir", conn.Endpoint) // default endpoint derives from name
	require.Empty(t, conn.Contexts)
}

func TestBuilder_WithConnection_AllOptions(t *testing.T) {
	r := NewBuilder(t).
		WithConnection("Local",
			Endpoint("http://x/fhir"),
			Patient("1"),
			Resource("Encounter", "e", "Visit"),
		).
		Registry()

	conn, err := r.GetConnection("Local")
	require.NoError(t, err)
	require.Equal(t, "http://x/fhir", conn.Endpoint)
	ctx, ok := conn.Context("Encounter/e")
	require.True(t, ok)
	require.Equal(t, "Visit", ctx.ResourceDisplay)
	_, ok = conn.Context("Patient/1")
	require.True(t, ok)
}

func TestBuilder_StandardTestData(t *testing.T) {
	st := NewBuilder(t).WithStandardTestData().State()

	require.Equal(t, "Local", st.CurrentConnection)
	require.Len(t, st.Connections, 3)
	require.Equal(t, 1, st.Connections["Local"].Position)
	require.Equal(t, 3, st.Connections["Prod"].Position)
	require.Len(t, st.Connections["Local"].Contexts, 3)
}

func TestStateGen_ProducesRestorableStates(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		st := StateGen().Draw(rt, "state")
		if st.CurrentConnection != "" {
			_, ok := st.Connections[st.CurrentConnection]
			require.True(rt, ok)
		}
		for name, sc := range st.Connections {
			require.Equal(rt, name, sc.Name)
		}
	})
}
