package presentation

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/cqlconn/internal/connections/domain"
	"github.com/zjrosen/cqlconn/internal/testutil"
)

func TestFromDomainConnections(t *testing.T) {
	r := testutil.NewBuilder(t).WithStandardTestData().Registry()

	dtos := FromDomainConnections(r.GetAllConnections(), r.CurrentName())
	require.Len(t, dtos, 3)
	require.Equal(t, "Local", dtos[0].Name)
	require.True(t, dtos[0].Current)
	require.False(t, dtos[1].Current)

	keys := make([]string, 0, len(dtos[0].Contexts))
	for _, c := range dtos[0].Contexts {
		keys = append(keys, c.Key)
	}
	require.Equal(t, []string{"Encounter/e-1", "Patient/123", "Patient/456"}, keys)

	require.NotNil(t, dtos[1].Contexts, "contexts is always an array")
	require.Equal(t, "Jane Doe", dtos[2].Contexts[0].ResourceDisplay)
}

func TestFromDomainConnection_NoCurrent(t *testing.T) {
	dto := FromDomainConnection(domain.NewConnection("", "http://x"), "")
	require.False(t, dto.Current, "an empty name never matches an unset selection")
}

func TestFormatter_FormatConnections(t *testing.T) {
	var buf bytes.Buffer
	dtos := []ConnectionDTO{{Name: "A", Endpoint: "http://a", Contexts: []ContextDTO{}}}
	require.NoError(t, NewFormatter(&buf).FormatConnections(dtos))

	require.Equal(t, `[
  {
    "name": "A",
    "endpoint": "http://a",
    "current": false,
    "contexts": []
  }
]
`, buf.String())
}

func TestFormatter_FormatResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf).FormatResult(ResultDTO{Action: "deleted", Connection: "A"}))

	var got map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, map[string]string{"action": "deleted", "connection": "A"}, got)
}

func TestFormatter_FormatDiff(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, f.FormatDiff(at, ""))
	require.Empty(t, buf.String())

	require.NoError(t, f.FormatDiff(at, "+ x\n"))
	require.Equal(t, "@@ 2026-01-02T03:04:05Z\n+ x\n", buf.String())
}

func TestDiffStates_Equal(t *testing.T) {
	st := testutil.NewBuilder(t).WithStandardTestData().State()
	diff, err := DiffStates(st, st)
	require.NoError(t, err)
	require.Empty(t, diff)
}

func TestDiffStates_EndpointChange(t *testing.T) {
	before := testutil.NewBuilder(t).WithConnection("A", testutil.Endpoint("http://old")).State()
	after := testutil.NewBuilder(t).WithConnection("A", testutil.Endpoint("http://new")).State()

	diff, err := DiffStates(before, after)
	require.NoError(t, err)
	require.Equal(t, `-       "endpoint": "http://old",
+       "endpoint": "http://new",
`, diff)
}

func TestDiffStates_SelectionAdded(t *testing.T) {
	before := testutil.NewBuilder(t).WithConnection("A").State()
	after := testutil.NewBuilder(t).WithConnection("A").WithCurrent("A").State()

	diff, err := DiffStates(before, after)
	require.NoError(t, err)
	require.Contains(t, diff, `+   "currentConnection": "A"`)
	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		require.True(t, strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "+ "), line)
	}
}

func TestDiffStates_FromNothing(t *testing.T) {
	after := testutil.NewBuilder(t).WithConnection("A").State()
	diff, err := DiffStates(nil, after)
	require.NoError(t, err)
	require.Contains(t, diff, `+       "name": "A",`)
}
