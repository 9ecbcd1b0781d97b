package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContext_Key(t *testing.T) {
	ctx := NewContext("Patient", "p1").WithDisplay("Jane Doe")
	require.Equal(t, ContextKey("Patient/p1"), ctx.Key())
	require.Equal(t, NewContext("Patient", "p1").Key(), ctx.Key(), "display does not affect identity")
}

func TestContext_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ctx     Context
		wantErr bool
	}{
		{name: "valid", ctx: NewContext("Patient", "p1")},
		{name: "missing type", ctx: Context{ResourceID: "p1"}, wantErr: true},
		{name: "missing id", ctx: Context{ResourceType: "Patient"}, wantErr: true},
		{name: "display optional", ctx: NewContext("Patient", "p1").WithDisplay("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ctx.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseContextKey(t *testing.T) {
	tests := []struct {
		input    string
		wantType string
		wantID   string
		wantErr  bool
	}{
		{input: "Patient/p1", wantType: "Patient", wantID: "p1"},
		{input: "Patient/a/b", wantType: "Patient", wantID: "a/b"},
		{input: "Patient", wantErr: true},
		{input: "/p1", wantErr: true},
		{input: "Patient/", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			gotType, gotID, err := ParseContextKey(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantType, gotType)
			require.Equal(t, tt.wantID, gotID)
		})
	}
}

func TestConnection_CloneIsDeep(t *testing.T) {
	orig := NewConnection("c1", "http://a", NewContext("Patient", "p1"))
	clone := orig.Clone()
	clone.Contexts["Patient/p2"] = NewContext("Patient", "p2")

	require.Len(t, orig.Contexts, 1)
	require.Len(t, clone.Contexts, 2)
}

func TestConnection_ContextListSorted(t *testing.T) {
	conn := NewConnection("c1", "http://a",
		NewContext("Patient", "b"),
		NewContext("Encounter", "z"),
		NewContext("Patient", "a"),
	)

	require.Equal(t, []ContextKey{"Encounter/z", "Patient/a", "Patient/b"}, conn.ContextKeys())
	require.Equal(t, "z", conn.ContextList()[0].ResourceID)
}

func TestError_Kinds(t *testing.T) {
	cause := errorString("disk full")
	err := NewPersistenceError("save state", cause)

	require.ErrorIs(t, err, ErrPersistenceFailure)
	require.ErrorIs(t, err, cause)
	require.Equal(t, KindPersistence, KindOf(err))
	require.Equal(t, "persistence_failure", KindOf(err).String())
	require.Equal(t, KindUnknown, KindOf(cause))
	require.NoError(t, NewPersistenceError("save state", nil))
}

type errorString string

func (e errorString) Error() string { return string(e) }
