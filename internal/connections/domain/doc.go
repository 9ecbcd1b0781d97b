// Package domain implements the connection registry core.
//
// This package holds only pure Go code with standard library imports and
// has no knowledge of files, databases, or the command layer.
//
// # Core Types
//
// Context references a clinical resource instance by type and ID, with an
// optional display label. Its identity is derived: Key() returns
// "{resourceType}/{resourceID}" and is never stored separately.
//
// Connection is a named endpoint owning a map of contexts keyed by derived key.
//
// Registry is the ordered collection of connections plus the current-selection
// pointer. It enforces:
//   - connection names are unique (exact, case-sensitive match)
//   - the current name always resolves to an existing connection, or is empty
//   - context keys within a connection are unique
//
// # Persistence
//
// State is the serialized document. Registry.Snapshot and Registry.Restore
// convert between the two, and StateStore is the interface backends implement.
//
// # Errors
//
// All failures are *Error values carrying a Kind. Match them with errors.Is
// against ErrInvalidArgument, ErrNotFound, or ErrPersistenceFailure.
package domain
