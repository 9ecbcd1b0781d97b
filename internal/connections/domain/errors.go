package domain

import (
	"errors"
	"fmt"
)

// Kind classifies registry failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindNotFound
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence_failure"
	default:
		return "unknown"
	}
}

// Sentinel errors for errors.Is matching.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("connection not found")
	ErrPersistenceFailure = errors.New("persistence failure")
)

// Error is the typed error returned by registry operations.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "set current connection"
	Name string // connection name, if any
	Err  error
}

func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnknown if err is not a registry error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// NewPersistenceError wraps a store failure so callers can match ErrPersistenceFailure
// as well as the underlying cause.
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind: KindPersistence,
		Op:   op,
		Err:  fmt.Errorf("%w: %w", ErrPersistenceFailure, err),
	}
}

func invalidArgument(op, name, reason string) error {
	return &Error{
		Kind: KindInvalidArgument,
		Op:   op,
		Name: name,
		Err:  fmt.Errorf("%w: %s", ErrInvalidArgument, reason),
	}
}

func notFound(op, name string) error {
	return &Error{
		Kind: KindNotFound,
		Op:   op,
		Name: name,
		Err:  ErrNotFound,
	}
}
