// Package pubsub provides a generic publish/subscribe event system used to
// fan out registry changes, flush outcomes, and log entries.
package pubsub

import "time"

// EventType represents the type of event being published.
type EventType string

const (
	UpsertedEvent    EventType = "upserted"     // connection created or updated
	ContextEvent     EventType = "context"      // context added, replaced, or removed
	DeletedEvent     EventType = "deleted"      // connection removed
	SelectedEvent    EventType = "selected"     // current connection changed
	ClearedEvent     EventType = "cleared"      // every connection removed
	FlushedEvent     EventType = "flushed"      // state written to the store
	FlushFailedEvent EventType = "flush_failed" // state write failed
	LogEvent         EventType = "log"          // log entry written
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}
