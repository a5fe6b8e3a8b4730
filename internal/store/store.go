package store

import (
	"time"
)

// Journal is the persistence interface for session history.
// Defined at the consumer side per Go conventions.
type Journal interface {
	// Sessions
	UpsertSession(s *SessionRecord) error
	GetSession(id string) (*SessionRecord, error)

	// Events
	AddEvent(e *EventRecord) error
	ListEvents(f EventFilter) ([]EventRecord, error)

	// Maintenance
	Cleanup(olderThan time.Time) (int64, error)
	Close() error
}

// Event types recorded in the journal.
const (
	EventTransition = "transition"
	EventFanOut     = "fan_out"
	EventIgnored    = "ignored"
)

// SessionRecord is the last known state of a session.
type SessionRecord struct {
	ID        string
	State     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EventRecord is one diagnostic event for a session.
type EventRecord struct {
	ID        int64
	SessionID string
	Type      string
	FromState string
	ToState   string
	Kind      string
	Listeners int
	CreatedAt time.Time
}

// EventFilter specifies criteria for listing events.
type EventFilter struct {
	SessionID string
	Type      string
	Limit     int
	Since     time.Time
}
