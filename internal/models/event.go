package models

import (
	"encoding/json"
	"time"
)

// EventType categorizes events in the system.
type EventType string

const (
	// Inbox events
	EventTypeThreadsMerged EventType = "inbox.threads_merged"
	EventTypeBulkSettled   EventType = "inbox.bulk_settled"
	EventTypeBulkFailed    EventType = "inbox.bulk_failed"

	// Escalation events
	EventTypeEscalationCreated    EventType = "escalation.created"
	EventTypeEscalationAssigned   EventType = "escalation.assigned"
	EventTypeEscalationInProgress EventType = "escalation.in_progress"
	EventTypeEscalationResolved   EventType = "escalation.resolved"
	EventTypeStatsReplaced        EventType = "escalation.stats_replaced"

	// Connection events
	EventTypeConnected          EventType = "connection.established"
	EventTypeConnectionLost     EventType = "connection.lost"
	EventTypeConnectionTerminal EventType = "connection.terminal"

	// System events
	EventTypeError   EventType = "error"
	EventTypeWarning EventType = "warning"
)

// EntityType identifies the type of entity an event relates to.
type EntityType string

const (
	EntityTypeThread     EntityType = "thread"
	EntityTypeBatch      EntityType = "batch"
	EntityTypeEscalation EntityType = "escalation"
	EntityTypeConnection EntityType = "connection"
	EntityTypeSystem     EntityType = "system"
)

// Event represents one notification delivered through the in-process
// publisher, feeding dashboard counters and the TUI.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// EntityType identifies what kind of entity this event relates to.
	EntityType EntityType `json:"entity_type"`

	// EntityID is the ID of the related entity.
	EntityID string `json:"entity_id"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// BulkSettledPayload is the payload for inbox.bulk_settled events.
type BulkSettledPayload struct {
	Action    string   `json:"action"`
	ThreadIDs []string `json:"thread_ids"`
}

// BulkFailedPayload is the payload for inbox.bulk_failed events.
type BulkFailedPayload struct {
	Action     string   `json:"action"`
	ThreadIDs  []string `json:"thread_ids"`
	Error      string   `json:"error"`
	RolledBack bool     `json:"rolled_back"`
}

// StatsPayload carries the aggregate after an escalation event applied.
type StatsPayload struct {
	Stats EscalationStats `json:"stats"`
}

// ConnectionPayload is the payload for connection lifecycle events.
type ConnectionPayload struct {
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error,omitempty"`
}
