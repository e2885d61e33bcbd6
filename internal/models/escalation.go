package models

import "time"

// EscalationStats is the streaming aggregate of escalation lifecycle
// counters. It is mutated only by the live-sync client, one event delta at
// a time; it is never recomputed by re-summing a collection.
type EscalationStats struct {
	Pending     int `json:"pending"`
	Assigned    int `json:"assigned"`
	InProgress  int `json:"in_progress"`
	TotalActive int `json:"total_active"`
}

// EscalationEvent is one persisted entry in the escalation event log.
type EscalationEvent struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Type         string    `json:"type"`
	EscalationID string    `json:"escalation_id"`
	Payload      string    `json:"payload,omitempty"`
}
