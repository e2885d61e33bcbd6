package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/uniboxhq/unibox/internal/models"
)

// Escalation repository errors.
var ErrInvalidEscalationEvent = errors.New("invalid escalation event")

// EscalationRepository keeps an append-only log of escalation lifecycle
// events so dashboard restarts can replay recent history.
type EscalationRepository struct {
	db *DB
}

// NewEscalationRepository creates a new EscalationRepository.
func NewEscalationRepository(db *DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

// Append adds one event to the log, filling id and timestamp if absent.
func (r *EscalationRepository) Append(ctx context.Context, event *models.EscalationEvent) error {
	if event == nil || event.Type == "" || event.EscalationID == "" {
		return ErrInvalidEscalationEvent
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	} else {
		event.Timestamp = event.Timestamp.UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO escalation_events (id, timestamp, type, escalation_id, payload_json)
		VALUES (?, ?, ?, ?, ?)
	`,
		event.ID,
		event.Timestamp.Format(time.RFC3339Nano),
		event.Type,
		event.EscalationID,
		nullable(event.Payload),
	)
	if err != nil {
		return fmt.Errorf("append escalation event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (r *EscalationRepository) Recent(ctx context.Context, limit int) ([]*models.EscalationEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, type, escalation_id, payload_json
		FROM escalation_events
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query escalation events: %w", err)
	}
	defer rows.Close()

	var events []*models.EscalationEvent
	for rows.Next() {
		var event models.EscalationEvent
		var timestampRaw string
		var payload *string
		if err := rows.Scan(&event.ID, &timestampRaw, &event.Type, &event.EscalationID, &payload); err != nil {
			return nil, fmt.Errorf("scan escalation event: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, timestampRaw)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp: %w", err)
		}
		event.Timestamp = parsed
		if payload != nil {
			event.Payload = *payload
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// Prune deletes events older than the cutoff, returning rows removed.
func (r *EscalationRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM escalation_events WHERE timestamp < ?
	`, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune escalation events: %w", err)
	}
	return result.RowsAffected()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
