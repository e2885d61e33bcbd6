package livesync

import "github.com/uniboxhq/unibox/internal/models"

// Inbound event types on the escalation socket.
const (
	eventConnectionEstablished = "connection_established"
	eventEscalationCreated     = "escalation_created"
	eventEscalationUpdated     = "escalation_updated"
	eventEscalationResolved    = "escalation_resolved"
	eventStatsUpdated          = "stats_updated"
	eventPong                  = "pong"
	eventError                 = "error"
)

// Escalation update qualifiers.
const (
	subTypeAssigned  = "assigned"
	statusInProgress = "in_progress"
)

// ServerEvent is one newline-delimited JSON object read off the socket.
type ServerEvent struct {
	Type         string                  `json:"type"`
	EscalationID string                  `json:"escalation_id,omitempty"`
	SubType      string                  `json:"sub_type,omitempty"`
	Status       string                  `json:"status,omitempty"`
	Stats        *models.EscalationStats `json:"stats,omitempty"`
	Message      string                  `json:"message,omitempty"`
}

// applyEvent folds one server event into the stats aggregate and reports
// whether the aggregate changed. Every event carries a delta, never a
// snapshot, except stats_updated which replaces the aggregate wholesale.
// Decrements clamp at zero: out-of-order delivery or a missed event must
// not drive a displayed counter negative.
func applyEvent(stats models.EscalationStats, event *ServerEvent) (models.EscalationStats, bool) {
	switch event.Type {
	case eventEscalationCreated:
		stats.Pending++
		stats.TotalActive++
		return stats, true
	case eventEscalationUpdated:
		if event.SubType == subTypeAssigned {
			stats.Pending = clamp(stats.Pending - 1)
			stats.Assigned++
			return stats, true
		}
		if event.Status == statusInProgress {
			stats.Assigned = clamp(stats.Assigned - 1)
			stats.InProgress++
			return stats, true
		}
		return stats, false
	case eventEscalationResolved:
		stats.InProgress = clamp(stats.InProgress - 1)
		stats.TotalActive = clamp(stats.TotalActive - 1)
		return stats, true
	case eventStatsUpdated:
		if event.Stats == nil {
			return stats, false
		}
		return *event.Stats, true
	default:
		return stats, false
	}
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
