package inbox

import (
	"strings"

	"github.com/uniboxhq/unibox/internal/models"
)

// Criteria narrows the merged collection. All active criteria are
// AND-combined; a zero Criteria is the identity filter.
type Criteria struct {
	// Channel restricts to one channel; ChannelAll (or empty) passes all.
	Channel models.Channel

	// Query is a case-insensitive substring matched against the display
	// name, subject, or preview. Message bodies are never scanned.
	Query string

	UnreadOnly  bool
	StarredOnly bool
}

// Filter returns the threads matching the criteria, preserving input
// order. It is a pure function: the input is never mutated and the
// result holds fresh clones. No match yields an empty, non-nil slice so
// callers can render an explicit empty state.
//
// Archived threads are always excluded, whatever the criteria say; no
// criterion re-admits them. A zero Criteria is therefore the identity
// only over non-archived input.
func Filter(threads []models.Thread, criteria Criteria) []models.Thread {
	filtered := make([]models.Thread, 0, len(threads))
	query := strings.ToLower(strings.TrimSpace(criteria.Query))

	for i := range threads {
		if !matches(&threads[i], criteria, query) {
			continue
		}
		filtered = append(filtered, threads[i].Clone())
	}
	return filtered
}

func matches(thread *models.Thread, criteria Criteria, query string) bool {
	if thread.IsArchived {
		return false
	}
	if criteria.Channel != "" && criteria.Channel != models.ChannelAll && thread.Channel != criteria.Channel {
		return false
	}
	if criteria.UnreadOnly && !thread.IsUnread {
		return false
	}
	if criteria.StarredOnly && !thread.IsStarred {
		return false
	}
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(thread.DisplayName), query) {
		return true
	}
	if strings.Contains(strings.ToLower(thread.Subject), query) {
		return true
	}
	return strings.Contains(strings.ToLower(thread.Preview), query)
}
