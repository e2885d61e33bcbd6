// Package inbox holds the merged canonical thread collection and the
// operations performed against it: merge ordering, filtering, selection,
// and bulk state changes with optimistic rollback.
package inbox

import (
	"sort"

	"github.com/uniboxhq/unibox/internal/models"
)

// ByChannel groups adapter outputs by source channel, in per-channel
// fetch order.
type ByChannel struct {
	SMS    []models.Thread
	Social []models.Thread
	Email  []models.Thread
}

// Merge concatenates the per-channel adapter outputs and orders them by
// descending last activity. The sort is stable: threads with equal
// activity keep their relative per-channel fetch order, never re-ranked
// by id. Merge is deterministic, so identical inputs always produce
// identical output ordering.
func Merge(byChannel ByChannel) []models.Thread {
	total := len(byChannel.SMS) + len(byChannel.Social) + len(byChannel.Email)
	if total == 0 {
		return nil
	}

	merged := make([]models.Thread, 0, total)
	merged = append(merged, models.CloneThreads(byChannel.SMS)...)
	merged = append(merged, models.CloneThreads(byChannel.Social)...)
	merged = append(merged, models.CloneThreads(byChannel.Email)...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].LastActivityAt.After(merged[j].LastActivityAt)
	})
	return merged
}
