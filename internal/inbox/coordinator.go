package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uniboxhq/unibox/internal/events"
	"github.com/uniboxhq/unibox/internal/logging"
	"github.com/uniboxhq/unibox/internal/models"
)

// Action is a bulk state-changing verb.
type Action string

const (
	ActionMarkRead   Action = "mark_read"
	ActionMarkUnread Action = "mark_unread"
	ActionStar       Action = "star"
	ActionUnstar     Action = "unstar"
	ActionArchive    Action = "archive"
	ActionDelete     Action = "delete"
)

// IsValid reports whether a is a known bulk action.
func (a Action) IsValid() bool {
	switch a {
	case ActionMarkRead, ActionMarkUnread, ActionStar, ActionUnstar, ActionArchive, ActionDelete:
		return true
	}
	return false
}

// Coordinator errors.
var (
	ErrUnknownAction      = errors.New("unknown bulk action")
	ErrNoSelection        = errors.New("no threads selected")
	ErrActionInFlight     = errors.New("bulk action already in flight for selected threads")
	ErrDeleteNotConfirmed = errors.New("delete requires explicit confirmation")
)

// BulkSender dispatches a bulk action to the backend. Implementations
// must resolve or reject exactly once per call.
type BulkSender interface {
	SendBulkAction(ctx context.Context, action Action, threadIDs []string) error
}

// Request describes one bulk action invocation. ThreadIDs defaults to
// the current selection when empty. Confirmed must be set for delete.
type Request struct {
	Action    Action
	ThreadIDs []string
	Confirmed bool
}

// Result reports a settled bulk action.
type Result struct {
	BatchID   string
	Action    Action
	ThreadIDs []string
}

// BulkError is returned when a dispatched batch fails. The optimistic
// mutation for exactly this batch has been rolled back by the time the
// caller sees it.
type BulkError struct {
	BatchID   string
	Action    Action
	ThreadIDs []string
	Err       error
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("bulk %s for %d threads failed: %v", e.Action, len(e.ThreadIDs), e.Err)
}

func (e *BulkError) Unwrap() error {
	return e.Err
}

// snapshotEntry records the pre-dispatch state needed to roll one thread
// back. Flag actions capture only the flag they flip, so an unrelated
// optimistic mutation in flight on the same thread survives a rollback.
// Delete captures the whole thread plus its position in merged order.
type snapshotEntry struct {
	threadID string
	flag     bool
	thread   models.Thread
	position int
}

// Coordinator owns the merged thread collection, the selection set, and
// the per-action in-flight bookkeeping that guarantees at most one
// concurrent mutation per thread per action type.
type Coordinator struct {
	sender    BulkSender
	publisher *events.InMemoryPublisher
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string

	mu        sync.Mutex
	order     []string
	threads   map[string]models.Thread
	channel   models.Channel
	selection *selection
	inflight  map[Action]map[string]struct{}
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithPublisher wires an event publisher for bulk lifecycle events.
func WithPublisher(publisher *events.InMemoryPublisher) CoordinatorOption {
	return func(c *Coordinator) {
		c.publisher = publisher
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides batch id generation, for tests.
func WithIDGenerator(gen func() string) CoordinatorOption {
	return func(c *Coordinator) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// NewCoordinator creates a Coordinator dispatching through sender.
func NewCoordinator(sender BulkSender, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		sender:    sender,
		logger:    logging.Component("bulk-coordinator"),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
		threads:   make(map[string]models.Thread),
		selection: newSelection(),
		inflight:  make(map[Action]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetThreads replaces the owned collection with fresh merge output,
// keeping only selection entries that still resolve to a thread.
func (c *Coordinator) SetThreads(threads []models.Thread) {
	c.mu.Lock()
	c.order = make([]string, 0, len(threads))
	c.threads = make(map[string]models.Thread, len(threads))
	for i := range threads {
		thread := threads[i].Clone()
		c.order = append(c.order, thread.ID)
		c.threads[thread.ID] = thread
	}
	c.selection.retain(c.threads)
	count := len(c.order)
	c.mu.Unlock()

	c.publish(models.EventTypeThreadsMerged, models.EntityTypeThread, "", nil)
	c.logger.Debug().Int("threads", count).Msg("thread collection replaced")
}

// Threads returns the collection in merged order.
func (c *Coordinator) Threads() []models.Thread {
	c.mu.Lock()
	defer c.mu.Unlock()

	threads := make([]models.Thread, 0, len(c.order))
	for _, id := range c.order {
		threads = append(threads, c.threads[id].Clone())
	}
	return threads
}

// Thread returns one thread by id.
func (c *Coordinator) Thread(id string) (models.Thread, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[id]
	if !ok {
		return models.Thread{}, false
	}
	return thread.Clone(), true
}

// Select adds a thread to the selection set.
func (c *Coordinator) Select(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.threads[id]; !ok {
		return false
	}
	c.selection.add(id)
	return true
}

// Deselect removes a thread from the selection set.
func (c *Coordinator) Deselect(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.remove(id)
}

// ToggleSelect flips a thread's membership and reports the new state.
func (c *Coordinator) ToggleSelect(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.threads[id]; !ok {
		return false
	}
	return c.selection.toggle(id)
}

// Selected reports whether a thread is in the selection set.
func (c *Coordinator) Selected(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.has(id)
}

// Selection returns the selected ids in merged order.
func (c *Coordinator) Selection() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectionLocked()
}

func (c *Coordinator) selectionLocked() []string {
	ids := make([]string, 0, c.selection.len())
	for _, id := range c.order {
		if c.selection.has(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// ClearSelection empties the selection set.
func (c *Coordinator) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.clear()
}

// SetChannel records the active channel filter. Changing channel clears
// the selection set.
func (c *Coordinator) SetChannel(channel models.Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != channel {
		c.channel = channel
		c.selection.clear()
	}
}

// Apply dispatches one bulk action: optimistic local mutation first, then
// the network call; rollback of exactly this batch on failure. There is
// no cancellation path once dispatched; callers can only await
// settlement.
func (c *Coordinator) Apply(ctx context.Context, req Request) (Result, error) {
	if !req.Action.IsValid() {
		return Result{}, ErrUnknownAction
	}
	if req.Action == ActionDelete && !req.Confirmed {
		return Result{}, ErrDeleteNotConfirmed
	}

	c.mu.Lock()
	ids := req.ThreadIDs
	if len(ids) == 0 {
		ids = c.selectionLocked()
	}
	ids = c.knownLocked(ids)
	if len(ids) == 0 {
		c.mu.Unlock()
		return Result{}, ErrNoSelection
	}

	if c.overlapsLocked(req.Action, ids) {
		c.mu.Unlock()
		return Result{}, ErrActionInFlight
	}

	batchID := c.newID()
	snapshot := c.applyOptimisticLocked(req.Action, ids)
	c.markInFlightLocked(req.Action, ids)
	c.mu.Unlock()

	logger := logging.WithBatch(c.logger, batchID).With().Str("action", string(req.Action)).Int("threads", len(ids)).Logger()
	logger.Debug().Msg("dispatching bulk action")

	err := c.sender.SendBulkAction(ctx, req.Action, ids)

	c.mu.Lock()
	c.clearInFlightLocked(req.Action, ids)
	if err != nil {
		c.rollbackLocked(req.Action, snapshot)
		c.mu.Unlock()

		logger.Warn().Err(err).Msg("bulk action failed, rolled back")
		c.publishBulkFailed(batchID, req.Action, ids, err)
		return Result{}, &BulkError{BatchID: batchID, Action: req.Action, ThreadIDs: ids, Err: err}
	}
	c.selection.clear()
	c.mu.Unlock()

	logger.Debug().Msg("bulk action settled")
	c.publishBulkSettled(batchID, req.Action, ids)
	return Result{BatchID: batchID, Action: req.Action, ThreadIDs: ids}, nil
}

// InFlight reports whether any thread has the given action dispatching.
func (c *Coordinator) InFlight(action Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight[action]) > 0
}

func (c *Coordinator) knownLocked(ids []string) []string {
	known := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := c.threads[id]; ok {
			known = append(known, id)
		}
	}
	return known
}

func (c *Coordinator) overlapsLocked(action Action, ids []string) bool {
	inFlight := c.inflight[action]
	if len(inFlight) == 0 {
		return false
	}
	for _, id := range ids {
		if _, ok := inFlight[id]; ok {
			return true
		}
	}
	return false
}

func (c *Coordinator) markInFlightLocked(action Action, ids []string) {
	set := c.inflight[action]
	if set == nil {
		set = make(map[string]struct{}, len(ids))
		c.inflight[action] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

func (c *Coordinator) clearInFlightLocked(action Action, ids []string) {
	set := c.inflight[action]
	for _, id := range ids {
		delete(set, id)
	}
}

// applyOptimisticLocked flips local state before the network call and
// returns the snapshot needed to undo exactly that flip.
func (c *Coordinator) applyOptimisticLocked(action Action, ids []string) []snapshotEntry {
	snapshot := make([]snapshotEntry, 0, len(ids))

	for _, id := range ids {
		thread := c.threads[id]
		entry := snapshotEntry{threadID: id}

		switch action {
		case ActionMarkRead, ActionMarkUnread:
			entry.flag = thread.IsUnread
			thread.IsUnread = action == ActionMarkUnread
			c.threads[id] = thread
		case ActionStar, ActionUnstar:
			entry.flag = thread.IsStarred
			thread.IsStarred = action == ActionStar
			c.threads[id] = thread
		case ActionArchive:
			entry.flag = thread.IsArchived
			thread.IsArchived = true
			c.threads[id] = thread
		case ActionDelete:
			entry.thread = thread.Clone()
			entry.position = c.positionLocked(id)
			delete(c.threads, id)
			c.removeFromOrderLocked(id)
		}
		snapshot = append(snapshot, entry)
	}
	return snapshot
}

// rollbackLocked restores the pre-dispatch state for exactly the ids in
// the failed batch. Flag rollbacks restore only the touched flag, so a
// concurrent optimistic mutation of a different action type survives.
func (c *Coordinator) rollbackLocked(action Action, snapshot []snapshotEntry) {
	if action == ActionDelete {
		// Reinsert at original positions, lowest first, so later
		// positions stay meaningful.
		entries := make([]snapshotEntry, len(snapshot))
		copy(entries, snapshot)
		sort.Slice(entries, func(i, j int) bool { return entries[i].position < entries[j].position })
		for _, entry := range entries {
			c.threads[entry.threadID] = entry.thread
			c.insertOrderLocked(entry.threadID, entry.position)
		}
		return
	}

	for _, entry := range snapshot {
		thread, ok := c.threads[entry.threadID]
		if !ok {
			continue
		}
		switch action {
		case ActionMarkRead, ActionMarkUnread:
			thread.IsUnread = entry.flag
		case ActionStar, ActionUnstar:
			thread.IsStarred = entry.flag
		case ActionArchive:
			thread.IsArchived = entry.flag
		}
		c.threads[entry.threadID] = thread
	}
}

func (c *Coordinator) positionLocked(id string) int {
	for i, candidate := range c.order {
		if candidate == id {
			return i
		}
	}
	return len(c.order)
}

func (c *Coordinator) removeFromOrderLocked(id string) {
	for i, candidate := range c.order {
		if candidate == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Coordinator) insertOrderLocked(id string, position int) {
	if position > len(c.order) {
		position = len(c.order)
	}
	c.order = append(c.order, "")
	copy(c.order[position+1:], c.order[position:])
	c.order[position] = id
}

func (c *Coordinator) publishBulkSettled(batchID string, action Action, ids []string) {
	payload, _ := json.Marshal(models.BulkSettledPayload{Action: string(action), ThreadIDs: ids})
	c.publish(models.EventTypeBulkSettled, models.EntityTypeBatch, batchID, payload)
}

func (c *Coordinator) publishBulkFailed(batchID string, action Action, ids []string, err error) {
	payload, _ := json.Marshal(models.BulkFailedPayload{
		Action:     string(action),
		ThreadIDs:  ids,
		Error:      err.Error(),
		RolledBack: true,
	})
	c.publish(models.EventTypeBulkFailed, models.EntityTypeBatch, batchID, payload)
}

func (c *Coordinator) publish(eventType models.EventType, entityType models.EntityType, entityID string, payload json.RawMessage) {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(context.Background(), &models.Event{
		ID:         c.newID(),
		Timestamp:  c.now(),
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
	})
}
