// Package drafts persists per-thread compose drafts with a trailing-edge
// debounce, so a burst of keystrokes costs one storage write once the
// content has been idle for the debounce window.
package drafts

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/uniboxhq/unibox/internal/logging"
)

// DefaultDebounce is the idle window after the last content change before
// a draft is committed to storage.
const DefaultDebounce = 3 * time.Second

// Store is the persistence surface the manager writes through. It is
// satisfied by db.DraftRepository.
type Store interface {
	Put(ctx context.Context, threadID, content string, savedAt time.Time) error
	Get(ctx context.Context, threadID string) (content string, savedAt time.Time, err error)
	Delete(ctx context.Context, threadID string) error
}

// Manager debounces draft writes per thread id. Each thread carries its
// own timer, so independent threads can have in-flight debounce windows
// simultaneously. Storage failures are logged and swallowed: losing a
// draft write must never surface as a compose error.
type Manager struct {
	mu       sync.Mutex
	store    Store
	debounce time.Duration
	pending  map[string]*pendingWrite
	nextGen  uint64
	now      func() time.Time
	logger   zerolog.Logger
	closed   bool
}

// pendingWrite is one armed debounce. The generation pins the write to
// the OnContentChange call that scheduled it: a fired timer whose entry
// was replaced or canceled in the meantime finds a stale generation and
// must not touch the store.
type pendingWrite struct {
	timer *time.Timer
	gen   uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithDebounce overrides the idle window before a draft write commits.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.debounce = d
		}
	}
}

// WithNow overrides the clock used for savedAt stamps.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a draft manager over the given store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		debounce: DefaultDebounce,
		pending:  make(map[string]*pendingWrite),
		now:      time.Now,
		logger:   logging.Component("drafts"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnContentChange records the latest content for a thread and restarts
// that thread's debounce timer. The write commits only after the content
// has been stable for the full debounce window; every call before then
// cancels and replaces the pending write.
func (m *Manager) OnContentChange(threadID, content string) {
	if threadID == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	if prev, ok := m.pending[threadID]; ok {
		prev.timer.Stop()
	}
	m.nextGen++
	gen := m.nextGen
	m.pending[threadID] = &pendingWrite{
		gen: gen,
		timer: time.AfterFunc(m.debounce, func() {
			m.flush(threadID, content, gen)
		}),
	}
}

// flush commits one debounced write. It runs on the timer goroutine after
// the idle window elapsed without another change for this thread. Stop on
// a fired timer is a no-op, so the generation check is what makes Cancel
// and restarts final: a stale flush backs out without writing.
func (m *Manager) flush(threadID, content string, gen uint64) {
	m.mu.Lock()
	pw, ok := m.pending[threadID]
	if !ok || pw.gen != gen || m.closed {
		m.mu.Unlock()
		return
	}
	delete(m.pending, threadID)
	m.mu.Unlock()

	if err := m.store.Put(context.Background(), threadID, content, m.now().UTC()); err != nil {
		logger := logging.WithThread(m.logger, threadID)
		logger.Warn().Err(err).Msg("draft write failed")
	}
}

// Cancel drops any pending debounce for a thread without flushing it.
// Called on thread switch: a sub-window keystroke burst on the thread
// being left is allowed to be lost. Timers for other threads are
// untouched.
func (m *Manager) Cancel(threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pw, ok := m.pending[threadID]; ok {
		pw.timer.Stop()
		delete(m.pending, threadID)
	}
}

// Restore returns the persisted draft for a thread, called once on thread
// selection. It short-circuits when the caller already has content, and
// reports false when no draft exists or the store cannot be read.
func (m *Manager) Restore(ctx context.Context, threadID, current string) (string, bool) {
	if threadID == "" || current != "" {
		return "", false
	}

	content, _, err := m.store.Get(ctx, threadID)
	if err != nil {
		return "", false
	}
	return content, true
}

// Clear cancels any pending write for a thread and removes its persisted
// draft. Clearing an absent draft is a no-op, never an error.
func (m *Manager) Clear(ctx context.Context, threadID string) {
	m.Cancel(threadID)

	if err := m.store.Delete(ctx, threadID); err != nil {
		logger := logging.WithThread(m.logger, threadID)
		logger.Warn().Err(err).Msg("draft clear failed")
	}
}

// Close stops all pending timers without flushing. The manager refuses
// new work afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, pw := range m.pending {
		pw.timer.Stop()
		delete(m.pending, id)
	}
}
