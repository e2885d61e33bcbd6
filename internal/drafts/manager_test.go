package drafts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDebounce = 30 * time.Millisecond
	waitFor      = 2 * time.Second
	tick         = 5 * time.Millisecond
)

type putRecord struct {
	threadID string
	content  string
}

type fakeStore struct {
	mu      sync.Mutex
	puts    []putRecord
	drafts  map[string]string
	putErr  error
	getErr  error
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{drafts: make(map[string]string)}
}

func (s *fakeStore) Put(_ context.Context, threadID, content string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.puts = append(s.puts, putRecord{threadID: threadID, content: content})
	s.drafts[threadID] = content
	return nil
}

func (s *fakeStore) Get(_ context.Context, threadID string) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", time.Time{}, s.getErr
	}
	content, ok := s.drafts[threadID]
	if !ok {
		return "", time.Time{}, errors.New("draft not found")
	}
	return content, time.Time{}, nil
}

func (s *fakeStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, threadID)
	s.deleted = append(s.deleted, threadID)
	return nil
}

func (s *fakeStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

func (s *fakeStore) lastPut() (putRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.puts) == 0 {
		return putRecord{}, false
	}
	return s.puts[len(s.puts)-1], true
}

func TestManager_DebounceTrailingEdge(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, WithDebounce(testDebounce))
	defer m.Close()

	m.OnContentChange("t1", "h")
	m.OnContentChange("t1", "he")
	m.OnContentChange("t1", "hello")

	require.Eventually(t, func() bool {
		return store.putCount() == 1
	}, waitFor, tick, "expected exactly one write after the burst settled")

	last, ok := store.lastPut()
	require.True(t, ok)
	assert.Equal(t, "t1", last.threadID)
	assert.Equal(t, "hello", last.content, "only the final content should commit")

	// No further writes once settled.
	time.Sleep(3 * testDebounce)
	assert.Equal(t, 1, store.putCount())
}

func TestManager_CancelDropsPendingWithoutFlush(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, WithDebounce(testDebounce))
	defer m.Close()

	m.OnContentChange("t1", "typed then switched away")
	m.Cancel("t1")

	time.Sleep(3 * testDebounce)
	assert.Equal(t, 0, store.putCount(), "canceled draft must not flush")
}

func TestManager_PerThreadTimersAreIndependent(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, WithDebounce(testDebounce))
	defer m.Close()

	m.OnContentChange("t1", "first draft")
	m.OnContentChange("t2", "second draft")
	m.Cancel("t1")

	require.Eventually(t, func() bool {
		return store.putCount() == 1
	}, waitFor, tick)

	last, ok := store.lastPut()
	require.True(t, ok)
	assert.Equal(t, "t2", last.threadID, "canceling t1 must not touch t2's window")
}

func TestManager_RestoreShortCircuitsOnExistingContent(t *testing.T) {
	store := newFakeStore()
	store.drafts["t1"] = "persisted"
	m := NewManager(store)
	defer m.Close()

	content, ok := m.Restore(context.Background(), "t1", "already typing")
	assert.False(t, ok)
	assert.Empty(t, content)
}

func TestManager_RestoreReturnsPersistedDraft(t *testing.T) {
	store := newFakeStore()
	store.drafts["t1"] = "persisted"
	m := NewManager(store)
	defer m.Close()

	content, ok := m.Restore(context.Background(), "t1", "")
	require.True(t, ok)
	assert.Equal(t, "persisted", content)
}

func TestManager_RestoreMissingDraft(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store)
	defer m.Close()

	_, ok := m.Restore(context.Background(), "t1", "")
	assert.False(t, ok)
}

func TestManager_ClearCancelsPendingAndDeletes(t *testing.T) {
	store := newFakeStore()
	store.drafts["t1"] = "old"
	m := NewManager(store, WithDebounce(testDebounce))
	defer m.Close()

	m.OnContentChange("t1", "about to send")
	m.Clear(context.Background(), "t1")

	time.Sleep(3 * testDebounce)
	assert.Equal(t, 0, store.putCount(), "pending write must not outlive clear")
	assert.Contains(t, store.deleted, "t1")

	// Clearing again is a no-op.
	m.Clear(context.Background(), "t1")
	assert.Len(t, store.deleted, 2)
}

func TestManager_StorageErrorSwallowed(t *testing.T) {
	store := newFakeStore()
	store.putErr = errors.New("disk full")
	m := NewManager(store, WithDebounce(testDebounce))
	defer m.Close()

	// Must not panic or surface anywhere; the draft is simply lost.
	m.OnContentChange("t1", "doomed")
	time.Sleep(3 * testDebounce)
	assert.Equal(t, 0, store.putCount())
}

func TestManager_CloseStopsTimers(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, WithDebounce(testDebounce))

	m.OnContentChange("t1", "pending")
	m.Close()

	time.Sleep(3 * testDebounce)
	assert.Equal(t, 0, store.putCount())

	m.OnContentChange("t2", "after close")
	time.Sleep(3 * testDebounce)
	assert.Equal(t, 0, store.putCount())
}

// A timer can fire concurrently with a restart: Stop reports false, but
// the flush has not run yet and must not outlive a Cancel that follows.
func TestManager_CancelAfterTimerFires(t *testing.T) {
	for i := 0; i < 50; i++ {
		store := newFakeStore()
		m := NewManager(store, WithDebounce(time.Millisecond))

		m.OnContentChange("t1", "stale")
		time.Sleep(3 * time.Millisecond)
		m.OnContentChange("t1", "replaced")
		m.Cancel("t1")

		base := store.putCount()
		time.Sleep(5 * time.Millisecond)
		require.Equal(t, base, store.putCount(), "iteration %d: draft write committed after Cancel", i)
		if rec, ok := store.lastPut(); ok {
			require.NotEqual(t, "replaced", rec.content, "iteration %d: canceled content reached the store", i)
		}
		m.Close()
	}
}
