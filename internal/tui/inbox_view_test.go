package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniboxhq/unibox/internal/drafts"
	"github.com/uniboxhq/unibox/internal/inbox"
	"github.com/uniboxhq/unibox/internal/models"
)

type noopSender struct{}

func (noopSender) SendBulkAction(context.Context, inbox.Action, []string) error { return nil }

func testThreads() []models.Thread {
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	return []models.Thread{
		{ID: "t-1", Channel: models.ChannelSMS, DisplayName: "Ada", Preview: "running late", IsUnread: true, LastActivityAt: base.Add(3 * time.Hour)},
		{ID: "t-2", Channel: models.ChannelEmail, DisplayName: "Grace", Subject: "Invoice", LastActivityAt: base.Add(2 * time.Hour)},
		{ID: "t-3", Channel: models.ChannelSMS, DisplayName: "Linus", Preview: "thanks!", LastActivityAt: base.Add(time.Hour)},
		{ID: "t-4", Channel: models.ChannelFacebook, DisplayName: "Margaret", IsStarred: true, LastActivityAt: base},
	}
}

func newTestModel(t *testing.T) *Model {
	t.Helper()
	coordinator := inbox.NewCoordinator(noopSender{})
	coordinator.SetThreads(testThreads())
	m := NewModel(Config{Coordinator: coordinator})
	m.Init()
	m.refilter()
	return m
}

func press(m *Model, key string) {
	var msg tea.KeyMsg
	switch key {
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "backspace":
		msg = tea.KeyMsg{Type: tea.KeyBackspace}
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	m.Update(msg)
}

func TestCursorMovesOverFilteredList(t *testing.T) {
	m := newTestModel(t)
	require.Len(t, m.Filtered(), 4)

	press(m, "j")
	press(m, "j")
	assert.Equal(t, 2, m.Cursor())

	press(m, "k")
	assert.Equal(t, 1, m.Cursor())

	// Clamped at both ends.
	press(m, "k")
	press(m, "k")
	assert.Equal(t, 0, m.Cursor())
	for i := 0; i < 10; i++ {
		press(m, "j")
	}
	assert.Equal(t, 3, m.Cursor())
}

func TestArrowKeysMirrorJK(t *testing.T) {
	m := newTestModel(t)
	press(m, "down")
	assert.Equal(t, 1, m.Cursor())
	press(m, "up")
	assert.Equal(t, 0, m.Cursor())
}

func TestChannelFilterShrinksNavigableList(t *testing.T) {
	m := newTestModel(t)

	press(m, "2") // sms
	require.Len(t, m.Filtered(), 2, "movement must walk the filtered list, not the master list")

	for i := 0; i < 5; i++ {
		press(m, "j")
	}
	assert.Equal(t, 1, m.Cursor(), "cursor clamps to the filtered length")
	assert.Equal(t, "t-3", m.Filtered()[m.Cursor()].ID)

	press(m, "1") // back to all
	assert.Len(t, m.Filtered(), 4)
}

func TestSearchCapturesMovementKeys(t *testing.T) {
	m := newTestModel(t)

	press(m, "/")
	press(m, "j")
	press(m, "k")

	assert.Equal(t, 0, m.Cursor(), "j/k must not move the cursor while the search input has focus")
	assert.Equal(t, "jk", m.criteria.Query)
}

func TestEscapeAlwaysBlursSearch(t *testing.T) {
	m := newTestModel(t)

	press(m, "/")
	require.Equal(t, focusSearch, m.focus)
	press(m, "esc")
	assert.Equal(t, focusList, m.focus)

	// Movement works again after blur.
	press(m, "j")
	assert.Equal(t, 1, m.Cursor())
}

func TestSearchFiltersThreads(t *testing.T) {
	m := newTestModel(t)

	press(m, "/")
	for _, r := range "grace" {
		press(m, string(r))
	}
	require.Len(t, m.Filtered(), 1)
	assert.Equal(t, "t-2", m.Filtered()[0].ID)

	press(m, "backspace")
	press(m, "backspace")
	assert.Len(t, m.Filtered(), 1, "prefix still matches")
}

func TestSpaceTogglesSelection(t *testing.T) {
	m := newTestModel(t)

	press(m, " ")
	assert.True(t, m.coordinator.Selected("t-1"))
	press(m, " ")
	assert.False(t, m.coordinator.Selected("t-1"))
}

func TestUnreadToggle(t *testing.T) {
	m := newTestModel(t)

	press(m, "U")
	require.Len(t, m.Filtered(), 1)
	assert.Equal(t, "t-1", m.Filtered()[0].ID)

	press(m, "U")
	assert.Len(t, m.Filtered(), 4)
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	m := newTestModel(t)
	press(m, " ") // select t-1

	press(m, "d")
	assert.True(t, m.pendingDelete)
	if _, ok := m.coordinator.Thread("t-1"); !ok {
		t.Fatal("first press must not dispatch the delete")
	}

	// Any other key abandons the confirmation.
	press(m, "j")
	assert.False(t, m.pendingDelete)
}

func TestComposeRestoresDraftAndDebounces(t *testing.T) {
	store := newRecordingStore()
	store.drafts["t-1"] = "half-typed reply"
	manager := drafts.NewManager(store, drafts.WithDebounce(20*time.Millisecond))
	defer manager.Close()

	coordinator := inbox.NewCoordinator(noopSender{})
	coordinator.SetThreads(testThreads())
	m := NewModel(Config{Coordinator: coordinator, Drafts: manager})
	m.Init()
	m.refilter()

	press(m, "o")
	require.Equal(t, focusCompose, m.focus)
	assert.Equal(t, "half-typed reply", m.composeBody, "opening compose restores the persisted draft")

	press(m, "!")
	assert.Equal(t, "half-typed reply!", m.composeBody)

	require.Eventually(t, func() bool {
		return store.lastPut("t-1") == "half-typed reply!"
	}, 2*time.Second, 5*time.Millisecond, "typing should debounce into the store")

	press(m, "esc")
	assert.Equal(t, focusList, m.focus, "escape blurs compose like any other input")
}

func TestComposeSendClearsDraft(t *testing.T) {
	store := newRecordingStore()
	store.drafts["t-1"] = "ready to go"
	manager := drafts.NewManager(store, drafts.WithDebounce(20*time.Millisecond))
	defer manager.Close()

	var sent []string
	sender := func(_ context.Context, threadID, content string) error {
		sent = append(sent, threadID+"|"+content)
		return nil
	}

	coordinator := inbox.NewCoordinator(noopSender{})
	coordinator.SetThreads(testThreads())
	m := NewModel(Config{Coordinator: coordinator, Drafts: manager, Sender: sender})
	m.Init()
	m.refilter()

	press(m, "o")
	require.Equal(t, "ready to go", m.composeBody)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	m.Update(cmd())

	require.Equal(t, []string{"t-1|ready to go"}, sent)
	assert.Empty(t, m.composeBody, "successful send resets the compose body")
	assert.Equal(t, focusList, m.focus)
	assert.False(t, store.has("t-1"), "successful send removes the persisted draft")
	assert.Equal(t, "message sent", m.status)
}

func TestComposeSendFailureKeepsDraft(t *testing.T) {
	store := newRecordingStore()
	store.drafts["t-1"] = "do not lose this"
	manager := drafts.NewManager(store, drafts.WithDebounce(20*time.Millisecond))
	defer manager.Close()

	sender := func(context.Context, string, string) error {
		return errors.New("gateway unavailable")
	}

	coordinator := inbox.NewCoordinator(noopSender{})
	coordinator.SetThreads(testThreads())
	m := NewModel(Config{Coordinator: coordinator, Drafts: manager, Sender: sender})
	m.Init()
	m.refilter()

	press(m, "o")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	m.Update(cmd())

	assert.Equal(t, "do not lose this", m.composeBody)
	assert.Equal(t, focusCompose, m.focus, "a failed send stays in compose")
	assert.True(t, store.has("t-1"), "a failed send must not clear the draft")
	assert.Contains(t, m.status, "send failed")
}

func TestComposeSendSkipsBlankBody(t *testing.T) {
	coordinator := inbox.NewCoordinator(noopSender{})
	coordinator.SetThreads(testThreads())
	m := NewModel(Config{Coordinator: coordinator, Sender: func(context.Context, string, string) error {
		t.Fatal("blank body must not be sent")
		return nil
	}})
	m.Init()
	m.refilter()

	press(m, "o")
	m.composeBody = "   "
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Nil(t, cmd)
}

type recordingStore struct {
	mu     sync.Mutex
	drafts map[string]string
	puts   map[string]string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{drafts: make(map[string]string), puts: make(map[string]string)}
}

func (s *recordingStore) Put(_ context.Context, threadID, content string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts[threadID] = content
	return nil
}

func (s *recordingStore) Get(_ context.Context, threadID string) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.drafts[threadID]
	if !ok {
		return "", time.Time{}, errors.New("draft not found")
	}
	return content, time.Time{}, nil
}

func (s *recordingStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, threadID)
	return nil
}

func (s *recordingStore) lastPut(threadID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts[threadID]
}

func (s *recordingStore) has(threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.drafts[threadID]
	return ok
}
