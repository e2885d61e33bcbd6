// Package tui renders the unified inbox as a terminal list. Movement keys
// walk the currently filtered threads, never the unfiltered collection,
// and every binding except Escape is suspended while a text input has
// focus.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/uniboxhq/unibox/internal/drafts"
	"github.com/uniboxhq/unibox/internal/inbox"
	"github.com/uniboxhq/unibox/internal/models"
)

const defaultRefreshInterval = 30 * time.Second

// focusRegion tracks which surface owns keystrokes.
type focusRegion int

const (
	focusList focusRegion = iota
	focusSearch
	focusCompose
)

var channelKeys = map[string]models.Channel{
	"1": models.ChannelAll,
	"2": models.ChannelSMS,
	"3": models.ChannelFacebook,
	"4": models.ChannelInstagram,
	"5": models.ChannelEmail,
}

var actionKeys = map[string]inbox.Action{
	"r": inbox.ActionMarkRead,
	"u": inbox.ActionMarkUnread,
	"s": inbox.ActionStar,
	"S": inbox.ActionUnstar,
	"e": inbox.ActionArchive,
}

// Loader fetches and merges the per-channel collections.
type Loader func(ctx context.Context) (inbox.ByChannel, error)

// StatsProvider reports the escalation aggregate for the header.
type StatsProvider func() models.EscalationStats

// Sender delivers a composed message to its thread. Satisfied by
// transport.Client.SendMessage.
type Sender func(ctx context.Context, threadID, content string) error

// Config wires the inbox view to the rest of the system. Coordinator is
// required; everything else is optional.
type Config struct {
	Coordinator     *inbox.Coordinator
	Drafts          *drafts.Manager
	Loader          Loader
	Sender          Sender
	Stats           StatsProvider
	RefreshInterval time.Duration
	Theme           string
}

// Model is the bubbletea model for the inbox list.
type Model struct {
	coordinator *inbox.Coordinator
	drafts      *drafts.Manager
	loader      Loader
	sender      Sender
	stats       StatsProvider
	refresh     time.Duration
	styles      styles

	criteria inbox.Criteria
	filtered []models.Thread
	cursor   int

	focus         focusRegion
	composeThread string
	composeBody   string
	pendingDelete bool

	status  string
	loadErr error
	width   int
	height  int
}

type threadsLoadedMsg struct {
	byChannel inbox.ByChannel
	err       error
}

type bulkDoneMsg struct {
	action inbox.Action
	result inbox.Result
	err    error
}

type sendDoneMsg struct {
	threadID string
	err      error
}

type refreshTickMsg struct{}

// NewModel creates the inbox view.
func NewModel(cfg Config) *Model {
	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = defaultRefreshInterval
	}
	return &Model{
		coordinator: cfg.Coordinator,
		drafts:      cfg.Drafts,
		loader:      cfg.Loader,
		sender:      cfg.Sender,
		stats:       cfg.Stats,
		refresh:     refresh,
		styles:      newStyles(cfg.Theme),
		criteria:    inbox.Criteria{Channel: models.ChannelAll},
	}
}

func (m *Model) Init() tea.Cmd {
	if m.loader == nil {
		m.refilter()
		return nil
	}
	return tea.Batch(m.loadCmd(), m.tickCmd())
}

func (m *Model) loadCmd() tea.Cmd {
	loader := m.loader
	return func() tea.Msg {
		byChannel, err := loader(context.Background())
		return threadsLoadedMsg{byChannel: byChannel, err: err}
	}
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		return m, nil
	case threadsLoadedMsg:
		if typed.err != nil {
			m.loadErr = typed.err
			m.status = "refresh failed"
			return m, nil
		}
		m.loadErr = nil
		m.coordinator.SetThreads(inbox.Merge(typed.byChannel))
		m.refilter()
		return m, nil
	case refreshTickMsg:
		if m.loader == nil {
			return m, nil
		}
		return m, tea.Batch(m.loadCmd(), m.tickCmd())
	case bulkDoneMsg:
		m.refilter()
		if typed.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", typed.action, typed.err)
		} else {
			m.status = fmt.Sprintf("%s applied to %d threads", typed.action, len(typed.result.ThreadIDs))
		}
		return m, nil
	case sendDoneMsg:
		if typed.err != nil {
			m.status = fmt.Sprintf("send failed: %v", typed.err)
			return m, nil
		}
		if m.composeThread == typed.threadID {
			m.composeBody = ""
			m.focus = focusList
		}
		m.status = "message sent"
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Escape always blurs, no matter which input has focus.
	if msg.Type == tea.KeyEsc {
		switch m.focus {
		case focusSearch, focusCompose:
			m.focus = focusList
		default:
			m.pendingDelete = false
			m.status = ""
		}
		return m, nil
	}

	switch m.focus {
	case focusSearch:
		return m.handleSearchKey(msg)
	case focusCompose:
		return m.handleComposeKey(msg)
	}
	return m.handleListKey(msg)
}

// handleSearchKey routes keystrokes into the query while the search
// input has focus. Movement bindings are plain text here.
func (m *Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.focus = focusList
	case tea.KeyBackspace, tea.KeyDelete:
		if len(m.criteria.Query) > 0 {
			runes := []rune(m.criteria.Query)
			m.criteria.Query = string(runes[:len(runes)-1])
			m.refilter()
		}
	case tea.KeyRunes, tea.KeySpace:
		m.criteria.Query += string(msg.Runes)
		m.refilter()
	}
	return m, nil
}

// handleComposeKey routes keystrokes into the draft body. Every change
// restarts that thread's debounce window; ctrl+s sends the message.
func (m *Model) handleComposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlS:
		return m, m.sendCmd()
	case tea.KeyEnter:
		m.composeBody += "\n"
	case tea.KeyBackspace, tea.KeyDelete:
		if len(m.composeBody) > 0 {
			runes := []rune(m.composeBody)
			m.composeBody = string(runes[:len(runes)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		m.composeBody += string(msg.Runes)
	default:
		return m, nil
	}
	if m.drafts != nil {
		m.drafts.OnContentChange(m.composeThread, m.composeBody)
	}
	return m, nil
}

func (m *Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key != "d" && key != "y" {
		m.pendingDelete = false
	}

	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "j", "down":
		m.moveCursor(1)
		return m, nil
	case "k", "up":
		m.moveCursor(-1)
		return m, nil
	case "g":
		m.cursor = 0
		return m, nil
	case "G":
		m.cursor = clampInt(len(m.filtered)-1, 0, len(m.filtered)-1)
		return m, nil
	case " ":
		if thread, ok := m.threadUnderCursor(); ok {
			m.coordinator.ToggleSelect(thread.ID)
		}
		return m, nil
	case "/":
		m.focus = focusSearch
		return m, nil
	case "o":
		return m, m.openCompose()
	case "U":
		m.criteria.UnreadOnly = !m.criteria.UnreadOnly
		m.refilter()
		return m, nil
	case "F":
		m.criteria.StarredOnly = !m.criteria.StarredOnly
		m.refilter()
		return m, nil
	case "R":
		if m.loader != nil {
			return m, m.loadCmd()
		}
		return m, nil
	case "d":
		// Delete needs a second keypress before it dispatches.
		if !m.pendingDelete {
			m.pendingDelete = true
			m.status = "delete selected threads? press d again to confirm"
			return m, nil
		}
		m.pendingDelete = false
		m.status = ""
		return m, m.applyCmd(inbox.ActionDelete, true)
	}

	if channel, ok := channelKeys[key]; ok {
		m.criteria.Channel = channel
		m.coordinator.SetChannel(channel)
		m.refilter()
		return m, nil
	}
	if action, ok := actionKeys[key]; ok {
		return m, m.applyCmd(action, false)
	}
	return m, nil
}

func (m *Model) openCompose() tea.Cmd {
	thread, ok := m.threadUnderCursor()
	if !ok {
		return nil
	}
	if m.composeThread != "" && m.composeThread != thread.ID && m.drafts != nil {
		// Leaving a thread abandons its pending debounce.
		m.drafts.Cancel(m.composeThread)
	}
	m.composeThread = thread.ID
	m.composeBody = ""
	if m.drafts != nil {
		if restored, ok := m.drafts.Restore(context.Background(), thread.ID, m.composeBody); ok {
			m.composeBody = restored
		}
	}
	m.focus = focusCompose
	return nil
}

// applyCmd dispatches a bulk action off the update loop.
func (m *Model) applyCmd(action inbox.Action, confirmed bool) tea.Cmd {
	coordinator := m.coordinator
	req := inbox.Request{Action: action, Confirmed: confirmed}
	return func() tea.Msg {
		result, err := coordinator.Apply(context.Background(), req)
		return bulkDoneMsg{action: action, result: result, err: err}
	}
}

// sendCmd delivers the compose body off the update loop. The persisted
// draft is cleared only once the send succeeds, so a failed delivery
// keeps the draft recoverable.
func (m *Model) sendCmd() tea.Cmd {
	if m.sender == nil || m.composeThread == "" || strings.TrimSpace(m.composeBody) == "" {
		return nil
	}
	sender := m.sender
	draftManager := m.drafts
	threadID := m.composeThread
	content := m.composeBody
	return func() tea.Msg {
		if err := sender(context.Background(), threadID, content); err != nil {
			return sendDoneMsg{threadID: threadID, err: err}
		}
		if draftManager != nil {
			draftManager.Clear(context.Background(), threadID)
		}
		return sendDoneMsg{threadID: threadID}
	}
}

// refilter recomputes the visible list and keeps the cursor inside it.
func (m *Model) refilter() {
	m.filtered = inbox.Filter(m.coordinator.Threads(), m.criteria)
	m.cursor = clampInt(m.cursor, 0, len(m.filtered)-1)
}

func (m *Model) moveCursor(delta int) {
	if len(m.filtered) == 0 {
		m.cursor = 0
		return
	}
	m.cursor = clampInt(m.cursor+delta, 0, len(m.filtered)-1)
}

func (m *Model) threadUnderCursor() (models.Thread, bool) {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return models.Thread{}, false
	}
	return m.filtered[m.cursor], true
}

// Filtered exposes the visible threads, in display order.
func (m *Model) Filtered() []models.Thread {
	return m.filtered
}

// Cursor reports the cursor index into the filtered list.
func (m *Model) Cursor() int {
	return m.cursor
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if len(m.filtered) == 0 {
		b.WriteString(m.styles.muted.Render("no threads match"))
		b.WriteString("\n")
	}
	for idx, thread := range m.filtered {
		b.WriteString(m.renderRow(idx, thread))
		b.WriteString("\n")
	}

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderHeader() string {
	parts := []string{}
	for _, key := range []string{"1", "2", "3", "4", "5"} {
		channel := channelKeys[key]
		label := fmt.Sprintf("%s:%s", key, channel)
		if channel == m.criteria.Channel {
			label = m.styles.activeTab.Render(label)
		} else {
			label = m.styles.tab.Render(label)
		}
		parts = append(parts, label)
	}
	header := strings.Join(parts, " ")
	if m.stats != nil {
		stats := m.stats()
		header += "  " + m.styles.muted.Render(fmt.Sprintf(
			"escalations: %d pending / %d active", stats.Pending, stats.TotalActive))
	}
	return header
}

func (m *Model) renderRow(idx int, thread models.Thread) string {
	cursor := " "
	if idx == m.cursor {
		cursor = "▸"
	}
	selected := " "
	if m.coordinator.Selected(thread.ID) {
		selected = "✓"
	}
	marker := " "
	if thread.IsUnread {
		marker = "●"
	}
	star := " "
	if thread.IsStarred {
		star = "★"
	}

	line := fmt.Sprintf("%s %s %s%s %-10s %-24s %s",
		cursor, selected, marker, star,
		thread.Channel, truncate(thread.DisplayName, 24), truncate(thread.Preview, 48))
	if idx == m.cursor {
		return m.styles.selectedRow.Render(line)
	}
	if thread.IsUnread {
		return m.styles.unreadRow.Render(line)
	}
	return line
}

func (m *Model) renderFooter() string {
	switch m.focus {
	case focusSearch:
		return m.styles.footer.Render("search: " + m.criteria.Query + "▏")
	case focusCompose:
		last := m.composeBody
		if i := strings.LastIndexByte(last, '\n'); i >= 0 {
			last = last[i+1:]
		}
		return m.styles.footer.Render("compose: " + last + "▏  (ctrl+s send · esc close)")
	}
	if m.status != "" {
		return m.styles.footer.Render(m.status)
	}
	help := "j/k move · space select · / search · o compose · r/u/s/S/e/d actions · 1-5 channels · q quit"
	return m.styles.footer.Render(help)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}

type styles struct {
	tab         lipgloss.Style
	activeTab   lipgloss.Style
	selectedRow lipgloss.Style
	unreadRow   lipgloss.Style
	muted       lipgloss.Style
	footer      lipgloss.Style
}

func newStyles(theme string) styles {
	accent := lipgloss.Color("205")
	if theme == "light" {
		accent = lipgloss.Color("57")
	}
	return styles{
		tab:         lipgloss.NewStyle().Faint(true),
		activeTab:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		selectedRow: lipgloss.NewStyle().Bold(true).Foreground(accent),
		unreadRow:   lipgloss.NewStyle().Bold(true),
		muted:       lipgloss.NewStyle().Faint(true),
		footer:      lipgloss.NewStyle().Faint(true),
	}
}
