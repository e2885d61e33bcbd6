package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uniboxhq/unibox/internal/models"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeSender struct {
	mu      sync.Mutex
	err     error
	calls   [][]string
	release chan struct{}
}

func (f *fakeSender) SendBulkAction(ctx context.Context, action Action, threadIDs []string) error {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), threadIDs...))
	release := f.release
	err := f.err
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	return err
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestCoordinator(t *testing.T, sender BulkSender) *Coordinator {
	t.Helper()
	coordinator := NewCoordinator(sender)
	coordinator.SetThreads([]models.Thread{
		{ID: "t1", Channel: models.ChannelSMS, IsUnread: false, LastActivityAt: ts(1)},
		{ID: "t2", Channel: models.ChannelEmail, IsUnread: true, LastActivityAt: ts(2)},
		{ID: "t3", Channel: models.ChannelFacebook, IsStarred: true, LastActivityAt: ts(3)},
	})
	return coordinator
}

func TestApplyOptimisticThenSettle(t *testing.T) {
	sender := &fakeSender{}
	coordinator := newTestCoordinator(t, sender)
	require.True(t, coordinator.Select("t2"))

	result, err := coordinator.Apply(context.Background(), Request{Action: ActionMarkRead})
	require.NoError(t, err)
	require.Equal(t, []string{"t2"}, result.ThreadIDs)
	require.NotEmpty(t, result.BatchID)

	thread, ok := coordinator.Thread("t2")
	require.True(t, ok)
	require.False(t, thread.IsUnread)

	// Selection clears on success.
	require.Empty(t, coordinator.Selection())
	require.Equal(t, 1, sender.callCount())
}

func TestApplyRollbackOnFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("server rejected")}
	coordinator := newTestCoordinator(t, sender)

	// t1 starts not-unread; a failing mark_unread must land back on false.
	_, err := coordinator.Apply(context.Background(), Request{
		Action:    ActionMarkUnread,
		ThreadIDs: []string{"t1"},
	})

	var bulkErr *BulkError
	require.ErrorAs(t, err, &bulkErr)
	require.Equal(t, ActionMarkUnread, bulkErr.Action)

	thread, ok := coordinator.Thread("t1")
	require.True(t, ok)
	require.False(t, thread.IsUnread, "rollback must restore the pre-dispatch flag")
}

func TestApplyRollbackTouchesOnlyBatchIDs(t *testing.T) {
	sender := &fakeSender{err: errors.New("boom")}
	coordinator := newTestCoordinator(t, sender)

	_, err := coordinator.Apply(context.Background(), Request{
		Action:    ActionStar,
		ThreadIDs: []string{"t1"},
	})
	require.Error(t, err)

	// t3's starred flag was never part of the batch.
	thread, _ := coordinator.Thread("t3")
	require.True(t, thread.IsStarred)
}

func TestApplyRefusesOverlappingSameAction(t *testing.T) {
	release := make(chan struct{})
	sender := &fakeSender{release: release}
	coordinator := newTestCoordinator(t, sender)

	done := make(chan error, 1)
	go func() {
		_, err := coordinator.Apply(context.Background(), Request{
			Action:    ActionMarkRead,
			ThreadIDs: []string{"t1", "t2"},
		})
		done <- err
	}()

	// Wait until the first batch is dispatching.
	require.Eventually(t, func() bool { return coordinator.InFlight(ActionMarkRead) }, waitFor, tick)

	_, err := coordinator.Apply(context.Background(), Request{
		Action:    ActionMarkRead,
		ThreadIDs: []string{"t2", "t3"},
	})
	require.ErrorIs(t, err, ErrActionInFlight)

	close(release)
	require.NoError(t, <-done)
}

func TestApplyAllowsDifferentActionOnSameThread(t *testing.T) {
	release := make(chan struct{})
	sender := &fakeSender{release: release}
	coordinator := newTestCoordinator(t, sender)

	done := make(chan error, 1)
	go func() {
		_, err := coordinator.Apply(context.Background(), Request{
			Action:    ActionMarkRead,
			ThreadIDs: []string{"t2"},
		})
		done <- err
	}()
	require.Eventually(t, func() bool { return coordinator.InFlight(ActionMarkRead) }, waitFor, tick)

	// A different action type on the same thread is not blocked. Use an
	// unblocked sender path by releasing before the second dispatch
	// returns.
	go func() { close(release) }()
	_, err := coordinator.Apply(context.Background(), Request{
		Action:    ActionStar,
		ThreadIDs: []string{"t2"},
	})
	require.NoError(t, err)
	require.NoError(t, <-done)
}

func TestApplyDeleteRequiresConfirmation(t *testing.T) {
	sender := &fakeSender{}
	coordinator := newTestCoordinator(t, sender)

	_, err := coordinator.Apply(context.Background(), Request{
		Action:    ActionDelete,
		ThreadIDs: []string{"t1"},
	})
	require.ErrorIs(t, err, ErrDeleteNotConfirmed)
	require.Zero(t, sender.callCount(), "unconfirmed delete must never dispatch")

	_, err = coordinator.Apply(context.Background(), Request{
		Action:    ActionDelete,
		ThreadIDs: []string{"t1"},
		Confirmed: true,
	})
	require.NoError(t, err)

	_, ok := coordinator.Thread("t1")
	require.False(t, ok)
	require.Len(t, coordinator.Threads(), 2)
}

func TestApplyDeleteRollbackRestoresPosition(t *testing.T) {
	sender := &fakeSender{err: errors.New("boom")}
	coordinator := newTestCoordinator(t, sender)

	_, err := coordinator.Apply(context.Background(), Request{
		Action:    ActionDelete,
		ThreadIDs: []string{"t2"},
		Confirmed: true,
	})
	require.Error(t, err)

	threads := coordinator.Threads()
	require.Len(t, threads, 3)
	require.Equal(t, "t2", threads[1].ID, "rollback must restore merged-order position")
}

func TestApplyArchiveHidesFromFilter(t *testing.T) {
	sender := &fakeSender{}
	coordinator := newTestCoordinator(t, sender)

	_, err := coordinator.Apply(context.Background(), Request{
		Action:    ActionArchive,
		ThreadIDs: []string{"t3"},
	})
	require.NoError(t, err)

	filtered := Filter(coordinator.Threads(), Criteria{Channel: models.ChannelAll})
	for _, thread := range filtered {
		require.NotEqual(t, "t3", thread.ID)
	}
}

func TestApplyValidation(t *testing.T) {
	sender := &fakeSender{}
	coordinator := newTestCoordinator(t, sender)

	_, err := coordinator.Apply(context.Background(), Request{Action: "promote"})
	require.ErrorIs(t, err, ErrUnknownAction)

	// Nothing selected, nothing passed.
	_, err = coordinator.Apply(context.Background(), Request{Action: ActionMarkRead})
	require.ErrorIs(t, err, ErrNoSelection)

	// Unknown ids fall out of the batch.
	_, err = coordinator.Apply(context.Background(), Request{
		Action:    ActionMarkRead,
		ThreadIDs: []string{"missing"},
	})
	require.ErrorIs(t, err, ErrNoSelection)
}

func TestSelectionClearedOnChannelChange(t *testing.T) {
	coordinator := newTestCoordinator(t, &fakeSender{})
	require.True(t, coordinator.Select("t1"))
	require.True(t, coordinator.Select("t2"))
	require.Len(t, coordinator.Selection(), 2)

	coordinator.SetChannel(models.ChannelEmail)
	require.Empty(t, coordinator.Selection())

	// Same channel again does not clear.
	require.True(t, coordinator.Select("t2"))
	coordinator.SetChannel(models.ChannelEmail)
	require.Equal(t, []string{"t2"}, coordinator.Selection())
}

func TestSelectionOrderFollowsMergedOrder(t *testing.T) {
	coordinator := newTestCoordinator(t, &fakeSender{})
	require.True(t, coordinator.Select("t3"))
	require.True(t, coordinator.Select("t1"))

	require.Equal(t, []string{"t1", "t3"}, coordinator.Selection())
}

func TestSetThreadsDropsVanishedSelection(t *testing.T) {
	coordinator := newTestCoordinator(t, &fakeSender{})
	require.True(t, coordinator.Select("t1"))
	require.True(t, coordinator.Select("t3"))

	coordinator.SetThreads([]models.Thread{
		{ID: "t1", Channel: models.ChannelSMS, LastActivityAt: ts(1)},
	})
	require.Equal(t, []string{"t1"}, coordinator.Selection())
}
