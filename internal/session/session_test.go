package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/incidentdesk/internal/analyzer/mock"
	"github.com/kiranshivaraju/incidentdesk/internal/history"
	"github.com/kiranshivaraju/incidentdesk/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_EndToEnd(t *testing.T) {
	f := newFixture(t, mock.NewClient())
	f.analyze(t, "Payment API 503s", "")
	entryID := f.session.Controller.Snapshot().ActiveEntryID

	snap := f.session.Snapshot()
	assert.Equal(t, f.session.ID, snap.ID)
	require.NotNil(t, snap.Controller.Result)
	assert.Equal(t, "High", snap.Controller.Result.Parsed().Severity)

	f.session.Reset()
	snap = f.session.Snapshot()
	assert.Equal(t, session.StatusIdle, snap.Controller.Status)
	assert.Nil(t, snap.Controller.Result)
	assert.Empty(t, snap.Controller.Description)

	calls := f.client.Calls("analyze")
	_, err := f.session.LoadHistoryEntry(entryID)
	require.NoError(t, err)
	snap = f.session.Snapshot()
	assert.Equal(t, "Payment API 503s", snap.Controller.Description)
	assert.Equal(t, "High", snap.Controller.Result.Parsed().Severity)
	assert.Equal(t, calls, f.client.Calls("analyze"))
}

func TestSession_CloseRejectsOperations(t *testing.T) {
	f := newFixture(t, mock.NewClient())
	f.analyze(t, "x", "")
	f.session.Close()

	_, err := f.session.Controller.SubmitAnalysis(context.Background())
	assert.ErrorIs(t, err, session.ErrSessionClosed)
	assert.ErrorIs(t, f.session.Controller.SetInput("a", "b"), session.ErrSessionClosed)
	assert.ErrorIs(t, f.session.Draft.Open(), session.ErrSessionClosed)
	_, err = f.session.Thread.Ask(context.Background(), "q")
	assert.ErrorIs(t, err, session.ErrSessionClosed)
}

func TestRegistry(t *testing.T) {
	hist := history.NewStore(history.NewMemoryBackend(), history.WithLogger(discardLogger()))
	require.NoError(t, hist.Load(context.Background()))
	reg := session.NewRegistry(mock.NewClient(), hist, session.WithLogger(discardLogger()))

	a := reg.Create()
	b := reg.Create()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, reg.Len())
	assert.Same(t, hist, reg.History())

	got, err := reg.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)

	require.NoError(t, reg.Close(a.ID))
	_, err = reg.Get(a.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.ErrorIs(t, reg.Close(a.ID), session.ErrNotFound)
	assert.ErrorIs(t, a.Controller.SetInput("x", ""), session.ErrSessionClosed)

	reg.CloseAll()
	assert.Equal(t, 0, reg.Len())
	assert.ErrorIs(t, b.Controller.SetInput("x", ""), session.ErrSessionClosed)
}

func TestRegistry_SessionsShareHistory(t *testing.T) {
	hist := history.NewStore(history.NewMemoryBackend(), history.WithLogger(discardLogger()))
	require.NoError(t, hist.Load(context.Background()))
	reg := session.NewRegistry(mock.NewClient(), hist, session.WithLogger(discardLogger()))

	a := reg.Create()
	require.NoError(t, a.Controller.SetInput("from a", ""))
	entry, err := a.Controller.SubmitAnalysis(context.Background())
	require.NoError(t, err)

	b := reg.Create()
	_, err = b.LoadHistoryEntry(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "from a", b.Controller.Snapshot().Description)
}

// manualClock is a clock tests advance by hand.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRegistry_ExpireIdle(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	hist := history.NewStore(history.NewMemoryBackend(), history.WithLogger(discardLogger()))
	require.NoError(t, hist.Load(context.Background()))
	reg := session.NewRegistry(mock.NewClient(), hist,
		session.WithLogger(discardLogger()), session.WithClock(clock.Now))

	abandoned := reg.Create()
	active := reg.Create()
	assert.True(t, clock.Now().Equal(active.LastUsed()))

	clock.Advance(20 * time.Minute)
	_, err := reg.Get(active.ID)
	require.NoError(t, err)
	assert.True(t, clock.Now().Equal(active.LastUsed()))

	clock.Advance(15 * time.Minute)
	assert.Equal(t, 1, reg.ExpireIdle(30*time.Minute))

	_, err = reg.Get(abandoned.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.ErrorIs(t, abandoned.Controller.SetInput("x", ""), session.ErrSessionClosed)

	got, err := reg.Get(active.ID)
	require.NoError(t, err)
	assert.Same(t, active, got)
	assert.Equal(t, 0, reg.ExpireIdle(30*time.Minute))
}

func TestRegistry_RunExpiryStopsWithContext(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	hist := history.NewStore(history.NewMemoryBackend(), history.WithLogger(discardLogger()))
	require.NoError(t, hist.Load(context.Background()))
	reg := session.NewRegistry(mock.NewClient(), hist,
		session.WithLogger(discardLogger()), session.WithClock(clock.Now))

	reg.Create()
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.RunExpiry(ctx, time.Millisecond, 30*time.Minute)
		close(done)
	}()

	require.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, time.Millisecond)
	cancel()
	<-done
}
