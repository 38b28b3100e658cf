package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"callpulse/internal/assistant"
	"callpulse/internal/dataset"
	"callpulse/internal/events"
	"callpulse/internal/navigation"
	"callpulse/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newManager(t *testing.T, bus *events.Bus) (*Manager, *clock, *metrics.Metrics) {
	t.Helper()
	b, err := dataset.Seed()
	require.NoError(t, err)
	reg, err := b.Registry()
	require.NoError(t, err)
	asst, err := assistant.New(b.Overview)
	require.NoError(t, err)
	clk := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := metrics.New()
	mgr := NewManager(reg, asst, bus, m, nil, Options{
		TTL:    30 * time.Minute,
		Chrome: navigation.Chrome{DarkMode: true},
		Now:    clk.Now,
	})
	return mgr, clk, m
}

func TestSessionsAreIndependent(t *testing.T) {
	mgr, _, m := newManager(t, nil)
	a := mgr.Create("admin")
	b := mgr.Create("admin")
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, int64(2), m.Snapshot().ActiveSessions)

	require.NoError(t, a.Nav.SelectLocation("smyrna"))
	assert.NotNil(t, a.Nav.Snapshot().Selected)
	assert.Nil(t, b.Nav.Snapshot().Selected)
	assert.True(t, b.Nav.Snapshot().Chrome.DarkMode)
	require.NotNil(t, a.Chat)
	assert.Len(t, a.Chat.Messages(), 2)
}

func TestGetRefreshesAndExpires(t *testing.T) {
	mgr, clk, m := newManager(t, nil)
	s := mgr.Create("admin")

	clk.Advance(20 * time.Minute)
	_, ok := mgr.Get(s.ID)
	require.True(t, ok)

	clk.Advance(20 * time.Minute)
	_, ok = mgr.Get(s.ID)
	require.True(t, ok, "touch on the previous request restarted the idle timer")

	clk.Advance(31 * time.Minute)
	_, ok = mgr.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, mgr.Len())
	assert.Equal(t, int64(1), m.Snapshot().ExpiredSessions)

	_, ok = mgr.Get("")
	assert.False(t, ok)
}

func TestDeleteResetsNavigation(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(16)
	mgr, _, _ := newManager(t, bus)

	s := mgr.Create("admin")
	assert.Equal(t, events.KindSignIn, (<-sub).Kind)
	require.NoError(t, s.Nav.SelectLocation("savannah"))
	assert.Equal(t, string(navigation.EventLocationSelected), (<-sub).Kind)

	require.True(t, mgr.Delete(s.ID))
	assert.False(t, mgr.Delete(s.ID))
	assert.Nil(t, s.Nav.Snapshot().Selected)
	assert.Equal(t, string(navigation.EventReset), (<-sub).Kind)
	ev := <-sub
	assert.Equal(t, events.KindSignOut, ev.Kind)
	assert.Equal(t, s.ID, ev.Session)
}

func TestObserverCountsMissesAndOverrides(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(16)
	mgr, _, m := newManager(t, bus)
	s := mgr.Create("admin")
	<-sub

	assert.ErrorIs(t, s.Nav.SelectLocation("atlantis"), navigation.ErrLocationNotFound)
	ev := <-sub
	assert.Equal(t, string(navigation.EventLookupMiss), ev.Kind)
	assert.Equal(t, "atlantis", ev.Subject)
	assert.Equal(t, s.ID, ev.Session)

	require.NoError(t, s.Nav.SelectLocation("smyrna"))
	assert.ErrorIs(t, s.Nav.ViewFromOverview("snellville"), navigation.ErrSelectionOverridden)

	s.Nav.Back()
	require.True(t, mgr.Delete(s.ID))

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.LookupMisses)
	assert.Equal(t, int64(1), snap.Overridden)
	assert.Equal(t, int64(2), snap.Transitions, "only the select and the back changed state")
}

func TestSweepAndRun(t *testing.T) {
	mgr, clk, _ := newManager(t, nil)
	mgr.Create("a")
	keep := mgr.Create("b")
	clk.Advance(25 * time.Minute)
	_, ok := mgr.Get(keep.ID)
	require.True(t, ok)
	clk.Advance(10 * time.Minute)

	assert.Equal(t, 1, mgr.Sweep())
	assert.Equal(t, 1, mgr.Len())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx, 5*time.Millisecond) }()
	clk.Advance(time.Hour)
	require.Eventually(t, func() bool { return mgr.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
