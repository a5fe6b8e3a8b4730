package host

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/recents/internal/diag"
	"github.com/btouchard/recents/internal/dispatch"
	"github.com/btouchard/recents/internal/loop"
	"github.com/btouchard/recents/internal/session"
	"github.com/btouchard/recents/internal/surface"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) add(s string) {
	e.mu.Lock()
	e.events = append(e.events, s)
	e.mu.Unlock()
}

func (e *eventLog) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func newRegistry(t *testing.T) (*Registry, *eventLog) {
	t.Helper()

	l := loop.New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})

	log := &eventLog{}
	r := NewRegistry(l, Options{
		Sink:  diag.Discard{},
		Clock: clockwork.NewFakeClock(),
		Listeners: func(id string) []dispatch.Listener {
			return []dispatch.Listener{&dispatch.ListenerFuncs{
				Start:         func(*session.Handle, surface.ClassifiedTargets, surface.TransitionInfo) { log.add("start") },
				Canceled:      func(map[int]surface.Thumbnail) { log.add("cancel") },
				Finished:      func(*session.Handle) { log.add("finish") },
				TasksAppeared: func([]surface.Target, surface.TransitionInfo) { log.add("tasks") },
			}}
		},
	})
	return r, log
}

func syncLoop(t *testing.T, r *Registry) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Sync(ctx))
}

func closingStart() dispatch.StartSignal {
	return dispatch.StartSignal{Targets: []surface.Target{
		{TaskID: 1, Mode: surface.ModeClosing, Role: surface.RoleNormal},
		{TaskID: 2, Mode: surface.ModeOpening, Role: surface.RoleDivider},
	}}
}

func TestRegistry_OpenAssignsUniqueIDs(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)

	a := r.Open()
	b := r.Open()

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, session.Pending, a.State)
	assert.Equal(t, 2, r.Count())
	assert.Len(t, r.List(), 2)
}

func TestRegistry_FullLifecycle(t *testing.T) {
	t.Parallel()
	r, log := newRegistry(t)

	s := r.Open()
	require.NoError(t, r.Start(s.ID, closingStart()))
	syncLoop(t, r)

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Active, got.State)
	assert.Equal(t, 1, got.Apps)
	assert.Equal(t, 1, got.NonApps)
	assert.Equal(t, 1, got.Closing)

	require.NoError(t, r.FinishSession(s.ID, true, false))
	syncLoop(t, r)

	got, err = r.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Finished, got.State)
	assert.True(t, got.ToHome)
	require.Len(t, got.FinishCalls, 1)
	assert.True(t, got.FinishCalls[0].ToHome)

	assert.Equal(t, []string{"start", "finish"}, log.all())
}

func TestRegistry_FinishSessionErrors(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)

	s := r.Open()
	assert.ErrorIs(t, r.FinishSession(s.ID, false, false), ErrNotActive)

	require.NoError(t, r.Start(s.ID, closingStart()))
	require.NoError(t, r.FinishSession(s.ID, false, false))
	assert.ErrorIs(t, r.FinishSession(s.ID, false, false), ErrAlreadyFinished)
}

func TestRegistry_UnknownSession(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)

	_, err := r.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.Start("nope", dispatch.StartSignal{}), ErrSessionNotFound)
	assert.ErrorIs(t, r.StartLegacy("nope", dispatch.LegacyStartSignal{}), ErrSessionNotFound)
	assert.ErrorIs(t, r.Cancel("nope", nil), ErrSessionNotFound)
	assert.ErrorIs(t, r.TasksAppeared("nope", nil, surface.TransitionInfo{}), ErrSessionNotFound)
	assert.ErrorIs(t, r.FinishSession("nope", false, false), ErrSessionNotFound)
	assert.ErrorIs(t, r.AddListener("nope", &dispatch.ListenerFuncs{}), ErrSessionNotFound)
	assert.ErrorIs(t, r.Close("nope"), ErrSessionNotFound)
}

func TestRegistry_CancelBeforeStartReleasesLateStart(t *testing.T) {
	t.Parallel()
	r, log := newRegistry(t)

	s := r.Open()
	require.NoError(t, r.Cancel(s.ID, nil))
	require.NoError(t, r.Start(s.ID, closingStart()))
	syncLoop(t, r)

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.CancelledBeforeStart, got.State)
	require.Len(t, got.FinishCalls, 1)
	assert.False(t, got.FinishCalls[0].ToHome)
	assert.Equal(t, []string{"cancel"}, log.all())
}

func TestRegistry_CloseCancelsPendingSession(t *testing.T) {
	t.Parallel()
	r, log := newRegistry(t)

	s := r.Open()
	require.NoError(t, r.Close(s.ID))
	syncLoop(t, r)

	assert.Equal(t, 0, r.Count())
	assert.Equal(t, []string{"cancel"}, log.all())
}

func TestRegistry_CloseFinishedSessionIsQuiet(t *testing.T) {
	t.Parallel()
	r, log := newRegistry(t)

	s := r.Open()
	require.NoError(t, r.Start(s.ID, closingStart()))
	require.NoError(t, r.FinishSession(s.ID, false, true))
	require.NoError(t, r.Close(s.ID))
	syncLoop(t, r)

	assert.Equal(t, []string{"start", "finish"}, log.all())
}

func TestRegistry_LegacyStartAndTasksAppeared(t *testing.T) {
	t.Parallel()
	r, log := newRegistry(t)

	s := r.Open()
	require.NoError(t, r.StartLegacy(s.ID, dispatch.LegacyStartSignal{
		Apps: []surface.Target{{TaskID: 7, Mode: surface.ModeClosing, Role: surface.RoleNormal}},
	}))
	require.NoError(t, r.TasksAppeared(s.ID, []surface.Target{{TaskID: 8}}, surface.TransitionInfo{}))
	syncLoop(t, r)

	assert.Equal(t, []string{"start", "tasks"}, log.all())
}

func TestRegistry_AddListener(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)

	s := r.Open()
	var calls int
	require.NoError(t, r.AddListener(s.ID, &dispatch.ListenerFuncs{
		Canceled: func(map[int]surface.Thumbnail) { calls++ },
	}))
	require.NoError(t, r.Cancel(s.ID, map[int]surface.Thumbnail{1: {}}))
	syncLoop(t, r)

	assert.Equal(t, 1, calls)
}

func TestRemoteController_RecordsCallsAndAcknowledges(t *testing.T) {
	t.Parallel()

	c := NewRemoteController(clockwork.NewFakeClock())
	acked := false
	c.Finish(true, true, func() { acked = true })
	c.Finish(false, false, nil)

	assert.True(t, acked)
	calls := c.Calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].SendUserLeaveHint)
	assert.False(t, calls[1].ToHome)
}

func TestRegistry_ReapForgetsEndedSessions(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)
	clock := r.opts.Clock.(*clockwork.FakeClock)

	finished := r.Open()
	require.NoError(t, r.Start(finished.ID, closingStart()))
	require.NoError(t, r.FinishSession(finished.ID, false, false))
	cancelled := r.Open()
	require.NoError(t, r.Cancel(cancelled.ID, nil))
	active := r.Open()
	require.NoError(t, r.Start(active.ID, closingStart()))
	pending := r.Open()
	syncLoop(t, r)

	assert.Zero(t, r.Reap(time.Hour), "sessions that just ended are kept")

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 2, r.Reap(time.Hour))

	_, err := r.Get(finished.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = r.Get(cancelled.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = r.Get(active.ID)
	assert.NoError(t, err)
	_, err = r.Get(pending.ID)
	assert.NoError(t, err)
}

func TestRegistry_RunReaperOnTicker(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)
	clock := r.opts.Clock.(*clockwork.FakeClock)

	s := r.Open()
	require.NoError(t, r.Cancel(s.ID, nil))
	syncLoop(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.RunReaper(ctx, time.Minute, time.Minute)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Minute)

	assert.Eventually(t, func() bool { return r.Count() == 0 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestRegistry_RunReaperDisabled(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)

	done := make(chan struct{})
	go func() {
		r.RunReaper(context.Background(), 0, time.Minute)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper with zero ttl should return immediately")
	}
}
