package store

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/recents/internal/session"
)

func TestRecorder_PersistsEventsAndSessionState(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)
	clock := clockwork.NewFakeClock()
	r := NewRecorder(j, clock, 16)

	r.Transition("s1", session.Pending, session.Active)
	r.FanOut("s1", "start", 3)
	clock.Advance(time.Second)
	r.Transition("s1", session.Active, session.Finished)
	r.Ignored("s1", "cancel", session.Finished)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))

	events, err := j.ListEvents(EventFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, EventTransition, events[0].Type)
	assert.Equal(t, "pending", events[0].FromState)
	assert.Equal(t, "active", events[0].ToState)
	assert.Equal(t, EventFanOut, events[1].Type)
	assert.Equal(t, 3, events[1].Listeners)
	assert.Equal(t, EventIgnored, events[3].Type)
	assert.Equal(t, "cancel", events[3].Kind)

	rec, err := j.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, "finished", rec.State)
	assert.True(t, rec.UpdatedAt.After(rec.CreatedAt))
}

func TestRecorder_DropsWhenBufferFull(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)
	r := NewRecorder(j, clockwork.NewFakeClock(), 2)

	for range 5 {
		r.FanOut("s1", "start", 1)
	}

	assert.Equal(t, int64(3), r.Dropped())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))

	events, err := j.ListEvents(EventFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestRunCleanup_DeletesExpiredEvents(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))

	require.NoError(t, j.AddEvent(&EventRecord{SessionID: "old", Type: EventTransition, CreatedAt: clock.Now().Add(-72 * time.Hour)}))
	require.NoError(t, j.AddEvent(&EventRecord{SessionID: "new", Type: EventTransition, CreatedAt: clock.Now()}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunCleanup(ctx, j, clock, 24*time.Hour, time.Hour)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Hour)

	assert.Eventually(t, func() bool {
		events, err := j.ListEvents(EventFilter{})
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
