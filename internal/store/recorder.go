package store

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/btouchard/recents/internal/session"
)

// Recorder is a diagnostic sink that persists events to a Journal from a
// single writer goroutine. Calls never block: when the buffer is full the
// event is dropped and counted.
type Recorder struct {
	journal Journal
	clock   clockwork.Clock
	events  chan EventRecord
	dropped atomic.Int64
}

// NewRecorder creates a Recorder with the given buffer size.
func NewRecorder(j Journal, clock clockwork.Clock, buffer int) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if buffer < 1 {
		buffer = 256
	}
	return &Recorder{
		journal: j,
		clock:   clock,
		events:  make(chan EventRecord, buffer),
	}
}

// Transition queues a transition event.
func (r *Recorder) Transition(sessionID string, from, to session.State) {
	r.enqueue(EventRecord{
		SessionID: sessionID,
		Type:      EventTransition,
		FromState: from.String(),
		ToState:   to.String(),
	})
}

// FanOut queues a fan-out event.
func (r *Recorder) FanOut(sessionID, kind string, listeners int) {
	r.enqueue(EventRecord{
		SessionID: sessionID,
		Type:      EventFanOut,
		Kind:      kind,
		Listeners: listeners,
	})
}

// Ignored queues an ignored-signal event.
func (r *Recorder) Ignored(sessionID, signal string, state session.State) {
	r.enqueue(EventRecord{
		SessionID: sessionID,
		Type:      EventIgnored,
		Kind:      signal,
		FromState: state.String(),
	})
}

// Dropped returns the number of events lost to a full buffer.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) enqueue(e EventRecord) {
	e.CreatedAt = r.clock.Now()
	select {
	case r.events <- e:
	default:
		if r.dropped.Add(1) == 1 {
			slog.Warn("journal buffer full, dropping events", "session_id", e.SessionID)
		}
	}
}

// Run writes buffered events until ctx is cancelled, then flushes what is
// left in the buffer.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case e := <-r.events:
			r.write(e)
		case <-ctx.Done():
			r.flush()
			return nil
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case e := <-r.events:
			r.write(e)
		default:
			return
		}
	}
}

func (r *Recorder) write(e EventRecord) {
	if err := r.journal.AddEvent(&e); err != nil {
		slog.Error("failed to record session event", "session_id", e.SessionID, "type", e.Type, "error", err)
		return
	}
	if e.Type != EventTransition {
		return
	}
	rec := &SessionRecord{ID: e.SessionID, State: e.ToState, CreatedAt: e.CreatedAt, UpdatedAt: e.CreatedAt}
	if existing, err := r.journal.GetSession(e.SessionID); err == nil {
		rec.CreatedAt = existing.CreatedAt
	}
	if err := r.journal.UpsertSession(rec); err != nil {
		slog.Error("failed to record session state", "session_id", e.SessionID, "error", err)
	}
}

// RunCleanup deletes journal entries older than retention once per interval
// until ctx is cancelled.
func RunCleanup(ctx context.Context, j Journal, clock clockwork.Clock, retention, interval time.Duration) {
	if retention <= 0 {
		return
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			n, err := j.Cleanup(clock.Now().Add(-retention))
			if err != nil {
				slog.Error("journal cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("journal cleanup", "deleted_events", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
