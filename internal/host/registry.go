// Package host owns the animation sessions opened by remote producers.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/btouchard/recents/internal/diag"
	"github.com/btouchard/recents/internal/dispatch"
	"github.com/btouchard/recents/internal/loop"
	"github.com/btouchard/recents/internal/session"
	"github.com/btouchard/recents/internal/surface"
)

var (
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotActive is returned when finishing a session that has no live handle.
	ErrNotActive = errors.New("session is not active")

	// ErrAlreadyFinished is returned when the handle was already finished.
	ErrAlreadyFinished = errors.New("session already finished")
)

// Options configures a Registry.
type Options struct {
	OverviewInWindow bool
	DesktopMode      bool

	// Describer resolves task descriptors for every session. Optional.
	Describer surface.Describer

	// Sink receives diagnostics for every session.
	Sink diag.Sink

	// Listeners returns the listeners registered on a new session.
	Listeners func(sessionID string) []dispatch.Listener

	Clock clockwork.Clock
}

// Session is a hosted animation session.
type Session struct {
	id        string
	createdAt time.Time
	ctrl      *RemoteController
	d         *dispatch.Dispatcher

	mu      sync.Mutex
	endedAt time.Time // set once the terminal notification is delivered
}

func (s *Session) markEnded(at time.Time) {
	s.mu.Lock()
	if s.endedAt.IsZero() {
		s.endedAt = at
	}
	s.mu.Unlock()
}

func (s *Session) endedBefore(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.endedAt.IsZero() && s.endedAt.Before(cutoff)
}

// Info is a point-in-time view of a session.
type Info struct {
	ID          string        `json:"id"`
	State       session.State `json:"state"`
	CreatedAt   time.Time     `json:"created_at"`
	Apps        int           `json:"apps"`
	NonApps     int           `json:"non_apps"`
	Closing     int           `json:"closing"`
	ToHome      bool          `json:"to_home"`
	FinishCalls []FinishCall  `json:"finish_calls"`
}

func (s *Session) info() Info {
	inf := Info{
		ID:          s.id,
		State:       s.d.State(),
		CreatedAt:   s.createdAt,
		FinishCalls: s.ctrl.Calls(),
	}
	if h := s.d.Handle(); h != nil {
		t := h.Targets()
		inf.Apps = len(t.Apps())
		inf.NonApps = len(t.NonApps())
		inf.Closing = t.ClosingCount()
		inf.ToHome = h.FinishedToHome()
	}
	return inf
}

// Registry maps session ids to sessions. All sessions share one consumer
// loop.
type Registry struct {
	loop *loop.Loop
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a Registry delivering notifications on l.
func NewRegistry(l *loop.Loop, opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Sink == nil {
		opts.Sink = diag.NewLogger(nil)
	}
	return &Registry{
		loop:     l,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Open creates a pending session with the default listeners.
func (r *Registry) Open() Info {
	id := uuid.NewString()
	ctrl := NewRemoteController(r.opts.Clock)
	d := dispatch.New(ctrl, r.loop, dispatch.Options{
		ID:               id,
		OverviewInWindow: r.opts.OverviewInWindow,
		DesktopMode:      r.opts.DesktopMode,
		Describer:        r.opts.Describer,
		Sink:             r.opts.Sink,
	})

	s := &Session{id: id, createdAt: r.opts.Clock.Now(), ctrl: ctrl, d: d}

	d.AddListener(r.newLifecycleListener(s))
	if r.opts.Listeners != nil {
		for _, l := range r.opts.Listeners(id) {
			d.AddListener(l)
		}
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	slog.Info("session opened", "session_id", id)
	return s.info()
}

// Get returns a view of one session.
func (r *Registry) Get(id string) (Info, error) {
	s, err := r.lookup(id)
	if err != nil {
		return Info{}, err
	}
	return s.info(), nil
}

// List returns every session, oldest first.
func (r *Registry) List() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.info())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// AddListener registers an extra listener on one session.
func (r *Registry) AddListener(id string, l dispatch.Listener) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	s.d.AddListener(l)
	return nil
}

// Start forwards a start signal.
func (r *Registry) Start(id string, sig dispatch.StartSignal) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	s.d.Start(sig)
	return nil
}

// StartLegacy forwards a legacy start signal.
func (r *Registry) StartLegacy(id string, sig dispatch.LegacyStartSignal) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	s.d.StartLegacy(sig)
	return nil
}

// Cancel forwards a cancel signal.
func (r *Registry) Cancel(id string, thumbnails map[int]surface.Thumbnail) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	s.d.Cancel(thumbnails)
	return nil
}

// TasksAppeared forwards newly appeared tasks.
func (r *Registry) TasksAppeared(id string, targets []surface.Target, info surface.TransitionInfo) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	s.d.TasksAppeared(targets, info)
	return nil
}

// FinishSession finishes an active session through its handle, as a
// consumer would.
func (r *Registry) FinishSession(id string, toHome, sendUserLeaveHint bool) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	h := s.d.Handle()
	if h == nil {
		return fmt.Errorf("session %s: %w", id, ErrNotActive)
	}
	if !h.Finish(toHome, sendUserLeaveHint) {
		return fmt.Errorf("session %s: %w", id, ErrAlreadyFinished)
	}
	return nil
}

// Close cancels a session that has not terminated and forgets it.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}

	if !s.d.State().IsTerminal() {
		s.d.Cancel(nil)
	}
	slog.Info("session closed", "session_id", id)
	return nil
}

// Reap forgets terminated sessions that ended more than ttl ago and returns
// how many were removed.
func (r *Registry) Reap(ttl time.Duration) int {
	cutoff := r.opts.Clock.Now().Add(-ttl)

	r.mu.Lock()
	var reaped []string
	for id, s := range r.sessions {
		if s.endedBefore(cutoff) {
			delete(r.sessions, id)
			reaped = append(reaped, id)
		}
	}
	r.mu.Unlock()

	for _, id := range reaped {
		slog.Debug("session reaped", "session_id", id)
	}
	return len(reaped)
}

// RunReaper calls Reap once per interval until ctx is cancelled. A ttl of
// zero disables reaping.
func (r *Registry) RunReaper(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := r.opts.Clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if n := r.Reap(ttl); n > 0 {
				slog.Info("sessions reaped", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Sync waits until every notification enqueued so far has been delivered.
func (r *Registry) Sync(ctx context.Context) error {
	return r.loop.Sync(ctx)
}

// Count returns the number of open sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) lookup(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return s, nil
}

// newLifecycleListener logs the session's lifecycle and stamps its end.
func (r *Registry) newLifecycleListener(s *Session) *dispatch.ListenerFuncs {
	id := s.id
	return &dispatch.ListenerFuncs{
		Start: func(_ *session.Handle, targets surface.ClassifiedTargets, info surface.TransitionInfo) {
			slog.Info("session started",
				"session_id", id,
				"apps", len(targets.Apps()),
				"closing", targets.ClosingCount(),
				"transition", info.ID)
		},
		Canceled: func(thumbnails map[int]surface.Thumbnail) {
			s.markEnded(r.opts.Clock.Now())
			slog.Info("session canceled", "session_id", id, "thumbnails", len(thumbnails))
		},
		Finished: func(h *session.Handle) {
			s.markEnded(r.opts.Clock.Now())
			slog.Info("session finished", "session_id", id, "to_home", h.FinishedToHome())
		},
	}
}
