// Package dispatch routes animation session signals from the producer to
// listeners running on a single consumer loop.
package dispatch

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/btouchard/recents/internal/diag"
	"github.com/btouchard/recents/internal/loop"
	"github.com/btouchard/recents/internal/session"
	"github.com/btouchard/recents/internal/surface"
)

// Notification kinds reported to the diagnostic sink.
const (
	KindStart         = "start"
	KindCancel        = "cancel"
	KindFinish        = "finish"
	KindTasksAppeared = "tasks_appeared"
)

// Options configures a Dispatcher.
type Options struct {
	// ID names the session in diagnostics.
	ID string

	// OverviewInWindow lets a session proceed without closing targets
	// unless home is opening.
	OverviewInWindow bool

	// DesktopMode enables freeform target detection.
	DesktopMode bool

	// Describer resolves task descriptors. Optional.
	Describer surface.Describer

	// Sink receives diagnostics. Defaults to a slog-backed sink.
	Sink diag.Sink
}

// Dispatcher owns one animation session. Producer signals (Start,
// StartLegacy, Cancel, TasksAppeared) may arrive on any goroutine and never
// block; notifications are delivered on the consumer loop in the order they
// were enqueued.
type Dispatcher struct {
	id        string
	ctrl      session.Controller
	loop      *loop.Loop
	describer surface.Describer
	sink      diag.Sink

	overviewInWindow bool
	desktopMode      bool

	// mu guards the session slot shared by producer and consumer.
	mu        sync.Mutex
	state     session.State
	handle    *session.Handle
	startSeen bool

	// listeners is only touched on the consumer loop.
	listeners []Listener
}

// New creates a Dispatcher in the Pending state. ctrl is the producer's
// control end; notifications are posted to l.
func New(ctrl session.Controller, l *loop.Loop, opts Options) *Dispatcher {
	sink := opts.Sink
	if sink == nil {
		sink = diag.NewLogger(nil)
	}
	return &Dispatcher{
		id:               opts.ID,
		ctrl:             ctrl,
		loop:             l,
		describer:        opts.Describer,
		sink:             sink,
		overviewInWindow: opts.OverviewInWindow,
		desktopMode:      opts.DesktopMode,
		state:            session.Pending,
	}
}

// ID returns the session id used in diagnostics.
func (d *Dispatcher) ID() string {
	return d.id
}

// State returns the current session state.
func (d *Dispatcher) State() session.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Handle returns the session handle, or nil if the session never became active.
func (d *Dispatcher) Handle() *session.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handle
}

// AddListener registers l for every notification enqueued after this call.
// Adding a listener twice has no effect.
func (d *Dispatcher) AddListener(l Listener) {
	d.loop.Post(func() {
		if !slices.Contains(d.listeners, l) {
			d.listeners = append(d.listeners, l)
		}
	})
}

// RemoveListener unregisters l for every notification enqueued after this call.
func (d *Dispatcher) RemoveListener(l Listener) {
	d.loop.Post(func() {
		if i := slices.Index(d.listeners, l); i >= 0 {
			d.listeners = slices.Delete(d.listeners, i, i+1)
		}
	})
}

// Cancel handles the producer's cancel signal. Before start it pre-empts the
// session; on an active session it tears the session down and hands the
// thumbnails to listeners. In any other state it is ignored.
func (d *Dispatcher) Cancel(thumbnails map[int]surface.Thumbnail) {
	if _, ok := d.transition(session.Pending, session.CancelledBeforeStart, nil); ok {
		d.notifyCanceled(thumbnails)
		return
	}

	if !d.cancelActive() {
		d.sink.Ignored(d.id, "cancel", d.State())
		return
	}
	d.notifyCanceled(thumbnails)
}

// cancelActive moves an active session to Finished. The handle is made inert
// in the same critical section, so no consumer finish reaches the producer
// once the state has left Active.
func (d *Dispatcher) cancelActive() bool {
	d.mu.Lock()
	if d.state != session.Active {
		d.mu.Unlock()
		return false
	}
	d.handle.Abandon()
	d.state = session.Finished
	d.mu.Unlock()

	d.sink.Transition(d.id, session.Active, session.Finished)
	return true
}

// StartLegacy normalizes the older start shape and handles it like Start.
func (d *Dispatcher) StartLegacy(sig LegacyStartSignal) {
	d.Start(sig.Normalize())
}

// Start handles the producer's start signal. Only the first start of a
// pending session is considered.
func (d *Dispatcher) Start(sig StartSignal) {
	d.mu.Lock()
	seen := d.startSeen
	d.startSeen = true
	state := d.state
	d.mu.Unlock()

	if seen {
		d.sink.Ignored(d.id, "start", state)
		return
	}
	if state != session.Pending {
		// Cancelled before the producer got here; release its transition.
		d.sink.Ignored(d.id, "start", state)
		d.ctrl.Finish(false, false, nil)
		return
	}

	targets := surface.Classify(surface.Resolve(sig.Targets, d.describer))

	if session.Decide(targets, d.overviewInWindow) == session.CancelImmediately {
		slog.Debug("nothing to animate, cancelling session",
			"session_id", d.id,
			"targets", targets.Len(),
			"opening_home", targets.IsOpeningHome())
		d.ctrl.Finish(false, false, nil)
		if _, ok := d.transition(session.Pending, session.CancelledBeforeStart, nil); ok {
			d.notifyCanceled(map[int]surface.Thumbnail{})
		} else {
			d.sink.Ignored(d.id, "start", d.State())
		}
		return
	}

	h := session.NewHandle(d.ctrl, session.Snapshot{
		Targets:         targets,
		Wallpapers:      surface.Resolve(sig.Wallpapers, nil),
		ContentInsets:   sig.ContentInsets,
		MinimizedBounds: sig.MinimizedBounds,
		Extras:          sig.Extras,
		Info:            sig.Info,
	}, d.finish)

	if _, ok := d.transition(session.Pending, session.Active, h); !ok {
		// A concurrent cancel owns the terminal notification.
		d.sink.Ignored(d.id, "start", d.State())
		h.FinishToApp()
		return
	}

	if targets.HasFreeformTarget(d.desktopMode) {
		slog.Debug("session contains freeform target", "session_id", d.id)
	}

	info := sig.Info
	d.post(KindStart, func(l Listener) {
		l.OnSessionStart(h, targets, info)
	})
}

// TasksAppeared forwards newly appeared tasks to listeners regardless of
// session state.
func (d *Dispatcher) TasksAppeared(targets []surface.Target, info surface.TransitionInfo) {
	resolved := surface.Resolve(targets, d.describer)
	d.post(KindTasksAppeared, func(l Listener) {
		l.OnTasksAppeared(slices.Clone(resolved), info)
	})
}

// finish is the handle's completion callback.
func (d *Dispatcher) finish() {
	h, ok := d.transition(session.Active, session.Finished, nil)
	if !ok {
		d.sink.Ignored(d.id, "finish", d.State())
		return
	}
	d.post(KindFinish, func(l Listener) {
		l.OnSessionFinished(h)
	})
}

func (d *Dispatcher) notifyCanceled(thumbnails map[int]surface.Thumbnail) {
	if thumbnails == nil {
		thumbnails = map[int]surface.Thumbnail{}
	}
	d.post(KindCancel, func(l Listener) {
		l.OnSessionCanceled(thumbnails)
	})
}

// transition moves the slot from → to if it is currently in from. When h is
// non-nil it is stored alongside. The handle held after the transition is
// returned.
func (d *Dispatcher) transition(from, to session.State, h *session.Handle) (*session.Handle, bool) {
	d.mu.Lock()
	if d.state != from {
		d.mu.Unlock()
		return nil, false
	}
	d.state = to
	if h != nil {
		d.handle = h
	}
	held := d.handle
	d.mu.Unlock()

	d.sink.Transition(d.id, from, to)
	return held, true
}

// post enqueues one fan-out batch on the consumer loop. The listener set is
// copied before any listener runs.
func (d *Dispatcher) post(kind string, deliver func(Listener)) {
	ok := d.loop.Post(func() {
		listeners := slices.Clone(d.listeners)
		d.sink.FanOut(d.id, kind, len(listeners))
		for _, l := range listeners {
			deliver(l)
		}
	})
	if !ok {
		slog.Warn("consumer loop stopped, notification dropped",
			"session_id", d.id,
			"kind", kind)
	}
}
