package session

import (
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"

	"github.com/btouchard/recents/internal/surface"
)

// Controller is the producer's control end of a running transition.
// done is invoked by the producer once the finish has been applied; it may
// be nil and may be called from any goroutine.
type Controller interface {
	Finish(toHome, sendUserLeaveHint bool, done func())
}

// Snapshot holds everything captured when a session became active.
type Snapshot struct {
	Targets         surface.ClassifiedTargets
	Wallpapers      []surface.Target
	ContentInsets   surface.Rect
	MinimizedBounds *surface.Rect
	Extras          map[string]any
	Info            surface.TransitionInfo
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Wallpapers = slices.Clone(s.Wallpapers)
	out.Extras = maps.Clone(s.Extras)
	if s.MinimizedBounds != nil {
		b := *s.MinimizedBounds
		out.MinimizedBounds = &b
	}
	return out
}

// Handle is the consumer-facing view of an active session. It forwards
// finish requests to the producer exactly once.
type Handle struct {
	ctrl       Controller
	snap       Snapshot
	onFinished func()

	finished atomic.Bool
	toHome   atomic.Bool
}

// NewHandle wraps ctrl for one session. onFinished runs when the producer
// confirms the finish.
func NewHandle(ctrl Controller, snap Snapshot, onFinished func()) *Handle {
	return &Handle{
		ctrl:       ctrl,
		snap:       snap.clone(),
		onFinished: onFinished,
	}
}

// Snapshot returns a copy of the data captured at start.
func (h *Handle) Snapshot() Snapshot {
	return h.snap.clone()
}

// Targets returns the classified targets captured at start.
func (h *Handle) Targets() surface.ClassifiedTargets {
	return h.snap.Targets
}

// FinishToHome ends the transition on the home surface.
func (h *Handle) FinishToHome() bool {
	return h.Finish(true, false)
}

// FinishToApp ends the transition back on the application.
func (h *Handle) FinishToApp() bool {
	return h.Finish(false, false)
}

// Finish instructs the producer to end the transition. It returns false if
// the handle was already finished, in which case nothing is sent.
func (h *Handle) Finish(toHome, sendUserLeaveHint bool) bool {
	if !h.finished.CompareAndSwap(false, true) {
		slog.Debug("session handle already finished", "to_home", toHome)
		return false
	}
	h.toHome.Store(toHome)
	h.ctrl.Finish(toHome, sendUserLeaveHint, h.onFinished)
	return true
}

// Abandon marks the handle finished without contacting the producer.
// Used when the producer itself tore the session down.
func (h *Handle) Abandon() bool {
	return h.finished.CompareAndSwap(false, true)
}

// IsFinished reports whether a finish was requested or the handle was abandoned.
func (h *Handle) IsFinished() bool {
	return h.finished.Load()
}

// FinishedToHome reports whether the finish request targeted home.
func (h *Handle) FinishedToHome() bool {
	return h.toHome.Load()
}
