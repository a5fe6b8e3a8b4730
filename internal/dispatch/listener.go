package dispatch

import (
	"github.com/btouchard/recents/internal/session"
	"github.com/btouchard/recents/internal/surface"
)

// Listener observes session notifications. Every method runs on the
// dispatcher's consumer loop. Implementations are compared by identity, so
// use pointer types.
type Listener interface {
	OnSessionStart(h *session.Handle, targets surface.ClassifiedTargets, info surface.TransitionInfo)
	OnSessionCanceled(thumbnails map[int]surface.Thumbnail)
	OnSessionFinished(h *session.Handle)
	OnTasksAppeared(targets []surface.Target, info surface.TransitionInfo)
}

// ListenerFuncs implements Listener with optional callbacks. Nil fields are
// no-ops. Register it by pointer.
type ListenerFuncs struct {
	Start         func(h *session.Handle, targets surface.ClassifiedTargets, info surface.TransitionInfo)
	Canceled      func(thumbnails map[int]surface.Thumbnail)
	Finished      func(h *session.Handle)
	TasksAppeared func(targets []surface.Target, info surface.TransitionInfo)
}

// OnSessionStart calls f.Start if set.
func (f *ListenerFuncs) OnSessionStart(h *session.Handle, targets surface.ClassifiedTargets, info surface.TransitionInfo) {
	if f.Start != nil {
		f.Start(h, targets, info)
	}
}

// OnSessionCanceled calls f.Canceled if set.
func (f *ListenerFuncs) OnSessionCanceled(thumbnails map[int]surface.Thumbnail) {
	if f.Canceled != nil {
		f.Canceled(thumbnails)
	}
}

// OnSessionFinished calls f.Finished if set.
func (f *ListenerFuncs) OnSessionFinished(h *session.Handle) {
	if f.Finished != nil {
		f.Finished(h)
	}
}

// OnTasksAppeared calls f.TasksAppeared if set.
func (f *ListenerFuncs) OnTasksAppeared(targets []surface.Target, info surface.TransitionInfo) {
	if f.TasksAppeared != nil {
		f.TasksAppeared(targets, info)
	}
}

// NopListener can be embedded to implement only some Listener methods.
type NopListener struct{}

func (NopListener) OnSessionStart(*session.Handle, surface.ClassifiedTargets, surface.TransitionInfo) {}
func (NopListener) OnSessionCanceled(map[int]surface.Thumbnail)                                      {}
func (NopListener) OnSessionFinished(*session.Handle)                                                {}
func (NopListener) OnTasksAppeared([]surface.Target, surface.TransitionInfo)                         {}
