package notify

import (
	"fmt"
	"slices"

	"github.com/btouchard/recents/internal/session"
	"github.com/btouchard/recents/internal/surface"
)

// Bridge is a session listener that converts notifications into Events.
// One Bridge serves one session.
type Bridge struct {
	sessionID string
	n         Notifier
}

// NewBridge returns a listener forwarding sessionID's notifications to n.
func NewBridge(sessionID string, n Notifier) *Bridge {
	return &Bridge{sessionID: sessionID, n: n}
}

// OnSessionStart reports the classified target counts.
func (b *Bridge) OnSessionStart(_ *session.Handle, targets surface.ClassifiedTargets, _ surface.TransitionInfo) {
	apps := len(targets.Apps())
	b.n.Notify(Event{
		Type:      EventStarted,
		SessionID: b.sessionID,
		Apps:      apps,
		NonApps:   len(targets.NonApps()),
		Closing:   targets.ClosingCount(),
		Message:   fmt.Sprintf("session started with %d app targets", apps),
	})
}

// OnSessionCanceled reports how many thumbnails the producer handed back.
func (b *Bridge) OnSessionCanceled(thumbnails map[int]surface.Thumbnail) {
	b.n.Notify(Event{
		Type:       EventCanceled,
		SessionID:  b.sessionID,
		Thumbnails: len(thumbnails),
		Message:    "session canceled",
	})
}

// OnSessionFinished reports where the session finished.
func (b *Bridge) OnSessionFinished(h *session.Handle) {
	toHome := h != nil && h.FinishedToHome()
	msg := "session finished to app"
	if toHome {
		msg = "session finished to home"
	}
	b.n.Notify(Event{
		Type:      EventFinished,
		SessionID: b.sessionID,
		ToHome:    toHome,
		Message:   msg,
	})
}

// OnTasksAppeared reports the application tasks that appeared, with their
// packages and the number left without a descriptor.
func (b *Bridge) OnTasksAppeared(targets []surface.Target, _ surface.TransitionInfo) {
	var apps, placeholders int
	var packages []string
	for _, t := range targets {
		if !t.IsApplication() {
			continue
		}
		apps++
		if t.Descriptor.Placeholder {
			placeholders++
		}
		if pkg := t.Descriptor.PackageName; pkg != "" && !slices.Contains(packages, pkg) {
			packages = append(packages, pkg)
		}
	}
	b.n.Notify(Event{
		Type:         EventTasksAppeared,
		SessionID:    b.sessionID,
		Apps:         apps,
		Placeholders: placeholders,
		Packages:     packages,
		Message:      fmt.Sprintf("%d tasks appeared", apps),
	})
}
