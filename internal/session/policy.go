package session

import "github.com/btouchard/recents/internal/surface"

// Decision is the outcome of the start policy.
type Decision int

const (
	Proceed Decision = iota
	CancelImmediately
)

func (d Decision) String() string {
	if d == CancelImmediately {
		return "cancel_immediately"
	}
	return "proceed"
}

// Decide reports whether a start signal yields an active session.
//
// With nothing closing there is nothing to animate away from, so the session
// is cancelled. The exception is overview-in-window mode, which can still
// render without a closing surface unless home itself is opening.
func Decide(c surface.ClassifiedTargets, overviewInWindow bool) Decision {
	if c.ClosingCount() == 0 && (!overviewInWindow || c.IsOpeningHome()) {
		return CancelImmediately
	}
	return Proceed
}
