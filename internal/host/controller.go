package host

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// FinishCall is one request made to the producer's control end.
type FinishCall struct {
	ToHome            bool      `json:"to_home"`
	SendUserLeaveHint bool      `json:"send_user_leave_hint"`
	At                time.Time `json:"at"`
}

// RemoteController is the producer control end of a hosted session. It
// records every finish request and acknowledges it immediately.
type RemoteController struct {
	clock clockwork.Clock

	mu    sync.Mutex
	calls []FinishCall
}

// NewRemoteController creates a RemoteController.
func NewRemoteController(clock clockwork.Clock) *RemoteController {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RemoteController{clock: clock}
}

// Finish implements session.Controller.
func (c *RemoteController) Finish(toHome, sendUserLeaveHint bool, done func()) {
	c.mu.Lock()
	c.calls = append(c.calls, FinishCall{
		ToHome:            toHome,
		SendUserLeaveHint: sendUserLeaveHint,
		At:                c.clock.Now(),
	})
	c.mu.Unlock()

	if done != nil {
		done()
	}
}

// Calls returns a copy of the recorded finish requests.
func (c *RemoteController) Calls() []FinishCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]FinishCall, len(c.calls))
	copy(out, c.calls)
	return out
}
