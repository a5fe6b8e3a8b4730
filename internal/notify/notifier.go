package notify

// Event types.
const (
	EventStarted       = "session.started"
	EventCanceled      = "session.canceled"
	EventFinished      = "session.finished"
	EventTasksAppeared = "session.tasks_appeared"
)

// Event represents a session lifecycle notification.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`

	Apps       int  `json:"apps,omitempty"`
	NonApps    int  `json:"non_apps,omitempty"`
	Closing    int  `json:"closing,omitempty"`
	Thumbnails int  `json:"thumbnails,omitempty"`
	ToHome     bool `json:"to_home,omitempty"`

	// Placeholders counts targets whose descriptor lookup failed.
	Placeholders int      `json:"placeholders,omitempty"`
	Packages     []string `json:"packages,omitempty"`

	Message string `json:"message,omitempty"`

	// MCPSessionID targets a specific MCP client session.
	// Empty means broadcast to all.
	MCPSessionID string `json:"-"`
}

// Notifier sends session lifecycle notifications.
type Notifier interface {
	Notify(event Event)
}

// Hub dispatches events to multiple notifiers, in registration order, on the
// caller's goroutine. Notifiers must not block.
type Hub struct {
	notifiers []Notifier
}

// NewHub creates a Hub with the given notifiers.
func NewHub(notifiers ...Notifier) *Hub {
	return &Hub{notifiers: notifiers}
}

// Notify sends an event to all registered notifiers.
func (h *Hub) Notify(event Event) {
	for _, n := range h.notifiers {
		n.Notify(event)
	}
}
