package notify

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MCPSender abstracts the mcp-go server notification methods.
// Defined consumer-side per Go convention.
type MCPSender interface {
	SendNotificationToSpecificClient(sessionID string, method string, params map[string]any) error
	SendNotificationToAllClients(method string, params map[string]any)
}

var lifecycleLevels = map[string]string{
	EventStarted:  "info",
	EventCanceled: "warning",
	EventFinished: "info",
}

// taskFeed accumulates tasks-appeared events of one session between two
// progress notifications.
type taskFeed struct {
	lastSent time.Time
	total    int

	apps         int
	placeholders int
	packages     []string
}

func (f *taskFeed) add(event Event) {
	f.total += event.Apps
	f.apps += event.Apps
	f.placeholders += event.Placeholders
	for _, pkg := range event.Packages {
		if !slices.Contains(f.packages, pkg) {
			f.packages = append(f.packages, pkg)
		}
	}
}

// flush renders the pending batch and starts a new one.
func (f *taskFeed) flush(now time.Time) string {
	msg := fmt.Sprintf("%d tasks appeared", f.apps)
	if len(f.packages) > 0 {
		msg += " (" + strings.Join(f.packages, ", ") + ")"
	}
	if f.placeholders > 0 {
		msg += fmt.Sprintf(", %d without descriptor", f.placeholders)
	}

	f.lastSent = now
	f.apps = 0
	f.placeholders = 0
	f.packages = nil
	return msg
}

// MCPNotifier pushes session updates to MCP clients. Lifecycle events become
// notifications/message. Tasks-appeared events become notifications/progress
// whose progress is the running number of tasks seen in the session; events
// arriving within the debounce window are folded into the next one.
type MCPNotifier struct {
	sender   MCPSender
	clock    clockwork.Clock
	debounce time.Duration

	mu    sync.Mutex
	feeds map[string]*taskFeed // session ID → pending task batch
}

// NewMCPNotifier creates an MCPNotifier. debounce defaults to 3s.
func NewMCPNotifier(sender MCPSender, clock clockwork.Clock, debounce time.Duration) *MCPNotifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if debounce <= 0 {
		debounce = 3 * time.Second
	}
	return &MCPNotifier{
		sender:   sender,
		clock:    clock,
		debounce: debounce,
		feeds:    make(map[string]*taskFeed),
	}
}

// Notify sends an MCP notification for the given event.
func (n *MCPNotifier) Notify(event Event) {
	if event.Type == EventTasksAppeared {
		n.taskProgress(event)
		return
	}

	level, ok := lifecycleLevels[event.Type]
	if !ok {
		slog.Debug("mcp notifier: unknown event type", "type", event.Type)
		return
	}
	if event.Type != EventStarted {
		n.forget(event.SessionID)
	}

	n.send(event.MCPSessionID, "notifications/message", map[string]any{
		"level":  level,
		"logger": "recents",
		"data":   lifecycleData(event),
	})
}

func (n *MCPNotifier) taskProgress(event Event) {
	now := n.clock.Now()

	n.mu.Lock()
	feed, ok := n.feeds[event.SessionID]
	if !ok {
		feed = &taskFeed{}
		n.feeds[event.SessionID] = feed
	}
	feed.add(event)
	if !feed.lastSent.IsZero() && now.Sub(feed.lastSent) < n.debounce {
		n.mu.Unlock()
		return
	}
	total := feed.total
	msg := feed.flush(now)
	n.mu.Unlock()

	n.send(event.MCPSessionID, "notifications/progress", map[string]any{
		"progressToken": event.SessionID,
		"progress":      total,
		"message":       msg,
	})
}

func lifecycleData(event Event) map[string]any {
	data := map[string]any{
		"type":       event.Type,
		"session_id": event.SessionID,
		"message":    event.Message,
	}
	switch event.Type {
	case EventStarted:
		data["apps"] = event.Apps
		data["non_apps"] = event.NonApps
		data["closing"] = event.Closing
	case EventCanceled:
		data["thumbnails"] = event.Thumbnails
	case EventFinished:
		data["to_home"] = event.ToHome
	}
	return data
}

// send dispatches to a specific client, or broadcasts when the client is
// unknown or gone.
func (n *MCPNotifier) send(mcpSessionID, method string, params map[string]any) {
	if mcpSessionID == "" {
		n.sender.SendNotificationToAllClients(method, params)
		return
	}
	if err := n.sender.SendNotificationToSpecificClient(mcpSessionID, method, params); err != nil {
		slog.Debug("mcp notification failed, falling back to broadcast",
			"session_id", mcpSessionID,
			"method", method,
			"error", err)
		n.sender.SendNotificationToAllClients(method, params)
	}
}

// forget drops the task batch of a session that reached a terminal state.
func (n *MCPNotifier) forget(sessionID string) {
	n.mu.Lock()
	delete(n.feeds, sessionID)
	n.mu.Unlock()
}

