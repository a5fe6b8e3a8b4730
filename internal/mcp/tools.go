package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/recents/internal/mcp/handlers"
	"github.com/btouchard/recents/internal/store"
)

func registerTools(s *server.MCPServer, deps *Deps) {
	// list_sessions: hosted animation sessions
	s.AddTool(
		mcp.NewTool("list_sessions",
			mcp.WithDescription("List hosted recents animation sessions with their state and target counts."),
			mcp.WithString("state",
				mcp.Description("Filter by session state"),
				mcp.Enum("all", "pending", "active", "cancelled_before_start", "finished"),
			),
		),
		handlers.ListSessions(deps.Sessions),
	)

	s.AddTool(
		mcp.NewTool("get_session",
			mcp.WithDescription("Describe one session: state, classified targets and producer finish calls."),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("The session ID"),
			),
			mcp.WithString("format",
				mcp.Description("Output format"),
				mcp.Enum("text", "json"),
			),
		),
		handlers.GetSession(deps.Sessions),
	)

	s.AddTool(
		mcp.NewTool("finish_session",
			mcp.WithDescription("Finish an active session, either to home or back to the app. Only the first finish takes effect."),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("The session ID"),
			),
			mcp.WithBoolean("to_home",
				mcp.Description("Finish to the home screen instead of returning to the app"),
			),
			mcp.WithBoolean("leave_hint",
				mcp.Description("Send the user-leave hint to the app being left"),
			),
		),
		handlers.FinishSession(deps.Sessions),
	)

	s.AddTool(
		mcp.NewTool("cancel_session",
			mcp.WithDescription("Send the producer's cancel signal to a session. Ignored once the session has terminated."),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("The session ID"),
			),
		),
		handlers.CancelSession(deps.Sessions),
	)

	s.AddTool(
		mcp.NewTool("list_tasks",
			mcp.WithDescription("List recent tasks seen by sessions, most recent first, with per-package instance counts."),
			mcp.WithString("package",
				mcp.Description("Only tasks of this package"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of tasks to return (default: 20)"),
			),
		),
		handlers.ListTasks(deps.Tasks),
	)

	s.AddTool(
		mcp.NewTool("get_events",
			mcp.WithDescription("Read the session journal: transitions, listener fan-outs and ignored signals."),
			mcp.WithString("session_id",
				mcp.Description("Only events of this session"),
			),
			mcp.WithString("type",
				mcp.Description("Only events of this type"),
				mcp.Enum("all", store.EventTransition, store.EventFanOut, store.EventIgnored),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of events to return (default: 50)"),
			),
		),
		handlers.GetEvents(deps.Journal),
	)
}
