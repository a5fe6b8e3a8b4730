package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/recents/internal/host"
	"github.com/btouchard/recents/internal/session"
)

// ListSessions returns a handler that lists hosted sessions.
func ListSessions(reg *host.Registry) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		stateFilter, _ := args["state"].(string)

		var sb strings.Builder
		n := 0
		for _, s := range reg.List() {
			if stateFilter != "" && stateFilter != "all" && s.State.String() != stateFilter {
				continue
			}
			n++
			fmt.Fprintf(&sb, "%s **%s** — %s\n", stateIcon(s.State), s.ID, s.State)
			fmt.Fprintf(&sb, "  Apps: %d | Non-apps: %d | Closing: %d\n", s.Apps, s.NonApps, s.Closing)
			fmt.Fprintf(&sb, "  Opened: %s\n\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
		}

		if n == 0 {
			return mcp.NewToolResultText("No sessions found."), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Sessions (%d found)\n\n", n) + sb.String()), nil
	}
}

// GetSession returns a handler that describes one session.
func GetSession(reg *host.Registry) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		id, _ := args["session_id"].(string)
		if id == "" {
			return mcp.NewToolResultError("session_id is required"), nil
		}

		s, err := reg.Get(id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Session not found: %s", err)), nil
		}

		if format, _ := args["format"].(string); format == "json" {
			data, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("encoding session: %s", err)), nil
			}
			return mcp.NewToolResultText(string(data)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%s Session %s\n\n", stateIcon(s.State), s.ID)
		fmt.Fprintf(&sb, "State: %s\n", s.State)
		fmt.Fprintf(&sb, "Targets: %d apps, %d non-apps, %d closing\n", s.Apps, s.NonApps, s.Closing)
		if s.State == session.Finished {
			fmt.Fprintf(&sb, "Finished to home: %t\n", s.ToHome)
		}
		fmt.Fprintf(&sb, "Producer finish calls: %d\n", len(s.FinishCalls))
		for _, c := range s.FinishCalls {
			fmt.Fprintf(&sb, "  - to_home=%t leave_hint=%t at %s\n", c.ToHome, c.SendUserLeaveHint, c.At.Format("15:04:05.000"))
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

// FinishSession returns a handler that finishes an active session.
func FinishSession(reg *host.Registry) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		id, _ := args["session_id"].(string)
		if id == "" {
			return mcp.NewToolResultError("session_id is required"), nil
		}
		toHome, _ := args["to_home"].(bool)
		leaveHint, _ := args["leave_hint"].(bool)

		if err := reg.FinishSession(id, toHome, leaveHint); err != nil {
			switch {
			case errors.Is(err, host.ErrSessionNotFound):
				return mcp.NewToolResultError(fmt.Sprintf("Session not found: %s", err)), nil
			case errors.Is(err, host.ErrNotActive), errors.Is(err, host.ErrAlreadyFinished):
				return mcp.NewToolResultError(fmt.Sprintf("Cannot finish: %s", err)), nil
			default:
				return nil, err
			}
		}

		dest := "app"
		if toHome {
			dest = "home"
		}
		return mcp.NewToolResultText(fmt.Sprintf("Session %s finishing to %s.", id, dest)), nil
	}
}

// CancelSession returns a handler that sends a cancel signal to a session.
func CancelSession(reg *host.Registry) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		id, _ := args["session_id"].(string)
		if id == "" {
			return mcp.NewToolResultError("session_id is required"), nil
		}

		if err := reg.Cancel(id, nil); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Session not found: %s", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Cancel signal sent to session %s.", id)), nil
	}
}

func stateIcon(s session.State) string {
	switch s {
	case session.Pending:
		return "⏳"
	case session.Active:
		return "🔄"
	case session.Finished:
		return "✅"
	case session.CancelledBeforeStart:
		return "🚫"
	default:
		return "❓"
	}
}
