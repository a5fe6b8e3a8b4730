package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/recents/internal/store"
)

// GetEvents returns a handler that reads the session journal.
func GetEvents(j store.Journal) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		filter := store.EventFilter{Limit: 50}
		if id, ok := args["session_id"].(string); ok {
			filter.SessionID = id
		}
		if typ, ok := args["type"].(string); ok && typ != "all" {
			filter.Type = typ
		}
		if limit, ok := args["limit"].(float64); ok && limit > 0 {
			filter.Limit = int(limit)
		}

		events, err := j.ListEvents(filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("reading journal: %s", err)), nil
		}
		if len(events) == 0 {
			return mcp.NewToolResultText("No events recorded."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Session events (%d)\n\n", len(events))
		for _, e := range events {
			fmt.Fprintf(&sb, "[%s] %s %s", e.CreatedAt.Format("15:04:05.000"), e.SessionID, e.Type)
			switch e.Type {
			case store.EventTransition:
				fmt.Fprintf(&sb, " %s → %s", e.FromState, e.ToState)
			case store.EventFanOut:
				fmt.Fprintf(&sb, " %s to %d listeners", e.Kind, e.Listeners)
			case store.EventIgnored:
				fmt.Fprintf(&sb, " %s in %s", e.Kind, e.FromState)
			}
			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
