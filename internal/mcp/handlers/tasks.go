package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/recents/internal/task"
)

// ListTasks returns a handler that lists recent tasks with optional filters.
func ListTasks(tm *task.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		filter := task.Filter{
			Limit: 20,
		}
		if pkg, ok := args["package"].(string); ok {
			filter.Package = pkg
		}
		if limit, ok := args["limit"].(float64); ok && limit > 0 {
			filter.Limit = int(limit)
		}

		tasks := tm.List(filter)
		if len(tasks) == 0 {
			return mcp.NewToolResultText("No recent tasks found matching the given filters."), nil
		}

		counts := tm.InstanceCounts()

		var sb strings.Builder
		fmt.Fprintf(&sb, "Recent tasks (%d found)\n\n", len(tasks))
		for _, t := range tasks {
			label := t.Label
			if label == "" {
				label = fmt.Sprintf("task-%d", t.ID)
			}
			fmt.Fprintf(&sb, "- **%s** (#%d)", label, t.ID)
			if t.PackageName != "" {
				fmt.Fprintf(&sb, " — %s", t.PackageName)
			}
			if task.ShowsInstanceAffordance(counts, t.PackageName) {
				fmt.Fprintf(&sb, " [%d instances]", counts[t.PackageName])
			}
			if t.Placeholder {
				sb.WriteString(" (placeholder)")
			}
			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
