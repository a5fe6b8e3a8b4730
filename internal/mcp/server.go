package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/recents/internal/host"
	"github.com/btouchard/recents/internal/store"
	"github.com/btouchard/recents/internal/task"
)

// Deps holds shared dependencies injected into MCP handlers.
type Deps struct {
	Sessions *host.Registry
	Tasks    *task.Manager
	Journal  store.Journal
	Version  string
}

// NewServer creates and configures the MCP server with all tools registered.
func NewServer(deps *Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"Recents",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	registerTools(s, deps)

	return s
}
