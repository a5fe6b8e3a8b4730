package mcp

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/recents/internal/diag"
	"github.com/btouchard/recents/internal/host"
	"github.com/btouchard/recents/internal/loop"
	"github.com/btouchard/recents/internal/store"
	"github.com/btouchard/recents/internal/task"
)

func TestNewServer_RegistersTools(t *testing.T) {
	t.Parallel()

	j, err := store.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	s := NewServer(&Deps{
		Sessions: host.NewRegistry(loop.New("test"), host.Options{Sink: diag.Discard{}}),
		Tasks:    task.NewManager(clockwork.NewFakeClock(), 10),
		Journal:  j,
		Version:  "test",
	})

	tools := s.ListTools()
	for _, name := range []string{"list_sessions", "get_session", "finish_session", "cancel_session", "list_tasks", "get_events"} {
		assert.Contains(t, tools, name)
	}
	assert.Len(t, tools, 6)
}
