package task

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/btouchard/recents/internal/dispatch"
	"github.com/btouchard/recents/internal/session"
	"github.com/btouchard/recents/internal/surface"
)

// Manager keeps the set of recent tasks reported by sessions.
type Manager struct {
	mu    sync.RWMutex
	tasks map[int]Task

	clock    clockwork.Clock
	maxTasks int
}

// NewManager creates a Manager holding at most maxTasks tasks; the least
// recently seen are evicted first.
func NewManager(clock clockwork.Clock, maxTasks int) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if maxTasks < 1 {
		maxTasks = 64
	}
	return &Manager{
		tasks:    make(map[int]Task),
		clock:    clock,
		maxTasks: maxTasks,
	}
}

// Observe records the application targets as recent tasks.
func (m *Manager) Observe(targets []surface.Target) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range targets {
		if !t.IsApplication() {
			continue
		}
		m.tasks[t.TaskID] = FromTarget(t, now)
	}
	m.evictLocked()
}

// Remove forgets a task.
func (m *Manager) Remove(id int) {
	m.mu.Lock()
	delete(m.tasks, id)
	m.mu.Unlock()
}

// Get returns a task by ID.
func (m *Manager) Get(id int) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("task %d not found", id)
	}
	return t, nil
}

// Describe implements surface.Describer from the last descriptor seen for
// the task.
func (m *Manager) Describe(taskID int) (surface.Descriptor, error) {
	t, err := m.Get(taskID)
	if err != nil {
		return surface.Descriptor{}, err
	}
	return surface.Descriptor{Label: t.Label, PackageName: t.PackageName, Placeholder: t.Placeholder}, nil
}

// Filter specifies criteria for listing tasks.
type Filter struct {
	Package string
	Limit   int
	Since   time.Time
}

// List returns tasks matching the filter, most recently seen first.
func (m *Manager) List(filter Filter) []Task {
	m.mu.RLock()
	all := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		all = append(all, t)
	}
	m.mu.RUnlock()

	sortRecent(all)

	results := Select(all, FilterByPackage(filter.Package))
	if !filter.Since.IsZero() {
		results = Select(results, func(t Task) bool { return !t.LastSeen.Before(filter.Since) })
	}
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results
}

// InstanceCounts returns per-package counts over every known task.
func (m *Manager) InstanceCounts() map[string]int {
	return InstanceCounts(m.List(Filter{}))
}

// ShowsInstanceAffordance reports whether packageName has two or more
// recent tasks.
func (m *Manager) ShowsInstanceAffordance(packageName string) bool {
	return ShowsInstanceAffordance(m.InstanceCounts(), packageName)
}

// Count returns the number of known tasks.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}

func (m *Manager) evictLocked() {
	if len(m.tasks) <= m.maxTasks {
		return
	}
	all := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		all = append(all, t)
	}
	sortRecent(all)
	for _, t := range all[m.maxTasks:] {
		delete(m.tasks, t.ID)
		slog.Debug("recent task evicted", "task_id", t.ID, "package", t.PackageName)
	}
}

func sortRecent(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].LastSeen.Equal(tasks[j].LastSeen) {
			return tasks[i].ID > tasks[j].ID
		}
		return tasks[i].LastSeen.After(tasks[j].LastSeen)
	})
}

// Tracker is a session listener that feeds a Manager.
type Tracker struct {
	dispatch.NopListener
	m *Manager
}

// NewTracker returns a listener recording tasks into m.
func NewTracker(m *Manager) *Tracker {
	return &Tracker{m: m}
}

// OnSessionStart records the session's application targets.
func (t *Tracker) OnSessionStart(_ *session.Handle, targets surface.ClassifiedTargets, _ surface.TransitionInfo) {
	t.m.Observe(targets.Apps())
}

// OnTasksAppeared records the appeared tasks.
func (t *Tracker) OnTasksAppeared(targets []surface.Target, _ surface.TransitionInfo) {
	t.m.Observe(targets)
}
