package task

import (
	"time"

	"github.com/btouchard/recents/internal/surface"
)

// Task is a recent task as seen through session notifications.
type Task struct {
	ID            int                   `json:"id"`
	PackageName   string                `json:"package_name"`
	Label         string                `json:"label"`
	WindowingMode surface.WindowingMode `json:"windowing_mode"`
	Placeholder   bool                  `json:"placeholder,omitempty"`
	LastSeen      time.Time             `json:"last_seen"`
}

// FromTarget builds a Task from an application target.
func FromTarget(t surface.Target, seen time.Time) Task {
	return Task{
		ID:            t.TaskID,
		PackageName:   t.Descriptor.PackageName,
		Label:         t.Descriptor.Label,
		WindowingMode: t.WindowingMode,
		Placeholder:   t.Descriptor.Placeholder,
		LastSeen:      seen,
	}
}

// Predicate selects tasks.
type Predicate func(Task) bool

// FilterByPackage returns a predicate matching tasks of the given package.
// An empty package name matches every task.
func FilterByPackage(packageName string) Predicate {
	if packageName == "" {
		return func(Task) bool { return true }
	}
	return func(t Task) bool {
		return t.PackageName == packageName
	}
}

// Select returns the tasks matching p, in input order.
func Select(tasks []Task, p Predicate) []Task {
	var out []Task
	for _, t := range tasks {
		if p(t) {
			out = append(out, t)
		}
	}
	return out
}

// InstanceCounts returns how many tasks each package has.
// Tasks without a known package are not counted.
func InstanceCounts(tasks []Task) map[string]int {
	counts := make(map[string]int)
	for _, t := range tasks {
		if t.PackageName == "" {
			continue
		}
		counts[t.PackageName]++
	}
	return counts
}

// ShowsInstanceAffordance reports whether a package has enough open
// instances for a per-instance menu to be offered.
func ShowsInstanceAffordance(counts map[string]int, packageName string) bool {
	return counts[packageName] >= 2
}
