package surface

import "slices"

// ClassifiedTargets is an immutable view over an ordered set of targets,
// split into application and non-application buckets.
type ClassifiedTargets struct {
	all           []Target
	apps          []Target
	nonApps       []Target
	closingCount  int
	isOpeningHome bool
}

// Classify partitions targets into application and non-application surfaces
// and computes the derived flags in a single pass over the input.
func Classify(targets []Target) ClassifiedTargets {
	c := ClassifiedTargets{
		all: slices.Clone(targets),
	}

	for _, t := range c.all {
		if t.IsApplication() {
			c.apps = append(c.apps, t)
		} else {
			c.nonApps = append(c.nonApps, t)
		}

		if t.Mode == ModeClosing {
			c.closingCount++
		}
		if t.Mode == ModeOpening && t.ActivityType == ActivityHome {
			c.isOpeningHome = true
		}
	}

	return c
}

// All returns every target in input order.
func (c ClassifiedTargets) All() []Target {
	return slices.Clone(c.all)
}

// Apps returns the application targets in input order.
func (c ClassifiedTargets) Apps() []Target {
	return slices.Clone(c.apps)
}

// NonApps returns the divider and dim-layer targets in input order.
func (c ClassifiedTargets) NonApps() []Target {
	return slices.Clone(c.nonApps)
}

// Len returns the number of classified targets.
func (c ClassifiedTargets) Len() int {
	return len(c.all)
}

// ClosingCount returns how many targets are closing, across both buckets.
func (c ClassifiedTargets) ClosingCount() int {
	return c.closingCount
}

// IsOpeningHome reports whether any target is the home activity opening.
func (c ClassifiedTargets) IsOpeningHome() bool {
	return c.isOpeningHome
}

// HasFreeformTarget reports whether an application target is in freeform
// windowing mode. It is always false when desktop mode is disabled.
func (c ClassifiedTargets) HasFreeformTarget(desktopMode bool) bool {
	if !desktopMode {
		return false
	}
	for _, t := range c.apps {
		if t.WindowingMode == WindowingFreeform {
			return true
		}
	}
	return false
}

// FindTask returns the application target for the given task id.
func (c ClassifiedTargets) FindTask(taskID int) (Target, bool) {
	for _, t := range c.apps {
		if t.TaskID == taskID {
			return t, true
		}
	}
	return Target{}, false
}
