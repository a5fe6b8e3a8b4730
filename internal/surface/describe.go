package surface

import "log/slog"

// Describer looks up task metadata on the producer side.
// Lookups may fail; callers degrade to a placeholder.
type Describer interface {
	Describe(taskID int) (Descriptor, error)
}

// DescriberFunc adapts a function to the Describer interface.
type DescriberFunc func(taskID int) (Descriptor, error)

// Describe calls f.
func (f DescriberFunc) Describe(taskID int) (Descriptor, error) {
	return f(taskID)
}

// Resolve returns a copy of targets with descriptors filled in.
// Targets that already carry a package name are left untouched. A failed
// lookup yields a placeholder descriptor instead of an error.
func Resolve(targets []Target, d Describer) []Target {
	out := make([]Target, len(targets))
	copy(out, targets)
	if d == nil {
		return out
	}

	for i := range out {
		if out[i].Descriptor.PackageName != "" {
			continue
		}
		desc, err := d.Describe(out[i].TaskID)
		if err != nil {
			slog.Debug("task descriptor lookup failed, using placeholder",
				"task_id", out[i].TaskID,
				"error", err)
			desc = PlaceholderDescriptor(out[i].TaskID)
		}
		out[i].Descriptor = desc
	}
	return out
}
