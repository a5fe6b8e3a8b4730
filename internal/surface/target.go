package surface

import "fmt"

// Mode describes what a target is doing in the transition.
type Mode string

const (
	ModeOpening  Mode = "opening"
	ModeClosing  Mode = "closing"
	ModeChanging Mode = "changing"
)

// Role tags the kind of window backing a target.
type Role string

const (
	RoleNormal   Role = "normal"
	RoleDivider  Role = "divider"
	RoleDimLayer Role = "dim_layer"
	RoleOther    Role = "other"
)

// ActivityType tags the activity a target belongs to.
type ActivityType string

const (
	ActivityStandard  ActivityType = "standard"
	ActivityHome      ActivityType = "home"
	ActivityRecents   ActivityType = "recents"
	ActivityUndefined ActivityType = "undefined"
)

// WindowingMode tags how a target's window is laid out.
type WindowingMode string

const (
	WindowingFullscreen  WindowingMode = "fullscreen"
	WindowingFreeform    WindowingMode = "freeform"
	WindowingMultiWindow WindowingMode = "multi_window"
	WindowingUndefined   WindowingMode = "undefined"
)

// Rect is an opaque rectangle in screen coordinates.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Right <= r.Left || r.Bottom <= r.Top
}

// Descriptor is the task metadata the producer can look up for a target.
type Descriptor struct {
	Label       string `json:"label"`
	PackageName string `json:"package_name"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// PlaceholderDescriptor stands in for a descriptor the producer failed to return.
func PlaceholderDescriptor(taskID int) Descriptor {
	return Descriptor{
		Label:       fmt.Sprintf("task-%d", taskID),
		Placeholder: true,
	}
}

// Target is one surface taking part in a transition.
type Target struct {
	TaskID        int           `json:"task_id"`
	Mode          Mode          `json:"mode"`
	Role          Role          `json:"role"`
	ActivityType  ActivityType  `json:"activity_type"`
	WindowingMode WindowingMode `json:"windowing_mode"`
	Bounds        Rect          `json:"bounds"`
	Descriptor    Descriptor    `json:"descriptor"`
}

// IsApplication reports whether the target is an application surface.
// Dividers and dim layers are decoration owned by the window system.
func (t Target) IsApplication() bool {
	return t.Role != RoleDivider && t.Role != RoleDimLayer
}

// TransitionInfo is the opaque transition description that accompanies
// start and tasks-appeared signals.
type TransitionInfo struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type,omitempty"`
	Flags int    `json:"flags,omitempty"`
}

// Thumbnail is a snapshot of a task's contents handed over on cancel.
type Thumbnail struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
	Data   []byte  `json:"data,omitempty"`
}
