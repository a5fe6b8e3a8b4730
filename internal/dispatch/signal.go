package dispatch

import (
	"github.com/btouchard/recents/internal/surface"
)

// StartSignal is the canonical shape of the producer's start signal.
type StartSignal struct {
	Targets         []surface.Target       `json:"targets"`
	Wallpapers      []surface.Target       `json:"wallpapers,omitempty"`
	ContentInsets   surface.Rect           `json:"content_insets"`
	MinimizedBounds *surface.Rect          `json:"minimized_bounds,omitempty"`
	Extras          map[string]any         `json:"extras,omitempty"`
	Info            surface.TransitionInfo `json:"transition_info"`
}

// LegacyStartSignal is the older start shape still sent by some producers.
// It carries no extras or transition info and names the insets after home.
type LegacyStartSignal struct {
	Apps                []surface.Target `json:"apps"`
	Wallpapers          []surface.Target `json:"wallpapers,omitempty"`
	HomeContentInsets   surface.Rect     `json:"home_content_insets"`
	MinimizedHomeBounds *surface.Rect    `json:"minimized_home_bounds,omitempty"`
}

// Normalize converts the legacy shape into a StartSignal.
func (s LegacyStartSignal) Normalize() StartSignal {
	sig := StartSignal{
		Targets:       s.Apps,
		Wallpapers:    s.Wallpapers,
		ContentInsets: s.HomeContentInsets,
		Info:          surface.TransitionInfo{Type: "legacy"},
	}
	if s.MinimizedHomeBounds != nil && !s.MinimizedHomeBounds.Empty() {
		b := *s.MinimizedHomeBounds
		sig.MinimizedBounds = &b
	}
	return sig
}
