// Package diag defines the diagnostic sink that observes session state
// transitions and listener fan-outs.
package diag

import (
	"log/slog"

	"github.com/btouchard/recents/internal/session"
)

// Sink receives one call per state transition, per fan-out batch and per
// ignored signal. Calls happen on producer and consumer goroutines alike;
// implementations must be safe for concurrent use and must not block.
type Sink interface {
	Transition(sessionID string, from, to session.State)
	FanOut(sessionID, kind string, listeners int)
	Ignored(sessionID, signal string, state session.State)
}

// Logger is a Sink that writes to slog.
type Logger struct {
	log *slog.Logger
}

// NewLogger returns a Logger writing to l, or to slog.Default when l is nil.
func NewLogger(l *slog.Logger) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{log: l}
}

// Transition logs the state change at info level.
func (l *Logger) Transition(sessionID string, from, to session.State) {
	l.log.Info("session transition",
		"session_id", sessionID,
		"from", from.String(),
		"to", to.String())
}

// FanOut logs the batch size at debug level.
func (l *Logger) FanOut(sessionID, kind string, listeners int) {
	l.log.Debug("session fan-out",
		"session_id", sessionID,
		"kind", kind,
		"listeners", listeners)
}

// Ignored logs the dropped signal at debug level.
func (l *Logger) Ignored(sessionID, signal string, state session.State) {
	l.log.Debug("session signal ignored",
		"session_id", sessionID,
		"signal", signal,
		"state", state.String())
}

// Multi forwards every call to each of its sinks in order.
type Multi []Sink

// Transition forwards to every sink.
func (m Multi) Transition(sessionID string, from, to session.State) {
	for _, s := range m {
		s.Transition(sessionID, from, to)
	}
}

// FanOut forwards to every sink.
func (m Multi) FanOut(sessionID, kind string, listeners int) {
	for _, s := range m {
		s.FanOut(sessionID, kind, listeners)
	}
}

// Ignored forwards to every sink.
func (m Multi) Ignored(sessionID, signal string, state session.State) {
	for _, s := range m {
		s.Ignored(sessionID, signal, state)
	}
}

// Discard drops everything.
type Discard struct{}

func (Discard) Transition(string, session.State, session.State) {}
func (Discard) FanOut(string, string, int)                      {}
func (Discard) Ignored(string, string, session.State)           {}
