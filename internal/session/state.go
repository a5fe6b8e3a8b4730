package session

import "fmt"

// State is the lifecycle state of one animation session.
type State int

const (
	Pending State = iota
	Active
	CancelledBeforeStart
	Finished
)

var stateNames = map[State]string{
	Pending:              "pending",
	Active:               "active",
	CancelledBeforeStart: "cancelled_before_start",
	Finished:             "finished",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	st, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseState returns the state with the given name.
func ParseState(name string) (State, error) {
	for st, n := range stateNames {
		if n == name {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown session state %q", name)
}

// IsTerminal reports whether no further transition can leave s.
func (s State) IsTerminal() bool {
	return s == CancelledBeforeStart || s == Finished
}

// CanTransition reports whether from → to is one of the legal transitions.
func CanTransition(from, to State) bool {
	switch from {
	case Pending:
		return to == Active || to == CancelledBeforeStart
	case Active:
		return to == Finished
	default:
		return false
	}
}
