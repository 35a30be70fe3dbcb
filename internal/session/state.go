package session

import (
	"fmt"
	"strings"
)

// State is the lifecycle phase reported for an application session.
type State int

const (
	StateNone State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

var stateNames = [...]string{
	StateNone:     "None",
	StateStarting: "Starting",
	StateRunning:  "Running",
	StateStopping: "Stopping",
	StateStopped:  "Stopped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Active reports whether the session is starting or running.
func (s State) Active() bool {
	return s == StateStarting || s == StateRunning
}

// ParseState matches token against the known state names, ignoring case and
// surrounding whitespace.
func ParseState(token string) (State, error) {
	trimmed := strings.TrimSpace(token)
	for i, name := range stateNames {
		if strings.EqualFold(trimmed, name) {
			return State(i), nil
		}
	}
	return StateNone, fmt.Errorf("unknown session state %q", token)
}
