package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownState is returned when a state string matches no known State.
var ErrUnknownState = errors.New("unknown item state")

// State is the monitoring state of a single item.
type State int

const (
	StateClear State = iota
	StateReported
	StateEscalated
	StateCritical
	StateCleared
)

var stateNames = [...]string{
	StateClear:     "Clear",
	StateReported:  "Reported",
	StateEscalated: "Escalated",
	StateCritical:  "Critical",
	StateCleared:   "Cleared",
}

// stateAliases maps lower-cased wire names to states. The upstream dashboard
// labels its risk bands Normal/Elevated/Warning/Critical, so those are
// accepted alongside the canonical names.
var stateAliases = map[string]State{
	"clear":     StateClear,
	"reported":  StateReported,
	"escalated": StateEscalated,
	"critical":  StateCritical,
	"cleared":   StateCleared,
	"normal":    StateClear,
	"elevated":  StateReported,
	"warning":   StateEscalated,
}

// ParseState resolves a wire state name, case-insensitively. Unrecognized
// names yield ErrUnknownState rather than a default rank.
func ParseState(s string) (State, error) {
	st, ok := stateAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownState, s)
	}
	return st, nil
}

// Rank orders states by severity. Cleared ranks with Clear.
func (s State) Rank() int {
	switch s {
	case StateReported:
		return 1
	case StateEscalated:
		return 2
	case StateCritical:
		return 3
	default:
		return 0
	}
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("state must be a string: %w", err)
	}
	st, err := ParseState(name)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
