package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind classifies a feed event.
type Kind int

const (
	KindEscalation Kind = iota + 1
	KindDeescalation
	KindNewReport
	KindNewHazard
)

func (k Kind) String() string {
	switch k {
	case KindEscalation:
		return "escalation"
	case KindDeescalation:
		return "deescalation"
	case KindNewReport:
		return "new_report"
	case KindNewHazard:
		return "new_hazard"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, c := range []Kind{KindEscalation, KindDeescalation, KindNewReport, KindNewHazard} {
		if c.String() == s {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", s)
}

// Severity is the display priority of an event. Values are ordered.
type Severity int

const (
	SeverityInfo     Severity = 1
	SeverityWarning  Severity = 2
	SeverityCritical Severity = 3
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for _, c := range []Severity{SeverityInfo, SeverityWarning, SeverityCritical} {
		if c.String() == name {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", name)
}

// Event is one discrete change detected between two snapshots.
type Event struct {
	Kind      Kind      `json:"kind"`
	Severity  Severity  `json:"severity"`
	SubjectID string    `json:"subject_id"`
	Message   string    `json:"message"`
	Notify    bool      `json:"notify"`
	Timestamp time.Time `json:"timestamp"`

	// Transition details; set depending on Kind.
	FromState *State `json:"from_state,omitempty"`
	ToState   *State `json:"to_state,omitempty"`
	Delta     int    `json:"delta,omitempty"`
	IssueType string `json:"issue_type,omitempty"`
}
