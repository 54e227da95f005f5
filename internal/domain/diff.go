package domain

import (
	"fmt"
	"strings"
	"time"
)

// Diff compares two snapshots and returns the events between them, item
// events in current.Items order followed by hazard events in
// current.Hazards order. A nil previous yields no events. Diff does not
// modify either snapshot.
func Diff(previous *Snapshot, current Snapshot) []Event {
	if previous == nil {
		return nil
	}

	at := current.ObservedAt
	if at.IsZero() {
		at = clock.Now().UTC()
	}

	var events []Event

	prevItems := previous.itemIndex()
	for _, cur := range current.Items {
		prev, ok := prevItems[cur.ID]
		if !ok {
			// First sighting: nothing to compare against.
			continue
		}
		events = appendItemEvents(events, prev, cur, at)
	}

	prevHazards := previous.hazardIDs()
	for _, h := range current.Hazards {
		if _, seen := prevHazards[h.EventID]; seen {
			continue
		}
		events = append(events, Event{
			Kind:      KindNewHazard,
			Severity:  SeverityWarning,
			SubjectID: h.EventID,
			Message:   hazardMessage(h),
			Notify:    true,
			Timestamp: at,
			IssueType: h.IssueType,
		})
	}

	return events
}

// appendItemEvents emits the rank change, if any, before the report change.
func appendItemEvents(events []Event, prev, cur ItemState, at time.Time) []Event {
	from, to := prev.State, cur.State

	switch {
	case to.Rank() > from.Rank():
		sev := SeverityWarning
		if to == StateCritical {
			sev = SeverityCritical
		}
		events = append(events, Event{
			Kind:      KindEscalation,
			Severity:  sev,
			SubjectID: cur.ID,
			Message:   fmt.Sprintf("%s escalated %s \u2192 %s", subjectLabel(cur), from, to),
			Notify:    true,
			Timestamp: at,
			FromState: &from,
			ToState:   &to,
		})
	case to.Rank() < from.Rank():
		events = append(events, Event{
			Kind:      KindDeescalation,
			Severity:  SeverityInfo,
			SubjectID: cur.ID,
			Message:   fmt.Sprintf("%s de-escalated %s \u2192 %s", subjectLabel(cur), from, to),
			Notify:    true,
			Timestamp: at,
			FromState: &from,
			ToState:   &to,
		})
	}

	if delta := cur.ReportCount - prev.ReportCount; delta > 0 {
		noun := "reports"
		if delta == 1 {
			noun = "report"
		}
		events = append(events, Event{
			Kind:      KindNewReport,
			Severity:  SeverityInfo,
			SubjectID: cur.ID,
			Message:   fmt.Sprintf("+%d new %s at %s (%d total)", delta, noun, subjectLabel(cur), cur.ReportCount),
			Timestamp: at,
			Delta:     delta,
		})
	}

	return events
}

func subjectLabel(it ItemState) string {
	if it.LocationLabel == "" || it.LocationLabel == it.ID {
		return it.ID
	}
	return fmt.Sprintf("%s (%s)", it.LocationLabel, it.ID)
}

func hazardMessage(h Hazard) string {
	issue := strings.ReplaceAll(strings.TrimSpace(h.IssueType), "_", " ")
	if issue == "" {
		issue = "road"
	}
	msg := fmt.Sprintf("New %s hazard (severity %d/5)", issue, h.Severity)
	switch {
	case h.FromID != "" && h.ToID != "":
		msg += fmt.Sprintf(" between %s and %s", h.FromID, h.ToID)
	case h.FromID != "":
		msg += " near " + h.FromID
	}
	return msg
}
