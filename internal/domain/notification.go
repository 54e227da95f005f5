package domain

import (
	"fmt"
	"time"
)

// Notification is the payload handed to an external notification sink.
type Notification struct {
	Title              string    `json:"title"`
	Body               string    `json:"body"`
	RequireInteraction bool      `json:"require_interaction"`
	SubjectID          string    `json:"subject_id"`
	Kind               Kind      `json:"kind"`
	Severity           Severity  `json:"severity"`
	Timestamp          time.Time `json:"timestamp"`
}

// NotificationFor returns the sink notification for e. Only notifying
// events of critical severity reach the sink; everything else stays in the
// feed.
func NotificationFor(e Event) (Notification, bool) {
	if !e.Notify || e.Severity < SeverityCritical {
		return Notification{}, false
	}
	return Notification{
		Title:              notificationTitle(e),
		Body:               e.Message,
		RequireInteraction: e.Severity == SeverityCritical,
		SubjectID:          e.SubjectID,
		Kind:               e.Kind,
		Severity:           e.Severity,
		Timestamp:          e.Timestamp,
	}, true
}

func notificationTitle(e Event) string {
	switch e.Kind {
	case KindEscalation:
		return fmt.Sprintf("CRITICAL: %s", e.SubjectID)
	case KindNewHazard:
		return fmt.Sprintf("New hazard: %s", e.IssueType)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.SubjectID)
	}
}
