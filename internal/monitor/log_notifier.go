package monitor

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/infrawatch-feed-service/internal/domain"
)

// LogNotifier writes notifications to the service log. It is the sink used
// when no MQTT broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, note domain.Notification) error {
	n.logger.WarnContext(ctx, "notification",
		"title", note.Title,
		"body", note.Body,
		"require_interaction", note.RequireInteraction,
		"subject_id", note.SubjectID,
		"kind", note.Kind,
	)
	return nil
}
