package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/infrawatch-feed-service/internal/config"
	"github.com/couchcryptid/infrawatch-feed-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces feed events to a Kafka topic.
// It implements monitor.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured event topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaEventTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes one message per event in a single WriteMessages call.
// Events are keyed by subject so every event for an item lands on the
// same partition in emission order.
func (w *Writer) Publish(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d events: %w", len(msgs), err)
	}
	w.logger.Debug("events written to kafka", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Event into a Kafka message.
func serializeToMessage(event domain.Event) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize feed event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.SubjectID),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafkago.Header{
			{Key: "event_kind", Value: []byte(event.Kind.String())},
			{Key: "severity", Value: []byte(event.Severity.String())},
		},
	}, nil
}
