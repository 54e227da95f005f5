//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/infrawatch-feed-service/internal/adapter/kafka"
	"github.com/couchcryptid/infrawatch-feed-service/internal/config"
	"github.com/couchcryptid/infrawatch-feed-service/internal/domain"
	"github.com/couchcryptid/infrawatch-feed-service/internal/feed"
	"github.com/couchcryptid/infrawatch-feed-service/internal/monitor"
	"github.com/couchcryptid/infrawatch-feed-service/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testEventTopic = "test-feed-events"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka launches a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// publishedEvent holds a deserialized message read from the event topic.
type publishedEvent struct {
	Event   domain.Event
	Key     string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedEvent {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from event topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.Event
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal event message")
	return publishedEvent{Event: event, Key: string(msg.Key), Headers: headers}
}

// TestMonitorPublishesToKafka wires the monitor to a real Kafka writer and
// verifies that a snapshot transition is delivered as keyed, headed messages.
func TestMonitorPublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventTopic)

	cfg := &config.Config{
		KafkaBrokers:    []string{broker},
		KafkaEventTopic: testEventTopic,
	}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	pubs := monitor.NewMulti()
	pubs.Add("kafka", writer)
	m := monitor.New(nil, pubs, nil, feed.New(10), discardLogger(), observability.NewMetricsForTesting())

	_, err := m.Apply(ctx, []byte(`{"items": {"A": {"state": "Reported", "report_count": 1}}}`))
	require.NoError(t, err)
	events, err := m.Apply(ctx, []byte(`{
		"items": {"A": {"state": "Critical", "report_count": 4}},
		"hazards": [{"event_id": "h1", "issue_type": "pothole", "severity": 4, "from_id": "A"}]
	}`))
	require.NoError(t, err)
	require.Len(t, events, 3)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testEventTopic,
		GroupID:     fmt.Sprintf("test-feed-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := make([]publishedEvent, 0, len(events))
	for len(received) < len(events) {
		received = append(received, readPublished(ctx, t, consumer))
	}

	assert.Equal(t, "A", received[0].Key)
	assert.Equal(t, "escalation", received[0].Headers["event_kind"])
	assert.Equal(t, "critical", received[0].Headers["severity"])
	assert.Equal(t, domain.StateCritical, *received[0].Event.ToState)

	assert.Equal(t, "new_report", received[1].Headers["event_kind"])
	assert.Equal(t, 3, received[1].Event.Delta)

	assert.Equal(t, "h1", received[2].Key)
	assert.Equal(t, "new_hazard", received[2].Headers["event_kind"])
	assert.Equal(t, "pothole", received[2].Event.IssueType)
}
