package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/infrawatch-feed-service/internal/domain"
	natsserver "github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestPublisher_Subject(t *testing.T) {
	p := &Publisher{prefix: "infrawatch.feed"}
	assert.Equal(t, "infrawatch.feed.escalation", p.Subject(domain.KindEscalation))
	assert.Equal(t, "infrawatch.feed.new_hazard", p.Subject(domain.KindNewHazard))
}

func TestPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewPublisher(url, "infrawatch.feed", slog.Default())
	require.NoError(t, err)
	defer pub.Close()

	nc, err := natsgo.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	ch := make(chan *natsgo.Msg, 4)
	sub, err := nc.ChanSubscribe("infrawatch.feed.>", ch)
	require.NoError(t, err)
	defer sub.Unsubscribe() //nolint:errcheck
	require.NoError(t, nc.Flush())

	events := []domain.Event{
		{Kind: domain.KindEscalation, Severity: domain.SeverityCritical, SubjectID: "A", Notify: true},
		{Kind: domain.KindNewReport, Severity: domain.SeverityInfo, SubjectID: "A", Delta: 2},
	}
	require.NoError(t, pub.Publish(context.Background(), events))
	require.NoError(t, pub.conn.Flush())

	for i, want := range []string{"infrawatch.feed.escalation", "infrawatch.feed.new_report"} {
		select {
		case msg := <-ch:
			assert.Equal(t, want, msg.Subject)
			var got domain.Event
			require.NoError(t, json.Unmarshal(msg.Data, &got))
			assert.Equal(t, events[i].Kind, got.Kind)
			assert.Equal(t, "A", got.SubjectID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for published message")
		}
	}
}

func TestNewPublisher_Unreachable(t *testing.T) {
	_, err := NewPublisher("nats://127.0.0.1:1", "infrawatch.feed", slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to NATS")
}
