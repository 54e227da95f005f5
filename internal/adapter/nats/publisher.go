package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/infrawatch-feed-service/internal/domain"
	natsgo "github.com/nats-io/nats.go"
)

// Publisher publishes feed events to NATS, one subject per event kind
// (e.g. "infrawatch.feed.escalation").
// It implements monitor.Publisher.
type Publisher struct {
	conn   *natsgo.Conn
	prefix string
	logger *slog.Logger
}

// NewPublisher connects to url with automatic reconnection.
func NewPublisher(url, prefix string, logger *slog.Logger) (*Publisher, error) {
	nc, err := natsgo.Connect(url,
		natsgo.Name("infrawatch-feed"),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		natsgo.ReconnectHandler(func(c *natsgo.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Publisher{conn: nc, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject an event of the given kind is published on.
func (p *Publisher) Subject(kind domain.Kind) string {
	return p.prefix + "." + kind.String()
}

func (p *Publisher) Publish(_ context.Context, events []domain.Event) error {
	for i := range events {
		data, err := json.Marshal(events[i])
		if err != nil {
			return fmt.Errorf("marshaling event: %w", err)
		}
		if err := p.conn.Publish(p.Subject(events[i].Kind), data); err != nil {
			return fmt.Errorf("publishing %s: %w", events[i].Kind, err)
		}
	}
	return nil
}

func (p *Publisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("draining NATS connection: %w", err)
	}
	return nil
}
