package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/infrawatch-feed-service/internal/config"
	"github.com/couchcryptid/infrawatch-feed-service/internal/domain"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	qosAtLeastOnce  = 1
	connectTimeout  = 10 * time.Second
	publishTimeout  = 5 * time.Second
	disconnectQuiet = 250 // milliseconds
)

// client is the subset of pahomqtt.Client the notifier needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Notifier publishes critical notifications as JSON to an MQTT topic.
// It implements monitor.Notifier.
type Notifier struct {
	client  client
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewNotifier connects to the configured broker. The client reconnects on its
// own after the initial connection succeeds.
func NewNotifier(cfg *config.Config, logger *slog.Logger) (*Notifier, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		}).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			logger.Info("mqtt connected", "broker", cfg.MQTTBroker)
		})

	c := pahomqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connecting to MQTT broker %s: timed out", cfg.MQTTBroker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", cfg.MQTTBroker, err)
	}
	return newNotifier(c, cfg.MQTTNotifyTopic, publishTimeout, logger), nil
}

func newNotifier(c client, topic string, timeout time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{client: c, topic: topic, timeout: timeout, logger: logger}
}

// Notify publishes n with QoS 1 and waits for the broker acknowledgement,
// the context, or the publish timeout, whichever comes first.
func (n *Notifier) Notify(ctx context.Context, note domain.Notification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	token := n.client.Publish(n.topic, qosAtLeastOnce, false, payload)

	timer := time.NewTimer(n.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.New("publish notification: timed out waiting for broker")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	n.logger.Debug("notification sent", "topic", n.topic, "subject_id", note.SubjectID)
	return nil
}

// Close disconnects from the broker, allowing in-flight publishes to finish.
func (n *Notifier) Close() {
	n.client.Disconnect(disconnectQuiet)
}
