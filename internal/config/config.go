package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Snapshot source modes.
const (
	SourceWebSocket = "websocket"
	SourcePoll      = "poll"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Snapshot source configuration.
	SourceMode      string
	SnapshotWSURL   string
	SnapshotPollURL string
	PollInterval    time.Duration
	ReconnectDelay  time.Duration
	HTTPTimeout     time.Duration

	FeedCapacity int

	// Kafka event publishing.
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaEventTopic string

	// NATS event publishing; disabled when NATSURL is empty.
	NATSURL           string
	NATSSubjectPrefix string

	// MQTT notification sink; disabled when MQTTBroker is empty.
	MQTTBroker      string
	MQTTClientID    string
	MQTTNotifyTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	pollInterval, err := parseDuration("POLL_INTERVAL", "4s")
	if err != nil {
		return nil, err
	}
	reconnectDelay, err := parseDuration("RECONNECT_DELAY", "4s")
	if err != nil {
		return nil, err
	}
	httpTimeout, err := parseDuration("HTTP_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	feedCapacity, err := parsePositiveInt("FEED_CAPACITY", 50)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SourceMode:      sharedcfg.EnvOrDefault("SOURCE_MODE", SourceWebSocket),
		SnapshotWSURL:   sharedcfg.EnvOrDefault("SNAPSHOT_WS_URL", "ws://localhost:8000/ws"),
		SnapshotPollURL: sharedcfg.EnvOrDefault("SNAPSHOT_POLL_URL", "http://localhost:8000/api/dashboard"),
		PollInterval:    pollInterval,
		ReconnectDelay:  reconnectDelay,
		HTTPTimeout:     httpTimeout,

		FeedCapacity: feedCapacity,

		KafkaEnabled:    os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaEventTopic: sharedcfg.EnvOrDefault("KAFKA_EVENT_TOPIC", "infrawatch-feed-events"),

		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: sharedcfg.EnvOrDefault("NATS_SUBJECT_PREFIX", "infrawatch.feed"),

		MQTTBroker:      os.Getenv("MQTT_BROKER"),
		MQTTClientID:    sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "infrawatch-feed"),
		MQTTNotifyTopic: sharedcfg.EnvOrDefault("MQTT_NOTIFY_TOPIC", "infrawatch/notifications"),
	}

	switch cfg.SourceMode {
	case SourceWebSocket:
		if cfg.SnapshotWSURL == "" {
			return nil, errors.New("SNAPSHOT_WS_URL is required when SOURCE_MODE is websocket")
		}
	case SourcePoll:
		if cfg.SnapshotPollURL == "" {
			return nil, errors.New("SNAPSHOT_POLL_URL is required when SOURCE_MODE is poll")
		}
	default:
		return nil, fmt.Errorf("invalid SOURCE_MODE %q: want %q or %q", cfg.SourceMode, SourceWebSocket, SourcePoll)
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaEventTopic == "" {
			return nil, errors.New("KAFKA_EVENT_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	if cfg.MQTTBroker != "" && cfg.MQTTNotifyTopic == "" {
		return nil, errors.New("MQTT_NOTIFY_TOPIC is required when MQTT_BROKER is set")
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}
