package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/infrawatch-feed-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/infrawatch-feed-service/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/infrawatch-feed-service/internal/adapter/mqtt"
	natsadapter "github.com/couchcryptid/infrawatch-feed-service/internal/adapter/nats"
	"github.com/couchcryptid/infrawatch-feed-service/internal/adapter/poll"
	"github.com/couchcryptid/infrawatch-feed-service/internal/adapter/websocket"
	"github.com/couchcryptid/infrawatch-feed-service/internal/config"
	"github.com/couchcryptid/infrawatch-feed-service/internal/feed"
	"github.com/couchcryptid/infrawatch-feed-service/internal/monitor"
	"github.com/couchcryptid/infrawatch-feed-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	source := newSource(cfg, logger)

	// The SSE hub always receives events; Kafka and NATS are opt-in.
	hub := httpadapter.NewHub()
	publishers := monitor.NewMulti()
	publishers.Add("sse", hub)

	if cfg.KafkaEnabled {
		publishers.Add("kafka", kafkaadapter.NewWriter(cfg, logger))
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEventTopic)
	}
	if cfg.NATSURL != "" {
		natsPub, err := natsadapter.NewPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, logger)
		if err != nil {
			logger.Error("failed to connect to nats", "error", err)
			os.Exit(1)
		}
		publishers.Add("nats", natsPub)
		logger.Info("nats publishing enabled", "url", cfg.NATSURL, "prefix", cfg.NATSSubjectPrefix)
	}

	var notifier monitor.Notifier = monitor.NewLogNotifier(logger)
	var mqttNotifier *mqttadapter.Notifier
	if cfg.MQTTBroker != "" {
		mqttNotifier, err = mqttadapter.NewNotifier(cfg, logger)
		if err != nil {
			logger.Error("failed to connect to mqtt", "error", err)
			os.Exit(1)
		}
		notifier = mqttNotifier
		logger.Info("mqtt notifications enabled", "broker", cfg.MQTTBroker, "topic", cfg.MQTTNotifyTopic)
	}

	f := feed.New(cfg.FeedCapacity)
	m := monitor.New(source, publishers, notifier, f, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, m, f, source, hub, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start snapshot monitor.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.Run(ctx); err != nil {
			logger.Error("monitor error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := source.Close(); err != nil {
		logger.Error("snapshot source close error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("monitor did not stop before shutdown timeout")
	}
	if err := publishers.Close(); err != nil {
		logger.Error("publisher close error", "error", err)
	}
	if mqttNotifier != nil {
		mqttNotifier.Close()
	}

	logger.Info("shutdown complete")
}

func newSource(cfg *config.Config, logger *slog.Logger) monitor.Source {
	if cfg.SourceMode == config.SourcePoll {
		logger.Info("polling snapshot source", "url", cfg.SnapshotPollURL, "interval", cfg.PollInterval)
		return poll.NewSource(cfg.SnapshotPollURL, cfg.PollInterval, cfg.HTTPTimeout, logger)
	}
	logger.Info("websocket snapshot source", "url", cfg.SnapshotWSURL, "reconnect_delay", cfg.ReconnectDelay)
	return websocket.NewSource(cfg.SnapshotWSURL, cfg.ReconnectDelay, cfg.HTTPTimeout, logger)
}
