package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/infrawatch-feed-service/internal/domain"
	"github.com/couchcryptid/infrawatch-feed-service/internal/feed"
	"github.com/couchcryptid/infrawatch-feed-service/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Source yields raw snapshot payloads, one per call.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
	Connected() bool
	Close() error
}

// Publisher delivers a batch of derived events to a downstream consumer.
type Publisher interface {
	Publish(ctx context.Context, events []domain.Event) error
	Close() error
}

// Notifier forwards a notification to the operator-facing sink.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Monitor drives the receive-parse-diff-dispatch loop and owns the
// previous-snapshot slot.
type Monitor struct {
	source    Source
	publisher Publisher
	notifier  Notifier
	feed      *feed.Feed
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool

	mu   sync.RWMutex
	prev *domain.Snapshot
}

// New creates a Monitor. publisher and notifier may be nil.
func New(src Source, pub Publisher, n Notifier, f *feed.Feed, logger *slog.Logger, metrics *observability.Metrics) *Monitor {
	return &Monitor{
		source:    src,
		publisher: pub,
		notifier:  n,
		feed:      f,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once at least one snapshot has been applied.
func (m *Monitor) CheckReadiness(_ context.Context) error {
	if !m.ready.Load() {
		return errors.New("monitor has not applied a snapshot yet")
	}
	return nil
}

// Previous returns the last applied snapshot, if any.
func (m *Monitor) Previous() (domain.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.prev == nil {
		return domain.Snapshot{}, false
	}
	return *m.prev, true
}

// Run pulls snapshots from the source until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started")
	m.metrics.MonitorRunning.Set(1)
	defer m.metrics.MonitorRunning.Set(0)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			m.logger.Info("monitor stopping", "reason", ctx.Err())
			return nil
		}

		payload, err := m.source.Next(ctx)
		m.metrics.SourceConnected.Set(boolGauge(m.source.Connected()))
		if err != nil {
			if ctx.Err() != nil {
				m.logger.Info("monitor stopping", "reason", ctx.Err())
				return nil
			}
			m.logger.Error("snapshot source failed", "error", err, "retry_in", backoff)
			m.metrics.SourceErrors.Inc()
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = initialBackoff

		if _, err := m.Apply(ctx, payload); err != nil {
			m.logger.Warn("discarding snapshot", "error", err, "bytes", len(payload))
		}
	}
}

// Apply parses one payload, diffs it against the previous snapshot, replaces
// the slot, and dispatches the resulting events. An invalid payload leaves the
// slot untouched and returns an error wrapping domain.ErrInvalidSnapshot.
func (m *Monitor) Apply(ctx context.Context, payload []byte) ([]domain.Event, error) {
	start := time.Now()
	m.metrics.SnapshotsReceived.Inc()

	snap, issues, err := domain.ParseSnapshot(payload)
	if err != nil {
		m.metrics.InvalidSnapshots.Inc()
		return nil, err
	}
	for _, is := range issues {
		m.logger.Warn("skipping malformed entry",
			"section", is.Section,
			"index", is.Index,
			"key", is.Key,
			"error", is.Err,
		)
		m.metrics.MalformedEntries.WithLabelValues(is.Section).Inc()
	}

	m.mu.Lock()
	events := domain.Diff(m.prev, snap)
	m.prev = &snap
	m.mu.Unlock()

	m.metrics.DiffDuration.Observe(time.Since(start).Seconds())
	m.ready.Store(true)

	if len(events) > 0 {
		m.dispatch(ctx, events)
	}
	return events, nil
}

func (m *Monitor) dispatch(ctx context.Context, events []domain.Event) {
	evicted := m.feed.Push(events...)
	m.metrics.FeedLength.Set(float64(m.feed.Len()))
	for _, e := range events {
		m.metrics.EventsEmitted.WithLabelValues(e.Kind.String(), e.Severity.String()).Inc()
	}
	m.logger.Info("events derived", "count", len(events), "evicted", evicted)

	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, events); err != nil {
			for _, pe := range publishErrors(err) {
				m.logger.Error("publish events failed", "publisher", pe.Publisher, "error", pe.Err, "count", len(events))
				m.metrics.PublishErrors.WithLabelValues(pe.Publisher).Inc()
			}
		}
	}

	if m.notifier == nil {
		return
	}
	for _, e := range events {
		n, ok := domain.NotificationFor(e)
		if !ok {
			continue
		}
		if err := m.notifier.Notify(ctx, n); err != nil {
			m.logger.Error("notify failed", "subject_id", e.SubjectID, "kind", e.Kind, "error", err)
			m.metrics.Notifications.WithLabelValues("error").Inc()
			continue
		}
		m.metrics.Notifications.WithLabelValues("sent").Inc()
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
