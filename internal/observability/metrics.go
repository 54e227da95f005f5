package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "infrawatch_feed"

// Metrics holds the Prometheus counters, histograms, and gauges for the feed monitor.
type Metrics struct {
	SnapshotsReceived prometheus.Counter
	InvalidSnapshots  prometheus.Counter
	MalformedEntries  *prometheus.CounterVec // labels: section={items,hazards}
	SourceErrors      prometheus.Counter
	SourceConnected   prometheus.Gauge
	MonitorRunning    prometheus.Gauge

	DiffDuration  prometheus.Histogram
	EventsEmitted *prometheus.CounterVec // labels: kind, severity
	FeedLength    prometheus.Gauge

	PublishErrors *prometheus.CounterVec // labels: publisher
	Notifications *prometheus.CounterVec // labels: outcome={sent,error}
}

// NewMetrics creates and registers all monitor metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SnapshotsReceived,
		m.InvalidSnapshots,
		m.MalformedEntries,
		m.SourceErrors,
		m.SourceConnected,
		m.MonitorRunning,
		m.DiffDuration,
		m.EventsEmitted,
		m.FeedLength,
		m.PublishErrors,
		m.Notifications,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SnapshotsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_received_total",
			Help:      "Total snapshot payloads received from the source.",
		}),
		InvalidSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_snapshots_total",
			Help:      "Payloads discarded because they could not be read as a snapshot.",
		}),
		MalformedEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_entries_total",
			Help:      "Items and hazards skipped because they were malformed.",
		}, []string{"section"}),
		SourceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Errors returned by the snapshot source.",
		}),
		SourceConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_connected",
			Help:      "1 while the snapshot source is connected, 0 otherwise.",
		}),
		MonitorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_running",
			Help:      "1 when the monitor loop is active, 0 when shut down.",
		}),
		DiffDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "diff_duration_seconds",
			Help:      "Duration of parsing and diffing one snapshot.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Feed events produced by snapshot diffs.",
		}, []string{"kind", "severity"}),
		FeedLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_length",
			Help:      "Number of events currently held in the feed.",
		}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed event publications by publisher.",
		}, []string{"publisher"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications dispatched to the sink by outcome.",
		}, []string{"outcome"}),
	}
}
