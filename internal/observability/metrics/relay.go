package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics covers writes to the remote feed store.
type RelayMetrics struct {
	Publishes       *prometheus.CounterVec
	PublishDuration prometheus.Histogram
	LastEntryID     prometheus.Gauge
	registry        *prometheus.Registry
}

// NewRelayMetrics creates and registers the relay collectors.
func NewRelayMetrics(registry *prometheus.Registry) (*RelayMetrics, error) {
	m := &RelayMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register relay metrics: %w", err)
	}
	return m, nil
}

func (m *RelayMetrics) initMetrics() {
	m.Publishes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_publishes_total",
		Help: "Publish attempts to the remote feed store by kind and status",
	}, []string{"kind", "status"})

	m.PublishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_publish_duration_seconds",
		Help:    "Duration of publish requests",
		Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
	})

	m.LastEntryID = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_last_entry_id",
		Help: "Entry id assigned to the last accepted publish",
	})
}

// RecordPublish records one attempt. kind is "event" or "keepalive".
func (m *RelayMetrics) RecordPublish(kind, status string, d time.Duration) {
	m.Publishes.WithLabelValues(kind, status).Inc()
	if status != StatusLimited {
		m.PublishDuration.Observe(d.Seconds())
	}
}

// SetLastEntryID records the id of the last accepted write.
func (m *RelayMetrics) SetLastEntryID(id int64) {
	m.LastEntryID.Set(float64(id))
}

// Describe implements the prometheus.Collector interface.
func (m *RelayMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Publishes.Describe(ch)
	ch <- m.PublishDuration.Desc()
	ch <- m.LastEntryID.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *RelayMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Publishes.Collect(ch)
	ch <- m.PublishDuration
	ch <- m.LastEntryID
}
