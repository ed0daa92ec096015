package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics covers the poll and reconcile cycle.
type IngestMetrics struct {
	Polls           *prometheus.CounterVec
	PollDuration    prometheus.Histogram
	PolledRecords   prometheus.Counter
	RecordsInserted prometheus.Counter
	RecordsSkipped  prometheus.Counter
	Malformed       prometheus.Counter
	Conflicts       prometheus.Counter
	LastEntryID     prometheus.Gauge
	LastPollTime    prometheus.Gauge
	registry        *prometheus.Registry
}

// NewIngestMetrics creates and registers the ingest collectors.
func NewIngestMetrics(registry *prometheus.Registry) (*IngestMetrics, error) {
	m := &IngestMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register ingest metrics: %w", err)
	}
	return m, nil
}

func (m *IngestMetrics) initMetrics() {
	m.Polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_polls_total",
		Help: "Feed polls by status",
	}, []string{"status"})

	m.PollDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_poll_duration_seconds",
		Help:    "Duration of one poll and reconcile cycle",
		Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
	})

	m.PolledRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_polled_records_total",
		Help: "Records returned by the remote feed",
	})
	m.RecordsInserted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_records_inserted_total",
		Help: "Sightings inserted into the local store",
	})
	m.RecordsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_records_skipped_total",
		Help: "Polled records at or below the stored maximum entry id",
	})
	m.Malformed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_records_malformed_total",
		Help: "Polled records whose fields could not be coerced",
	})
	m.Conflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_write_conflicts_total",
		Help: "Inserts that hit an existing entry id",
	})
	m.LastEntryID = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_last_entry_id",
		Help: "Highest entry id in the local store after the last ingest",
	})
	m.LastPollTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_last_poll_time_seconds",
		Help: "Unix time of the last successful poll",
	})
}

// RecordPoll records the outcome and duration of one cycle.
func (m *IngestMetrics) RecordPoll(status string, d time.Duration) {
	m.Polls.WithLabelValues(status).Inc()
	m.PollDuration.Observe(d.Seconds())
	if status == StatusSuccess {
		m.LastPollTime.SetToCurrentTime()
	}
}

// RecordIngest adds the counts of one ingest call.
func (m *IngestMetrics) RecordIngest(polled, inserted, skipped, malformed, conflicts int, lastEntryID int64) {
	m.PolledRecords.Add(float64(polled))
	m.RecordsInserted.Add(float64(inserted))
	m.RecordsSkipped.Add(float64(skipped))
	m.Malformed.Add(float64(malformed))
	m.Conflicts.Add(float64(conflicts))
	m.LastEntryID.Set(float64(lastEntryID))
}

// Describe implements the prometheus.Collector interface.
func (m *IngestMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Polls.Describe(ch)
	ch <- m.PollDuration.Desc()
	ch <- m.PolledRecords.Desc()
	ch <- m.RecordsInserted.Desc()
	ch <- m.RecordsSkipped.Desc()
	ch <- m.Malformed.Desc()
	ch <- m.Conflicts.Desc()
	ch <- m.LastEntryID.Desc()
	ch <- m.LastPollTime.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *IngestMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Polls.Collect(ch)
	ch <- m.PollDuration
	ch <- m.PolledRecords
	ch <- m.RecordsInserted
	ch <- m.RecordsSkipped
	ch <- m.Malformed
	ch <- m.Conflicts
	ch <- m.LastEntryID
	ch <- m.LastPollTime
}
