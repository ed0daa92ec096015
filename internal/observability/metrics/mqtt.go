package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics covers the sighting fan-out to the MQTT broker.
type MQTTMetrics struct {
	Connected         prometheus.Gauge
	Sightings         *prometheus.CounterVec
	ReconnectAttempts prometheus.Counter
	PayloadSize       prometheus.Histogram
	PublishDuration   prometheus.Histogram
	registry          *prometheus.Registry
}

// NewMQTTMetrics creates and registers the MQTT collectors.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{registry: registry}
	m.Connected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mqtt_connected",
		Help: "1 while the broker connection is up",
	})
	m.Sightings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mqtt_sightings_published_total",
		Help: "Sighting messages handed to the broker by status",
	}, []string{"status"})
	m.ReconnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mqtt_reconnect_attempts_total",
		Help: "Reconnect attempts after a lost broker connection",
	})
	m.PayloadSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mqtt_payload_bytes",
		Help:    "Size of published sighting payloads",
		Buckets: prometheus.ExponentialBuckets(64, BucketFactor2, 8),
	})
	m.PublishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mqtt_publish_duration_seconds",
		Help:    "Time until the broker acknowledged a publish",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, 10),
	})

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// UpdateConnectionStatus sets the connection gauge
func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if connected {
		m.Connected.Set(1)
		return
	}
	m.Connected.Set(0)
}

// IncrementMessagesDelivered counts one acknowledged sighting message
func (m *MQTTMetrics) IncrementMessagesDelivered() {
	m.Sightings.WithLabelValues(StatusSuccess).Inc()
}

// IncrementErrors counts a failed publish or connection attempt
func (m *MQTTMetrics) IncrementErrors() {
	m.Sightings.WithLabelValues(StatusError).Inc()
}

func (m *MQTTMetrics) IncrementReconnectAttempts() {
	m.ReconnectAttempts.Inc()
}

func (m *MQTTMetrics) ObserveMessageSize(sizeBytes float64) {
	m.PayloadSize.Observe(sizeBytes)
}

func (m *MQTTMetrics) ObservePublishLatency(d time.Duration) {
	m.PublishDuration.Observe(d.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.Connected.Desc()
	m.Sightings.Describe(ch)
	ch <- m.ReconnectAttempts.Desc()
	ch <- m.PayloadSize.Desc()
	ch <- m.PublishDuration.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.Connected
	m.Sightings.Collect(ch)
	ch <- m.ReconnectAttempts
	ch <- m.PayloadSize
	ch <- m.PublishDuration
}
