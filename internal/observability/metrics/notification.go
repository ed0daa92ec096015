package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics covers watched-species alerts.
type NotificationMetrics struct {
	Deliveries       *prometheus.CounterVec
	DeliveryDuration prometheus.Histogram
	registry         *prometheus.Registry
}

// NewNotificationMetrics creates and registers the notification collectors.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{registry: registry}
	m.Deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_deliveries_total",
		Help: "Notification deliveries by status",
	}, []string{"status"})
	m.DeliveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "notification_delivery_duration_seconds",
		Help:    "Time taken to hand a notification to all services",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

// RecordDelivery records one send attempt
func (m *NotificationMetrics) RecordDelivery(status string, d time.Duration) {
	m.Deliveries.WithLabelValues(status).Inc()
	m.DeliveryDuration.Observe(d.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Deliveries.Describe(ch)
	ch <- m.DeliveryDuration.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Deliveries.Collect(ch)
	ch <- m.DeliveryDuration
}
