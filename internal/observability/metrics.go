// Package observability wires the Prometheus registry and the /metrics endpoint.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/wildlife-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry     *prometheus.Registry
	Relay        *metrics.RelayMetrics
	Ingest       *metrics.IngestMetrics
	HTTPClient   *metrics.HTTPClientMetrics
	MQTT         *metrics.MQTTMetrics
	Notification *metrics.NotificationMetrics
	Edge         *metrics.EdgeMetrics
}

// NewMetrics creates a registry with every collector plus the Go runtime
// and process collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: registry}
	var err error

	if m.Relay, err = metrics.NewRelayMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create relay metrics: %w", err)
	}
	if m.Ingest, err = metrics.NewIngestMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create ingest metrics: %w", err)
	}
	if m.HTTPClient, err = metrics.NewHTTPClientMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create HTTP client metrics: %w", err)
	}
	if m.MQTT, err = metrics.NewMQTTMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}
	if m.Notification, err = metrics.NewNotificationMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create notification metrics: %w", err)
	}
	if m.Edge, err = metrics.NewEdgeMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create edge metrics: %w", err)
	}

	return m, nil
}

// Registry exposes the registry for tests and custom collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promLogger{},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", m.Handler())
}

// promLogger adapts the module logger to promhttp.Logger
type promLogger struct{}

func (promLogger) Println(v ...any) {
	log.Error(fmt.Sprint(v...))
}
