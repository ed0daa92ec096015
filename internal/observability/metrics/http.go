package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPClientMetrics covers outbound requests made through httpclient.
type HTTPClientMetrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	registry        *prometheus.Registry
}

// NewHTTPClientMetrics creates and registers the HTTP client collectors.
func NewHTTPClientMetrics(registry *prometheus.Registry) (*HTTPClientMetrics, error) {
	m := &HTTPClientMetrics{registry: registry}
	m.Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_client_requests_total",
		Help: "Outbound HTTP requests by method and status code",
	}, []string{"method", "code"})
	m.RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_client_request_duration_seconds",
		Help:    "Outbound HTTP request latency",
		Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
	}, []string{"method"})

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register HTTP client metrics: %w", err)
	}
	return m, nil
}

// ObserveResponse has the signature of the httpclient after-response hook.
// Transport failures are counted with code "error".
func (m *HTTPClientMetrics) ObserveResponse(req *http.Request, resp *http.Response, err error, d time.Duration) {
	code := "error"
	if err == nil && resp != nil {
		code = strconv.Itoa(resp.StatusCode)
	}
	m.Requests.WithLabelValues(req.Method, code).Inc()
	m.RequestDuration.WithLabelValues(req.Method).Observe(d.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *HTTPClientMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Requests.Describe(ch)
	m.RequestDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *HTTPClientMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Requests.Collect(ch)
	m.RequestDuration.Collect(ch)
}
