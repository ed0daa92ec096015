package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// EdgeMetrics covers the detection loop on the edge node.
type EdgeMetrics struct {
	Cycles    *prometheus.CounterVec
	Species   *prometheus.CounterVec
	Distance  prometheus.Histogram
	LastLight prometheus.Gauge
	registry  *prometheus.Registry
}

// NewEdgeMetrics creates and registers the edge collectors.
func NewEdgeMetrics(registry *prometheus.Registry) (*EdgeMetrics, error) {
	m := &EdgeMetrics{registry: registry}
	m.Cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_cycles_total",
		Help: "Detection cycles by outcome",
	}, []string{"outcome"})
	m.Species = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_species_inferred_total",
		Help: "Species inferred for valid detections",
	}, []string{"species"})
	m.Distance = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "edge_distance_cm",
		Help:    "Measured distance of motion events",
		Buckets: prometheus.LinearBuckets(0, 50, 11),
	})
	m.LastLight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "edge_light_level",
		Help: "Most recent ambient light level, 0 brightest",
	})

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register edge metrics: %w", err)
	}
	return m, nil
}

// RecordCycle counts one cycle by outcome
func (m *EdgeMetrics) RecordCycle(outcome string) {
	m.Cycles.WithLabelValues(outcome).Inc()
}

// RecordReading records the distance and light of a motion event
func (m *EdgeMetrics) RecordReading(distanceCM float64, light int) {
	m.Distance.Observe(distanceCM)
	m.LastLight.Set(float64(light))
}

// RecordSpecies counts an inferred species
func (m *EdgeMetrics) RecordSpecies(name string) {
	m.Species.WithLabelValues(name).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *EdgeMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Cycles.Describe(ch)
	m.Species.Describe(ch)
	ch <- m.Distance.Desc()
	ch <- m.LastLight.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *EdgeMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Cycles.Collect(ch)
	m.Species.Collect(ch)
	ch <- m.Distance
	ch <- m.LastLight
}
