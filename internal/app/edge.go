package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/wildlife-go/internal/classifier"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/edge"
	"github.com/tphakala/wildlife-go/internal/logger"
	"github.com/tphakala/wildlife-go/internal/observability"
	"github.com/tphakala/wildlife-go/internal/sensor"
	"github.com/tphakala/wildlife-go/internal/thingspeak"
)

// Edge is the sensing side: sensors, classifier and relay
type Edge struct {
	Settings *conf.Settings
	Metrics  *observability.Metrics
	Node     *edge.Node

	closeSensors func() error
}

// NewEdge opens the configured sensors, or the simulator when
// edge.simulate is set, and wires the detection loop.
func NewEdge(settings *conf.Settings) (*Edge, error) {
	log := logger.Global().Module("app")

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	var (
		src          sensor.Source
		closeSensors = func() error { return nil }
	)
	if settings.Edge.Simulate {
		log.Info("using simulated sensors")
		src = sensor.NewSimulatedSource(&settings.Edge, &settings.Classifier, nil)
	} else {
		hw, closer, err := sensor.OpenHardware(&settings.Edge.Hardware, settings.Edge.EchoTimeout)
		if err != nil {
			return nil, err
		}
		src, closeSensors = hw, closer
	}

	relay := NewRelay(settings, m)
	cls := classifier.NewFromSettings(&settings.Classifier, nil)
	node := edge.NewNode(&settings.Edge, src, cls, relay, edge.WithMetrics(m.Edge))

	return &Edge{Settings: settings, Metrics: m, Node: node, closeSensors: closeSensors}, nil
}

// NewRelay builds the relay client with metrics attached
func NewRelay(settings *conf.Settings, m *observability.Metrics) *thingspeak.RelayClient {
	return thingspeak.NewRelayClient(&settings.ThingSpeak,
		NewHTTPClient(&settings.ThingSpeak, m),
		thingspeak.WithRelayMetrics(m.Relay))
}

// Run drives the detection loop, plus the telemetry endpoint when enabled
func (e *Edge) Run(ctx context.Context) error {
	var endpoint *observability.Endpoint
	if e.Settings.Telemetry.Enabled {
		var err error
		if endpoint, err = observability.NewEndpoint(e.Settings, e.Metrics); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.Node.Run(ctx) })
	if endpoint != nil {
		g.Go(func() error { return endpoint.Run(ctx) })
	}
	return g.Wait()
}

// Close releases the sensor pins
func (e *Edge) Close() error {
	return e.closeSensors()
}
