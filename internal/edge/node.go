// Package edge runs the detection cycle on the edge node: sample the
// sensors, classify the reading and publish it through the relay.
package edge

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/wildlife-go/internal/classifier"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/logger"
	"github.com/tphakala/wildlife-go/internal/observability/metrics"
	"github.com/tphakala/wildlife-go/internal/sensor"
	"github.com/tphakala/wildlife-go/internal/thingspeak"
)

// Outcome labels one detection cycle
type Outcome string

const (
	OutcomeDetection     Outcome = "detection"
	OutcomeFalsePositive Outcome = "false_positive"
	OutcomeKeepAlive     Outcome = "keepalive"
	OutcomeIdle          Outcome = "idle"
	OutcomeSensorTimeout Outcome = "sensor_timeout"
	OutcomeSensorError   Outcome = "sensor_error"
	OutcomePublishError  Outcome = "publish_error"
)

// Rand decides whether an idle cycle publishes a keep-alive
type Rand interface {
	Float64() float64
}

// CycleResult describes what one cycle did
type CycleResult struct {
	Outcome Outcome
	Event   classifier.ClassifiedEvent
	EntryID thingspeak.EntryID
}

// Node is the edge detection loop. Cycles run strictly one after another.
type Node struct {
	source     sensor.Source
	classifier *classifier.Classifier
	publisher  thingspeak.Publisher
	interval   time.Duration
	keepAlive  float64
	rnd        Rand
	metrics    *metrics.EdgeMetrics
	log        logger.Logger
}

// Option configures a Node
type Option func(*Node)

// WithMetrics records cycle outcomes in m
func WithMetrics(m *metrics.EdgeMetrics) Option {
	return func(n *Node) { n.metrics = m }
}

// WithRand replaces the keep-alive random source
func WithRand(r Rand) Option {
	return func(n *Node) { n.rnd = r }
}

// NewNode creates a node from the edge section of the config
func NewNode(s *conf.EdgeSettings, source sensor.Source, c *classifier.Classifier, p thingspeak.Publisher, opts ...Option) *Node {
	interval := s.CycleInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	n := &Node{
		source:     source,
		classifier: c,
		publisher:  p,
		interval:   interval,
		keepAlive:  s.KeepAliveProbability,
		log:        logger.Global().Module("edge"),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.rnd == nil {
		n.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // not security sensitive
	}
	return n
}

// Run executes cycles until ctx is cancelled. A cycle in progress always
// completes; failures are logged and the loop carries on.
func (n *Node) Run(ctx context.Context) error {
	n.log.Info("starting edge detection loop", logger.Duration("interval", n.interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			n.log.Info("edge detection loop stopped")
			return nil
		case <-timer.C:
			n.Cycle(ctx)
			timer.Reset(n.interval)
		}
	}
}

// Cycle runs one sense, classify and publish pass
func (n *Node) Cycle(ctx context.Context) CycleResult {
	ctx = logger.WithTraceID(ctx, uuid.NewString())
	log := n.log.WithContext(ctx)

	motion, err := n.source.MotionDetected()
	if err != nil {
		log.Warn("motion sensor read failed", logger.Error(err))
		return n.finish(CycleResult{Outcome: OutcomeSensorError})
	}
	if !motion {
		return n.idle(ctx, log)
	}

	distance, err := n.source.Distance()
	if err != nil {
		outcome := OutcomeSensorError
		if errors.Is(err, sensor.ErrSensorTimeout) {
			outcome = OutcomeSensorTimeout
		}
		log.Warn("distance measurement failed, skipping cycle", logger.Error(err))
		return n.finish(CycleResult{Outcome: outcome})
	}
	light, err := n.source.Light()
	if err != nil {
		log.Warn("light sensor read failed, skipping cycle", logger.Error(err))
		return n.finish(CycleResult{Outcome: OutcomeSensorError})
	}

	ev := n.classifier.Classify(distance, light)
	res := CycleResult{Outcome: OutcomeDetection, Event: ev}
	if ev.IsFalsePositive {
		res.Outcome = OutcomeFalsePositive
	}
	if n.metrics != nil {
		n.metrics.RecordReading(distance, light)
		if !ev.IsFalsePositive {
			n.metrics.RecordSpecies(n.classifier.Catalog().Name(ev.SpeciesID))
		}
	}

	id, err := n.publisher.Publish(ctx, ev)
	if err != nil {
		log.Warn("publish failed",
			logger.Bool("false_positive", ev.IsFalsePositive),
			logger.Error(err))
		res.Outcome = OutcomePublishError
		return n.finish(res)
	}
	res.EntryID = id
	log.Info("motion event published",
		logger.Int64("entry_id", int64(id)),
		logger.Float64("distance_cm", distance),
		logger.Int("light", light),
		logger.Bool("false_positive", ev.IsFalsePositive),
		logger.String("species", n.classifier.Catalog().Name(ev.SpeciesID)))
	return n.finish(res)
}

// idle publishes an occasional keep-alive so the channel shows the node is up
func (n *Node) idle(ctx context.Context, log logger.Logger) CycleResult {
	if n.rnd.Float64() >= n.keepAlive {
		return n.finish(CycleResult{Outcome: OutcomeIdle})
	}

	light, err := n.source.Light()
	if err != nil {
		log.Warn("light sensor read failed, skipping keep-alive", logger.Error(err))
		return n.finish(CycleResult{Outcome: OutcomeSensorError})
	}
	res := CycleResult{Outcome: OutcomeKeepAlive, Event: classifier.KeepAlive(light)}
	id, err := n.publisher.KeepAlive(ctx, light)
	if err != nil {
		log.Warn("keep-alive publish failed", logger.Error(err))
		res.Outcome = OutcomePublishError
		return n.finish(res)
	}
	res.EntryID = id
	log.Debug("keep-alive published", logger.Int64("entry_id", int64(id)), logger.Int("light", light))
	return n.finish(res)
}

func (n *Node) finish(res CycleResult) CycleResult {
	if n.metrics != nil {
		n.metrics.RecordCycle(string(res.Outcome))
	}
	return res
}
