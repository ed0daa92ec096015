package edge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/wildlife-go/internal/classifier"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/observability/metrics"
	"github.com/tphakala/wildlife-go/internal/sensor"
	"github.com/tphakala/wildlife-go/internal/thingspeak"
)

type firstIndex struct{}

func (firstIndex) IntN(int) int { return 0 }

type constRand float64

func (c constRand) Float64() float64 { return float64(c) }

type fakeSource struct {
	motion      bool
	motionErr   error
	distance    float64
	distanceErr error
	light       int
	lightErr    error
}

func (f *fakeSource) MotionDetected() (bool, error) { return f.motion, f.motionErr }
func (f *fakeSource) Distance() (float64, error)    { return f.distance, f.distanceErr }
func (f *fakeSource) Light() (int, error)           { return f.light, f.lightErr }

type fakePublisher struct {
	mu         sync.Mutex
	events     []classifier.ClassifiedEvent
	keepAlives []int
	err        error
	next       thingspeak.EntryID
}

func (p *fakePublisher) Publish(_ context.Context, ev classifier.ClassifiedEvent) (thingspeak.EntryID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	if p.err != nil {
		return 0, p.err
	}
	p.next++
	return p.next, nil
}

func (p *fakePublisher) KeepAlive(_ context.Context, light int) (thingspeak.EntryID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keepAlives = append(p.keepAlives, light)
	if p.err != nil {
		return 0, p.err
	}
	p.next++
	return p.next, nil
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events) + len(p.keepAlives)
}

func newNode(t *testing.T, src sensor.Source, pub thingspeak.Publisher, opts ...Option) *Node {
	t.Helper()
	s := conf.DefaultSettings()
	c := classifier.NewFromSettings(&s.Classifier, firstIndex{})
	return NewNode(&s.Edge, src, c, pub, opts...)
}

func TestCycleDetection(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	n := newNode(t, &fakeSource{motion: true, distance: 120, light: 3500}, pub)

	res := n.Cycle(context.Background())
	assert.Equal(t, OutcomeDetection, res.Outcome)
	assert.Equal(t, thingspeak.EntryID(1), res.EntryID)
	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.True(t, ev.Motion)
	assert.False(t, ev.IsFalsePositive)
	assert.Equal(t, 1, ev.SpeciesID, "first nocturnal species")
	assert.Equal(t, 3500, ev.LightLevel)
}

func TestCycleFalsePositiveIsPublished(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	n := newNode(t, &fakeSource{motion: true, distance: 0.5, light: 2000}, pub)

	res := n.Cycle(context.Background())
	assert.Equal(t, OutcomeFalsePositive, res.Outcome)
	require.Len(t, pub.events, 1)
	assert.True(t, pub.events[0].IsFalsePositive)
	assert.Equal(t, classifier.UnknownID, pub.events[0].SpeciesID)
}

func TestCycleSensorTimeoutSkips(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	timeout := fmt.Errorf("echo high: %w", sensor.ErrSensorTimeout)
	n := newNode(t, &fakeSource{motion: true, distanceErr: timeout}, pub)

	res := n.Cycle(context.Background())
	assert.Equal(t, OutcomeSensorTimeout, res.Outcome)
	assert.Zero(t, pub.published())
}

func TestCycleSensorErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("read /sys/class/gpio/gpio17/value: no such device")
	tests := []struct {
		name string
		src  *fakeSource
	}{
		{"motion", &fakeSource{motionErr: boom}},
		{"distance", &fakeSource{motion: true, distanceErr: boom}},
		{"light", &fakeSource{motion: true, distance: 100, lightErr: boom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pub := &fakePublisher{}
			res := newNode(t, tt.src, pub).Cycle(context.Background())
			assert.Equal(t, OutcomeSensorError, res.Outcome)
			assert.Zero(t, pub.published())
		})
	}
}

func TestCycleKeepAlive(t *testing.T) {
	t.Parallel()

	t.Run("published below probability", func(t *testing.T) {
		t.Parallel()
		pub := &fakePublisher{}
		n := newNode(t, &fakeSource{light: 2100}, pub, WithRand(constRand(0.05)))
		res := n.Cycle(context.Background())
		assert.Equal(t, OutcomeKeepAlive, res.Outcome)
		assert.Equal(t, []int{2100}, pub.keepAlives)
		assert.False(t, res.Event.Motion)
		assert.Empty(t, pub.events)
	})

	t.Run("idle otherwise", func(t *testing.T) {
		t.Parallel()
		pub := &fakePublisher{}
		n := newNode(t, &fakeSource{light: 2100}, pub, WithRand(constRand(0.10)))
		res := n.Cycle(context.Background())
		assert.Equal(t, OutcomeIdle, res.Outcome)
		assert.Zero(t, pub.published())
	})
}

func TestCyclePublishErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{err: thingspeak.ErrPublishRejected}
	n := newNode(t, &fakeSource{motion: true, distance: 100, light: 3500}, pub)

	for range 3 {
		res := n.Cycle(context.Background())
		assert.Equal(t, OutcomePublishError, res.Outcome)
	}
	assert.Len(t, pub.events, 3)
}

func TestCycleMetrics(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewEdgeMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	n := newNode(t, &fakeSource{motion: true, distance: 100, light: 3500}, &fakePublisher{}, WithMetrics(m))
	n.Cycle(context.Background())
	n.Cycle(context.Background())

	assert.InDelta(t, 2, testutil.ToFloat64(m.Cycles.WithLabelValues(string(OutcomeDetection))), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Species.WithLabelValues("Fox")), 0)
	assert.InDelta(t, 3500, testutil.ToFloat64(m.LastLight), 0)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	s := conf.DefaultSettings()
	s.Edge.CycleInterval = 5 * time.Millisecond
	pub := &fakePublisher{}
	c := classifier.NewFromSettings(&s.Classifier, firstIndex{})
	n := NewNode(&s.Edge, &fakeSource{motion: true, distance: 100, light: 3500}, c, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	require.Eventually(t, func() bool { return pub.published() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSimulatedNodePublishesClassifiedEvents(t *testing.T) {
	t.Parallel()

	s := conf.DefaultSettings()
	s.Edge.MotionProbability = 1
	src := sensor.NewSimulatedSource(&s.Edge, &s.Classifier, nil)
	pub := &fakePublisher{}
	n := NewNode(&s.Edge, src, classifier.NewFromSettings(&s.Classifier, nil), pub)

	for range 50 {
		n.Cycle(context.Background())
	}
	require.Len(t, pub.events, 50)
	for _, ev := range pub.events {
		if ev.IsFalsePositive {
			assert.Equal(t, classifier.UnknownID, ev.SpeciesID)
		}
	}
}

func TestTestSenderEvents(t *testing.T) {
	t.Parallel()

	s := conf.DefaultSettings()
	sender := NewTestSender(&fakePublisher{}, classifier.NewFromSettings(&s.Classifier, nil), nil)

	fps := 0
	for range 500 {
		ev := sender.Event()
		assert.True(t, ev.Motion)
		if ev.IsFalsePositive {
			fps++
			assert.Equal(t, classifier.UnknownID, ev.SpeciesID)
			continue
		}
		assert.GreaterOrEqual(t, ev.DistanceCM, s.Classifier.MinIdentify)
		assert.LessOrEqual(t, ev.DistanceCM, s.Classifier.MaxIdentify)
		assert.GreaterOrEqual(t, ev.LightLevel, s.Classifier.PeakDaylight)
		assert.NotEqual(t, classifier.UnknownID, ev.SpeciesID)
	}
	assert.Greater(t, fps, 0)
	assert.Less(t, fps, 250)
}

func TestTestSenderRun(t *testing.T) {
	t.Parallel()

	s := conf.DefaultSettings()
	pub := &fakePublisher{}
	sender := NewTestSender(pub, classifier.NewFromSettings(&s.Classifier, nil), nil)

	sum := sender.Run(context.Background(), 3, time.Millisecond)
	assert.Equal(t, 3, sum.Sent)
	assert.Zero(t, sum.Failed)
	assert.Equal(t, []thingspeak.EntryID{1, 2, 3}, sum.EntryIDs)

	failing := NewTestSender(&fakePublisher{err: thingspeak.ErrPublishRejected}, classifier.NewFromSettings(&s.Classifier, nil), nil)
	failing.retryDelay = time.Millisecond
	sum = failing.Run(context.Background(), 2, time.Hour)
	assert.Equal(t, 2, sum.Failed, "failures wait the retry delay, not the interval")
}

func TestTestSenderStopsOnCancel(t *testing.T) {
	t.Parallel()

	s := conf.DefaultSettings()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum := NewTestSender(&fakePublisher{}, classifier.NewFromSettings(&s.Classifier, nil), nil).
		Run(ctx, 5, time.Hour)
	assert.Equal(t, 1, sum.Sent)
}
