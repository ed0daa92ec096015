package edge

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/tphakala/wildlife-go/internal/classifier"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/logger"
	"github.com/tphakala/wildlife-go/internal/thingspeak"
)

const (
	testFalsePositiveRatio = 0.2
	testRetryDelay         = 2 * time.Second
)

// out-of-band distances used for synthetic false positives
var testNoiseDistances = []float64{0.5, 550}

// TestRand is the random source of the test sender
type TestRand interface {
	Float64() float64
	IntN(n int) int
}

// TestSender publishes synthetic classified events so the server side can
// be exercised without hardware. About one event in five is a false positive.
type TestSender struct {
	publisher  thingspeak.Publisher
	classifier *classifier.Classifier
	rnd        TestRand
	retryDelay time.Duration
	log        logger.Logger
}

// TestSummary counts the outcome of a test run
type TestSummary struct {
	Sent     int
	Failed   int
	EntryIDs []thingspeak.EntryID
}

// NewTestSender creates a sender. A nil rnd uses math/rand/v2.
func NewTestSender(p thingspeak.Publisher, c *classifier.Classifier, rnd TestRand) *TestSender {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // test data only
	}
	return &TestSender{
		publisher:  p,
		classifier: c,
		rnd:        rnd,
		retryDelay: testRetryDelay,
		log:        logger.Global().Module("sendtest"),
	}
}

// Event draws one synthetic reading and classifies it
func (s *TestSender) Event() classifier.ClassifiedEvent {
	t := s.classifier.Thresholds()
	light := s.rnd.IntN(conf.MaxLight + 1)
	if s.rnd.Float64() < testFalsePositiveRatio {
		distance := testNoiseDistances[s.rnd.IntN(len(testNoiseDistances))]
		return s.classifier.Classify(distance, light)
	}

	// keep valid readings out of peak daylight
	light = max(light, t.PeakDaylight)
	span := int(t.MaxIdentify - t.MinIdentify)
	distance := t.MinIdentify + float64(s.rnd.IntN(span+1))
	return s.classifier.Classify(distance, light)
}

// Run publishes count events, waiting interval after each accepted write and
// a short retry delay after a failed one. It stops early when ctx ends.
func (s *TestSender) Run(ctx context.Context, count int, interval time.Duration) TestSummary {
	var sum TestSummary
	for i := range count {
		ev := s.Event()
		id, err := s.publisher.Publish(ctx, ev)
		wait := interval
		if err != nil {
			sum.Failed++
			wait = s.retryDelay
			s.log.Warn("test event rejected",
				logger.Int("index", i+1),
				logger.Error(err))
		} else {
			sum.Sent++
			sum.EntryIDs = append(sum.EntryIDs, id)
			s.log.Info("test event sent",
				logger.Int("index", i+1),
				logger.Int64("entry_id", int64(id)),
				logger.Float64("distance_cm", ev.DistanceCM),
				logger.Int("light", ev.LightLevel),
				logger.Bool("false_positive", ev.IsFalsePositive),
				logger.String("species", s.classifier.Catalog().Name(ev.SpeciesID)))
		}

		if i == count-1 {
			break
		}
		select {
		case <-ctx.Done():
			return sum
		case <-time.After(wait):
		}
	}
	return sum
}
