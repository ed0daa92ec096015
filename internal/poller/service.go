// Package poller runs the server side reconcile loop: fetch the newest feed
// records on a fixed interval and hand them to the ingestor.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/ingest"
	"github.com/tphakala/wildlife-go/internal/logger"
	"github.com/tphakala/wildlife-go/internal/observability/metrics"
	"github.com/tphakala/wildlife-go/internal/thingspeak"
)

// Feed fetches the newest records of the remote channel
type Feed interface {
	Poll(ctx context.Context, maxResults int) ([]thingspeak.FeedRecord, error)
}

// Ingester stores polled records
type Ingester interface {
	Ingest(ctx context.Context, records []thingspeak.FeedRecord) (ingest.Result, error)
}

// Service polls the feed and ingests every batch. Each cycle is a fresh full
// fetch; a failed cycle is retried whole on the next tick.
type Service struct {
	feed     Feed
	ingester Ingester
	interval time.Duration
	results  int
	metrics  *metrics.IngestMetrics
	log      logger.Logger

	hooksMu sync.RWMutex
	hooks   []func(ingest.Result)
}

// NewService creates a poller from the poller section of the config
func NewService(s *conf.PollerSettings, feed Feed, ingester Ingester, m *metrics.IngestMetrics) *Service {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{
		feed:     feed,
		ingester: ingester,
		interval: interval,
		results:  thingspeak.ClampResults(s.Results),
		metrics:  m,
		log:      logger.Global().Module("poller"),
	}
}

// OnIngest registers a hook called after every cycle that stored new records
func (s *Service) OnIngest(fn func(ingest.Result)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Start polls once immediately, then on every tick until ctx is done
func (s *Service) Start(ctx context.Context) {
	s.log.Info("starting feed poller",
		logger.Duration("interval", s.interval),
		logger.Int("results", s.results))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ticker.C:
			s.cycle(ctx)
		case <-ctx.Done():
			s.log.Info("stopping feed poller")
			return
		}
	}
}

// StartPolling runs Start until stop is closed
func (s *Service) StartPolling(stop <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	s.Start(ctx)
}

// cycle runs one poll and swallows its error; the next tick is the retry
func (s *Service) cycle(ctx context.Context) {
	if _, err := s.PollOnce(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("poll cycle failed, retrying on next tick", logger.Error(err))
	}
}

// PollOnce fetches and ingests one batch
func (s *Service) PollOnce(ctx context.Context) (ingest.Result, error) {
	ctx = logger.WithTraceID(ctx, uuid.NewString())
	log := s.log.WithContext(ctx)
	start := time.Now()

	records, err := s.feed.Poll(ctx, s.results)
	if err != nil {
		s.recordPoll(metrics.StatusError, time.Since(start))
		return ingest.Result{}, err
	}

	res, err := s.ingester.Ingest(ctx, records)
	if err != nil {
		s.recordPoll(metrics.StatusError, time.Since(start))
		return res, errors.New(err).
			Component("poller").
			Category(errors.CategoryIngest).
			Context("operation", "ingest_batch").
			Context("records", len(records)).
			Build()
	}
	s.recordPoll(metrics.StatusSuccess, time.Since(start))

	log.Debug("poll cycle complete",
		logger.Int("records", len(records)),
		logger.Int("inserted", res.Inserted),
		logger.Int64("last_entry_id", res.LastEntryID),
		logger.Duration("duration", time.Since(start)))

	if res.Inserted > 0 {
		s.hooksMu.RLock()
		hooks := append(([]func(ingest.Result))(nil), s.hooks...)
		s.hooksMu.RUnlock()
		for _, fn := range hooks {
			fn(res)
		}
	}
	return res, nil
}

func (s *Service) recordPoll(status string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordPoll(status, d)
	}
}
