// Package ingest reconciles polled feed records into the local sighting
// store. Only records newer than the store's highest entry_id are
// considered, and the store's primary key keeps inserts idempotent.
package ingest

import (
	"context"
	"time"

	"github.com/tphakala/wildlife-go/internal/classifier"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/datastore"
	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/logger"
	"github.com/tphakala/wildlife-go/internal/observability/metrics"
	"github.com/tphakala/wildlife-go/internal/thingspeak"
	"github.com/tphakala/wildlife-go/internal/timeofday"
)

const componentName = "ingest"

func getLogger() logger.Logger {
	return logger.Global().Module(componentName)
}

// Store is the part of the sighting store the ingestor writes through
type Store interface {
	MaxEntryID(ctx context.Context) (int64, error)
	InsertSightings(ctx context.Context, sightings []datastore.Sighting) ([]datastore.Sighting, error)
}

// Sink receives every newly stored valid sighting
type Sink interface {
	Deliver(ctx context.Context, s datastore.Sighting) error
	GetDescription() string
}

// Result summarises one Ingest call
type Result struct {
	Polled      int
	Inserted    int
	Skipped     int // entry_id not above the stored maximum
	Malformed   int
	Conflicts   int // lost an insert race to another writer
	LastEntryID int64
}

// Options decide how records are enriched
type Options struct {
	RederiveFalsePositive bool
	RequireSpecies        bool
}

// OptionsFromSettings copies the ingest section of the config
func OptionsFromSettings(s *conf.IngestSettings) Options {
	return Options{
		RederiveFalsePositive: s.RederiveFalsePositive,
		RequireSpecies:        s.RequireSpecies,
	}
}

// Ingestor enriches and stores feed records
type Ingestor struct {
	store      Store
	thresholds classifier.Thresholds
	catalog    *classifier.Catalog
	policy     timeofday.Policy
	opts       Options
	sinks      []Sink
	metrics    *metrics.IngestMetrics
	now        func() time.Time
	log        logger.Logger
}

// Option configures an Ingestor
type Option func(*Ingestor)

// WithSinks adds fan-out targets for new valid sightings
func WithSinks(sinks ...Sink) Option {
	return func(i *Ingestor) { i.sinks = append(i.sinks, sinks...) }
}

// WithMetrics records ingest counters
func WithMetrics(m *metrics.IngestMetrics) Option {
	return func(i *Ingestor) { i.metrics = m }
}

// WithClock overrides the ingested_at clock
func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) { i.now = now }
}

// New creates an ingestor. The classifier supplies thresholds for
// re-deriving the false positive flag and the species names.
func New(store Store, cls *classifier.Classifier, policy timeofday.Policy, opts Options, options ...Option) *Ingestor {
	i := &Ingestor{
		store:      store,
		thresholds: cls.Thresholds(),
		catalog:    cls.Catalog(),
		policy:     policy,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
		log:        getLogger(),
	}
	for _, o := range options {
		o(i)
	}
	return i
}

// Ingest stores every record above the current maximum entry_id. Malformed
// records are logged and counted without aborting the batch. Only a store
// failure returns an error; nothing is half written in that case.
func (i *Ingestor) Ingest(ctx context.Context, records []thingspeak.FeedRecord) (Result, error) {
	res := Result{Polled: len(records)}

	last, err := i.store.MaxEntryID(ctx)
	if err != nil {
		return res, err
	}
	res.LastEntryID = last

	batch := make([]datastore.Sighting, 0, len(records))
	now := i.now()
	for idx := range records {
		rec := &records[idx]
		// an undecodable entry without a readable id cannot be placed, so it
		// is reported rather than skipped
		if rec.EntryID <= last && (rec.DecodeErr == nil || rec.EntryID > 0) {
			res.Skipped++
			continue
		}
		fields, err := ParseRecord(rec)
		if err != nil {
			res.Malformed++
			i.log.Warn("skipping malformed record",
				logger.Int64("entry_id", rec.EntryID),
				logger.Error(err))
			continue
		}
		s := i.Enrich(fields)
		s.IngestedAt = now
		batch = append(batch, s)
	}

	inserted, err := i.store.InsertSightings(ctx, batch)
	if err != nil {
		return res, err
	}
	res.Inserted = len(inserted)
	res.Conflicts = len(batch) - len(inserted)
	for idx := range inserted {
		res.LastEntryID = max(res.LastEntryID, inserted[idx].EntryID)
	}

	if i.metrics != nil {
		i.metrics.RecordIngest(res.Polled, res.Inserted, res.Skipped, res.Malformed, res.Conflicts, res.LastEntryID)
	}
	if res.Inserted > 0 || res.Malformed > 0 {
		i.log.Info("ingested feed records",
			logger.Int("polled", res.Polled),
			logger.Int("inserted", res.Inserted),
			logger.Int("skipped", res.Skipped),
			logger.Int("malformed", res.Malformed),
			logger.Int("conflicts", res.Conflicts),
			logger.Int64("last_entry_id", res.LastEntryID))
	}

	i.deliver(ctx, inserted)
	return res, nil
}

// Enrich derives the stored columns from parsed fields
func (i *Ingestor) Enrich(f Fields) datastore.Sighting {
	fp := f.FalsePositive
	if i.opts.RederiveFalsePositive {
		fp = f.Motion == 1 && i.thresholds.IsFalsePositive(f.DistanceCM, f.LightLevel)
	}

	speciesID := f.SpeciesID
	if fp {
		speciesID = classifier.UnknownID
	}
	if _, ok := i.catalog.Lookup(speciesID); !ok && speciesID != classifier.UnknownID {
		i.log.Debug("unknown species id, storing as Unknown",
			logger.Int64("entry_id", f.EntryID),
			logger.Int("species_id", speciesID))
		speciesID = classifier.UnknownID
	}

	valid := f.Motion == 1 && !fp
	if i.opts.RequireSpecies && speciesID == classifier.UnknownID {
		valid = false
	}

	s := datastore.Sighting{
		EntryID:          f.EntryID,
		Motion:           f.Motion,
		DistanceCM:       f.DistanceCM,
		LightLevel:       f.LightLevel,
		IsFalsePositive:  fp,
		SpeciesID:        speciesID,
		SpeciesName:      i.catalog.Name(speciesID),
		TimeOfDay:        i.policy.Bucket(f.Timestamp, f.HasTimestamp, f.LightLevel),
		IsValidDetection: valid,
	}
	if f.HasTimestamp {
		ts := f.Timestamp
		s.Timestamp = &ts
	}
	return s
}

// deliver fans out new valid sightings. Sink failures are logged only.
func (i *Ingestor) deliver(ctx context.Context, inserted []datastore.Sighting) {
	if len(i.sinks) == 0 {
		return
	}
	for idx := range inserted {
		s := inserted[idx]
		if !s.IsValidDetection {
			continue
		}
		for _, sink := range i.sinks {
			if err := sink.Deliver(ctx, s); err != nil {
				i.log.Warn("sink delivery failed",
					logger.String("sink", sink.GetDescription()),
					logger.Int64("entry_id", s.EntryID),
					logger.Error(err))
				if errors.Is(err, context.Canceled) {
					return
				}
			}
		}
	}
}
