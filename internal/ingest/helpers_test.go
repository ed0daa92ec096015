package ingest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/wildlife-go/internal/classifier"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/datastore"
	"github.com/tphakala/wildlife-go/internal/thingspeak"
	"github.com/tphakala/wildlife-go/internal/timeofday"
)

func newStore(t *testing.T) datastore.Interface {
	t.Helper()
	s := conf.DefaultSettings()
	s.Output.SQLite.Path = filepath.Join(t.TempDir(), "ingest.db")
	store := datastore.New(s)
	require.NoError(t, store.Open())
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func newClassifier() *classifier.Classifier {
	return classifier.NewFromSettings(&conf.DefaultSettings().Classifier, nil)
}

func newIngestor(t *testing.T, store Store, opts Options, options ...Option) *Ingestor {
	t.Helper()
	return New(store, newClassifier(), timeofday.DefaultLightPolicy(), opts, options...)
}

func defaultOptions() Options {
	return OptionsFromSettings(&conf.DefaultSettings().Ingest)
}

// val returns nil for "-" so tests can express an absent field
func val(s string) *thingspeak.Value {
	if s == "-" {
		return nil
	}
	return thingspeak.NewValue(s)
}

func record(id int64, createdAt, f1, f2, f3, f4, f5 string) thingspeak.FeedRecord {
	return thingspeak.FeedRecord{
		EntryID:   id,
		CreatedAt: createdAt,
		Field1:    val(f1),
		Field2:    val(f2),
		Field3:    val(f3),
		Field4:    val(f4),
		Field5:    val(f5),
	}
}

// detection is an in-band, dark, unflagged record
func detection(id int64, species string) thingspeak.FeedRecord {
	return record(id, "", "1", "120", "3500", "0", species)
}

type recordingSink struct {
	mu   sync.Mutex
	got  []datastore.Sighting
	fail error
}

func (r *recordingSink) Deliver(_ context.Context, s datastore.Sighting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, s)
	return r.fail
}

func (r *recordingSink) GetDescription() string { return "recording sink" }

func (r *recordingSink) entryIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.got))
	for _, s := range r.got {
		ids = append(ids, s.EntryID)
	}
	return ids
}

// staleStore reports a fixed maximum so overlapping polls can be simulated
type staleStore struct {
	datastore.Interface
	maxID int64
}

func (s staleStore) MaxEntryID(context.Context) (int64, error) { return s.maxID, nil }

type failingStore struct{ err error }

func (f failingStore) MaxEntryID(context.Context) (int64, error) { return 0, nil }

func (f failingStore) InsertSightings(context.Context, []datastore.Sighting) ([]datastore.Sighting, error) {
	return nil, f.err
}
