package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/wildlife-go/internal/aggregate"
	"github.com/tphakala/wildlife-go/internal/classifier"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/datastore"
	"github.com/tphakala/wildlife-go/internal/ingest"
	"github.com/tphakala/wildlife-go/internal/observability"
	"github.com/tphakala/wildlife-go/internal/thingspeak"
	"github.com/tphakala/wildlife-go/internal/timeofday"
)

var base = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func testSettings() *conf.Settings {
	s := conf.DefaultSettings()
	s.WebServer.RecentLimit = 2
	s.Poller.Interval = time.Hour
	return s
}

func openStore(t *testing.T, s *conf.Settings) datastore.Interface {
	t.Helper()
	s.Output.SQLite.Path = filepath.Join(t.TempDir(), "api.db")
	store := datastore.New(s)
	require.NoError(t, store.Open())
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func seed(t *testing.T, store datastore.Interface, rows ...datastore.Sighting) {
	t.Helper()
	_, err := store.InsertSightings(context.Background(), rows)
	require.NoError(t, err)
}

func sighting(id int64, species string, distance float64) datastore.Sighting {
	ts := base.Add(time.Duration(id) * time.Minute)
	return datastore.Sighting{
		EntryID: id, Timestamp: &ts,
		Motion: 1, DistanceCM: distance, LightLevel: 3500,
		SpeciesName: species, TimeOfDay: timeofday.Night, IsValidDetection: true,
		IngestedAt: base,
	}
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type fakeRemote struct {
	rec *thingspeak.FeedRecord
	err error
}

func (f fakeRemote) Latest(context.Context) (*thingspeak.FeedRecord, error) { return f.rec, f.err }

type brokenStore struct{ err error }

func (b brokenStore) MaxEntryID(context.Context) (int64, error) { return 0, b.err }
func (b brokenStore) Sightings(context.Context, datastore.Query) ([]datastore.Sighting, error) {
	return nil, b.err
}
func (b brokenStore) LatestSightings(context.Context, int) ([]datastore.Sighting, error) {
	return nil, b.err
}
func (b brokenStore) CountSightings(context.Context) (int64, error) { return 0, b.err }

func TestDashboardEndpoint(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	store := openStore(t, settings)
	fp := sighting(3, "Unknown", 0.5)
	fp.IsFalsePositive, fp.IsValidDetection = true, false
	seed(t, store, sighting(1, "Fox", 100), sighting(2, "Owl", 200), fp)

	s := New(settings, store, WithTimeLabels(timeofday.DefaultLightPolicy().Labels()))
	rec := get(t, s, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[aggregate.Dashboard](t, rec)
	assert.Equal(t, 3, got.Stats.TotalRecords)
	assert.Equal(t, 2, got.Stats.ValidDetections)
	assert.Equal(t, 1, got.Stats.FalsePositives)
	assert.Equal(t, 2, got.Stats.AnimalTypes)
	assert.InDelta(t, 150, got.Stats.AverageDistance, 1e-9)
	assert.Equal(t, int64(3), got.Stats.LastEntryID)
	assert.Equal(t, []string{timeofday.Night, timeofday.DawnDusk, timeofday.Day}, got.Charts.TimeOfDay.Labels)
	assert.Equal(t, []int{2, 0, 0}, got.Charts.TimeOfDay.Data)
	require.Len(t, got.Charts.Proximity, 2)
	assert.Equal(t, int64(1), got.Charts.Proximity[0].EntryID)
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	store := openStore(t, settings)
	seed(t, store, sighting(1, "Fox", 100), sighting(2, "Fox", 50))

	s := New(settings, store, WithTimeLabels(timeofday.DefaultLightPolicy().Labels()))
	rec := get(t, s, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[StatsResponse](t, rec)
	assert.Equal(t, 2, got.ValidDetections)
	assert.Equal(t, map[string]int{"Fox": 2}, got.AnimalCounts)
	assert.Equal(t, 2, got.TimeDistribution[timeofday.Night])
	assert.InDelta(t, 75, got.AverageDistance, 1e-9)
}

func TestAggregateCacheInvalidation(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	store := openStore(t, settings)
	seed(t, store, sighting(1, "Fox", 100))
	s := New(settings, store)

	first := decode[StatsResponse](t, get(t, s, "/api/stats"))
	assert.Equal(t, 1, first.TotalRecords)

	seed(t, store, sighting(2, "Deer", 100))
	cached := decode[StatsResponse](t, get(t, s, "/api/stats"))
	assert.Equal(t, 1, cached.TotalRecords, "served from cache until invalidated")

	s.InvalidateCache()
	fresh := decode[StatsResponse](t, get(t, s, "/api/stats"))
	assert.Equal(t, 2, fresh.TotalRecords)
}

// invalidatingStore runs onRead after a snapshot was taken, standing in for
// an ingest that lands while a request is aggregating
type invalidatingStore struct {
	datastore.Interface
	onRead func()
	reads  int
}

func (s *invalidatingStore) LatestSightings(ctx context.Context, n int) ([]datastore.Sighting, error) {
	rows, err := s.Interface.LatestSightings(ctx, n)
	s.reads++
	if s.onRead != nil {
		s.onRead()
		s.onRead = nil
	}
	return rows, err
}

func TestStaleAggregateNotCachedAfterInvalidation(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	store := &invalidatingStore{Interface: openStore(t, settings)}
	seed(t, store, sighting(1, "Fox", 100))
	s := New(settings, store)

	store.onRead = func() {
		seed(t, store, sighting(2, "Deer", 100))
		s.InvalidateCache()
	}
	stale := decode[StatsResponse](t, get(t, s, "/api/stats"))
	assert.Equal(t, 1, stale.TotalRecords)

	fresh := decode[StatsResponse](t, get(t, s, "/api/stats"))
	assert.Equal(t, 2, fresh.TotalRecords, "snapshot from before the invalidation must not be cached")
	assert.Equal(t, 2, store.reads)

	cached := decode[StatsResponse](t, get(t, s, "/api/stats"))
	assert.Equal(t, 2, cached.TotalRecords)
	assert.Equal(t, 2, store.reads, "fresh aggregate is cached")
}

func TestDataEndpoint(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	store := openStore(t, settings)
	seed(t, store, sighting(1, "Fox", 100), sighting(2, "Owl", 90), sighting(3, "Deer", 80))
	s := New(settings, store)

	t.Run("default limit, newest first", func(t *testing.T) {
		got := decode[DataResponse](t, get(t, s, "/api/data"))
		require.Equal(t, 2, got.Count)
		assert.Equal(t, int64(3), got.Feeds[0].EntryID)
		assert.Equal(t, "Deer", got.Feeds[0].AnimalType)
		assert.Equal(t, int64(2), got.Feeds[1].EntryID)
	})

	t.Run("explicit limit", func(t *testing.T) {
		got := decode[DataResponse](t, get(t, s, "/api/data?limit=10"))
		assert.Equal(t, 3, got.Count)
	})

	for _, bad := range []string{"0", "-1", "8001", "many"} {
		t.Run("rejects limit "+bad, func(t *testing.T) {
			rec := get(t, s, "/api/data?limit="+bad)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.NotEmpty(t, resp.CorrelationID)
		})
	}
}

func TestLatestLocal(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	store := openStore(t, settings)
	s := New(settings, store)

	empty := decode[LatestResponse](t, get(t, s, "/api/latest"))
	assert.Nil(t, empty.Latest)
	assert.Equal(t, "local", empty.Source)
	assert.Equal(t, "No data available", empty.Message)

	seed(t, store, sighting(1, "Fox", 100), sighting(2, "Owl", 90))
	got := decode[LatestResponse](t, get(t, s, "/api/latest"))
	require.NotNil(t, got.Latest)
	assert.Equal(t, int64(2), got.Latest.EntryID)
	assert.Equal(t, "Owl", got.Latest.AnimalType)
}

func TestLatestRemote(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	store := openStore(t, settings)
	enricher := ingest.New(store,
		classifier.NewFromSettings(&settings.Classifier, nil),
		timeofday.DefaultLightPolicy(),
		ingest.OptionsFromSettings(&settings.Ingest))

	remote := &thingspeak.FeedRecord{
		EntryID:   77,
		CreatedAt: "2024-05-01T21:00:00Z",
		Field1:    thingspeak.NewValue("1"),
		Field2:    thingspeak.NewValue("120"),
		Field3:    thingspeak.NewValue("3500"),
		Field4:    thingspeak.NewValue("0"),
		Field5:    thingspeak.NewValue("4"),
	}

	t.Run("enriches without storing", func(t *testing.T) {
		s := New(settings, store, WithRemoteFeed(fakeRemote{rec: remote}, enricher))
		rec := get(t, s, "/api/latest?remote=1")
		require.Equal(t, http.StatusOK, rec.Code)
		got := decode[LatestResponse](t, rec)
		assert.Equal(t, "remote", got.Source)
		require.NotNil(t, got.Latest)
		assert.Equal(t, int64(77), got.Latest.EntryID)
		assert.Equal(t, "Squirrel", got.Latest.AnimalType)
		assert.True(t, got.Latest.IsValidDetection)
		assert.Equal(t, timeofday.Night, got.Latest.TimeOfDay)

		n, err := store.CountSightings(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("empty feed", func(t *testing.T) {
		s := New(settings, store, WithRemoteFeed(fakeRemote{}, enricher))
		got := decode[LatestResponse](t, get(t, s, "/api/latest?remote=true"))
		assert.Nil(t, got.Latest)
		assert.Equal(t, "No data available", got.Message)
	})

	t.Run("not configured", func(t *testing.T) {
		s := New(settings, store)
		assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/api/latest?remote=1").Code)
	})

	t.Run("fetch failure", func(t *testing.T) {
		s := New(settings, store, WithRemoteFeed(fakeRemote{err: thingspeak.ErrPollTransport}, enricher))
		assert.Equal(t, http.StatusBadGateway, get(t, s, "/api/latest?remote=1").Code)
	})

	t.Run("malformed record", func(t *testing.T) {
		bad := *remote
		bad.Field1 = thingspeak.NewValue("7")
		s := New(settings, store, WithRemoteFeed(fakeRemote{rec: &bad}, enricher))
		assert.Equal(t, http.StatusBadGateway, get(t, s, "/api/latest?remote=1").Code)
	})
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	store := openStore(t, settings)
	seed(t, store, sighting(5, "Fox", 100))

	rec := get(t, New(settings, store), "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.InDelta(t, 1, body["sightings"], 0)
	assert.InDelta(t, 5, body["last_entry_id"], 0)

	down := New(settings, brokenStore{err: errors.New("database is locked")})
	assert.Equal(t, http.StatusServiceUnavailable, get(t, down, "/api/health").Code)
}

func TestStoreFailureIsServerError(t *testing.T) {
	t.Parallel()

	s := New(testSettings(), brokenStore{err: errors.New("disk I/O error")})
	for _, path := range []string{"/api/dashboard", "/api/stats", "/api/data", "/api/latest"} {
		rec := get(t, s, path)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
	}
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	store := openStore(t, settings)

	assert.Equal(t, http.StatusNotFound, get(t, New(settings, store), "/metrics").Code)

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	m.Ingest.RecordPoll("success", time.Second)

	rec := get(t, New(settings, store, WithMetrics(m)), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	rec := get(t, New(settings, openStore(t, settings)), "/api/health")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
