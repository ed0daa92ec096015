package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/wildlife-go/internal/aggregate"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/datastore"
	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/ingest"
)

const aggregateCacheKey = "aggregate"

// StatsResponse is the /api/stats body
type StatsResponse struct {
	aggregate.Stats
	AnimalCounts     map[string]int `json:"animal_counts"`
	TimeDistribution map[string]int `json:"time_distribution"`
}

// DataResponse is the /api/data body, newest sighting first
type DataResponse struct {
	Count int                     `json:"count"`
	Feeds []aggregate.TimelineRow `json:"feeds"`
}

// LatestResponse is the /api/latest body; Latest is null for an empty store
type LatestResponse struct {
	Latest  *aggregate.TimelineRow `json:"latest"`
	Source  string                 `json:"source"`
	Message string                 `json:"message,omitempty"`
}

// loadAggregate returns the cached aggregate or recomputes it
func (s *Server) loadAggregate(ctx context.Context) (aggregate.DashboardAggregate, error) {
	if v, ok := s.cache.Get(aggregateCacheKey); ok {
		if agg, ok := v.(aggregate.DashboardAggregate); ok {
			return agg, nil
		}
	}
	gen := s.cacheGeneration()
	records, err := s.store.LatestSightings(ctx, DashboardWindow)
	if err != nil {
		return aggregate.DashboardAggregate{}, err
	}
	agg := aggregate.Aggregate(records, s.labels)
	s.storeAggregate(gen, agg)
	return agg, nil
}

func (s *Server) getDashboard(c echo.Context) error {
	agg, err := s.loadAggregate(c.Request().Context())
	if err != nil {
		return s.HandleError(c, err, "Failed to load sightings", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, agg.Dashboard())
}

func (s *Server) getStats(c echo.Context) error {
	agg, err := s.loadAggregate(c.Request().Context())
	if err != nil {
		return s.HandleError(c, err, "Failed to load sightings", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, StatsResponse{
		Stats:            agg.Stats(),
		AnimalCounts:     agg.SpeciesCounts,
		TimeDistribution: agg.TimeDistribution,
	})
}

func (s *Server) getData(c echo.Context) error {
	limit := s.settings.WebServer.RecentLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > conf.MaxFeedResults {
			return s.HandleError(c, err, "limit must be between 1 and "+strconv.Itoa(conf.MaxFeedResults), http.StatusBadRequest)
		}
		limit = n
	}

	records, err := s.store.Sightings(c.Request().Context(), datastore.Query{Limit: limit, Descending: true})
	if err != nil {
		return s.HandleError(c, err, "Failed to load sightings", http.StatusInternalServerError)
	}
	rows := aggregate.Timeline(records)
	return c.JSON(http.StatusOK, DataResponse{Count: len(rows), Feeds: rows})
}

func (s *Server) getLatest(c echo.Context) error {
	if remote, _ := strconv.ParseBool(c.QueryParam("remote")); remote {
		return s.getRemoteLatest(c)
	}

	records, err := s.store.LatestSightings(c.Request().Context(), 1)
	if err != nil {
		return s.HandleError(c, err, "Failed to load latest sighting", http.StatusInternalServerError)
	}
	resp := LatestResponse{Source: "local"}
	if len(records) == 0 {
		resp.Message = "No data available"
		return c.JSON(http.StatusOK, resp)
	}
	resp.Latest = &aggregate.Timeline(records)[0]
	return c.JSON(http.StatusOK, resp)
}

// getRemoteLatest reads the newest record from the feed store and enriches it
// the way the ingestor would, without storing it
func (s *Server) getRemoteLatest(c echo.Context) error {
	if s.remote == nil || s.enricher == nil {
		return s.HandleError(c, nil, "Remote feed is not configured", http.StatusServiceUnavailable)
	}

	rec, err := s.remote.Latest(c.Request().Context())
	if err != nil {
		return s.HandleError(c, err, "Unable to fetch latest data", http.StatusBadGateway)
	}
	resp := LatestResponse{Source: "remote"}
	if rec == nil {
		resp.Message = "No data available"
		return c.JSON(http.StatusOK, resp)
	}

	fields, err := ingest.ParseRecord(rec)
	if err != nil {
		return s.HandleError(c, err, "Latest remote record is malformed", http.StatusBadGateway)
	}
	sighting := s.enricher.Enrich(fields)
	resp.Latest = &aggregate.Timeline([]datastore.Sighting{sighting})[0]
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) healthCheck(c echo.Context) error {
	ctx := c.Request().Context()
	count, err := s.store.CountSightings(ctx)
	if err != nil {
		return s.storeUnavailable(c, err)
	}
	last, err := s.store.MaxEntryID(ctx)
	if err != nil {
		return s.storeUnavailable(c, err)
	}

	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"name":           s.settings.Main.Name,
		"sightings":      count,
		"last_entry_id":  last,
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) storeUnavailable(c echo.Context, err error) error {
	return s.HandleError(c, errors.New(err).
		Component("api").
		Category(errors.CategoryDatabase).
		Context("operation", "health_check").
		Build(), "Sighting store unavailable", http.StatusServiceUnavailable)
}
