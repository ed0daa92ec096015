// Package api serves the dashboard data over HTTP: aggregate statistics,
// chart series, the sighting timeline and the latest sighting.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/wildlife-go/internal/aggregate"
	mw "github.com/tphakala/wildlife-go/internal/api/middleware"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/datastore"
	"github.com/tphakala/wildlife-go/internal/ingest"
	"github.com/tphakala/wildlife-go/internal/logger"
	"github.com/tphakala/wildlife-go/internal/observability"
	"github.com/tphakala/wildlife-go/internal/thingspeak"
)

const (
	// DashboardWindow bounds the aggregate to the newest sightings, the
	// same count one full feed poll returns
	DashboardWindow = conf.MaxFeedResults

	shutdownTimeout = 10 * time.Second
	bodyLimit       = "64K"
)

// Store is the read side of the sighting store
type Store interface {
	MaxEntryID(ctx context.Context) (int64, error)
	Sightings(ctx context.Context, q datastore.Query) ([]datastore.Sighting, error)
	LatestSightings(ctx context.Context, n int) ([]datastore.Sighting, error)
	CountSightings(ctx context.Context) (int64, error)
}

// RemoteFeed fetches the newest record straight from the feed store
type RemoteFeed interface {
	Latest(ctx context.Context) (*thingspeak.FeedRecord, error)
}

// Enricher turns parsed remote fields into a sighting without storing it
type Enricher interface {
	Enrich(f ingest.Fields) datastore.Sighting
}

// Server is the dashboard API
type Server struct {
	echo      *echo.Echo
	settings  *conf.Settings
	store     Store
	remote    RemoteFeed
	enricher  Enricher
	labels    []string
	cache     *cache.Cache
	cacheMu   sync.Mutex
	cacheGen  uint64 // bumped by InvalidateCache
	metrics   *observability.Metrics
	log       logger.Logger
	startTime time.Time
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithRemoteFeed enables /api/latest?remote=1
func WithRemoteFeed(feed RemoteFeed, enricher Enricher) ServerOption {
	return func(s *Server) {
		s.remote = feed
		s.enricher = enricher
	}
}

// WithMetrics serves /metrics from the shared registry
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithTimeLabels fixes the time-of-day chart order
func WithTimeLabels(labels []string) ServerOption {
	return func(s *Server) { s.labels = labels }
}

// New creates the server and registers its routes. Cached aggregates live
// for one poll interval unless InvalidateCache runs first.
func New(settings *conf.Settings, store Store, opts ...ServerOption) *Server {
	ttl := settings.Poller.Interval
	if ttl <= 0 {
		ttl = time.Minute
	}

	s := &Server{
		echo:      echo.New(),
		settings:  settings,
		store:     store,
		cache:     cache.New(ttl, 2*ttl),
		log:       logger.Global().Module("api"),
		startTime: time.Now(),
	}
	for _, o := range opts {
		o(s)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = settings.WebServer.Debug
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	security := mw.DefaultSecurityConfig()
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestLogger(s.log))
	s.echo.Use(mw.NewCORS(security))
	s.echo.Use(mw.NewBodyLimit(bodyLimit))
	s.echo.Use(echomw.Gzip())
	s.echo.Use(mw.NewSecureHeaders(security))
}

func (s *Server) setupRoutes() {
	g := s.echo.Group("/api")
	g.GET("/health", s.healthCheck)
	g.GET("/dashboard", s.getDashboard)
	g.GET("/stats", s.getStats)
	g.GET("/data", s.getData)
	g.GET("/latest", s.getLatest)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

// Echo exposes the router, mainly for tests
func (s *Server) Echo() *echo.Echo { return s.echo }

// InvalidateCache drops cached aggregates; the poller calls it after new
// sightings are stored
func (s *Server) InvalidateCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheGen++
	s.cache.Flush()
}

func (s *Server) cacheGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cacheGen
}

// storeAggregate caches agg unless an invalidation happened since gen was read
func (s *Server) storeAggregate(gen uint64, agg aggregate.DashboardAggregate) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if gen == s.cacheGen {
		s.cache.SetDefault(aggregateCacheKey, agg)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	addr := s.settings.WebServer.Listen
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", logger.String("address", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.log.Error("HTTP server error", logger.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("stopping HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
