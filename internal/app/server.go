// Package app assembles the edge node and the ingestion server from settings.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/wildlife-go/internal/api"
	"github.com/tphakala/wildlife-go/internal/classifier"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/datastore"
	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/httpclient"
	"github.com/tphakala/wildlife-go/internal/ingest"
	"github.com/tphakala/wildlife-go/internal/logger"
	"github.com/tphakala/wildlife-go/internal/mqtt"
	"github.com/tphakala/wildlife-go/internal/notification"
	"github.com/tphakala/wildlife-go/internal/observability"
	"github.com/tphakala/wildlife-go/internal/poller"
	"github.com/tphakala/wildlife-go/internal/thingspeak"
	"github.com/tphakala/wildlife-go/internal/timeofday"
)

// Server is the ingestion side: store, poller, sinks and the dashboard API
type Server struct {
	Settings *conf.Settings
	Metrics  *observability.Metrics
	Store    datastore.Interface
	Ingestor *ingest.Ingestor
	Poller   *poller.Service
	API      *api.Server

	http *httpclient.Client
	mqtt mqtt.Client
	log  logger.Logger
}

// NewServer opens the store and wires every server component. Close
// releases what it opened.
func NewServer(settings *conf.Settings) (*Server, error) {
	log := logger.Global().Module("app")

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	policy, err := timeofday.NewPolicy(&settings.TimeOfDay)
	if err != nil {
		return nil, err
	}

	store := datastore.New(settings)
	if store == nil {
		return nil, errors.Newf("no sighting store enabled, enable output.sqlite or output.mysql").
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := store.Open(); err != nil {
		return nil, err
	}

	s := &Server{
		Settings: settings,
		Metrics:  m,
		Store:    store,
		http:     NewHTTPClient(&settings.ThingSpeak, m),
		log:      log,
	}

	sinks, err := s.buildSinks()
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	cls := classifier.NewFromSettings(&settings.Classifier, nil)
	s.Ingestor = ingest.New(store, cls, policy, ingest.OptionsFromSettings(&settings.Ingest),
		ingest.WithSinks(sinks...),
		ingest.WithMetrics(m.Ingest))

	feed := thingspeak.NewFeedClient(&settings.ThingSpeak, s.http)
	s.Poller = poller.NewService(&settings.Poller, feed, s.Ingestor, m.Ingest)

	s.API = api.New(settings, store,
		api.WithRemoteFeed(feed, s.Ingestor),
		api.WithMetrics(m),
		api.WithTimeLabels(policy.Labels()))
	s.Poller.OnIngest(func(ingest.Result) { s.API.InvalidateCache() })

	log.Info("server components ready",
		logger.String("time_of_day_policy", policy.Name()),
		logger.Int("sinks", len(sinks)))
	return s, nil
}

// buildSinks creates the enabled fan-out targets for new sightings
func (s *Server) buildSinks() ([]ingest.Sink, error) {
	var sinks []ingest.Sink

	if s.Settings.MQTT.Enabled {
		client, err := mqtt.NewClient(s.Settings, s.Metrics.MQTT)
		if err != nil {
			return nil, err
		}
		s.mqtt = client
		sinks = append(sinks, mqtt.NewSightingPublisher(client, s.Settings.MQTT.Topic, s.Settings.Main.Name))
	}

	if s.Settings.Notification.Enabled {
		n, err := notification.NewNotifier(&s.Settings.Notification, s.Metrics.Notification)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, n)
	}
	return sinks, nil
}

// Run serves the API and polls the feed until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	var endpoint *observability.Endpoint
	if s.Settings.Telemetry.Enabled {
		var err error
		if endpoint, err = observability.NewEndpoint(s.Settings, s.Metrics); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if s.Settings.Poller.Enabled {
		g.Go(func() error {
			s.Poller.Start(ctx)
			return nil
		})
	} else {
		s.log.Info("feed poller disabled")
	}

	if s.Settings.WebServer.Enabled {
		g.Go(func() error { return s.API.Run(ctx) })
	}

	if endpoint != nil {
		g.Go(func() error { return endpoint.Run(ctx) })
	}

	return g.Wait()
}

// PollOnce runs a single reconcile cycle
func (s *Server) PollOnce(ctx context.Context) (ingest.Result, error) {
	return s.Poller.PollOnce(ctx)
}

// Close disconnects sinks and closes the store
func (s *Server) Close() error {
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if s.http != nil {
		s.http.Close()
	}
	if err := s.Store.Close(); err != nil {
		return fmt.Errorf("close sighting store: %w", err)
	}
	return nil
}

// NewHTTPClient builds the feed store HTTP client with request metrics
func NewHTTPClient(s *conf.ThingSpeakSettings, m *observability.Metrics) *httpclient.Client {
	client := httpclient.New(&httpclient.Config{DefaultTimeout: s.Timeout})
	if m != nil && m.HTTPClient != nil {
		client.SetAfterResponseHook(m.HTTPClient.ObserveResponse)
	}
	return client
}
