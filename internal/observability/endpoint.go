package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/logger"
	metricspkg "github.com/tphakala/wildlife-go/internal/observability/metrics"
)

// Endpoint serves /metrics on its own listener. The edge node uses it since
// it runs no API server.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
}

// NewEndpoint returns an error if telemetry is disabled in settings.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Telemetry.Enabled {
		return nil, fmt.Errorf("telemetry not enabled in settings")
	}

	mux := http.NewServeMux()
	metrics.RegisterHandlers(mux)

	return &Endpoint{
		listenAddress: settings.Telemetry.Listen,
		metrics:       metrics,
		server: &http.Server{
			Addr:              settings.Telemetry.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (e *Endpoint) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("Telemetry endpoint starting", logger.String("address", e.listenAddress))
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Telemetry HTTP server error", logger.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Stopping telemetry server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(shutdownCtx); err != nil {
		log.Error("Telemetry server shutdown error", logger.Error(err))
		return err
	}
	return nil
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
