package thingspeak

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/wildlife-go/internal/classifier"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/httpclient"
	"github.com/tphakala/wildlife-go/internal/logger"
	"github.com/tphakala/wildlife-go/internal/observability/metrics"
)

const (
	kindEvent     = "event"
	kindKeepAlive = "keepalive"

	maxUpdateBody = 64
)

// Publisher submits classified events to the remote store
type Publisher interface {
	Publish(ctx context.Context, ev classifier.ClassifiedEvent) (EntryID, error)
	KeepAlive(ctx context.Context, light int) (EntryID, error)
}

// updatePayload is the JSON body of the update endpoint
type updatePayload struct {
	APIKey string  `json:"api_key"`
	Field1 int     `json:"field1"`
	Field2 float64 `json:"field2"`
	Field3 int     `json:"field3"`
	Field4 int     `json:"field4"`
	Field5 int     `json:"field5"`
}

// RelayClient writes single records. It never retries; the caller's fixed
// interval loop schedules the next attempt.
type RelayClient struct {
	http     *httpclient.Client
	baseURL  string
	writeKey string
	timeout  time.Duration
	limiter  *rate.Limiter
	metrics  *metrics.RelayMetrics
	log      logger.Logger
}

// RelayOption configures a RelayClient
type RelayOption func(*RelayClient)

// WithRelayMetrics records every attempt in m
func WithRelayMetrics(m *metrics.RelayMetrics) RelayOption {
	return func(c *RelayClient) { c.metrics = m }
}

// WithLimiter replaces the local write ceiling
func WithLimiter(l *rate.Limiter) RelayOption {
	return func(c *RelayClient) { c.limiter = l }
}

// NewRelayClient creates a relay for the configured channel. With pacing
// enabled, writes beyond one per WriteInterval are refused locally.
func NewRelayClient(s *conf.ThingSpeakSettings, client *httpclient.Client, opts ...RelayOption) *RelayClient {
	if client == nil {
		client = httpclient.New(&httpclient.Config{DefaultTimeout: s.Timeout})
	}
	c := &RelayClient{
		http:     client,
		baseURL:  s.BaseURL,
		writeKey: s.WriteKey,
		timeout:  s.Timeout,
		log:      getLogger().Module("relay"),
	}
	if s.Pace && s.WriteInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(s.WriteInterval), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish sends one classified event and returns the entry id the store
// assigned. A "0", empty or unparseable reply matches ErrPublishRejected.
func (c *RelayClient) Publish(ctx context.Context, ev classifier.ClassifiedEvent) (EntryID, error) {
	kind := kindEvent
	if !ev.Motion {
		kind = kindKeepAlive
	}
	return c.publish(ctx, kind, payloadFor(c.writeKey, ev))
}

// KeepAlive publishes a motion=0 record carrying only the light level so the
// channel shows the node is alive.
func (c *RelayClient) KeepAlive(ctx context.Context, light int) (EntryID, error) {
	return c.publish(ctx, kindKeepAlive, payloadFor(c.writeKey, classifier.KeepAlive(light)))
}

func payloadFor(key string, ev classifier.ClassifiedEvent) updatePayload {
	p := updatePayload{
		APIKey: key,
		Field2: math.Round(ev.DistanceCM*100) / 100,
		Field3: ev.LightLevel,
		Field5: ev.SpeciesID,
	}
	if ev.Motion {
		p.Field1 = 1
	}
	if ev.IsFalsePositive {
		p.Field4 = 1
	}
	return p
}

func (c *RelayClient) publish(ctx context.Context, kind string, p updatePayload) (EntryID, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.record(kind, metrics.StatusLimited, 0)
		return 0, c.rejected(kind, "rate_limited", "")
	}

	u := endpoint(c.baseURL, "/update", nil)
	start := time.Now()
	resp, err := c.http.Post(ctx, u, "application/json", p)
	if err != nil {
		c.record(kind, metrics.StatusError, time.Since(start))
		return 0, errors.New(err).
			Component(componentName).
			Category(errors.CategoryNetwork).
			NetworkContext(u, c.timeout).
			Context("kind", kind).
			Build()
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Debug("failed to close update response body", logger.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpdateBody))
	if err != nil {
		c.record(kind, metrics.StatusError, time.Since(start))
		return 0, errors.New(fmt.Errorf("read update response: %w", err)).
			Component(componentName).
			Category(errors.CategoryNetwork).
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		c.record(kind, metrics.StatusError, time.Since(start))
		return 0, errors.Newf("update returned status %d", resp.StatusCode).
			Component(componentName).
			Category(errors.CategoryHTTP).
			Context("status_code", resp.StatusCode).
			Context("kind", kind).
			Build()
	}

	reply := strings.TrimSpace(string(body))
	id, err := strconv.ParseInt(reply, 10, 64)
	if err != nil || id <= 0 {
		c.record(kind, metrics.StatusRejected, time.Since(start))
		return 0, c.rejected(kind, "no_entry_id", reply)
	}

	c.record(kind, metrics.StatusSuccess, time.Since(start))
	if c.metrics != nil {
		c.metrics.SetLastEntryID(id)
	}
	c.log.Debug("record published",
		logger.String("kind", kind),
		logger.Int64("entry_id", id),
		logger.Duration("elapsed", time.Since(start)))
	return EntryID(id), nil
}

func (c *RelayClient) rejected(kind, reason, reply string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrPublishRejected, reason)).
		Component(componentName).
		Category(errors.CategoryPublish).
		Priority(errors.PriorityLow).
		Context("kind", kind).
		Context("reason", reason).
		Context("reply", reply).
		Build()
}

func (c *RelayClient) record(kind, status string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordPublish(kind, status, d)
	}
}

var _ Publisher = (*RelayClient)(nil)
