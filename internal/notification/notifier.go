// Package notification sends an alert through shoutrrr services when a
// watched species is sighted.
package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/datastore"
	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/logger"
	"github.com/tphakala/wildlife-go/internal/observability/metrics"
)

const (
	componentName = "notification"
	title         = "Wildlife sighting"
	sendTimeout   = 10 * time.Second
)

// Sender delivers one message to every configured service. The shoutrrr
// service router implements it.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// Notifier is an ingest sink for watched-species alerts
type Notifier struct {
	sender  Sender
	watched map[string]bool
	metrics *metrics.NotificationMetrics
	log     logger.Logger
}

// NewNotifier builds a shoutrrr sender for the configured URLs. m may be nil.
func NewNotifier(s *conf.NotificationSettings, m *metrics.NotificationMetrics) (*Notifier, error) {
	if len(s.URLs) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}
	router, err := shoutrrr.CreateSender(s.URLs...)
	if err != nil {
		// service URLs carry tokens
		return nil, errors.Newf("invalid notification URL: %s", logger.RedactSensitiveData(err.Error())).
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}
	router.Timeout = sendTimeout
	router.SetLogger(log.New(io.Discard, "", 0))
	return NewNotifierWithSender(router, s.Species, m), nil
}

// NewNotifierWithSender uses sender directly. Species names match
// case-insensitively.
func NewNotifierWithSender(sender Sender, species []string, m *metrics.NotificationMetrics) *Notifier {
	watched := make(map[string]bool, len(species))
	for _, name := range species {
		if name = strings.TrimSpace(name); name != "" {
			watched[strings.ToLower(name)] = true
		}
	}
	return &Notifier{
		sender:  sender,
		watched: watched,
		metrics: m,
		log:     logger.Global().Module(componentName),
	}
}

// Watches reports whether species triggers an alert
func (n *Notifier) Watches(species string) bool {
	return n.watched[strings.ToLower(species)]
}

// Message formats the alert text for a sighting
func Message(s *datastore.Sighting) string {
	return fmt.Sprintf("%s seen at %s cm (%s)",
		s.SpeciesName,
		strconv.FormatFloat(s.DistanceCM, 'f', -1, 64),
		s.TimeOfDay)
}

// Deliver alerts on valid sightings of watched species and ignores the rest
func (n *Notifier) Deliver(ctx context.Context, s datastore.Sighting) error {
	if !s.IsValidDetection || !n.Watches(s.SpeciesName) {
		return nil
	}

	params := stypes.Params{}
	params.SetTitle(title)

	start := time.Now()
	errs := n.sender.Send(Message(&s), &params)
	var firstErr error
	for _, e := range errs {
		if e != nil {
			firstErr = e
			break
		}
	}
	status := metrics.StatusSuccess
	if firstErr != nil {
		status = metrics.StatusError
	}
	if n.metrics != nil {
		n.metrics.RecordDelivery(status, time.Since(start))
	}

	if firstErr != nil {
		return errors.Newf("notification send failed: %s", logger.RedactSensitiveData(firstErr.Error())).
			Component(componentName).
			Category(errors.CategoryNotification).
			Context("entry_id", s.EntryID).
			Context("species", s.SpeciesName).
			Build()
	}
	n.log.WithContext(ctx).Info("sighting alert sent",
		logger.Int64("entry_id", s.EntryID),
		logger.String("species", s.SpeciesName))
	return nil
}

// GetDescription names the sink in logs
func (n *Notifier) GetDescription() string {
	return "watched species notification"
}
