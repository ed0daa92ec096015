package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tphakala/wildlife-go/internal/datastore"
	"github.com/tphakala/wildlife-go/internal/errors"
)

// SightingDTO is the JSON payload published for every new valid sighting.
// Field names are part of the topic contract.
type SightingDTO struct {
	EntryID    int64      `json:"entryId"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	Species    string     `json:"species"`
	SpeciesID  int        `json:"speciesId"`
	DistanceCM float64    `json:"distanceCm"`
	LightLevel int        `json:"lightLevel"`
	TimeOfDay  string     `json:"timeOfDay"`
	Source     string     `json:"source,omitempty"`
}

// NewSightingDTO converts a stored sighting to its payload
func NewSightingDTO(s *datastore.Sighting, source string) SightingDTO {
	dto := SightingDTO{
		EntryID:    s.EntryID,
		Species:    s.SpeciesName,
		SpeciesID:  s.SpeciesID,
		DistanceCM: s.DistanceCM,
		LightLevel: s.LightLevel,
		TimeOfDay:  s.TimeOfDay,
		Source:     source,
	}
	if s.Timestamp != nil {
		ts := s.Timestamp.UTC()
		dto.Timestamp = &ts
	}
	return dto
}

// SightingPublisher is an ingest sink that publishes sightings as JSON
type SightingPublisher struct {
	client Client
	topic  string
	source string
}

// NewSightingPublisher publishes to topic through client. source is copied
// into every payload so subscribers can tell deployments apart.
func NewSightingPublisher(client Client, topic, source string) *SightingPublisher {
	return &SightingPublisher{client: client, topic: topic, source: source}
}

// Deliver publishes one sighting, connecting first if the client is down
func (p *SightingPublisher) Deliver(ctx context.Context, s datastore.Sighting) error {
	if !p.client.IsConnected() {
		if err := p.client.Connect(ctx); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(NewSightingDTO(&s, p.source))
	if err != nil {
		return errors.New(fmt.Errorf("marshal sighting: %w", err)).
			Component(componentName).
			Category(errors.CategoryMQTTPublish).
			Context("entry_id", s.EntryID).
			Build()
	}
	return p.client.Publish(ctx, p.topic, string(payload))
}

// GetDescription names the sink in logs
func (p *SightingPublisher) GetDescription() string {
	return fmt.Sprintf("MQTT publish to %s", p.topic)
}
