// Package classifier turns one distance and light sample into a classified
// motion event: a false positive, or a valid detection with an inferred species.
package classifier

import (
	"math/rand/v2"

	"github.com/tphakala/wildlife-go/internal/conf"
)

// Activity is a coarse activity window derived from ambient light
type Activity string

const (
	Nocturnal   Activity = conf.ActivityNocturnal
	Diurnal     Activity = conf.ActivityDiurnal
	Crepuscular Activity = conf.ActivityCrepuscular
	Any         Activity = conf.ActivityAny
)

// Rand is the random source used for species inference
type Rand interface {
	IntN(n int) int
}

// Thresholds bound the classifier decisions. Light is on the inverted scale,
// 0 brightest.
type Thresholds struct {
	MinPlausible float64 // exclusive
	MaxPlausible float64 // exclusive
	MinIdentify  float64 // inclusive
	MaxIdentify  float64 // inclusive
	PeakDaylight int
	Dark         int
	Bright       int
}

// ThresholdsFromSettings copies the classifier thresholds out of settings
func ThresholdsFromSettings(s *conf.ClassifierSettings) Thresholds {
	return Thresholds{
		MinPlausible: s.MinPlausible,
		MaxPlausible: s.MaxPlausible,
		MinIdentify:  s.MinIdentify,
		MaxIdentify:  s.MaxIdentify,
		PeakDaylight: s.PeakDaylight,
		Dark:         s.Dark,
		Bright:       s.Bright,
	}
}

// ClassifiedEvent is the outcome of one detection cycle.
// SpeciesID != 0 implies !IsFalsePositive, and IsFalsePositive implies SpeciesID == 0.
type ClassifiedEvent struct {
	Motion          bool
	DistanceCM      float64
	LightLevel      int
	IsFalsePositive bool
	SpeciesID       int
}

// KeepAlive is the motion=0 liveness event
func KeepAlive(light int) ClassifiedEvent {
	return ClassifiedEvent{LightLevel: light}
}

// Classifier applies the thresholds and species table. It is safe for
// concurrent use only if its Rand is.
type Classifier struct {
	thresholds Thresholds
	catalog    *Catalog
	rnd        Rand
}

// New creates a classifier. A nil rnd uses a randomly seeded PCG source.
func New(t Thresholds, catalog *Catalog, rnd Rand) *Classifier {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // not security sensitive
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Classifier{thresholds: t, catalog: catalog, rnd: rnd}
}

// NewFromSettings builds a classifier from the classifier section of the config
func NewFromSettings(s *conf.ClassifierSettings, rnd Rand) *Classifier {
	return New(ThresholdsFromSettings(s), NewCatalog(s.Species), rnd)
}

// Catalog returns the species table in use
func (c *Classifier) Catalog() *Catalog { return c.catalog }

// Thresholds returns the thresholds in use
func (c *Classifier) Thresholds() Thresholds { return c.thresholds }

// Classify decides a motion event. The first matching rule wins:
// out-of-band distance or peak daylight is a false positive, otherwise a
// species is drawn from those active in the current light window.
func (c *Classifier) Classify(distanceCM float64, light int) ClassifiedEvent {
	ev := ClassifiedEvent{Motion: true, DistanceCM: distanceCM, LightLevel: light}
	if c.thresholds.IsFalsePositive(distanceCM, light) {
		ev.IsFalsePositive = true
		return ev
	}
	ev.SpeciesID = c.identify(distanceCM, light)
	return ev
}

// IsFalsePositive applies the false positive rules alone
func (c *Classifier) IsFalsePositive(distanceCM float64, light int) bool {
	return c.thresholds.IsFalsePositive(distanceCM, light)
}

// IsFalsePositive reports whether the reading is sensor noise or suppressed by daylight
func (t Thresholds) IsFalsePositive(distanceCM float64, light int) bool {
	if distanceCM <= t.MinPlausible || distanceCM >= t.MaxPlausible {
		return true
	}
	return light < t.PeakDaylight
}

// WindowFor maps a light level to its activity window
func (t Thresholds) WindowFor(light int) Activity {
	switch {
	case light > t.Dark:
		return Nocturnal
	case light < t.Bright:
		return Diurnal
	default:
		return Crepuscular
	}
}

// WindowFor maps a light level to its activity window
func (c *Classifier) WindowFor(light int) Activity {
	return c.thresholds.WindowFor(light)
}

func (c *Classifier) identify(distanceCM float64, light int) int {
	if distanceCM < c.thresholds.MinIdentify || distanceCM > c.thresholds.MaxIdentify {
		return UnknownID
	}
	candidates := c.catalog.ActiveIn(c.thresholds.WindowFor(light))
	if len(candidates) == 0 {
		return UnknownID
	}
	return candidates[c.rnd.IntN(len(candidates))].ID
}
