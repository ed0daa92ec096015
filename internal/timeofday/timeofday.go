// Package timeofday assigns sightings to time-of-day buckets. One policy is
// chosen per deployment so labels never mix within one store.
package timeofday

import (
	"fmt"
	"time"

	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/logger"
	"github.com/tphakala/wildlife-go/internal/suncalc"
)

// Bucket labels
const (
	Morning   = "Morning"
	Afternoon = "Afternoon"
	Evening   = "Evening"
	Night     = "Night"
	DawnDusk  = "Dawn/Dusk"
	Day       = "Day"
)

// Policy maps a sighting to a bucket label
type Policy interface {
	// Bucket returns the label for a sighting. hasTimestamp is false when the
	// record carried no usable created_at.
	Bucket(ts time.Time, hasTimestamp bool, light int) string
	// Labels lists every label the policy can emit, in chart order
	Labels() []string
	Name() string
}

// HourPolicy buckets by UTC hour of day
type HourPolicy struct{}

func (HourPolicy) Name() string { return conf.PolicyHour }

func (HourPolicy) Labels() []string { return []string{Morning, Afternoon, Evening, Night} }

// Bucket ignores light. A missing timestamp buckets the zero time, which is Night.
func (HourPolicy) Bucket(ts time.Time, _ bool, _ int) string {
	return BucketHour(ts.UTC().Hour())
}

// BucketHour maps an hour 0-23 to its bucket
func BucketHour(hour int) string {
	switch {
	case hour >= 5 && hour <= 11:
		return Morning
	case hour >= 12 && hour <= 16:
		return Afternoon
	case hour >= 17 && hour <= 20:
		return Evening
	default:
		return Night
	}
}

// LightPolicy buckets by raw light level
type LightPolicy struct {
	NightBelow int
	DayAbove   int
}

// DefaultLightPolicy uses Night < 1000 and Day > 3000
func DefaultLightPolicy() LightPolicy {
	return LightPolicy{NightBelow: 1000, DayAbove: 3000}
}

func (LightPolicy) Name() string { return conf.PolicyLight }

func (LightPolicy) Labels() []string { return []string{Night, DawnDusk, Day} }

func (p LightPolicy) Bucket(_ time.Time, _ bool, light int) string {
	switch {
	case light < p.NightBelow:
		return Night
	case light > p.DayAbove:
		return Day
	default:
		return DawnDusk
	}
}

// AutoPolicy uses the hour when a timestamp exists and light otherwise
type AutoPolicy struct {
	Hour  HourPolicy
	Light LightPolicy
}

func (AutoPolicy) Name() string { return conf.PolicyAuto }

// Labels is the union of both schemes, hour labels first
func (AutoPolicy) Labels() []string {
	return []string{Morning, Afternoon, Evening, Night, DawnDusk, Day}
}

func (p AutoPolicy) Bucket(ts time.Time, hasTimestamp bool, light int) string {
	if hasTimestamp {
		return p.Hour.Bucket(ts, true, light)
	}
	return p.Light.Bucket(ts, false, light)
}

// SunPolicy buckets by sun phase at the observer. Without a timestamp, or
// where the sun phase is undefined, it uses the light policy.
type SunPolicy struct {
	Sun   *suncalc.SunCalc
	Light LightPolicy
}

func (SunPolicy) Name() string { return conf.PolicySun }

func (SunPolicy) Labels() []string { return []string{Night, DawnDusk, Day} }

func (p SunPolicy) Bucket(ts time.Time, hasTimestamp bool, light int) string {
	if !hasTimestamp || p.Sun == nil {
		return p.Light.Bucket(ts, hasTimestamp, light)
	}
	phase, err := p.Sun.Phase(ts)
	if err != nil {
		logger.Global().Module("timeofday").Debug("sun phase unavailable, using light level",
			logger.Time("timestamp", ts),
			logger.Error(err))
		return p.Light.Bucket(ts, hasTimestamp, light)
	}
	return string(phase)
}

// NewPolicy builds the configured policy
func NewPolicy(s *conf.TimeOfDaySettings) (Policy, error) {
	light := LightPolicy{NightBelow: s.NightBelow, DayAbove: s.DayAbove}
	switch s.Policy {
	case conf.PolicyAuto, "":
		return AutoPolicy{Light: light}, nil
	case conf.PolicyHour:
		return HourPolicy{}, nil
	case conf.PolicyLight:
		return light, nil
	case conf.PolicySun:
		return SunPolicy{Sun: suncalc.NewSunCalc(s.Latitude, s.Longitude), Light: light}, nil
	default:
		return nil, fmt.Errorf("unknown time of day policy %q", s.Policy)
	}
}

var (
	_ Policy = HourPolicy{}
	_ Policy = LightPolicy{}
	_ Policy = AutoPolicy{}
	_ Policy = SunPolicy{}
)
