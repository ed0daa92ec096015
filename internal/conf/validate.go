// conf/validate.go

package conf

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct and reports every problem at once
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	collect := func(errs []string) {
		ve.Errors = append(ve.Errors, errs...)
	}

	collect(validateEdgeSettings(&settings.Edge))
	collect(validateClassifierSettings(&settings.Classifier))
	collect(validateThingSpeakSettings(&settings.ThingSpeak))
	collect(validatePollerSettings(&settings.Poller))
	collect(validateTimeOfDaySettings(&settings.TimeOfDay))
	collect(validateOutputSettings(&settings.Output))
	collect(validateNotificationSettings(&settings.Notification))

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when sentry is enabled")
	}
	if settings.MQTT.Enabled && settings.MQTT.Topic == "" {
		ve.Errors = append(ve.Errors, "mqtt.topic is required when mqtt is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateEdgeSettings(s *EdgeSettings) []string {
	var errs []string
	if s.CycleInterval <= 0 {
		errs = append(errs, "edge.cycleinterval must be greater than zero")
	}
	if s.EchoTimeout <= 0 {
		errs = append(errs, "edge.echotimeout must be greater than zero")
	}
	for name, p := range map[string]float64{
		"edge.keepaliveprobability":  s.KeepAliveProbability,
		"edge.simulationprobability": s.SimulationProbability,
		"edge.motionprobability":     s.MotionProbability,
	} {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 1, got %g", name, p))
		}
	}
	slices.Sort(errs) // map iteration order
	return errs
}

func validateClassifierSettings(s *ClassifierSettings) []string {
	var errs []string

	if s.MinPlausible < 0 || s.MinPlausible >= s.MaxPlausible {
		errs = append(errs, fmt.Sprintf("classifier distance band invalid: need 0 <= minplausible < maxplausible, got %g and %g", s.MinPlausible, s.MaxPlausible))
	}
	if s.MinIdentify > s.MaxIdentify {
		errs = append(errs, fmt.Sprintf("classifier identify band invalid: minidentify %g > maxidentify %g", s.MinIdentify, s.MaxIdentify))
	}

	for name, v := range map[string]int{
		"classifier.peakdaylight": s.PeakDaylight,
		"classifier.dark":         s.Dark,
		"classifier.bright":       s.Bright,
	} {
		if v < 0 || v > MaxLight {
			errs = append(errs, fmt.Sprintf("%s must be within [0, %d], got %d", name, MaxLight, v))
		}
	}
	if s.Bright > s.Dark {
		errs = append(errs, fmt.Sprintf("classifier.bright (%d) must not exceed classifier.dark (%d)", s.Bright, s.Dark))
	}

	seen := make(map[int]bool, len(s.Species))
	for _, sp := range s.Species {
		switch {
		case sp.ID <= 0:
			errs = append(errs, fmt.Sprintf("species %q: id must be positive, 0 is reserved for Unknown", sp.Name))
		case seen[sp.ID]:
			errs = append(errs, fmt.Sprintf("species id %d is duplicated", sp.ID))
		}
		seen[sp.ID] = true

		if strings.TrimSpace(sp.Name) == "" {
			errs = append(errs, fmt.Sprintf("species id %d has no name", sp.ID))
		}
		switch sp.Activity {
		case ActivityNocturnal, ActivityDiurnal, ActivityCrepuscular, ActivityAny:
		default:
			errs = append(errs, fmt.Sprintf("species %q: unknown activity %q", sp.Name, sp.Activity))
		}
	}

	slices.Sort(errs)
	return errs
}

func validateThingSpeakSettings(s *ThingSpeakSettings) []string {
	var errs []string
	if s.BaseURL == "" {
		errs = append(errs, "thingspeak.baseurl is required")
	} else if err := validateEnvURL(s.BaseURL); err != nil {
		errs = append(errs, "thingspeak.baseurl: "+err.Error())
	}
	if s.Timeout <= 0 {
		errs = append(errs, "thingspeak.timeout must be greater than zero")
	}
	if s.Pace && s.WriteInterval <= 0 {
		errs = append(errs, "thingspeak.writeinterval must be greater than zero when pace is enabled")
	}
	return errs
}

func validatePollerSettings(s *PollerSettings) []string {
	var errs []string
	if s.Interval <= 0 {
		errs = append(errs, "poller.interval must be greater than zero")
	}
	if s.Results < 1 || s.Results > MaxFeedResults {
		errs = append(errs, fmt.Sprintf("poller.results must be between 1 and %d, got %d", MaxFeedResults, s.Results))
	}
	return errs
}

func validateTimeOfDaySettings(s *TimeOfDaySettings) []string {
	var errs []string
	switch s.Policy {
	case PolicyAuto, PolicyHour, PolicyLight, PolicySun:
	default:
		errs = append(errs, fmt.Sprintf("timeofday.policy must be one of auto, hour, light, sun; got %q", s.Policy))
	}
	if s.NightBelow > s.DayAbove {
		errs = append(errs, fmt.Sprintf("timeofday.nightbelow (%d) must not exceed timeofday.dayabove (%d)", s.NightBelow, s.DayAbove))
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		errs = append(errs, fmt.Sprintf("timeofday.latitude must be between -90 and 90, got %g", s.Latitude))
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		errs = append(errs, fmt.Sprintf("timeofday.longitude must be between -180 and 180, got %g", s.Longitude))
	}
	return errs
}

func validateOutputSettings(s *OutputSettings) []string {
	var errs []string
	switch {
	case s.SQLite.Enabled && s.MySQL.Enabled:
		errs = append(errs, "only one of output.sqlite and output.mysql can be enabled")
	case !s.SQLite.Enabled && !s.MySQL.Enabled:
		errs = append(errs, "one of output.sqlite or output.mysql must be enabled")
	}
	if s.SQLite.Enabled && s.SQLite.Path == "" {
		errs = append(errs, "output.sqlite.path is required")
	}
	if s.MySQL.Enabled && (s.MySQL.Host == "" || s.MySQL.Database == "") {
		errs = append(errs, "output.mysql.host and output.mysql.database are required")
	}
	return errs
}

func validateNotificationSettings(s *NotificationSettings) []string {
	if s.Enabled && len(s.URLs) == 0 {
		return []string{"notification.urls must list at least one service url when notifications are enabled"}
	}
	return nil
}
