// conf/consts.go hard coded constants
package conf

const (
	MaxLight = 4095 // full scale of the 12-bit light ADC

	SpeedOfSoundCMPerUS = 0.0343 // cm per microsecond at ~20 °C

	// ThingSpeak accepts at most this many results per feed request
	MaxFeedResults = 8000

	// Accepted timeofday.policy values
	PolicyAuto  = "auto"
	PolicyHour  = "hour"
	PolicyLight = "light"
	PolicySun   = "sun"

	// Accepted classifier.species[].activity values
	ActivityNocturnal   = "nocturnal"
	ActivityDiurnal     = "diurnal"
	ActivityCrepuscular = "crepuscular"
	ActivityAny         = "any"
)
