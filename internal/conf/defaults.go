// conf/defaults.go default values for settings
package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// DefaultSpecies is the species activity table used when the config has none.
// Id 0 is reserved for Unknown.
func DefaultSpecies() []SpeciesEntry {
	return []SpeciesEntry{
		{ID: 1, Name: "Fox", Activity: ActivityNocturnal},
		{ID: 2, Name: "Badger", Activity: ActivityNocturnal},
		{ID: 3, Name: "Deer", Activity: ActivityCrepuscular},
		{ID: 4, Name: "Squirrel", Activity: ActivityDiurnal},
		{ID: 5, Name: "Rabbit", Activity: ActivityCrepuscular},
		{ID: 6, Name: "Hedgehog", Activity: ActivityNocturnal},
		{ID: 7, Name: "Owl", Activity: ActivityNocturnal},
		{ID: 8, Name: "Woodpecker", Activity: ActivityDiurnal},
		{ID: 9, Name: "Boar", Activity: ActivityNocturnal},
		{ID: 10, Name: "Bear", Activity: ActivityAny},
		{ID: 11, Name: "Raccoon", Activity: ActivityNocturnal},
		{ID: 12, Name: "Skunk", Activity: ActivityNocturnal},
		{ID: 13, Name: "Lynx", Activity: ActivityCrepuscular},
		{ID: 14, Name: "Wolf", Activity: ActivityAny},
		{ID: 15, Name: "Moose", Activity: ActivityCrepuscular},
	}
}

// Sets default values for the configuration.
func setDefaultConfig() {
	setDefaults(viper.GetViper())
}

// DefaultSettings returns the built-in defaults without reading any file or
// environment. Used by tools and tests.
func DefaultSettings() *Settings {
	v := viper.New()
	setDefaults(v)
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		// defaults are static, a failure here is a programming error
		panic(fmt.Sprintf("conf: unmarshal defaults: %v", err))
	}
	return settings
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "Wildlife-Go")
	v.SetDefault("main.nodeid", "edge-01")

	v.SetDefault("edge.cycleinterval", 15*time.Second)
	v.SetDefault("edge.keepaliveprobability", 0.10)
	v.SetDefault("edge.echotimeout", 30*time.Millisecond)
	v.SetDefault("edge.simulate", false)
	v.SetDefault("edge.simulationprobability", 0.8)
	v.SetDefault("edge.motionprobability", 0.3)
	v.SetDefault("edge.hardware.gpiopath", "/sys/class/gpio")
	v.SetDefault("edge.hardware.triggerpin", 23)
	v.SetDefault("edge.hardware.echopin", 24)
	v.SetDefault("edge.hardware.pirpin", 17)
	v.SetDefault("edge.hardware.adcpath", "/sys/bus/iio/devices/iio:device0/in_voltage0_raw")

	v.SetDefault("classifier.minplausible", 1.0)
	v.SetDefault("classifier.maxplausible", 500.0)
	v.SetDefault("classifier.minidentify", 5.0)
	v.SetDefault("classifier.maxidentify", 450.0)
	v.SetDefault("classifier.peakdaylight", 200)
	v.SetDefault("classifier.dark", 3000)
	v.SetDefault("classifier.bright", 1000)
	v.SetDefault("classifier.species", DefaultSpecies())

	v.SetDefault("thingspeak.baseurl", "https://api.thingspeak.com")
	v.SetDefault("thingspeak.channelid", "")
	v.SetDefault("thingspeak.readkey", "")
	v.SetDefault("thingspeak.writekey", "")
	v.SetDefault("thingspeak.timeout", 15*time.Second)
	v.SetDefault("thingspeak.pace", true)
	v.SetDefault("thingspeak.writeinterval", 15*time.Second)

	v.SetDefault("poller.enabled", true)
	v.SetDefault("poller.interval", 60*time.Second)
	v.SetDefault("poller.results", MaxFeedResults)

	v.SetDefault("ingest.rederivefalsepositive", true)
	v.SetDefault("ingest.requirespecies", false)

	v.SetDefault("timeofday.policy", PolicyAuto)
	v.SetDefault("timeofday.nightbelow", 1000)
	v.SetDefault("timeofday.dayabove", 3000)
	v.SetDefault("timeofday.latitude", 0.0)
	v.SetDefault("timeofday.longitude", 0.0)

	v.SetDefault("output.sqlite.enabled", true)
	v.SetDefault("output.sqlite.path", "wildlife.db")

	v.SetDefault("output.mysql.enabled", false)
	v.SetDefault("output.mysql.username", "wildlife")
	v.SetDefault("output.mysql.password", "")
	v.SetDefault("output.mysql.database", "wildlife")
	v.SetDefault("output.mysql.host", "localhost")
	v.SetDefault("output.mysql.port", "3306")

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.listen", "0.0.0.0:8080")
	v.SetDefault("webserver.debug", false)
	v.SetDefault("webserver.recentlimit", 100)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "wildlife/sightings")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.urls", []string{})
	v.SetDefault("notification.species", []string{})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.listen", "0.0.0.0:8090")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/wildlife.log")
	v.SetDefault("logging.file_output.level", "info")
}
