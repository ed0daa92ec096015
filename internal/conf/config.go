// config.go: settings tree for the wildlife edge node and ingestion server, and functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/wildlife-go/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings identifies this deployment
type MainSettings struct {
	Name   string `yaml:"name" mapstructure:"name"`     // deployment name shown in the dashboard
	NodeID string `yaml:"nodeid" mapstructure:"nodeid"` // edge node identifier used in logs and mqtt payloads
}

// HardwareSettings maps the edge sensors onto Linux sysfs GPIO and IIO ADC
type HardwareSettings struct {
	GPIOPath   string `yaml:"gpiopath" mapstructure:"gpiopath"`     // sysfs gpio root, /sys/class/gpio
	TriggerPin int    `yaml:"triggerpin" mapstructure:"triggerpin"` // ultrasonic trigger output
	EchoPin    int    `yaml:"echopin" mapstructure:"echopin"`       // ultrasonic echo input
	PIRPin     int    `yaml:"pirpin" mapstructure:"pirpin"`         // passive infrared motion input
	ADCPath    string `yaml:"adcpath" mapstructure:"adcpath"`       // IIO raw channel of the light sensor
}

// EdgeSettings controls the detection cycle on the edge node
type EdgeSettings struct {
	CycleInterval         time.Duration    `yaml:"cycleinterval" mapstructure:"cycleinterval"`                 // sleep between detection cycles
	KeepAliveProbability  float64          `yaml:"keepaliveprobability" mapstructure:"keepaliveprobability"`   // chance of a motion=0 publish on idle cycles
	EchoTimeout           time.Duration    `yaml:"echotimeout" mapstructure:"echotimeout"`                     // bound for each echo busy-wait
	Simulate              bool             `yaml:"simulate" mapstructure:"simulate"`                           // use simulated sensors
	SimulationProbability float64          `yaml:"simulationprobability" mapstructure:"simulationprobability"` // chance a simulated reading is an in-band animal
	MotionProbability     float64          `yaml:"motionprobability" mapstructure:"motionprobability"`         // chance the simulated PIR fires
	Hardware              HardwareSettings `yaml:"hardware" mapstructure:"hardware"`
}

// SpeciesEntry is one row of the species activity table
type SpeciesEntry struct {
	ID       int    `yaml:"id" mapstructure:"id"`
	Name     string `yaml:"name" mapstructure:"name"`
	Activity string `yaml:"activity" mapstructure:"activity"` // nocturnal, diurnal, crepuscular or any
}

// ClassifierSettings holds plausibility and light thresholds. Light is on the
// inverted scale: 0 is brightest, MaxLight darkest.
type ClassifierSettings struct {
	MinPlausible float64        `yaml:"minplausible" mapstructure:"minplausible"` // exclusive lower distance bound, cm
	MaxPlausible float64        `yaml:"maxplausible" mapstructure:"maxplausible"` // exclusive upper distance bound, cm
	MinIdentify  float64        `yaml:"minidentify" mapstructure:"minidentify"`   // inclusive lower bound for species inference
	MaxIdentify  float64        `yaml:"maxidentify" mapstructure:"maxidentify"`   // inclusive upper bound for species inference
	PeakDaylight int            `yaml:"peakdaylight" mapstructure:"peakdaylight"` // light below this suppresses detections
	Dark         int            `yaml:"dark" mapstructure:"dark"`                 // light above this is the nocturnal window
	Bright       int            `yaml:"bright" mapstructure:"bright"`             // light below this is the diurnal window
	Species      []SpeciesEntry `yaml:"species" mapstructure:"species"`
}

// ThingSpeakSettings configures the remote feed store
type ThingSpeakSettings struct {
	BaseURL       string        `yaml:"baseurl" mapstructure:"baseurl"`
	ChannelID     string        `yaml:"channelid" mapstructure:"channelid"`
	ReadKey       string        `yaml:"readkey" mapstructure:"readkey"`
	WriteKey      string        `yaml:"writekey" mapstructure:"writekey"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`             // connect and read budget per call
	Pace          bool          `yaml:"pace" mapstructure:"pace"`                   // enforce the write ceiling locally
	WriteInterval time.Duration `yaml:"writeinterval" mapstructure:"writeinterval"` // one accepted write per interval
}

// PollerSettings controls the server side reconcile loop
type PollerSettings struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	Results  int           `yaml:"results" mapstructure:"results"` // records requested per poll, 1..8000
}

// IngestSettings decides how remote records are enriched
type IngestSettings struct {
	RederiveFalsePositive bool `yaml:"rederivefalsepositive" mapstructure:"rederivefalsepositive"` // recompute the flag from raw distance and light
	RequireSpecies        bool `yaml:"requirespecies" mapstructure:"requirespecies"`               // valid detections must carry a known species
}

// TimeOfDaySettings selects the bucketing policy for the whole deployment
type TimeOfDaySettings struct {
	Policy     string  `yaml:"policy" mapstructure:"policy"`         // auto, hour, light or sun
	NightBelow int     `yaml:"nightbelow" mapstructure:"nightbelow"` // light policy: Night under this level
	DayAbove   int     `yaml:"dayabove" mapstructure:"dayabove"`     // light policy: Day over this level
	Latitude   float64 `yaml:"latitude" mapstructure:"latitude"`     // sun policy observer
	Longitude  float64 `yaml:"longitude" mapstructure:"longitude"`
}

// SQLiteSettings contains settings for the SQLite sighting store
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// MySQLSettings contains settings for a shared MySQL sighting store
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     string `yaml:"port" mapstructure:"port"`
}

// OutputSettings selects the local store
type OutputSettings struct {
	SQLite SQLiteSettings `yaml:"sqlite" mapstructure:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql" mapstructure:"mysql"`
}

// WebServerSettings configures the dashboard API
type WebServerSettings struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Listen      string `yaml:"listen" mapstructure:"listen"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`
	RecentLimit int    `yaml:"recentlimit" mapstructure:"recentlimit"` // default row count for /api/data
}

// MQTTSettings configures sighting fan-out
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Broker   string `yaml:"broker" mapstructure:"broker"`
	Topic    string `yaml:"topic" mapstructure:"topic"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Retain   bool   `yaml:"retain" mapstructure:"retain"`
}

// NotificationSettings configures watched-species alerts
type NotificationSettings struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	URLs    []string `yaml:"urls" mapstructure:"urls"`       // shoutrrr service urls
	Species []string `yaml:"species" mapstructure:"species"` // species names that trigger an alert
}

// TelemetrySettings exposes Prometheus metrics on a dedicated listener
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Listen  string `yaml:"listen" mapstructure:"listen"`
}

// SentrySettings enables error reporting
type SentrySettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
}

// Settings contains all configuration options
type Settings struct {
	Debug bool `yaml:"debug" mapstructure:"debug"`

	Main         MainSettings         `yaml:"main" mapstructure:"main"`
	Edge         EdgeSettings         `yaml:"edge" mapstructure:"edge"`
	Classifier   ClassifierSettings   `yaml:"classifier" mapstructure:"classifier"`
	ThingSpeak   ThingSpeakSettings   `yaml:"thingspeak" mapstructure:"thingspeak"`
	Poller       PollerSettings       `yaml:"poller" mapstructure:"poller"`
	Ingest       IngestSettings       `yaml:"ingest" mapstructure:"ingest"`
	TimeOfDay    TimeOfDaySettings    `yaml:"timeofday" mapstructure:"timeofday"`
	Output       OutputSettings       `yaml:"output" mapstructure:"output"`
	WebServer    WebServerSettings    `yaml:"webserver" mapstructure:"webserver"`
	MQTT         MQTTSettings         `yaml:"mqtt" mapstructure:"mqtt"`
	Notification NotificationSettings `yaml:"notification" mapstructure:"notification"`
	Telemetry    TelemetrySettings    `yaml:"telemetry" mapstructure:"telemetry"`
	Sentry       SentrySettings       `yaml:"sentry" mapstructure:"sentry"`

	Logging logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex

	// configFileOverride is set from the --config flag
	configFileOverride string
)

// SetConfigFile makes Load read path instead of searching the default locations.
func SetConfigFile(path string) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	configFileOverride = path
}

// Load reads the configuration file and environment variables into a new Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper registers defaults and env bindings, then reads the config file.
func initViper() error {
	viper.SetConfigType("yaml")
	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		return err
	}

	if configFileOverride != "" {
		viper.SetConfigFile(configFileOverride)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFileOverride, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml to the first default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, defaultConfig, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	return viper.ReadInConfig()
}

// getDefaultConfig reads the embedded config.yaml
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading it on first use.
// A load failure here is unrecoverable, the caller has no settings to run with.
func Setting() *Settings {
	once.Do(func() {
		if GetSettings() == nil {
			if _, err := Load(); err != nil {
				GetLogger().Error("failed to load settings", logger.Error(err))
				os.Exit(1)
			}
		}
	})
	return GetSettings()
}

// SaveSettings writes the current settings back to the config file in use
func SaveSettings() error {
	settingsMutex.RLock()
	settingsCopy := *settingsInstance
	settingsMutex.RUnlock()

	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		var err error
		if configPath, err = FindConfigFile(); err != nil {
			return fmt.Errorf("error finding config file: %w", err)
		}
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	GetLogger().Info("settings saved", logger.String("path", configPath))
	return nil
}

// SaveYAMLConfig writes settings to configPath via a temp file and rename.
// Comments and key order of the existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := moveFile(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
