// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		// Remote feed store credentials, usually injected by the container runtime
		{"thingspeak.channelid", "WILDLIFE_THINGSPEAK_CHANNEL_ID", validateEnvChannelID},
		{"thingspeak.readkey", "WILDLIFE_THINGSPEAK_READ_KEY", validateEnvAPIKey},
		{"thingspeak.writekey", "WILDLIFE_THINGSPEAK_WRITE_KEY", validateEnvAPIKey},
		{"thingspeak.baseurl", "WILDLIFE_THINGSPEAK_URL", validateEnvURL},

		{"output.sqlite.path", "WILDLIFE_DB_PATH", validateEnvPath},
		{"mqtt.broker", "WILDLIFE_MQTT_BROKER", validateEnvBroker},
		{"webserver.listen", "WILDLIFE_LISTEN", validateEnvListen},
		{"sentry.dsn", "WILDLIFE_SENTRY_DSN", validateEnvURL},

		{"edge.simulate", "WILDLIFE_SIMULATE", validateEnvBool},
		{"debug", "WILDLIFE_DEBUG", validateEnvBool},
	}
}

// bindEnvVars sets up environment variable bindings. All invalid values are
// reported together in one error.
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s: %v", binding.EnvVar, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

// ThingSpeak channel ids are positive integers
func validateEnvChannelID(value string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("channel id must be a positive integer")
	}
	return nil
}

var apiKeyPattern = regexp.MustCompile(`^[A-Za-z0-9]{16}$`)

// validateEnvAPIKey never echoes the value, it is a credential
func validateEnvAPIKey(value string) error {
	if !apiKeyPattern.MatchString(strings.TrimSpace(value)) {
		return fmt.Errorf("api key must be 16 alphanumeric characters (got %d characters)", len(strings.TrimSpace(value)))
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url must include scheme and host")
	}
	return nil
}

func validateEnvBroker(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid broker url: %w", err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
	default:
		return fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("broker url must include a host")
	}
	return nil
}

func validateEnvListen(value string) error {
	_, port, err := net.SplitHostPort(value)
	if err != nil {
		return fmt.Errorf("listen address must be host:port: %w", err)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %q", port)
	}
	return nil
}

func validateEnvPath(value string) error {
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("path contains a null byte")
	}
	if filepath.Clean(value) == "." {
		return fmt.Errorf("path must not be empty")
	}
	return nil
}
