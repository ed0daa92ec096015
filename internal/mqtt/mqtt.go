// Package mqtt publishes newly stored sightings to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/tphakala/wildlife-go/internal/logger"
)

const componentName = "mqtt"

// Client defines the MQTT operations the sighting publisher needs.
type Client interface {
	// Connect resolves the broker and connects. It returns an error if the
	// connection fails or a previous attempt is too recent.
	Connect(ctx context.Context) error

	// Publish sends payload to topic.
	Publish(ctx context.Context, topic string, payload string) error

	// IsConnected reports whether the broker connection is up.
	IsConnected() bool

	// Disconnect closes the connection and stops reconnect attempts.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	Topic             string
	Retain            bool
	ReconnectCooldown time.Duration
	ReconnectDelay    time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		ReconnectCooldown: 5 * time.Second,
		ReconnectDelay:    1 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

func getLogger() logger.Logger {
	return logger.Global().Module(componentName)
}
