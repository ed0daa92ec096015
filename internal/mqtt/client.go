package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/logger"
	"github.com/tphakala/wildlife-go/internal/observability/metrics"
)

const maxReconnectBackoff = 5 * time.Minute

var (
	ErrNotConnected      = errors.NewStd("not connected to MQTT broker")
	ErrConnectTooRecent  = errors.NewStd("connection attempt too recent")
	ErrOperationTimedOut = errors.NewStd("mqtt operation timed out")
)

// client implements the Client interface on top of paho.
type client struct {
	config          Config
	internalClient  paho.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	reconnectTimer  *time.Timer
	reconnectStop   chan struct{}
	stopOnce        sync.Once
	metrics         *metrics.MQTTMetrics
	log             logger.Logger
}

// NewClient creates an MQTT client from settings. m may be nil.
func NewClient(settings *conf.Settings, m *metrics.MQTTMetrics) (Client, error) {
	if settings.MQTT.Broker == "" {
		return nil, errors.Newf("mqtt broker is not configured").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}
	cfg := DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.ClientID = settings.Main.NodeID
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	cfg.Topic = settings.MQTT.Topic
	cfg.Retain = settings.MQTT.Retain
	return newClient(cfg, m), nil
}

func newClient(cfg Config, m *metrics.MQTTMetrics) *client {
	return &client{
		config:        cfg,
		reconnectStop: make(chan struct{}),
		metrics:       m,
		log:           getLogger(),
	}
}

// Connect attempts to establish a connection to the MQTT broker.
// The broker host is resolved first so DNS failures surface immediately.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return fmt.Errorf("%w, last attempt was %v ago", ErrConnectTooRecent, since.Round(time.Millisecond))
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return c.connError(fmt.Errorf("invalid broker URL: %w", err))
	}
	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return c.connError(fmt.Errorf("failed to resolve hostname %s: %w", host, err))
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetConnectRetry(true)

	c.internalClient = paho.NewClient(opts)

	if err := c.wait(ctx, c.internalClient.Connect(), c.config.ConnectTimeout); err != nil {
		return c.connError(err)
	}
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(true)
	}
	return nil
}

// Publish sends a message to the specified topic on the MQTT broker.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.IsConnected() {
		return errors.New(ErrNotConnected).
			Component(componentName).
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	start := time.Now()
	token := c.internalClient.Publish(topic, 0, c.config.Retain, payload)
	err := c.wait(ctx, token, c.config.PublishTimeout)
	if c.metrics != nil {
		c.metrics.ObservePublishLatency(time.Since(start))
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.IncrementErrors()
		}
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	if c.metrics != nil {
		c.metrics.IncrementMessagesDelivered()
		c.metrics.ObserveMessageSize(float64(len(payload)))
	}
	c.log.Debug("message published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker. It is safe to call
// more than once.
func (c *client) Disconnect() {
	c.stopOnce.Do(func() { close(c.reconnectStop) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		if c.metrics != nil {
			c.metrics.UpdateConnectionStatus(false)
		}
	}
}

// wait blocks until the token completes, ctx ends or timeout passes
func (c *client) wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrOperationTimedOut
	}
}

func (c *client) connError(err error) error {
	if c.metrics != nil {
		c.metrics.IncrementErrors()
	}
	return errors.New(err).
		Component(componentName).
		Category(errors.CategoryMQTTConnection).
		Context("broker", logger.RedactSensitiveData(c.config.Broker)).
		Build()
}

func (c *client) onConnect(paho.Client) {
	c.log.Info("connected to MQTT broker", logger.String("broker", logger.RedactSensitiveData(c.config.Broker)))
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(true)
	}
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost",
		logger.String("broker", logger.RedactSensitiveData(c.config.Broker)),
		logger.Error(err))
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(false)
		c.metrics.IncrementErrors()
	}
	c.startReconnectTimer()
}

func (c *client) startReconnectTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectTimer = time.AfterFunc(c.config.ReconnectDelay, func() {
		select {
		case <-c.reconnectStop:
			return
		default:
			c.reconnectWithBackoff()
		}
	})
}

func (c *client) reconnectWithBackoff() {
	backoff := time.Second
	for {
		if c.metrics != nil {
			c.metrics.IncrementReconnectAttempts()
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			c.log.Info("reconnected to MQTT broker")
			return
		}

		c.log.Warn("failed to reconnect to MQTT broker",
			logger.Error(err),
			logger.Duration("retry_in", backoff))

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnectBackoff)
		case <-c.reconnectStop:
			return
		}
	}
}
