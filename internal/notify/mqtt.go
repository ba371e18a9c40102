// Package notify delivers absence alerts to an MQTT broker.
//
// Each Notify call is a self-contained connect/publish/disconnect
// cycle. Delivery is best-effort: failures are returned for the caller
// to log but are never fatal to the watch loop.
package notify

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// publishAttempts bounds how many times one Notify call retries the
// publish before giving up.
const publishAttempts = 5

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
)

// Notifier delivers a single message to a topic, best-effort.
type Notifier interface {
	Notify(topic, message string) error
}

// MQTTNotifierConfig configures an MQTTNotifier.
type MQTTNotifierConfig struct {
	Broker   string
	Port     int
	ClientID string

	// ConnectTimeout bounds the broker connection attempt. Defaults to 10s.
	ConnectTimeout time.Duration
	// PublishTimeout bounds each publish acknowledgment wait. Defaults to 5s.
	PublishTimeout time.Duration

	Logger *zap.Logger
}

// MQTTNotifier publishes messages to an MQTT broker. A fresh connection
// is opened per call and torn down before returning, so the notifier
// holds no broker state between absence episodes.
type MQTTNotifier struct {
	broker         string
	port           int
	clientID       string
	connectTimeout time.Duration
	publishTimeout time.Duration
	logger         *zap.Logger

	// newClient is swapped in tests to avoid network access.
	newClient func(opts *mqtt.ClientOptions) mqtt.Client
}

// Compile-time interface guard.
var _ Notifier = (*MQTTNotifier)(nil)

// NewMQTTNotifier creates an MQTT notifier.
func NewMQTTNotifier(cfg MQTTNotifierConfig) *MQTTNotifier {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &MQTTNotifier{
		broker:         cfg.Broker,
		port:           cfg.Port,
		clientID:       cfg.ClientID,
		connectTimeout: cfg.ConnectTimeout,
		publishTimeout: cfg.PublishTimeout,
		logger:         cfg.Logger,
		newClient:      mqtt.NewClient,
	}
}

// Notify connects to the broker, publishes message to topic with up to
// five attempts, and disconnects. The connection itself is attempted
// once; only the publish is retried.
func (n *MQTTNotifier) Notify(topic, message string) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", n.broker, n.port))
	opts.SetClientID(n.clientID)
	opts.SetConnectTimeout(n.connectTimeout)
	opts.SetAutoReconnect(false)
	opts.OnConnect = func(_ mqtt.Client) {
		n.logger.Info("connected to MQTT broker",
			zap.String("broker", n.broker),
			zap.Int("port", n.port),
		)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		n.logger.Warn("MQTT connection lost", zap.Error(err))
	}

	client := n.newClient(opts)
	// Disconnect unconditionally: a Connect that outlives WaitTimeout can
	// still complete against a slow broker, and its goroutines must not
	// be abandoned.
	defer client.Disconnect(250)

	token := client.Connect()
	if !token.WaitTimeout(n.connectTimeout) {
		return fmt.Errorf("connect to %s:%d: timed out after %s", n.broker, n.port, n.connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s:%d: %w", n.broker, n.port, err)
	}

	for attempt := 1; attempt <= publishAttempts; attempt++ {
		pub := client.Publish(topic, 0, false, message)
		if pub.WaitTimeout(n.publishTimeout) && pub.Error() == nil {
			n.logger.Info("message published",
				zap.String("topic", topic),
				zap.String("message", message),
				zap.Int("attempt", attempt),
			)
			return nil
		}
		n.logger.Warn("publish failed",
			zap.String("topic", topic),
			zap.Int("attempt", attempt),
			zap.Error(pub.Error()),
		)
	}

	return fmt.Errorf("publish to %q failed after %d attempts", topic, publishAttempts)
}
