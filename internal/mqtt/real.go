package mqtt

import (
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // Base topic, events go to <topic>/events
	QoS      byte
	Retain   bool
	Location string // Included in system payloads
}

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	opts   Options
	logger *slog.Logger
}

// NewRealPublisher creates a publisher connected to the configured broker.
// An OFFLINE last will is registered on the system topic.
func NewRealPublisher(opts Options, logger *slog.Logger) (*RealPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventOffline,
		Location:  opts.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(JoinTopic(opts.Topic, SystemSuffix), string(will), 1, true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", "broker", opts.Broker, "error", err)
		}).
		SetOnConnectHandler(func(_ paho.Client) {
			logger.Info("mqtt connected", "broker", opts.Broker)
		})
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	client := paho.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealPublisher{
		client: client,
		opts:   opts,
		logger: logger,
	}, nil
}

// PublishAnnouncement sends a channel event to <topic>/events.
func (p *RealPublisher) PublishAnnouncement(event AnnouncementEvent) error {
	payload, err := FormatAnnouncementPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(JoinTopic(p.opts.Topic, EventsSuffix), p.opts.QoS, p.opts.Retain, payload)
}

// PublishSystem sends a lifecycle event to <topic>/system.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	if event.Location == "" {
		event.Location = p.opts.Location
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// Lifecycle events are at-least-once regardless of the configured QoS
	return p.publish(JoinTopic(p.opts.Topic, SystemSuffix), 1, event.Retained, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the client currently holds a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
