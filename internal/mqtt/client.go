package mqtt

import (
	"context"
	"fmt"
	"log/slog"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jmylchreest/wakelightd/internal/config"
)

// Publisher is the broker capability the forwarder needs
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Client is a paho connection that announces the daemon's availability
type Client struct {
	client   pahomqtt.Client
	topics   Topics
	qos      byte
	clientID string
	logger   *slog.Logger
}

// Connect opens a connection to the configured broker. It waits until the broker
// accepts the connection or ctx ends; paho keeps reconnecting afterwards.
func Connect(ctx context.Context, cfg config.MQTTConfig, topics Topics, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		topics:   topics,
		qos:      cfg.QoS,
		clientID: cfg.ClientID,
		logger:   logger,
	}

	opts := buildClientOptions(cfg, topics)
	opts.SetOnConnectHandler(func(pc pahomqtt.Client) {
		logger.Info("mqtt: connected to broker", "broker", cfg.Broker)
		pc.Publish(topics.Status(), c.qos, true, buildStatusPayload(StatusOnline, c.clientID, ""))
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt: connection lost", "error", err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		logger.Info("mqtt: reconnecting", "broker", cfg.Broker)
	})

	c.client = pahomqtt.NewClient(opts)
	logger.Info("mqtt: connecting to broker", "broker", cfg.Broker, "client_id", cfg.ClientID)

	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	token := c.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
	case <-ctx.Done():
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	}
	return c, nil
}

// Publish sends a message and waits for the broker to acknowledge it
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if !c.client.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	c.logger.Debug("mqtt: published", "topic", topic, "size", len(payload))
	return nil
}

// Close marks the daemon offline and disconnects
func (c *Client) Close() {
	if c.client.IsConnected() {
		payload := buildStatusPayload(StatusOffline, c.clientID, "graceful_shutdown")
		if err := c.Publish(c.topics.Status(), c.qos, true, payload); err != nil {
			c.logger.Warn("mqtt: failed to publish offline status", "error", err)
		}
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.logger.Info("mqtt: disconnected")
}
