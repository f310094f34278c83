// Package mqtt implements the MQTT channel for bmo.
//
// MQTT suits home-automation setups where a dashboard or voice satellite
// already talks to a broker. Operator messages arrive as JSON on
// <topic>/in and bmo publishes replies and alerts as JSON on <topic>/out.
// Inbound payloads must carry the configured shared token; the broker's own
// ACLs decide who may subscribe to <topic>/out.
package mqtt

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/nadzzz/bmo/internal/config"
	"github.com/nadzzz/bmo/internal/message"
)

const (
	qos            = 1
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var (
	// ErrNotConnected is returned when sending before the broker connection is up.
	ErrNotConnected = errors.New("mqtt: not connected")
	// ErrUnauthorized is returned for inbound payloads without the shared token.
	ErrUnauthorized = errors.New("mqtt: missing or wrong token")
)

// Channel implements channel.Channel over MQTT.
type Channel struct {
	cfg      config.MQTTConfig
	operator int64

	mu     sync.Mutex
	client paho.Client
}

// New creates a new MQTT channel. The broker connection is opened by Listen.
// Authenticated messages are attributed to operator.
func New(cfg config.MQTTConfig, operator int64) *Channel {
	return &Channel{cfg: cfg, operator: operator}
}

// Name returns the channel identifier.
func (c *Channel) Name() string { return "mqtt" }

func (c *Channel) inTopic() string  { return c.cfg.Topic + "/in" }
func (c *Channel) outTopic() string { return c.cfg.Topic + "/out" }

// Listen connects to the broker, subscribes to the inbound topic, and
// enqueues every valid message as an event. It blocks until the context
// is cancelled.
func (c *Channel) Listen(ctx context.Context, events chan<- message.Event) error {
	onMessage := func(_ paho.Client, m paho.Message) {
		ev, err := c.decodeInbound(m.Payload())
		if err != nil {
			slog.Warn("mqtt message rejected", "topic", m.Topic(), "error", err)
			return
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	opts := paho.NewClientOptions().
		AddBroker(c.cfg.Broker).
		SetClientID(c.cfg.ClientID).
		SetUsername(c.cfg.Username).
		SetPassword(c.cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)

	// Subscribing in the connect handler restores the subscription after reconnects.
	opts.SetOnConnectHandler(func(client paho.Client) {
		token := client.Subscribe(c.inTopic(), qos, onMessage)
		if !token.WaitTimeout(connectTimeout) || token.Error() != nil {
			slog.Error("mqtt subscribe failed", "topic", c.inTopic(), "error", token.Error())
			return
		}
		slog.Info("mqtt subscribed", "topic", c.inTopic())
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		slog.Warn("mqtt connection lost", "error", err)
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect %s: timed out", c.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", c.cfg.Broker, err)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	slog.Info("mqtt channel listening", "broker", c.cfg.Broker, "topic", c.cfg.Topic)
	<-ctx.Done()
	slog.Info("mqtt channel shutting down")
	return c.Close()
}

// SendText publishes a text message on the outbound topic.
func (c *Channel) SendText(ctx context.Context, chatID int64, text string) error {
	return c.publish(ctx, message.Outbound{ChatID: chatID, Text: text, Timestamp: time.Now()})
}

// SendPhoto publishes a photo (base64 in JSON) on the outbound topic.
func (c *Channel) SendPhoto(ctx context.Context, chatID int64, image []byte, caption string) error {
	return c.publish(ctx, message.Outbound{ChatID: chatID, Image: image, Caption: caption, Timestamp: time.Now()})
}

func (c *Channel) publish(ctx context.Context, out message.Outbound) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil || !client.IsConnectionOpen() {
		return ErrNotConnected
	}

	payload, err := encodeOutbound(out)
	if err != nil {
		return err
	}

	token := client.Publish(c.outTopic(), qos, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("mqtt publish to %s: timed out", c.outTopic())
	}

	slog.Debug("mqtt publish", "topic", c.outTopic(), "bytes", len(payload))
	return nil
}

// Close disconnects from the MQTT broker.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Disconnect(250)
		c.client = nil
	}
	return nil
}

// inbound is the payload published on the inbound topic.
type inbound struct {
	Token string `json:"token"`
	message.Inbound
}

// decodeInbound parses and authenticates an operator message published on
// the inbound topic. An empty configured token rejects everything.
func (c *Channel) decodeInbound(payload []byte) (message.Event, error) {
	var in inbound
	if err := json.Unmarshal(payload, &in); err != nil {
		return message.Event{}, fmt.Errorf("invalid json: %w", err)
	}
	if c.cfg.Token == "" || subtle.ConstantTimeCompare([]byte(in.Token), []byte(c.cfg.Token)) != 1 {
		return message.Event{}, ErrUnauthorized
	}
	if strings.TrimSpace(in.Text) == "" {
		return message.Event{}, errors.New("text is required")
	}
	return in.Event(c.Name(), c.operator), nil
}

func encodeOutbound(out message.Outbound) ([]byte, error) {
	payload, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("mqtt encode: %w", err)
	}
	return payload, nil
}
