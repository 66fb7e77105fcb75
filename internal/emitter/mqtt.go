// Package emitter forwards gesture events to external transports.
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/phantomhand/internal/event"
)

var ErrNotConnected = errors.New("mqtt not connected")

// Config configures the MQTT emitter. An empty Broker disables it.
type Config struct {
	Broker         string        `yaml:"broker"` // host:port or a full URL
	ClientID       string        `yaml:"client_id"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	QoS            byte          `yaml:"qos"`
	SkipHold       bool          `yaml:"skip_hold"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// DefaultConfig returns the defaults. Hold ticks are skipped because they
// arrive every frame.
func DefaultConfig() Config {
	return Config{
		ClientID:       "phantomhand",
		TopicPrefix:    "phantomhand",
		SkipHold:       true,
		ConnectTimeout: 5 * time.Second,
		PublishTimeout: 2 * time.Second,
	}
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool {
	return c.Broker != ""
}

// Stats counts published messages. Published is keyed by event kind.
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

// MQTT publishes events as JSON to <prefix>/<hand>/<kind>.
type MQTT struct {
	cfg       Config
	newClient func(*mqtt.ClientOptions) mqtt.Client
	client    mqtt.Client

	mu        sync.RWMutex
	connected bool
	published map[string]uint64
	errors    uint64
}

// NewMQTT creates an unconnected emitter.
func NewMQTT(cfg Config) *MQTT {
	return &MQTT{
		cfg:       cfg,
		newClient: mqtt.NewClient,
		published: make(map[string]uint64),
	}
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Connect dials the broker. Later connection losses are retried in the
// background.
func (m *MQTT) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(m.cfg.Broker))
	opts.SetClientID(m.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		m.setConnected(true)
		slog.Info("mqtt connected", "broker", m.cfg.Broker, "client_id", m.cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.setConnected(false)
		slog.Warn("mqtt connection lost, reconnecting", "broker", m.cfg.Broker, "error", err)
	}

	m.client = m.newClient(opts)

	slog.Info("connecting to mqtt broker", "broker", m.cfg.Broker)
	token := m.client.Connect()

	timeout := m.cfg.ConnectTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connect to %s: timed out after %s", m.cfg.Broker, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", m.cfg.Broker, err)
	}

	m.setConnected(true)
	return nil
}

// Topic returns the topic an event is published to.
func (m *MQTT) Topic(e event.Event) string {
	hand := e.HandID
	if hand == "" {
		hand = "unknown"
	}
	return fmt.Sprintf("%s/%s/%s", m.cfg.TopicPrefix, hand, e.Kind)
}

// Handle publishes e. It is an event.Handler.
func (m *MQTT) Handle(e event.Event) error {
	if m.cfg.SkipHold && e.Kind == event.Hold {
		return nil
	}
	if !m.isConnected() {
		m.countError()
		return ErrNotConnected
	}

	payload, err := json.Marshal(e)
	if err != nil {
		m.countError()
		return fmt.Errorf("marshal event: %w", err)
	}

	topic := m.Topic(e)
	token := m.client.Publish(topic, m.cfg.QoS, false, payload)
	if !token.WaitTimeout(m.cfg.PublishTimeout) {
		m.countError()
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		m.countError()
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	m.mu.Lock()
	m.published[e.Kind.String()]++
	m.mu.Unlock()

	slog.Debug("event published", "topic", topic, "size", len(payload))
	return nil
}

// Disconnect closes the connection.
func (m *MQTT) Disconnect() {
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
		slog.Info("mqtt disconnected")
	}
	m.setConnected(false)
}

// Stats returns a copy of the counters.
func (m *MQTT) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	published := make(map[string]uint64, len(m.published))
	for k, v := range m.published {
		published[k] = v
	}
	return Stats{Connected: m.connected, Published: published, Errors: m.errors}
}

func (m *MQTT) setConnected(c bool) {
	m.mu.Lock()
	m.connected = c
	m.mu.Unlock()
}

func (m *MQTT) isConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *MQTT) countError() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}
