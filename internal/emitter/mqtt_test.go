package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/phantomhand/internal/event"
)

type fakeToken struct {
	mqtt.Token
	done bool
	err  error
}

func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mqtt.Client

	mu         sync.Mutex
	connectTok *fakeToken
	publishTok *fakeToken
	messages   []published
	connected  bool
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = c.connectTok.err == nil
	return c.connectTok
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic, qos, payload.([]byte)})
	return c.publishTok
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func newTestEmitter(t *testing.T, client *fakeClient) *MQTT {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Broker = "localhost:1883"
	m := NewMQTT(cfg)
	m.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		assert.Equal(t, "tcp://localhost:1883", opts.Servers[0].String())
		assert.Equal(t, "phantomhand", opts.ClientID)
		return client
	}
	return m
}

func okClient() *fakeClient {
	return &fakeClient{
		connectTok: &fakeToken{done: true},
		publishTok: &fakeToken{done: true},
	}
}

func TestMQTTPublishesEvents(t *testing.T) {
	client := okClient()
	m := newTestEmitter(t, client)
	require.NoError(t, m.Connect(context.Background()))

	e := event.New(event.Enter, "pinch", "left", 1200)
	e.Confidence = 0.9
	require.NoError(t, m.Handle(e))

	require.Len(t, client.messages, 1)
	msg := client.messages[0]
	assert.Equal(t, "phantomhand/left/enter", msg.topic)

	var decoded event.Event
	require.NoError(t, json.Unmarshal(msg.payload, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, event.Enter, decoded.Kind)
	assert.Equal(t, "pinch", decoded.Gesture)

	stats := m.Stats()
	assert.True(t, stats.Connected)
	assert.Equal(t, map[string]uint64{"enter": 1}, stats.Published)

	require.NoError(t, m.Handle(event.New(event.Enter, "open", "right", 1300)))
	require.NoError(t, m.Handle(event.New(event.Exit, "open", "right", 1400)))
	assert.Equal(t, map[string]uint64{"enter": 2, "exit": 1}, m.Stats().Published)

	m.Disconnect()
	assert.False(t, m.Stats().Connected)
}

func TestMQTTSkipsHold(t *testing.T) {
	client := okClient()
	m := newTestEmitter(t, client)
	require.NoError(t, m.Connect(context.Background()))

	require.NoError(t, m.Handle(event.New(event.Hold, "point", "right", 0)))
	assert.Empty(t, client.messages)

	m.cfg.SkipHold = false
	require.NoError(t, m.Handle(event.New(event.Hold, "point", "right", 0)))
	assert.Len(t, client.messages, 1)
}

func TestMQTTNotConnected(t *testing.T) {
	m := NewMQTT(DefaultConfig())
	err := m.Handle(event.New(event.Exit, "ok", "right", 0))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, uint64(1), m.Stats().Errors)
}

func TestMQTTConnectFailures(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		client := okClient()
		client.connectTok = &fakeToken{done: false}
		m := newTestEmitter(t, client)
		assert.ErrorContains(t, m.Connect(context.Background()), "timed out")
	})

	t.Run("refused", func(t *testing.T) {
		client := okClient()
		client.connectTok = &fakeToken{done: true, err: errors.New("connection refused")}
		m := newTestEmitter(t, client)
		assert.ErrorContains(t, m.Connect(context.Background()), "connection refused")
		assert.False(t, m.Stats().Connected)
	})
}

func TestMQTTPublishFailures(t *testing.T) {
	client := okClient()
	m := newTestEmitter(t, client)
	require.NoError(t, m.Connect(context.Background()))

	client.publishTok = &fakeToken{done: false}
	assert.ErrorContains(t, m.Handle(event.New(event.Enter, "ok", "right", 0)), "timed out")

	client.publishTok = &fakeToken{done: true, err: errors.New("not authorized")}
	assert.ErrorContains(t, m.Handle(event.New(event.Enter, "ok", "right", 0)), "not authorized")

	assert.Equal(t, uint64(2), m.Stats().Errors)
}

func TestTopic(t *testing.T) {
	m := NewMQTT(Config{TopicPrefix: "home/desk"})
	assert.Equal(t, "home/desk/right/slide", m.Topic(event.New(event.Slide, "slide_up", "right", 0)))
	assert.Equal(t, "home/desk/unknown/exit", m.Topic(event.New(event.Exit, "ok", "", 0)))
}

func TestBrokerURL(t *testing.T) {
	assert.Equal(t, "tcp://host:1883", brokerURL("host:1883"))
	assert.Equal(t, "ssl://host:8883", brokerURL("ssl://host:8883"))
	assert.False(t, Config{}.Enabled())
}
