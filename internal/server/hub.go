package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ayusman/phantomhand/internal/event"
	"github.com/ayusman/phantomhand/internal/pipeline"
)

// Websocket message types.
const (
	MsgConnected     = "connected"
	MsgGestureEvent  = "gesture_event"
	MsgFrameData     = "frame_data"
	MsgPong          = "pong"
	MsgActiveChanged = "active_changed"
	MsgError         = "error"

	MsgPing      = "ping"
	MsgSetActive = "set_active"
)

const (
	clientQueueSize = 32
	writeWait       = 2 * time.Second
	maxMessageSize  = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Message is the envelope of every outbound websocket message.
type Message struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

type inbound struct {
	Type   string `json:"type"`
	Active *bool  `json:"active"`
}

// Activation toggles gesture control.
type Activation interface {
	Active() bool
	SetActive(active bool) error
}

type frameData struct {
	pipeline.FrameResult
	Active bool `json:"active"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts events and per-frame hand data to websocket clients.
// Each client has a bounded queue; a slow client loses messages rather
// than stalling the broadcaster.
type Hub struct {
	activation Activation

	mu      sync.RWMutex
	clients map[*client]struct{}

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewHub creates a Hub. activation may be nil, in which case set_active
// requests are refused.
func NewHub(activation Activation) *Hub {
	return &Hub{
		activation: activation,
		clients:    make(map[*client]struct{}),
	}
}

// ServeHTTP handles websocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientQueueSize),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Info("websocket client connected", "client", c.id, "remote", r.RemoteAddr)

	h.sendTo(c, MsgConnected, map[string]any{"client_id": c.id, "active": h.active()})

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(c)
	}()

	h.readPump(c)

	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()

	<-done
	conn.Close()
	slog.Info("websocket client disconnected", "client", c.id)
}

func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendTo(c, MsgError, map[string]string{"message": "invalid JSON"})
			continue
		}

		switch msg.Type {
		case MsgPing:
			h.sendTo(c, MsgPong, nil)
		case MsgSetActive:
			if err := h.setActive(msg.Active); err != nil {
				h.sendTo(c, MsgError, map[string]string{"message": err.Error()})
			}
		default:
			slog.Debug("ignoring websocket message", "client", c.id, "type", msg.Type)
		}
	}
}

func (h *Hub) writePump(c *client) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("websocket write failed", "client", c.id, "error", err)
			// Unblocks readPump, which unregisters the client.
			c.conn.Close()
			for range c.send {
			}
			return
		}
		h.sent.Add(1)
	}
}

func (h *Hub) setActive(active *bool) error {
	if active == nil {
		return errors.New("set_active requires a boolean active field")
	}
	if h.activation == nil {
		return errors.New("activation is not available")
	}
	return h.activation.SetActive(*active)
}

func (h *Hub) active() bool {
	return h.activation != nil && h.activation.Active()
}

func encode(msgType string, data any) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Timestamp: time.Now().UnixMilli(), Data: data})
}

func (h *Hub) sendTo(c *client, msgType string, data any) {
	payload, err := encode(msgType, data)
	if err != nil {
		slog.Error("encode websocket message", "type", msgType, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.offer(c, payload)
}

func (h *Hub) offer(c *client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.dropped.Add(1)
	}
}

// Broadcast sends a message to every connected client.
func (h *Hub) Broadcast(msgType string, data any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	payload, err := encode(msgType, data)
	if err != nil {
		slog.Error("encode websocket message", "type", msgType, "error", err)
		return
	}
	for c := range h.clients {
		h.offer(c, payload)
	}
}

// HandleEvent broadcasts a gesture event. It is an event.Handler.
func (h *Hub) HandleEvent(e event.Event) error {
	h.Broadcast(MsgGestureEvent, e)
	return nil
}

// ObserveFrame broadcasts per-frame hand data. It is a
// pipeline.FrameObserver.
func (h *Hub) ObserveFrame(r pipeline.FrameResult) {
	if h.ClientCount() == 0 {
		return
	}
	h.Broadcast(MsgFrameData, frameData{FrameResult: r, Active: h.active()})
}

// BroadcastActive announces an activation change.
func (h *Hub) BroadcastActive(active bool) {
	h.Broadcast(MsgActiveChanged, map[string]bool{"active": active})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubStats counts websocket traffic.
type HubStats struct {
	Clients int    `json:"clients"`
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

// Stats returns the traffic counters.
func (h *Hub) Stats() HubStats {
	return HubStats{Clients: h.ClientCount(), Sent: h.sent.Load(), Dropped: h.dropped.Load()}
}

// Close disconnects every client. Hijacked connections are not closed by
// http.Server.Shutdown.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		c.conn.Close()
	}
}
