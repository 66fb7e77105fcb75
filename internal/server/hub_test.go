package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/phantomhand/internal/event"
	"github.com/ayusman/phantomhand/internal/pipeline"
)

type received struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(hub)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	msg := readMessage(t, conn)
	if msg.Type != MsgConnected {
		t.Fatalf("expected %s, got %s", MsgConnected, msg.Type)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) received {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg received
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestHub_Connected(t *testing.T) {
	hub := NewHub(&fakeActivation{active: true})

	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg := readMessage(t, conn)
	if msg.Type != MsgConnected || msg.Timestamp == 0 {
		t.Fatalf("unexpected first message %+v", msg)
	}

	var data struct {
		ClientID string `json:"client_id"`
		Active   bool   `json:"active"`
	}
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.ClientID == "" || !data.Active {
		t.Errorf("unexpected connected payload %+v", data)
	}
	if n := hub.ClientCount(); n != 1 {
		t.Errorf("expected 1 client, got %d", n)
	}
}

func TestHub_PingPong(t *testing.T) {
	conn := dialHub(t, NewHub(nil))

	if err := conn.WriteJSON(map[string]string{"type": MsgPing}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != MsgPong {
		t.Errorf("expected %s, got %s", MsgPong, msg.Type)
	}
}

func TestHub_SetActive(t *testing.T) {
	act := &fakeActivation{}
	conn := dialHub(t, NewHub(act))

	if err := conn.WriteJSON(map[string]any{"type": MsgSetActive, "active": true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	// The pong is queued after set_active has been applied.
	if err := conn.WriteJSON(map[string]string{"type": MsgPing}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != MsgPong {
		t.Fatalf("expected %s, got %s", MsgPong, msg.Type)
	}

	if calls := act.history(); len(calls) != 1 || !calls[0] {
		t.Errorf("expected SetActive(true), got %v", calls)
	}

	t.Run("missing active field", func(t *testing.T) {
		if err := conn.WriteJSON(map[string]string{"type": MsgSetActive}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if msg := readMessage(t, conn); msg.Type != MsgError {
			t.Errorf("expected %s, got %s", MsgError, msg.Type)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
			t.Fatalf("write: %v", err)
		}
		if msg := readMessage(t, conn); msg.Type != MsgError {
			t.Errorf("expected %s, got %s", MsgError, msg.Type)
		}
	})
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub := NewHub(nil)
	first := dialHub(t, hub)
	second := dialHub(t, hub)

	e := event.New(event.Enter, "pinch", "right", 1500)
	if err := hub.HandleEvent(e); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		if msg.Type != MsgGestureEvent {
			t.Fatalf("expected %s, got %s", MsgGestureEvent, msg.Type)
		}
		var got event.Event
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if got.ID != e.ID || got.Kind != event.Enter || got.Gesture != "pinch" {
			t.Errorf("unexpected event %v", got)
		}
	}
}

func TestHub_FrameData(t *testing.T) {
	hub := NewHub(&fakeActivation{active: true})
	conn := dialHub(t, hub)

	hub.ObserveFrame(pipeline.FrameResult{
		FrameID:   7,
		Timestamp: 280,
		Image:     []byte{0xff, 0xd8},
		Hands:     []pipeline.HandResult{{ID: "left", Handedness: "Left"}},
	})

	msg := readMessage(t, conn)
	if msg.Type != MsgFrameData {
		t.Fatalf("expected %s, got %s", MsgFrameData, msg.Type)
	}

	var data map[string]any
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["frame_id"] != float64(7) || data["active"] != true {
		t.Errorf("unexpected frame data %v", data)
	}
	if _, ok := data["Image"]; ok {
		t.Error("frame image must not be sent over the websocket")
	}
	hands, _ := data["hands"].([]any)
	if len(hands) != 1 {
		t.Errorf("expected 1 hand, got %v", data["hands"])
	}
}

func TestHub_ActiveChanged(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub)

	hub.BroadcastActive(true)

	msg := readMessage(t, conn)
	if msg.Type != MsgActiveChanged || string(msg.Data) != `{"active":true}` {
		t.Errorf("unexpected message %s %s", msg.Type, msg.Data)
	}
}

func TestHub_SlowClientDrops(t *testing.T) {
	hub := NewHub(nil)
	c := &client{id: "slow", send: make(chan []byte, 1)}
	hub.clients[c] = struct{}{}

	hub.BroadcastActive(true)
	hub.BroadcastActive(false)
	hub.BroadcastActive(true)

	if len(c.send) != 1 {
		t.Errorf("expected 1 queued message, got %d", len(c.send))
	}
	if got := hub.Stats().Dropped; got != 2 {
		t.Errorf("expected 2 dropped, got %d", got)
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not unregistered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
