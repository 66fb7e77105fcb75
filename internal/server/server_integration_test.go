package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/phantomhand/internal/action"
	"github.com/ayusman/phantomhand/internal/store"
)

func TestAPI_BindingWorkflow(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	var reloaded []action.Binding
	srv := New(Config{Store: s, OnBindingsChanged: func(b []action.Binding) { reloaded = b }})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. Create a binding
	createBody := `{"trigger": "slide_up", "action": "media_play_pause"}`
	resp, err := client.Post(ts.URL+"/api/bindings", "application/json", bytes.NewBufferString(createBody))
	if err != nil {
		t.Fatalf("POST /api/bindings error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var created action.Binding
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	if created.Trigger != "slide_up" {
		t.Errorf("created trigger = %s, want slide_up", created.Trigger)
	}
	if len(reloaded) != 1 {
		t.Errorf("len(reloaded) = %d, want 1", len(reloaded))
	}

	// 2. List bindings
	resp, _ = client.Get(ts.URL + "/api/bindings")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/bindings status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var listed struct {
		Bindings  []action.Binding `json:"bindings"`
		Effective []action.Binding `json:"effective"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()

	if len(listed.Bindings) != 1 {
		t.Fatalf("len(bindings) = %d, want 1", len(listed.Bindings))
	}
	for _, b := range listed.Effective {
		if b.Trigger == "slide_up" && b.Action != action.MediaPlayPause {
			t.Errorf("effective slide_up = %s, want %s", b.Action, action.MediaPlayPause)
		}
	}

	// 3. Delete binding
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/bindings/"+created.ID, nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	if len(reloaded) != 0 {
		t.Errorf("len(reloaded) after delete = %d, want 0", len(reloaded))
	}

	// 4. Verify deleted
	resp, _ = client.Get(ts.URL + "/api/bindings/" + created.ID)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
}

func TestServer_ServeShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	hub := NewHub(nil)
	stream := NewStream()
	srv := New(Config{Hub: hub, Stream: stream})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	base := "http://" + ln.Addr().String()

	resp, err := http.Get(base + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	resp.Body.Close()

	// An open websocket and an open MJPEG stream must not hold up shutdown.
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	streamResp, err := http.Get(base + "/api/stream")
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer streamResp.Body.Close()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
