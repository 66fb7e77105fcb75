package e2e

import (
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/phantomhand/internal/action"
	"github.com/ayusman/phantomhand/internal/capture"
	"github.com/ayusman/phantomhand/internal/debounce"
	"github.com/ayusman/phantomhand/internal/event"
	"github.com/ayusman/phantomhand/internal/gesture"
	"github.com/ayusman/phantomhand/internal/pipeline"
	"github.com/ayusman/phantomhand/internal/scenario"
	"github.com/ayusman/phantomhand/internal/server"
	"github.com/ayusman/phantomhand/internal/store"
)

type recordingActuator struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingActuator) record(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
	return nil
}

func (r *recordingActuator) MoveCursorRelative(dx, dy int) error { return r.record("move") }
func (r *recordingActuator) MouseDown() error { return r.record("down") }
func (r *recordingActuator) MouseUp() error { return r.record("up") }

func (r *recordingActuator) PressKey(key string, _ ...string) error {
	return r.record("key:" + key)
}

func (r *recordingActuator) Perform(name string, _ map[string]any) error {
	return r.record(name)
}

func (r *recordingActuator) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newProcessor(t *testing.T, s scenario.Scenario) *pipeline.Processor {
	t.Helper()
	machine, err := debounce.NewMachine(debounce.DefaultConfig())
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	return pipeline.NewProcessor(s.Detector(),
		gesture.NewScorer(gesture.DefaultScorerConfig()),
		machine,
		gesture.NewSlideDetector(gesture.DefaultSlideConfig()))
}

// play runs every scripted frame through the processor and returns the
// emitted events in order.
func play(t *testing.T, s scenario.Scenario, proc *pipeline.Processor) []event.Event {
	t.Helper()
	var events []event.Event
	for _, f := range s.Frames() {
		res, err := proc.Process(&capture.Frame{ID: f.ID, Timestamp: f.Timestamp, Width: 640, Height: 480})
		if err != nil {
			t.Fatalf("Process(%d) error = %v", f.ID, err)
		}
		events = append(events, res.Events...)
	}
	return events
}

func TestE2E_Scenarios(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	for _, name := range scenario.Names() {
		t.Run(name, func(t *testing.T) {
			s, err := scenario.Load(name)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			events := play(t, s, newProcessor(t, s))
			if err := s.Check(events); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestE2E_SlideReachesSubscribers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s, err := scenario.Load("slide-right")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	act := &recordingActuator{}
	ctrl := action.NewController(action.DefaultConfig(), act)
	hub := server.NewHub(ctrl)
	defer hub.Close()

	ts := httptest.NewServer(hub)
	defer ts.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != server.MsgConnected {
		t.Fatalf("first message = %q, %v", msg.Type, err)
	}

	bus := event.NewBus()
	if err := bus.Subscribe("actuation", ctrl.Handle); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := bus.Subscribe("websocket", hub.HandleEvent); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	for _, e := range play(t, s, newProcessor(t, s)) {
		if err := bus.Publish(e); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	sawSlide := false
	for !sawSlide {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read error = %v before slide arrived", err)
		}
		if msg.Type != server.MsgGestureEvent {
			continue
		}
		var e event.Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		sawSlide = e.Kind == event.Slide && e.Gesture == "slide_right"
	}

	if err := bus.Close(2 * time.Second); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if !ctrl.Active() {
		t.Error("open palm should have activated control")
	}
	calls := act.snapshot()
	found := false
	for _, c := range calls {
		if c == action.SwitchWindow {
			found = true
		}
	}
	if !found {
		t.Errorf("actuator calls = %v, want %s", calls, action.SwitchWindow)
	}
}

func TestE2E_StoredBindingDrivesAction(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	st, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	b := action.Binding{Trigger: "pinch", Action: action.Keystroke, Params: map[string]any{"key": "space"}, Enabled: true}
	if err := st.Bindings().Put(&b); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	stored, err := st.Bindings().List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	act := &recordingActuator{}
	ctrl := action.NewController(action.DefaultConfig(), act)
	ctrl.SetBindings(stored)
	if err := ctrl.SetActive(true); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	s, err := scenario.Load("hand-lost")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, e := range play(t, s, newProcessor(t, s)) {
		if err := ctrl.Handle(e); err != nil {
			t.Fatalf("Handle(%s %s) error = %v", e.Kind, e.Gesture, err)
		}
	}

	calls := act.snapshot()
	if len(calls) != 1 || calls[0] != "key:space" {
		t.Errorf("actuator calls = %v, want [key:space]", calls)
	}
}
