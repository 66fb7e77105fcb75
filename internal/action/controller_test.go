package action

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/phantomhand/internal/event"
)

type fakeActuator struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeActuator) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeActuator) MoveCursorRelative(dx, dy int) error {
	return f.record(fmt.Sprintf("move %d %d", dx, dy))
}
func (f *fakeActuator) MouseDown() error { return f.record("down") }
func (f *fakeActuator) MouseUp() error   { return f.record("up") }
func (f *fakeActuator) PressKey(key string, modifiers ...string) error {
	return f.record(fmt.Sprintf("key %s %v", key, modifiers))
}
func (f *fakeActuator) Perform(action string, params map[string]any) error {
	if fwd, ok := params["forward"]; ok {
		return f.record(fmt.Sprintf("%s forward=%v", action, fwd))
	}
	return f.record(action)
}

func (f *fakeActuator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func ev(kind event.Kind, g string) event.Event {
	return event.New(kind, g, "right", 0)
}

func at(kind event.Kind, g string, x, y float64) event.Event {
	return ev(kind, g).WithMeta(event.MetaX, x).WithMeta(event.MetaY, y)
}

func activeController(t *testing.T) (*Controller, *fakeActuator) {
	t.Helper()
	act := &fakeActuator{}
	c := NewController(DefaultConfig(), act)
	require.NoError(t, c.Handle(ev(event.Enter, "open")))
	require.True(t, c.Active())
	return c, act
}

func TestActivation(t *testing.T) {
	act := &fakeActuator{}
	c := NewController(DefaultConfig(), act)

	var changes []bool
	c.OnActiveChanged(func(a bool) { changes = append(changes, a) })

	// Inactive: bound gestures do nothing.
	require.NoError(t, c.Handle(ev(event.Enter, "victory")))
	assert.Empty(t, act.Calls())

	require.NoError(t, c.Handle(ev(event.Enter, "open")))
	require.NoError(t, c.Handle(ev(event.Hold, "open")))
	require.NoError(t, c.Handle(ev(event.Enter, "open")))
	assert.True(t, c.Active())

	require.NoError(t, c.Handle(ev(event.Enter, "victory")))
	require.NoError(t, c.Handle(ev(event.Enter, "fist")))
	assert.False(t, c.Active())

	assert.Equal(t, []string{"screenshot"}, act.Calls())
	assert.Equal(t, []bool{true, false}, changes)
}

func TestPinchPressRelease(t *testing.T) {
	c, act := activeController(t)

	require.NoError(t, c.Handle(ev(event.Enter, "pinch")))
	require.NoError(t, c.Handle(ev(event.Hold, "pinch")))
	require.NoError(t, c.Handle(ev(event.Enter, "pinch")))
	require.NoError(t, c.Handle(ev(event.Exit, "pinch")))
	require.NoError(t, c.Handle(ev(event.Exit, "pinch")))

	assert.Equal(t, []string{"down", "up"}, act.Calls())
}

func TestDeactivateReleasesButton(t *testing.T) {
	c, act := activeController(t)

	require.NoError(t, c.Handle(ev(event.Enter, "pinch")))
	require.NoError(t, c.Handle(ev(event.Enter, "fist")))
	require.NoError(t, c.Handle(ev(event.Exit, "pinch")))

	assert.Equal(t, []string{"down", "up"}, act.Calls())
}

func TestCloseReleasesAndIgnoresLateEvents(t *testing.T) {
	c, act := activeController(t)

	require.NoError(t, c.Handle(ev(event.Enter, "pinch")))
	require.NoError(t, c.Close())
	require.NoError(t, c.Handle(ev(event.Enter, "pinch")))
	require.NoError(t, c.Handle(ev(event.Enter, "victory")))

	assert.Equal(t, []string{"down", "up"}, act.Calls())
}

func TestExitFromOtherHandDoesNotRelease(t *testing.T) {
	c, act := activeController(t)

	require.NoError(t, c.Handle(ev(event.Enter, "pinch")))
	other := event.New(event.Exit, "pinch", "left", 0)
	require.NoError(t, c.Handle(other))
	assert.Equal(t, []string{"down"}, act.Calls())

	require.NoError(t, c.Release())
	require.NoError(t, c.Release())
	assert.Equal(t, []string{"down", "up"}, act.Calls())
}

func TestPointerMotion(t *testing.T) {
	c, act := activeController(t)

	require.NoError(t, c.Handle(at(event.Enter, "point", 0.5, 0.5)))
	assert.Empty(t, act.Calls(), "first sample only primes")

	// raw 0.01 -> smoothed 0.005 -> 0.005*1920*2 = 19.2, 0.005*1080*2 = 10.8
	require.NoError(t, c.Handle(at(event.Hold, "point", 0.51, 0.51)))
	// below deadzone: raw 0 -> smoothed 0.0025
	require.NoError(t, c.Handle(at(event.Hold, "point", 0.51, 0.51)))

	want := []string{"move 19 10"}
	if diff := cmp.Diff(want, act.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	// Exit lifts the finger; the next enter primes again.
	require.NoError(t, c.Handle(at(event.Exit, "point", 0.9, 0.9)))
	require.NoError(t, c.Handle(at(event.Enter, "point", 0.1, 0.1)))
	assert.Len(t, act.Calls(), 1)
}

func TestPointerIgnoresEventsWithoutPosition(t *testing.T) {
	c, act := activeController(t)
	require.NoError(t, c.Handle(ev(event.Hold, "point")))
	assert.Empty(t, act.Calls())
}

func TestSlides(t *testing.T) {
	c, act := activeController(t)

	for _, g := range []string{"slide_left", "slide_right", "slide_up", "slide_down"} {
		require.NoError(t, c.Handle(ev(event.Slide, g)))
	}

	want := []string{
		"switch_window forward=false",
		"switch_window forward=true",
		"volume_up",
		"volume_down",
	}
	if diff := cmp.Diff(want, act.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestOneShotActionsFireOnEnterOnly(t *testing.T) {
	c, act := activeController(t)

	require.NoError(t, c.Handle(ev(event.Enter, "ok")))
	require.NoError(t, c.Handle(ev(event.Hold, "ok")))
	require.NoError(t, c.Handle(ev(event.Exit, "ok")))

	assert.Equal(t, []string{"volume_mute"}, act.Calls())
}

func TestStoredBindingsOverrideDefaults(t *testing.T) {
	c, act := activeController(t)

	c.SetBindings([]Binding{
		{Trigger: "ok", Action: Keystroke, Params: map[string]any{"key": "space", "modifiers": []any{"cmd"}}, Enabled: true},
		{Trigger: "victory", Action: Screenshot, Enabled: false},
	})

	require.NoError(t, c.Handle(ev(event.Enter, "ok")))
	require.NoError(t, c.Handle(ev(event.Enter, "victory")))
	assert.Equal(t, []string{"key space [cmd]"}, act.Calls())

	triggers := make([]string, 0)
	for _, b := range c.Bindings() {
		triggers = append(triggers, b.Trigger)
	}
	assert.NotContains(t, triggers, "victory")
	assert.Contains(t, triggers, "ok")
}

func TestActuatorErrorsAreReturned(t *testing.T) {
	c, act := activeController(t)
	act.err = errors.New("no accessibility permission")

	err := c.Handle(ev(event.Enter, "pinch"))
	assert.ErrorContains(t, err, "accessibility")

	// A failed press leaves nothing to release.
	act.err = nil
	require.NoError(t, c.Handle(ev(event.Exit, "pinch")))
	assert.Equal(t, []string{"down"}, act.Calls())
}

func TestSetActive(t *testing.T) {
	act := &fakeActuator{}
	c := NewController(DefaultConfig(), act)

	notified := 0
	c.OnActiveChanged(func(bool) { notified++ })

	require.NoError(t, c.SetActive(true))
	require.NoError(t, c.SetActive(true))
	assert.Equal(t, 1, notified)

	require.NoError(t, c.Handle(ev(event.Enter, "pinch")))
	require.NoError(t, c.SetActive(false))
	assert.Equal(t, []string{"down", "up"}, act.Calls())
	assert.Equal(t, 2, notified)
}
