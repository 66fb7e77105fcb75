package action

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ayusman/phantomhand/internal/event"
)

// Config controls the Controller.
type Config struct {
	Pointer PointerConfig `yaml:",inline"`

	// ActivateGesture turns control on when it enters; DeactivateGesture
	// turns it off. Both act whether or not control is active.
	ActivateGesture   string `yaml:"activate_gesture"`
	DeactivateGesture string `yaml:"deactivate_gesture"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Pointer:           DefaultPointerConfig(),
		ActivateGesture:   "open",
		DeactivateGesture: "fist",
	}
}

// Controller consumes gesture events and drives an Actuator. Its Handle
// method is an event.Handler. All actuation is serialized under one lock,
// which also guards the pressed-button state.
type Controller struct {
	cfg Config
	act Actuator

	mu       sync.Mutex
	active   bool
	closed   bool
	bindings map[string]Binding
	pointer  pointer

	// pressed is set between MouseDown and MouseUp, by the hand and
	// gesture recorded alongside it.
	pressed        bool
	pressedHand    string
	pressedGesture string

	listenersMu sync.Mutex
	listeners   []func(bool)
}

// NewController creates an inactive controller using the default bindings.
func NewController(cfg Config, act Actuator) *Controller {
	return &Controller{
		cfg:      cfg,
		act:      act,
		bindings: Merge(DefaultBindings(), nil),
		pointer:  pointer{cfg: cfg.Pointer},
	}
}

// SetBindings replaces the stored bindings overlaid on the defaults.
func (c *Controller) SetBindings(stored []Binding) {
	merged := Merge(DefaultBindings(), stored)

	c.mu.Lock()
	c.bindings = merged
	c.mu.Unlock()
}

// Bindings returns the effective bindings sorted by trigger.
func (c *Controller) Bindings() []Binding {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Binding, 0, len(c.bindings))
	for _, b := range c.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Trigger < out[j].Trigger })
	return out
}

// OnActiveChanged registers fn to be told about activation changes.
func (c *Controller) OnActiveChanged(fn func(active bool)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Active reports whether gestures currently drive input.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// SetActive turns control on or off. Turning it off releases a held
// button.
func (c *Controller) SetActive(active bool) error {
	c.mu.Lock()
	changed, err := c.setActiveLocked(active)
	c.mu.Unlock()

	if changed {
		c.notify(active)
	}
	return err
}

func (c *Controller) setActiveLocked(active bool) (bool, error) {
	if c.active == active {
		return false, nil
	}
	c.active = active
	c.pointer.reset()

	slog.Info("control toggled", "active", active)

	if !active {
		return true, c.releaseLocked()
	}
	return true, nil
}

func (c *Controller) notify(active bool) {
	c.listenersMu.Lock()
	listeners := append([]func(bool){}, c.listeners...)
	c.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(active)
	}
}

// Release lets go of a held button. It is safe to call at any time.
func (c *Controller) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releaseLocked()
}

// Close releases a held button and makes every later event a no-op, so
// deliveries still in flight cannot press it again.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.releaseLocked()
}

func (c *Controller) releaseLocked() error {
	if !c.pressed {
		return nil
	}
	c.pressed = false
	c.pressedHand, c.pressedGesture = "", ""
	if err := c.act.MouseUp(); err != nil {
		return fmt.Errorf("release button: %w", err)
	}
	return nil
}

// Handle applies one gesture event.
func (c *Controller) Handle(e event.Event) error {
	c.mu.Lock()
	changed, active, err := c.handleLocked(e)
	c.mu.Unlock()

	if changed {
		c.notify(active)
	}
	return err
}

func (c *Controller) handleLocked(e event.Event) (changed, active bool, err error) {
	if c.closed {
		return false, c.active, nil
	}
	switch e.Gesture {
	case c.cfg.ActivateGesture:
		if e.Kind == event.Enter {
			changed, err = c.setActiveLocked(true)
		}
		return changed, c.active, err
	case c.cfg.DeactivateGesture:
		if e.Kind == event.Enter {
			changed, err = c.setActiveLocked(false)
		}
		return changed, c.active, err
	}

	// A button pressed by this hand and gesture is released on its exit
	// even if control was turned off in between.
	if e.Kind == event.Exit && c.pressed && e.HandID == c.pressedHand && e.Gesture == c.pressedGesture {
		return false, c.active, c.releaseLocked()
	}

	if !c.active {
		return false, false, nil
	}

	b, ok := c.bindings[e.Gesture]
	if !ok {
		return false, true, nil
	}
	return false, true, c.run(b, e)
}

func (c *Controller) run(b Binding, e event.Event) error {
	switch b.Action {
	case MouseMove:
		return c.movePointer(e)

	case MouseClick:
		if e.Kind != event.Enter || c.pressed {
			return nil
		}
		if err := c.act.MouseDown(); err != nil {
			return fmt.Errorf("press button: %w", err)
		}
		c.pressed = true
		c.pressedHand, c.pressedGesture = e.HandID, e.Gesture
		return nil
	}

	if e.Kind != event.Enter && e.Kind != event.Slide {
		return nil
	}

	slog.Info("action", "trigger", b.Trigger, "action", b.Action, "hand", e.HandID)

	if b.Action == Keystroke {
		key, _ := b.Params["key"].(string)
		return c.act.PressKey(key, stringList(b.Params["modifiers"])...)
	}
	return c.act.Perform(b.Action, b.Params)
}

func (c *Controller) movePointer(e event.Event) error {
	switch e.Kind {
	case event.Exit:
		c.pointer.reset()
		return nil
	case event.Enter, event.Hold:
	default:
		return nil
	}

	x, okX := e.MetaFloat(event.MetaX)
	y, okY := e.MetaFloat(event.MetaY)
	if !okX || !okY {
		return nil
	}

	dx, dy, ok := c.pointer.move(e.HandID, x, y)
	if !ok {
		return nil
	}
	return c.act.MoveCursorRelative(dx, dy)
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
