// Package action turns gesture events into desktop input: cursor motion,
// button presses, keystrokes and named system actions.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ayusman/phantomhand/internal/plugin"
)

// Action names understood by the controller and the bundled plugins.
const (
	MouseMove      = "mouse_move"
	MouseClick     = "mouse_click"
	MouseDown      = "mouse_down"
	MouseUp        = "mouse_up"
	Keystroke      = "keystroke"
	VolumeUp       = "volume_up"
	VolumeDown     = "volume_down"
	VolumeMute     = "volume_mute"
	MediaPlayPause = "media_play_pause"
	MediaNext      = "media_next"
	MediaPrev      = "media_prev"
	SwitchWindow   = "switch_window"
	Screenshot     = "screenshot"
)

// ErrUnknownAction is returned for bindings naming an unsupported action.
var ErrUnknownAction = errors.New("unknown action")

var knownActions = map[string]bool{
	MouseMove:      true,
	MouseClick:     true,
	Keystroke:      true,
	VolumeUp:       true,
	VolumeDown:     true,
	VolumeMute:     true,
	MediaPlayPause: true,
	MediaNext:      true,
	MediaPrev:      true,
	SwitchWindow:   true,
	Screenshot:     true,
}

// Actuator is the platform input capability. Implementations need not be
// safe for concurrent use; the Controller serializes calls.
type Actuator interface {
	MoveCursorRelative(dx, dy int) error
	MouseDown() error
	MouseUp() error
	PressKey(key string, modifiers ...string) error
	// Perform runs a named system action such as volume_up.
	Perform(action string, params map[string]any) error
}

// LogActuator only logs. It backs dry runs.
type LogActuator struct{}

func (LogActuator) MoveCursorRelative(dx, dy int) error {
	slog.Debug("dry run: move cursor", "dx", dx, "dy", dy)
	return nil
}

func (LogActuator) MouseDown() error {
	slog.Info("dry run: mouse down")
	return nil
}

func (LogActuator) MouseUp() error {
	slog.Info("dry run: mouse up")
	return nil
}

func (LogActuator) PressKey(key string, modifiers ...string) error {
	slog.Info("dry run: press key", "key", key, "modifiers", modifiers)
	return nil
}

func (LogActuator) Perform(action string, params map[string]any) error {
	slog.Info("dry run: perform", "action", action, "params", params)
	return nil
}

// PluginActuator forwards input to whichever discovered plugin handles
// each action.
type PluginActuator struct {
	manager  *plugin.Manager
	executor *plugin.Executor
}

// NewPluginActuator creates a PluginActuator.
func NewPluginActuator(manager *plugin.Manager, executor *plugin.Executor) *PluginActuator {
	return &PluginActuator{manager: manager, executor: executor}
}

func (a *PluginActuator) call(action string, params any) error {
	p, err := a.manager.ForAction(action)
	if err != nil {
		return err
	}
	if err := a.executor.Call(context.Background(), p, action, params); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

func (a *PluginActuator) MoveCursorRelative(dx, dy int) error {
	return a.call(MouseMove, map[string]int{"dx": dx, "dy": dy})
}

func (a *PluginActuator) MouseDown() error {
	return a.call(MouseDown, nil)
}

func (a *PluginActuator) MouseUp() error {
	return a.call(MouseUp, nil)
}

func (a *PluginActuator) PressKey(key string, modifiers ...string) error {
	return a.call(Keystroke, map[string]any{"key": key, "modifiers": modifiers})
}

func (a *PluginActuator) Perform(action string, params map[string]any) error {
	return a.call(action, params)
}

var (
	_ Actuator = LogActuator{}
	_ Actuator = (*PluginActuator)(nil)
)
