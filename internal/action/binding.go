package action

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ayusman/phantomhand/internal/gesture"
)

// Binding maps a trigger to an action. A trigger is a gesture name such
// as "pinch" or a slide name such as "slide_left".
type Binding struct {
	ID      string         `json:"id"`
	Trigger string         `json:"trigger"`
	Action  string         `json:"action"`
	Params  map[string]any `json:"params,omitempty"`
	Enabled bool           `json:"enabled"`
}

// Validate checks that the trigger and action are known.
func (b Binding) Validate() error {
	if !validTrigger(b.Trigger) {
		return fmt.Errorf("unknown trigger %q", b.Trigger)
	}
	if !knownActions[b.Action] {
		return fmt.Errorf("%w: %q", ErrUnknownAction, b.Action)
	}
	if b.Action == Keystroke {
		if key, _ := b.Params["key"].(string); key == "" {
			return fmt.Errorf("keystroke binding for %q needs params.key", b.Trigger)
		}
	}
	return nil
}

func validTrigger(t string) bool {
	if dir, ok := strings.CutPrefix(t, "slide_"); ok {
		switch gesture.Direction(dir) {
		case gesture.SlideLeft, gesture.SlideRight, gesture.SlideUp, gesture.SlideDown:
			return true
		}
		return false
	}
	g, ok := gesture.Parse(t)
	return ok && g != gesture.Idle
}

// KnownActions lists the action names a binding may use.
func KnownActions() []string {
	out := make([]string, 0, len(knownActions))
	for a := range knownActions {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// DefaultBindings returns the built-in gesture map. Open and fist are
// reserved for activation and have no binding.
func DefaultBindings() []Binding {
	return []Binding{
		{ID: "default-pinch", Trigger: "pinch", Action: MouseClick, Enabled: true},
		{ID: "default-point", Trigger: "point", Action: MouseMove, Enabled: true},
		{ID: "default-victory", Trigger: "victory", Action: Screenshot, Enabled: true},
		{ID: "default-ok", Trigger: "ok", Action: VolumeMute, Enabled: true},
		{ID: "default-slide-left", Trigger: gesture.SlideLeft.Name(), Action: SwitchWindow, Params: map[string]any{"forward": false}, Enabled: true},
		{ID: "default-slide-right", Trigger: gesture.SlideRight.Name(), Action: SwitchWindow, Params: map[string]any{"forward": true}, Enabled: true},
		{ID: "default-slide-up", Trigger: gesture.SlideUp.Name(), Action: VolumeUp, Enabled: true},
		{ID: "default-slide-down", Trigger: gesture.SlideDown.Name(), Action: VolumeDown, Enabled: true},
	}
}

// Merge overlays stored bindings on the defaults, one binding per
// trigger. A disabled stored binding removes the trigger.
func Merge(defaults, stored []Binding) map[string]Binding {
	out := make(map[string]Binding, len(defaults)+len(stored))
	for _, b := range defaults {
		if b.Enabled {
			out[b.Trigger] = b
		}
	}
	for _, b := range stored {
		if !b.Enabled {
			delete(out, b.Trigger)
			continue
		}
		out[b.Trigger] = b
	}
	return out
}
