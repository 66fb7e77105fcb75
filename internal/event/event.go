// Package event defines gesture events and the bus that fans them out to
// subscribers.
package event

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is the type of a gesture event.
type Kind int

const (
	Enter Kind = iota
	Hold
	Exit
	Slide
)

var kindNames = [...]string{
	Enter: "enter",
	Hold:  "hold",
	Exit:  "exit",
	Slide: "slide",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", text)
}

// Metadata keys set by the processing chain.
const (
	MetaX          = "x" // index fingertip, normalized
	MetaY          = "y"
	MetaHandedness = "handedness"
	MetaDirection  = "direction"
	MetaDistance   = "distance"
	MetaReason     = "reason"
)

// Event is a discrete gesture signal for one hand. Events are values;
// subscribers each receive their own copy of Meta.
type Event struct {
	ID           string         `json:"id"`
	Kind         Kind           `json:"event_type"`
	Gesture      string         `json:"gesture"`
	HandID       string         `json:"hand_id"`
	Timestamp    int64          `json:"timestamp"`     // milliseconds
	HoldDuration int64          `json:"hold_duration"` // milliseconds
	Confidence   float64        `json:"confidence"`
	Meta         map[string]any `json:"meta,omitempty"`
}

// New creates an event with a fresh id.
func New(kind Kind, gesture, handID string, timestamp int64) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Gesture:   gesture,
		HandID:    handID,
		Timestamp: timestamp,
	}
}

// WithMeta returns a copy of e with key set in its metadata.
func (e Event) WithMeta(key string, value any) Event {
	meta := make(map[string]any, len(e.Meta)+1)
	for k, v := range e.Meta {
		meta[k] = v
	}
	meta[key] = value
	e.Meta = meta
	return e
}

// MetaFloat reads a numeric metadata value.
func (e Event) MetaFloat(key string) (float64, bool) {
	switch v := e.Meta[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s hand=%s t=%d hold=%d conf=%.2f", e.Kind, e.Gesture, e.HandID, e.Timestamp, e.HoldDuration, e.Confidence)
}
