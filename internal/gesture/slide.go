package gesture

import (
	"math"

	"github.com/golang/geo/r3"
)

// Direction is the dominant axis and sign of a slide.
type Direction string

const (
	SlideLeft  Direction = "left"
	SlideRight Direction = "right"
	SlideUp    Direction = "up"
	SlideDown  Direction = "down"
)

// Name returns the event gesture name for the slide, e.g. "slide_left".
func (d Direction) Name() string {
	return "slide_" + string(d)
}

// SlideConfig controls swipe recognition. Distances are in normalized
// image units.
type SlideConfig struct {
	MinDistance float64 `yaml:"min_distance"`
	MaxZChange  float64 `yaml:"max_z_change"`
	HistorySize int     `yaml:"history_size"`
	MinSamples  int     `yaml:"min_samples"`
}

// DefaultSlideConfig returns the tuned defaults.
func DefaultSlideConfig() SlideConfig {
	return SlideConfig{
		MinDistance: 0.1,
		MaxZChange:  0.05,
		HistorySize: 10,
		MinSamples:  5,
	}
}

// Slide is a recognized swipe.
type Slide struct {
	Direction Direction
	Distance  float64
	Delta     r3.Vector
}

// SlideDetector tracks recent palm positions per hand and reports swipes.
// It is not safe for concurrent use.
type SlideDetector struct {
	config  SlideConfig
	history map[string][]r3.Vector
}

// NewSlideDetector creates a SlideDetector.
func NewSlideDetector(config SlideConfig) *SlideDetector {
	if config.HistorySize < 2 {
		config.HistorySize = 2
	}
	if config.MinSamples < 2 {
		config.MinSamples = 2
	}
	if config.MinSamples > config.HistorySize {
		config.MinSamples = config.HistorySize
	}
	return &SlideDetector{
		config:  config,
		history: make(map[string][]r3.Vector),
	}
}

// Update records the palm position of a hand and reports a slide when the
// window's net displacement is large and mostly planar. A reported slide
// clears that hand's history, so the next slide needs a fresh window.
func (d *SlideDetector) Update(handID string, palm r3.Vector) (Slide, bool) {
	h := append(d.history[handID], palm)
	if len(h) > d.config.HistorySize {
		h = h[len(h)-d.config.HistorySize:]
	}
	d.history[handID] = h

	if len(h) < d.config.MinSamples {
		return Slide{}, false
	}

	delta := h[len(h)-1].Sub(h[0])
	if math.Abs(delta.Z) > d.config.MaxZChange {
		return Slide{}, false
	}

	dist := math.Hypot(delta.X, delta.Y)
	if dist < d.config.MinDistance {
		return Slide{}, false
	}

	var dir Direction
	switch {
	case math.Abs(delta.X) > math.Abs(delta.Y) && delta.X > 0:
		dir = SlideRight
	case math.Abs(delta.X) > math.Abs(delta.Y):
		dir = SlideLeft
	case delta.Y > 0:
		// image Y grows downward
		dir = SlideDown
	default:
		dir = SlideUp
	}

	delete(d.history, handID)

	return Slide{Direction: dir, Distance: dist, Delta: delta}, true
}

// Len returns how many positions are buffered for a hand.
func (d *SlideDetector) Len(handID string) int {
	return len(d.history[handID])
}

// Forget drops a hand's history.
func (d *SlideDetector) Forget(handID string) {
	delete(d.history, handID)
}

// Reset drops all history.
func (d *SlideDetector) Reset() {
	d.history = make(map[string][]r3.Vector)
}
