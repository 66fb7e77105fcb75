// Package gesture turns hand landmarks into per-gesture scores and picks a
// dominant candidate per frame. It also tracks palm motion for slides.
package gesture

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Gesture is one of the static hand poses the scorer recognizes.
type Gesture int

const (
	Idle Gesture = iota
	Open
	Fist
	Pinch
	Point
	Victory
	OK
	NumGestures
)

var gestureNames = [NumGestures]string{
	Idle:    "idle",
	Open:    "open",
	Fist:    "fist",
	Pinch:   "pinch",
	Point:   "point",
	Victory: "victory",
	OK:      "ok",
}

func (g Gesture) String() string {
	if g < 0 || g >= NumGestures {
		return fmt.Sprintf("gesture(%d)", int(g))
	}
	return gestureNames[g]
}

// Parse looks a gesture up by name, case-insensitively.
func Parse(name string) (Gesture, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for g := Idle; g < NumGestures; g++ {
		if gestureNames[g] == name {
			return g, true
		}
	}
	return Idle, false
}

// MarshalText implements encoding.TextMarshaler.
func (g Gesture) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Gesture) UnmarshalText(text []byte) error {
	parsed, ok := Parse(string(text))
	if !ok {
		return fmt.Errorf("unknown gesture %q", text)
	}
	*g = parsed
	return nil
}

// minTotal is the smallest score mass that is still treated as a signal.
const minTotal = 0.001

// ScoreVector holds one score per gesture, indexed by Gesture.
type ScoreVector [NumGestures]float64

// IdleVector is the distribution used whenever no gesture can be scored.
func IdleVector() ScoreVector {
	var v ScoreVector
	v[Idle] = 1
	return v
}

// Sum returns the total score mass.
func (v ScoreVector) Sum() float64 {
	return floats.Sum(v[:])
}

// Max returns the highest-scoring gesture. Ties go to the lower enum value.
func (v ScoreVector) Max() (Gesture, float64) {
	i := floats.MaxIdx(v[:])
	return Gesture(i), v[i]
}

// Normalize scales v to sum to 1. Vectors with (almost) no mass become
// IdleVector.
func (v ScoreVector) Normalize() ScoreVector {
	total := v.Sum()
	if total < minTotal {
		return IdleVector()
	}
	floats.Scale(1/total, v[:])
	return v
}

// Map returns the scores keyed by gesture name.
func (v ScoreVector) Map() map[string]float64 {
	m := make(map[string]float64, NumGestures)
	for g := Idle; g < NumGestures; g++ {
		m[g.String()] = v[g]
	}
	return m
}

// Priorities ranks gestures for the arbiter; higher wins.
type Priorities [NumGestures]int

// DefaultPriorities favors the activation gestures over pointer gestures.
func DefaultPriorities() Priorities {
	return Priorities{
		Idle:    0,
		Open:    6,
		Fist:    5,
		Pinch:   4,
		Point:   3,
		Victory: 3,
		OK:      3,
	}
}

// NewPriorities builds a table from gesture names. Gestures missing from
// table get priority 0. Names that match no gesture are returned so the
// caller can report them; they are otherwise ignored.
func NewPriorities(table map[string]int) (Priorities, []string) {
	var p Priorities
	var unknown []string
	for name, prio := range table {
		g, ok := Parse(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		p[g] = prio
	}
	return p, unknown
}
