// Package detector provides hand detection interfaces and types for gesture recognition.
package detector

import (
	"math"

	"github.com/golang/geo/r3"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Finger identifies one of the five digits.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky
	NumFingers
)

var fingerNames = [NumFingers]string{"thumb", "index", "middle", "ring", "pinky"}

func (f Finger) String() string {
	if f < 0 || f >= NumFingers {
		return "unknown"
	}
	return fingerNames[f]
}

// FingerJoints lists the landmark indices of each finger ordered base to tip.
// The thumb's base is its CMC joint.
var FingerJoints = [NumFingers][4]int{
	Thumb:  {ThumbCMC, ThumbMCP, ThumbIP, ThumbTip},
	Index:  {IndexMCP, IndexPIP, IndexDIP, IndexTip},
	Middle: {MiddleMCP, MiddlePIP, MiddleDIP, MiddleTip},
	Ring:   {RingMCP, RingPIP, RingDIP, RingTip},
	Pinky:  {PinkyMCP, PinkyPIP, PinkyDIP, PinkyTip},
}

// FingerTips lists the tip landmark of each finger, thumb first.
var FingerTips = [NumFingers]int{ThumbTip, IndexTip, MiddleTip, RingTip, PinkyTip}

// Point3D represents a 3D point in space with x, y, z coordinates.
// X and Y are normalized image coordinates in [0,1]; Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec converts the point to an r3 vector.
func (p Point3D) Vec() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// PlanarDistance returns the distance between a and b in the image plane,
// ignoring depth.
func PlanarDistance(a, b Point3D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// HandRecord is one detected hand in one frame.
type HandRecord struct {
	// ID is stable across frames for the same physical hand.
	ID         string                `json:"id"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Points     [NumLandmarks]Point3D `json:"landmarks"`
	Confidence float64               `json:"confidence"`
	FrameID    uint64                `json:"frame_id"`
	Timestamp  int64                 `json:"timestamp"` // capture time in milliseconds

	// Partial is set when the landmark source returned fewer than
	// NumLandmarks points. Missing points are left at the origin.
	Partial bool `json:"partial,omitempty"`
}

// Point returns landmark i as a vector.
func (h *HandRecord) Point(i int) r3.Vector {
	return h.Points[i].Vec()
}

// PalmCenter is the mean of the four non-thumb base joints.
func (h *HandRecord) PalmCenter() r3.Vector {
	sum := h.Point(IndexMCP).
		Add(h.Point(MiddleMCP)).
		Add(h.Point(RingMCP)).
		Add(h.Point(PinkyMCP))
	return sum.Mul(0.25)
}

// Scale is the planar distance between the index and pinky base joints.
// Distance features are divided by it to stay invariant to how far the
// hand is from the camera.
func (h *HandRecord) Scale() float64 {
	return PlanarDistance(h.Points[IndexMCP], h.Points[PinkyMCP])
}

// Translate returns a copy of the hand shifted by (dx, dy, dz).
func (h HandRecord) Translate(dx, dy, dz float64) HandRecord {
	for i := range h.Points {
		h.Points[i].X += dx
		h.Points[i].Y += dy
		h.Points[i].Z += dz
	}
	return h
}
