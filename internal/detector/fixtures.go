package detector

// Pose fixtures for a right hand facing the camera, wrist near the bottom
// of the frame. Coordinates follow the MediaPipe normalized image space.

// OpenPalmLandmarks returns a hand showing an open palm with all five fingers extended and spread.
func OpenPalmLandmarks() HandRecord {
	return fixtureHand([NumLandmarks]Point3D{
		Wrist:     {X: 0.5, Y: 0.8, Z: 0},
		ThumbCMC:  {X: 0.56, Y: 0.76, Z: 0},
		ThumbMCP:  {X: 0.61, Y: 0.72, Z: 0},
		ThumbIP:   {X: 0.66, Y: 0.68, Z: 0},
		ThumbTip:  {X: 0.72, Y: 0.63, Z: 0},
		IndexMCP:  {X: 0.56, Y: 0.62, Z: 0},
		IndexPIP:  {X: 0.589, Y: 0.567, Z: 0},
		IndexDIP:  {X: 0.608, Y: 0.532, Z: 0},
		IndexTip:  {X: 0.623, Y: 0.506, Z: 0},
		MiddleMCP: {X: 0.52, Y: 0.6, Z: 0},
		MiddlePIP: {X: 0.52, Y: 0.54, Z: 0},
		MiddleDIP: {X: 0.52, Y: 0.5, Z: 0},
		MiddleTip: {X: 0.52, Y: 0.47, Z: 0},
		RingMCP:   {X: 0.48, Y: 0.61, Z: 0},
		RingPIP:   {X: 0.456, Y: 0.555, Z: 0},
		RingDIP:   {X: 0.44, Y: 0.518, Z: 0},
		RingTip:   {X: 0.428, Y: 0.491, Z: 0},
		PinkyMCP:  {X: 0.44, Y: 0.64, Z: 0},
		PinkyPIP:  {X: 0.4, Y: 0.595, Z: 0},
		PinkyDIP:  {X: 0.374, Y: 0.565, Z: 0},
		PinkyTip:  {X: 0.354, Y: 0.542, Z: 0},
	})
}

// FistLandmarks returns a hand showing a closed fist with the thumb folded across the palm.
func FistLandmarks() HandRecord {
	return fixtureHand([NumLandmarks]Point3D{
		Wrist:     {X: 0.5, Y: 0.8, Z: 0},
		ThumbCMC:  {X: 0.56, Y: 0.76, Z: 0},
		ThumbMCP:  {X: 0.59, Y: 0.72, Z: -0.01},
		ThumbIP:   {X: 0.57, Y: 0.69, Z: -0.03},
		ThumbTip:  {X: 0.54, Y: 0.67, Z: -0.04},
		IndexMCP:  {X: 0.56, Y: 0.62, Z: 0},
		IndexPIP:  {X: 0.56, Y: 0.58, Z: -0.02},
		IndexDIP:  {X: 0.56, Y: 0.6, Z: -0.05},
		IndexTip:  {X: 0.56, Y: 0.64, Z: -0.04},
		MiddleMCP: {X: 0.52, Y: 0.6, Z: 0},
		MiddlePIP: {X: 0.52, Y: 0.56, Z: -0.02},
		MiddleDIP: {X: 0.52, Y: 0.58, Z: -0.05},
		MiddleTip: {X: 0.52, Y: 0.62, Z: -0.04},
		RingMCP:   {X: 0.48, Y: 0.61, Z: 0},
		RingPIP:   {X: 0.48, Y: 0.57, Z: -0.02},
		RingDIP:   {X: 0.48, Y: 0.59, Z: -0.05},
		RingTip:   {X: 0.48, Y: 0.63, Z: -0.04},
		PinkyMCP:  {X: 0.44, Y: 0.64, Z: 0},
		PinkyPIP:  {X: 0.44, Y: 0.6, Z: -0.02},
		PinkyDIP:  {X: 0.44, Y: 0.62, Z: -0.05},
		PinkyTip:  {X: 0.44, Y: 0.66, Z: -0.04},
	})
}

// PointLandmarks returns a hand showing an index finger pointing up with the other fingers curled.
func PointLandmarks() HandRecord {
	return fixtureHand([NumLandmarks]Point3D{
		Wrist:     {X: 0.5, Y: 0.8, Z: 0},
		ThumbCMC:  {X: 0.56, Y: 0.76, Z: 0},
		ThumbMCP:  {X: 0.59, Y: 0.72, Z: -0.01},
		ThumbIP:   {X: 0.57, Y: 0.69, Z: -0.03},
		ThumbTip:  {X: 0.54, Y: 0.67, Z: -0.04},
		IndexMCP:  {X: 0.56, Y: 0.62, Z: 0},
		IndexPIP:  {X: 0.575, Y: 0.562, Z: 0},
		IndexDIP:  {X: 0.584, Y: 0.523, Z: 0},
		IndexTip:  {X: 0.592, Y: 0.494, Z: 0},
		MiddleMCP: {X: 0.52, Y: 0.6, Z: 0},
		MiddlePIP: {X: 0.52, Y: 0.56, Z: -0.02},
		MiddleDIP: {X: 0.52, Y: 0.58, Z: -0.05},
		MiddleTip: {X: 0.52, Y: 0.62, Z: -0.04},
		RingMCP:   {X: 0.48, Y: 0.61, Z: 0},
		RingPIP:   {X: 0.48, Y: 0.57, Z: -0.02},
		RingDIP:   {X: 0.48, Y: 0.59, Z: -0.05},
		RingTip:   {X: 0.48, Y: 0.63, Z: -0.04},
		PinkyMCP:  {X: 0.44, Y: 0.64, Z: 0},
		PinkyPIP:  {X: 0.44, Y: 0.6, Z: -0.02},
		PinkyDIP:  {X: 0.44, Y: 0.62, Z: -0.05},
		PinkyTip:  {X: 0.44, Y: 0.66, Z: -0.04},
	})
}

// VictoryLandmarks returns a hand showing a V-sign with index and middle fingers spread apart.
func VictoryLandmarks() HandRecord {
	return fixtureHand([NumLandmarks]Point3D{
		Wrist:     {X: 0.5, Y: 0.8, Z: 0},
		ThumbCMC:  {X: 0.56, Y: 0.76, Z: 0},
		ThumbMCP:  {X: 0.59, Y: 0.72, Z: -0.01},
		ThumbIP:   {X: 0.57, Y: 0.69, Z: -0.03},
		ThumbTip:  {X: 0.54, Y: 0.67, Z: -0.04},
		IndexMCP:  {X: 0.56, Y: 0.62, Z: 0},
		IndexPIP:  {X: 0.602, Y: 0.578, Z: 0},
		IndexDIP:  {X: 0.631, Y: 0.549, Z: 0},
		IndexTip:  {X: 0.652, Y: 0.528, Z: 0},
		MiddleMCP: {X: 0.52, Y: 0.6, Z: 0},
		MiddlePIP: {X: 0.52, Y: 0.54, Z: 0},
		MiddleDIP: {X: 0.52, Y: 0.5, Z: 0},
		MiddleTip: {X: 0.52, Y: 0.47, Z: 0},
		RingMCP:   {X: 0.48, Y: 0.61, Z: 0},
		RingPIP:   {X: 0.48, Y: 0.57, Z: -0.02},
		RingDIP:   {X: 0.48, Y: 0.59, Z: -0.05},
		RingTip:   {X: 0.48, Y: 0.63, Z: -0.04},
		PinkyMCP:  {X: 0.44, Y: 0.64, Z: 0},
		PinkyPIP:  {X: 0.44, Y: 0.6, Z: -0.02},
		PinkyDIP:  {X: 0.44, Y: 0.62, Z: -0.05},
		PinkyTip:  {X: 0.44, Y: 0.66, Z: -0.04},
	})
}

// PinchLandmarks returns a hand showing the thumb tip touching the curled index fingertip.
func PinchLandmarks() HandRecord {
	return fixtureHand([NumLandmarks]Point3D{
		Wrist:     {X: 0.5, Y: 0.8, Z: 0},
		ThumbCMC:  {X: 0.56, Y: 0.76, Z: 0},
		ThumbMCP:  {X: 0.6, Y: 0.71, Z: 0},
		ThumbIP:   {X: 0.62, Y: 0.65, Z: 0},
		ThumbTip:  {X: 0.62, Y: 0.57, Z: -0.02},
		IndexMCP:  {X: 0.56, Y: 0.62, Z: 0},
		IndexPIP:  {X: 0.58, Y: 0.57, Z: -0.01},
		IndexDIP:  {X: 0.6, Y: 0.56, Z: -0.02},
		IndexTip:  {X: 0.62, Y: 0.57, Z: -0.02},
		MiddleMCP: {X: 0.52, Y: 0.6, Z: 0},
		MiddlePIP: {X: 0.52, Y: 0.56, Z: -0.02},
		MiddleDIP: {X: 0.52, Y: 0.58, Z: -0.05},
		MiddleTip: {X: 0.52, Y: 0.62, Z: -0.04},
		RingMCP:   {X: 0.48, Y: 0.61, Z: 0},
		RingPIP:   {X: 0.48, Y: 0.57, Z: -0.02},
		RingDIP:   {X: 0.48, Y: 0.59, Z: -0.05},
		RingTip:   {X: 0.48, Y: 0.63, Z: -0.04},
		PinkyMCP:  {X: 0.44, Y: 0.64, Z: 0},
		PinkyPIP:  {X: 0.44, Y: 0.6, Z: -0.02},
		PinkyDIP:  {X: 0.44, Y: 0.62, Z: -0.05},
		PinkyTip:  {X: 0.44, Y: 0.66, Z: -0.04},
	})
}

// OKLandmarks returns a hand showing an OK sign: thumb and index form a ring, other fingers extended.
func OKLandmarks() HandRecord {
	return fixtureHand([NumLandmarks]Point3D{
		Wrist:     {X: 0.5, Y: 0.8, Z: 0},
		ThumbCMC:  {X: 0.56, Y: 0.76, Z: 0},
		ThumbMCP:  {X: 0.6, Y: 0.71, Z: 0},
		ThumbIP:   {X: 0.62, Y: 0.65, Z: 0},
		ThumbTip:  {X: 0.62, Y: 0.57, Z: -0.02},
		IndexMCP:  {X: 0.56, Y: 0.62, Z: 0},
		IndexPIP:  {X: 0.58, Y: 0.57, Z: -0.01},
		IndexDIP:  {X: 0.6, Y: 0.56, Z: -0.02},
		IndexTip:  {X: 0.62, Y: 0.57, Z: -0.02},
		MiddleMCP: {X: 0.52, Y: 0.6, Z: 0},
		MiddlePIP: {X: 0.52, Y: 0.54, Z: 0},
		MiddleDIP: {X: 0.52, Y: 0.5, Z: 0},
		MiddleTip: {X: 0.52, Y: 0.47, Z: 0},
		RingMCP:   {X: 0.48, Y: 0.61, Z: 0},
		RingPIP:   {X: 0.468, Y: 0.551, Z: 0},
		RingDIP:   {X: 0.46, Y: 0.512, Z: 0},
		RingTip:   {X: 0.455, Y: 0.483, Z: 0},
		PinkyMCP:  {X: 0.44, Y: 0.64, Z: 0},
		PinkyPIP:  {X: 0.418, Y: 0.584, Z: 0},
		PinkyDIP:  {X: 0.403, Y: 0.547, Z: 0},
		PinkyTip:  {X: 0.392, Y: 0.519, Z: 0},
	})
}

func fixtureHand(points [NumLandmarks]Point3D) HandRecord {
	return HandRecord{
		ID:         "right",
		Handedness: "Right",
		Points:     points,
		Confidence: 0.95,
	}
}

// Poses maps fixture names to their constructors.
var Poses = map[string]func() HandRecord{
	"open":    OpenPalmLandmarks,
	"fist":    FistLandmarks,
	"point":   PointLandmarks,
	"victory": VictoryLandmarks,
	"pinch":   PinchLandmarks,
	"ok":      OKLandmarks,
}
