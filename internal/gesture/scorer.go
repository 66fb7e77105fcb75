package gesture

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/phantomhand/internal/detector"
)

// ScorerConfig holds the geometric thresholds used by the scorer. Distance
// ratios are relative to the hand scale.
type ScorerConfig struct {
	FingerExtendedAngle float64 `yaml:"finger_extended_angle"` // radians at the PIP joint
	ThumbExtendedRatio  float64 `yaml:"thumb_extended_ratio"`
	PinchDistanceRatio  float64 `yaml:"pinch_distance_ratio"`
	FistTipWristRatio   float64 `yaml:"fist_tip_wrist_ratio"`
	OpenSpreadRatio     float64 `yaml:"open_spread_ratio"`
	OKDistanceRatio     float64 `yaml:"ok_distance_ratio"`
	VictorySpreadRatio  float64 `yaml:"victory_spread_ratio"`

	// IdleFloor: when the dominant normalized score is below this value the
	// remainder is assigned to idle.
	IdleFloor float64 `yaml:"idle_floor"`
}

// DefaultScorerConfig returns the tuned defaults.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		FingerExtendedAngle: 2.5,
		ThumbExtendedRatio:  1.2,
		PinchDistanceRatio:  0.25,
		FistTipWristRatio:   0.5,
		OpenSpreadRatio:     0.8,
		OKDistanceRatio:     0.2,
		VictorySpreadRatio:  1.5,
		IdleFloor:           0.3,
	}
}

// minHandScale below this the hand is edge-on or missing.
const minHandScale = 0.001

// Extension records which fingers are straightened, indexed by detector.Finger.
type Extension [detector.NumFingers]bool

// Count returns how many of the given fingers are extended.
func (e Extension) Count(fingers ...detector.Finger) int {
	n := 0
	for _, f := range fingers {
		if e[f] {
			n++
		}
	}
	return n
}

// Result is the scorer output for one hand.
type Result struct {
	Raw        ScoreVector
	Normalized ScoreVector
	Extended   Extension
	Degenerate bool
}

// Scorer computes rule-based gesture scores from landmark geometry.
// It holds no per-hand state and is safe for concurrent use.
type Scorer struct {
	config ScorerConfig
}

// NewScorer creates a Scorer.
func NewScorer(config ScorerConfig) *Scorer {
	return &Scorer{config: config}
}

// Classify scores the hand and normalizes the result into a distribution.
func (s *Scorer) Classify(hand *detector.HandRecord) Result {
	raw, ext, ok := s.Score(hand)
	if !ok {
		return Result{Raw: raw, Normalized: IdleVector(), Degenerate: true}
	}
	return Result{
		Raw:        raw,
		Normalized: s.normalize(raw),
		Extended:   ext,
	}
}

// normalize divides by the total, then tops up idle when nothing dominates.
func (s *Scorer) normalize(raw ScoreVector) ScoreVector {
	v := raw.Normalize()
	if _, best := v.Max(); best < s.config.IdleFloor {
		v[Idle] = 1 - best
		v = v.Normalize()
	}
	return v
}

// Score returns raw per-gesture scores in [0,1] and the finger extension
// map. ok is false for degenerate hands (partial landmarks, non-finite
// coordinates, or a hand scale under 0.001); raw is then IdleVector.
func (s *Scorer) Score(hand *detector.HandRecord) (raw ScoreVector, ext Extension, ok bool) {
	if hand == nil || hand.Partial || !finite(hand) {
		return IdleVector(), ext, false
	}

	scale := hand.Scale()
	if scale < minHandScale {
		return IdleVector(), ext, false
	}

	ext = s.Extension(hand)

	raw[Open] = s.scoreOpen(hand, ext, scale)
	raw[Fist] = s.scoreFist(hand, ext, scale)
	raw[Pinch] = s.scorePinch(hand, ext, scale)
	raw[Point] = s.scorePoint(ext)
	raw[Victory] = s.scoreVictory(hand, ext)
	raw[OK] = s.scoreOK(hand, ext, scale)

	return raw, ext, true
}

// Extension reports which fingers are straightened. The four fingers use
// the angle at the PIP joint; the thumb compares how far its tip and its
// base sit from the palm center.
func (s *Scorer) Extension(hand *detector.HandRecord) Extension {
	var ext Extension

	palm := hand.PalmCenter()
	palmPt := detector.Point3D{X: palm.X, Y: palm.Y, Z: palm.Z}

	for f := detector.Thumb; f < detector.NumFingers; f++ {
		joints := detector.FingerJoints[f]
		base, mid, tip := joints[0], joints[1], joints[3]

		if f == detector.Thumb {
			tipDist := detector.PlanarDistance(hand.Points[tip], palmPt)
			baseDist := detector.PlanarDistance(hand.Points[base], palmPt)
			ext[f] = tipDist/(baseDist+1e-6) > s.config.ThumbExtendedRatio
			continue
		}

		toTip := hand.Point(tip).Sub(hand.Point(mid))
		toBase := hand.Point(base).Sub(hand.Point(mid))
		ext[f] = float64(toTip.Angle(toBase)) > s.config.FingerExtendedAngle
	}

	return ext
}

var nonThumb = []detector.Finger{detector.Index, detector.Middle, detector.Ring, detector.Pinky}

var lastThree = []detector.Finger{detector.Middle, detector.Ring, detector.Pinky}

func bentCount(ext Extension, fingers ...detector.Finger) int {
	return len(fingers) - ext.Count(fingers...)
}

// open: 0.6 finger count, 0.4 fingertip spread.
func (s *Scorer) scoreOpen(hand *detector.HandRecord, ext Extension, scale float64) float64 {
	extended := float64(ext.Count(detector.Thumb, detector.Index, detector.Middle, detector.Ring, detector.Pinky)) / 5

	spreads := make([]float64, 0, len(detector.FingerTips)-1)
	for i := 0; i < len(detector.FingerTips)-1; i++ {
		a := hand.Points[detector.FingerTips[i]]
		b := hand.Points[detector.FingerTips[i+1]]
		spreads = append(spreads, detector.PlanarDistance(a, b)/scale)
	}
	spread := math.Min(stat.Mean(spreads, nil)/s.config.OpenSpreadRatio, 1)

	return 0.6*extended + 0.4*spread
}

// fist: 0.5 bent count, 0.5 fingertip proximity to the wrist.
func (s *Scorer) scoreFist(hand *detector.HandRecord, ext Extension, scale float64) float64 {
	bent := float64(bentCount(ext, nonThumb...)) / 4

	dists := make([]float64, 0, len(nonThumb))
	for _, f := range nonThumb {
		tip := hand.Points[detector.FingerTips[f]]
		dists = append(dists, detector.PlanarDistance(tip, hand.Points[detector.Wrist])/scale)
	}
	closeness := math.Max(0, 1-stat.Mean(dists, nil)/s.config.FistTipWristRatio)

	return 0.5*bent + 0.5*closeness
}

// pinch: 0.7 thumb-index contact, 0.3 remaining fingers bent.
func (s *Scorer) scorePinch(hand *detector.HandRecord, ext Extension, scale float64) float64 {
	dist := detector.PlanarDistance(hand.Points[detector.ThumbTip], hand.Points[detector.IndexTip]) / scale
	contact := math.Max(0, 1-dist/s.config.PinchDistanceRatio)
	bent := float64(bentCount(ext, lastThree...)) / 3

	return 0.7*contact + 0.3*bent
}

// point: index extended is required; the rest scales with curled fingers.
func (s *Scorer) scorePoint(ext Extension) float64 {
	if !ext[detector.Index] {
		return 0
	}
	bent := float64(bentCount(ext, lastThree...)) / 3
	return 0.3 + 0.7*bent
}

// victory: index and middle extended and spread apart.
func (s *Scorer) scoreVictory(hand *detector.HandRecord, ext Extension) float64 {
	if !ext[detector.Index] || !ext[detector.Middle] {
		return 0
	}

	tipSpread := detector.PlanarDistance(hand.Points[detector.IndexTip], hand.Points[detector.MiddleTip])
	baseSpread := detector.PlanarDistance(hand.Points[detector.IndexMCP], hand.Points[detector.MiddleMCP])
	if tipSpread/(baseSpread+1e-6) < s.config.VictorySpreadRatio {
		return 0
	}

	bent := float64(bentCount(ext, detector.Ring, detector.Pinky)) / 2
	return 0.5 + 0.5*bent
}

// ok: 0.6 thumb-index ring, 0.4 remaining fingers extended.
func (s *Scorer) scoreOK(hand *detector.HandRecord, ext Extension, scale float64) float64 {
	dist := detector.PlanarDistance(hand.Points[detector.ThumbTip], hand.Points[detector.IndexTip]) / scale
	circle := math.Max(0, 1-dist/s.config.OKDistanceRatio)
	extended := float64(ext.Count(lastThree...)) / 3

	return 0.6*circle + 0.4*extended
}

func finite(hand *detector.HandRecord) bool {
	for _, p := range hand.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) ||
			math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) || math.IsInf(p.Z, 0) {
			return false
		}
	}
	return true
}
