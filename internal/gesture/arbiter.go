package gesture

// Candidate is the arbiter's pick for one hand in one frame.
type Candidate struct {
	Gesture Gesture `json:"gesture"`
	Score   float64 `json:"score"`

	// Confident is set when the pick cleared the high threshold. Otherwise
	// the pick is only the top score and is meant for display.
	Confident bool `json:"confident"`
}

// Arbiter selects one dominant gesture from a smoothed vector.
type Arbiter struct {
	pHigh      float64
	priorities Priorities
}

// NewArbiter creates an Arbiter using pHigh as the confidence threshold.
func NewArbiter(pHigh float64, priorities Priorities) *Arbiter {
	return &Arbiter{pHigh: pHigh, priorities: priorities}
}

// Priority returns the configured priority of g.
func (a *Arbiter) Priority(g Gesture) int {
	if g < 0 || g >= NumGestures {
		return 0
	}
	return a.priorities[g]
}

// Select returns the highest (priority, score) gesture among those scoring
// at least pHigh. When none qualify it falls back to the top score. An
// all-zero vector yields idle with score 0. Idle itself never competes
// as a confident candidate.
func (a *Arbiter) Select(v ScoreVector) Candidate {
	best := Candidate{Gesture: Idle}
	found := false

	for g := Idle + 1; g < NumGestures; g++ {
		score := v[g]
		if score < a.pHigh {
			continue
		}
		if !found || a.outranks(g, score, best) {
			best = Candidate{Gesture: g, Score: score, Confident: true}
			found = true
		}
	}
	if found {
		return best
	}

	if v.Sum() == 0 {
		return Candidate{Gesture: Idle}
	}
	g, score := v.Max()
	return Candidate{Gesture: g, Score: score}
}

func (a *Arbiter) outranks(g Gesture, score float64, cur Candidate) bool {
	pg, pc := a.priorities[g], a.priorities[cur.Gesture]
	if pg != pc {
		return pg > pc
	}
	return score > cur.Score
}
