package debounce

import (
	"fmt"

	"github.com/ayusman/phantomhand/internal/gesture"
)

// State is the debounce state of one hand.
type State int

const (
	Idle State = iota
	Entering
	Held
	Exiting
)

var stateNames = [...]string{
	Idle:     "idle",
	Entering: "entering",
	Held:     "held",
	Exiting:  "exiting",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// handState is everything the machine remembers about one hand.
// Timestamps are milliseconds.
type handState struct {
	id    string
	state State

	// committed is Idle exactly when state is Idle.
	committed  gesture.Gesture
	confidence float64

	enteredAt     int64
	exitStart     int64
	holdDuration  int64
	lastUpdate    int64
	lastSeen      int64
	cooldownUntil int64
	cooling       bool

	smoothing gesture.SmoothingState
	last      gesture.Candidate
	scores    gesture.ScoreVector
}

func (hs *handState) toIdle() {
	hs.state = Idle
	hs.committed = gesture.Idle
	hs.holdDuration = 0
	hs.confidence = 0
}

// Snapshot is a read-only copy of one hand's state.
type Snapshot struct {
	HandID        string             `json:"hand_id"`
	State         State              `json:"state"`
	Gesture       gesture.Gesture    `json:"gesture"`
	Confidence    float64            `json:"confidence"`
	Candidate     gesture.Candidate  `json:"candidate"`
	EnteredAt     int64              `json:"entered_at"`
	HoldDuration  int64              `json:"hold_duration"`
	LastUpdate    int64              `json:"last_update"`
	CooldownUntil int64              `json:"cooldown_until,omitempty"`
	Scores        map[string]float64 `json:"scores"`
}

func (hs *handState) snapshot() Snapshot {
	s := Snapshot{
		HandID:       hs.id,
		State:        hs.state,
		Gesture:      hs.committed,
		Confidence:   hs.confidence,
		Candidate:    hs.last,
		EnteredAt:    hs.enteredAt,
		HoldDuration: hs.holdDuration,
		LastUpdate:   hs.lastUpdate,
		Scores:       hs.scores.Map(),
	}
	if hs.cooling {
		s.CooldownUntil = hs.cooldownUntil
	}
	return s
}
