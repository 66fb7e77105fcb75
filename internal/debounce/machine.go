// Package debounce turns per-frame gesture scores into enter, hold and exit
// events using thresholds with hysteresis, dwell timers and a cooldown.
package debounce

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/ayusman/phantomhand/internal/event"
	"github.com/ayusman/phantomhand/internal/gesture"
)

// Reasons recorded under event.MetaReason on exits not caused by scores.
const (
	ReasonEvicted = "evicted"
	ReasonReset   = "reset"
)

// Config holds thresholds and timers. PHigh > PHold > PLow.
type Config struct {
	PHigh float64
	PHold float64
	PLow  float64

	TEnter    time.Duration
	TExit     time.Duration
	TCooldown time.Duration

	Smoothing  gesture.SmootherConfig
	Priorities gesture.Priorities

	// MaxTracked bounds how many hands keep state at once; the least
	// recently updated hand is evicted first.
	MaxTracked int
	// IdleTimeout is how long a hand may go unseen before Prune drops it.
	IdleTimeout time.Duration
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		PHigh:       0.4,
		PHold:       0.3,
		PLow:        0.2,
		TEnter:      120 * time.Millisecond,
		TExit:       120 * time.Millisecond,
		TCooldown:   200 * time.Millisecond,
		Smoothing:   gesture.DefaultSmootherConfig(),
		Priorities:  gesture.DefaultPriorities(),
		MaxTracked:  4,
		IdleTimeout: 2 * time.Second,
	}
}

// Sample is one already-smoothed observation for a hand.
type Sample struct {
	Timestamp int64 // milliseconds
	Scores    gesture.ScoreVector
}

// Outcome reports what one update did.
type Outcome struct {
	Events    []event.Event
	Candidate gesture.Candidate
	Smoothed  gesture.ScoreVector
	State     State
	// Cooling is set when the sample fell inside the hand's cooldown and
	// was ignored.
	Cooling bool
	// Evicted lists hands dropped to make room for this one.
	Evicted []string
}

// Machine runs one debounce state machine per hand. Updates are expected
// from a single goroutine; snapshots may be taken concurrently.
type Machine struct {
	cfg      Config
	smoother *gesture.Smoother
	arbiter  *gesture.Arbiter

	tEnter, tExit, tCooldown, idleTimeout int64

	mu      sync.Mutex
	hands   *simplelru.LRU[string, *handState]
	evicted []*handState
}

// NewMachine creates a Machine.
func NewMachine(cfg Config) (*Machine, error) {
	m := &Machine{
		cfg:         cfg,
		smoother:    gesture.NewSmoother(cfg.Smoothing),
		arbiter:     gesture.NewArbiter(cfg.PHigh, cfg.Priorities),
		tEnter:      cfg.TEnter.Milliseconds(),
		tExit:       cfg.TExit.Milliseconds(),
		tCooldown:   cfg.TCooldown.Milliseconds(),
		idleTimeout: cfg.IdleTimeout.Milliseconds(),
	}

	hands, err := simplelru.NewLRU[string, *handState](cfg.MaxTracked, m.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create hand store: %w", err)
	}
	m.hands = hands

	return m, nil
}

// Config returns the machine's configuration.
func (m *Machine) Config() Config {
	return m.cfg
}

// Update smooths a normalized score vector for handID and advances its
// state machine.
func (m *Machine) Update(handID string, scores gesture.ScoreVector, ts int64) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	hs, out := m.acquire(handID, ts)
	if m.coolingDown(hs, ts) {
		out.Cooling = true
		out.State = hs.state
		return out
	}

	smoothed := m.smoother.Smooth(&hs.smoothing, scores)
	m.step(hs, smoothed, ts, &out)
	return out
}

// Advance drives the state machine of handID from an already-smoothed
// sample, bypassing the smoother.
func (m *Machine) Advance(handID string, s Sample) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	hs, out := m.acquire(handID, s.Timestamp)
	if m.coolingDown(hs, s.Timestamp) {
		out.Cooling = true
		out.State = hs.state
		return out
	}

	m.step(hs, s.Scores, s.Timestamp, &out)
	return out
}

// acquire returns the state for handID, creating it on first sight. Exits
// for hands evicted to make room are returned in the outcome.
func (m *Machine) acquire(handID string, ts int64) (*handState, Outcome) {
	var out Outcome

	hs, ok := m.hands.Get(handID)
	if !ok {
		hs = &handState{id: handID, committed: gesture.Idle}
		m.hands.Add(handID, hs)
		out.Evicted, out.Events = m.flushEvicted(ts, ReasonEvicted)
	}
	hs.lastSeen = ts

	return hs, out
}

func (m *Machine) coolingDown(hs *handState, ts int64) bool {
	if !hs.cooling {
		return false
	}
	if ts < hs.cooldownUntil {
		return true
	}
	hs.cooling = false
	hs.cooldownUntil = 0
	return false
}

// step applies one transition. The arbiter pick decides entering and
// switching; holding and exiting re-check the committed gesture's own
// score against p_hold and p_low.
func (m *Machine) step(hs *handState, scores gesture.ScoreVector, ts int64, out *Outcome) {
	cand := m.arbiter.Select(scores)
	strong := cand.Confident && cand.Score > m.cfg.PHigh

	hs.last = cand
	hs.scores = scores
	out.Candidate = cand
	out.Smoothed = scores

	switch hs.state {
	case Idle:
		if strong {
			m.enter(hs, cand, ts)
		}

	case Entering:
		if strong && cand.Gesture == hs.committed {
			hs.confidence = cand.Score
			if ts-hs.enteredAt >= m.tEnter {
				hs.state = Held
				hs.holdDuration = 0
				out.Events = append(out.Events, m.newEvent(event.Enter, hs, ts))
			}
		} else {
			hs.toIdle()
		}

	case Held:
		current := scores[hs.committed]
		switch {
		case current < m.cfg.PLow:
			hs.state = Exiting
			hs.exitStart = ts
			hs.confidence = current

		case strong && cand.Gesture != hs.committed:
			hs.confidence = current
			out.Events = append(out.Events, m.newEvent(event.Exit, hs, ts))
			m.enter(hs, cand, ts)

		case current >= m.cfg.PHold:
			hs.holdDuration = ts - hs.enteredAt
			hs.confidence = current
			out.Events = append(out.Events, m.newEvent(event.Hold, hs, ts))

		default:
			// Between p_low and p_hold: keep the gesture without a hold tick.
			hs.confidence = current
		}

	case Exiting:
		current := scores[hs.committed]
		hs.confidence = current
		switch {
		case current >= m.cfg.PHold:
			hs.state = Held
		case ts-hs.exitStart >= m.tExit:
			out.Events = append(out.Events, m.newEvent(event.Exit, hs, ts))
			hs.toIdle()
			hs.cooling = true
			hs.cooldownUntil = ts + m.tCooldown
		}
	}

	hs.lastUpdate = ts
	out.State = hs.state
}

func (m *Machine) enter(hs *handState, cand gesture.Candidate, ts int64) {
	hs.state = Entering
	hs.committed = cand.Gesture
	hs.enteredAt = ts
	hs.holdDuration = 0
	hs.confidence = cand.Score
}

func (m *Machine) newEvent(kind event.Kind, hs *handState, ts int64) event.Event {
	e := event.New(kind, hs.committed.String(), hs.id, ts)
	e.HoldDuration = hs.holdDuration
	e.Confidence = hs.confidence
	return e
}

// onEvict is called by the LRU while m.mu is held.
func (m *Machine) onEvict(_ string, hs *handState) {
	m.evicted = append(m.evicted, hs)
}

// flushEvicted turns pending evictions into exit events for hands that
// had a committed gesture.
func (m *Machine) flushEvicted(ts int64, reason string) ([]string, []event.Event) {
	if len(m.evicted) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(m.evicted))
	var events []event.Event
	for _, hs := range m.evicted {
		ids = append(ids, hs.id)
		slog.Debug("hand state dropped", "hand", hs.id, "state", hs.state, "reason", reason)
		if hs.state != Held && hs.state != Exiting {
			continue
		}
		e := m.newEvent(event.Exit, hs, ts).WithMeta(event.MetaReason, reason)
		events = append(events, e)
	}
	m.evicted = m.evicted[:0]

	return ids, events
}
