package debounce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/phantomhand/internal/event"
	"github.com/ayusman/phantomhand/internal/gesture"
)

func TestCapacityEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTracked = 2
	m, err := NewMachine(cfg)
	require.NoError(t, err)

	hold(t, m, "a")
	m.Advance("b", Sample{Timestamp: 130, Scores: gesture.IdleVector()})

	out := m.Advance("c", Sample{Timestamp: 140, Scores: gesture.IdleVector()})
	assert.Equal(t, []string{"a"}, out.Evicted)
	require.Len(t, out.Events, 1)

	exit := out.Events[0]
	assert.Equal(t, event.Exit, exit.Kind)
	assert.Equal(t, "a", exit.HandID)
	assert.Equal(t, "open", exit.Gesture)
	assert.Equal(t, int64(140), exit.Timestamp)
	assert.Equal(t, ReasonEvicted, exit.Meta[event.MetaReason])

	_, ok := m.Snapshot("a")
	assert.False(t, ok)
	assert.Equal(t, 2, m.Len())
}

func TestEvictingIdleHandIsSilent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTracked = 1
	m, err := NewMachine(cfg)
	require.NoError(t, err)

	m.Advance("a", Sample{Timestamp: 0, Scores: gesture.IdleVector()})
	out := m.Advance("b", Sample{Timestamp: 40, Scores: gesture.IdleVector()})
	assert.Equal(t, []string{"a"}, out.Evicted)
	assert.Empty(t, out.Events)
}

func TestRecentlyUpdatedHandSurvives(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTracked = 2
	m, err := NewMachine(cfg)
	require.NoError(t, err)

	m.Advance("a", Sample{Timestamp: 0, Scores: gesture.IdleVector()})
	m.Advance("b", Sample{Timestamp: 10, Scores: gesture.IdleVector()})
	m.Advance("a", Sample{Timestamp: 20, Scores: gesture.IdleVector()})

	out := m.Advance("c", Sample{Timestamp: 30, Scores: gesture.IdleVector()})
	assert.Equal(t, []string{"b"}, out.Evicted)
}

func TestPrune(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleTimeout = time.Second
	m, err := NewMachine(cfg)
	require.NoError(t, err)

	hold(t, m, "right")
	m.Advance("left", Sample{Timestamp: 900, Scores: gesture.IdleVector()})

	ids, events := m.Prune(1100)
	assert.Empty(t, ids)
	assert.Empty(t, events)

	ids, events = m.Prune(1121)
	assert.Equal(t, []string{"right"}, ids)
	require.Len(t, events, 1)
	assert.Equal(t, ReasonEvicted, events[0].Meta[event.MetaReason])
	assert.Equal(t, int64(1121), events[0].Timestamp)

	_, ok := m.Snapshot("left")
	assert.True(t, ok)
}

func TestCooldownSamplesKeepHandAlive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleTimeout = 100 * time.Millisecond
	cfg.TCooldown = time.Second
	m, err := NewMachine(cfg)
	require.NoError(t, err)

	hold(t, m, "right")
	run(m, "right", repeat(gesture.Open, 0.1, 160, 280, 40))
	snap, _ := m.Snapshot("right")
	require.Equal(t, int64(1280), snap.CooldownUntil)

	out := m.Advance("right", Sample{Timestamp: 360, Scores: gesture.IdleVector()})
	require.True(t, out.Cooling)

	ids, _ := m.Prune(400)
	assert.Empty(t, ids)
}

func TestReset(t *testing.T) {
	m := newMachine(t)
	hold(t, m, "right")
	m.Advance("left", Sample{Timestamp: 0, Scores: gesture.IdleVector()})

	events := m.Reset("right", 500)
	require.Len(t, events, 1)
	assert.Equal(t, ReasonReset, events[0].Meta[event.MetaReason])
	assert.Equal(t, "right", events[0].HandID)

	assert.Empty(t, m.Reset("missing", 500))
	assert.Empty(t, m.Reset("left", 500))
	assert.Equal(t, 0, m.Len())

	// A reset hand starts from scratch.
	out := m.Advance("right", Sample{Timestamp: 600, Scores: vec(gesture.Open, 0.8)})
	assert.Equal(t, Entering, out.State)
}

func TestResetAll(t *testing.T) {
	m := newMachine(t)
	hold(t, m, "left")
	hold(t, m, "right")
	m.Advance("third", Sample{Timestamp: 0, Scores: gesture.IdleVector()})

	events := m.ResetAll(1000)
	assert.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, event.Exit, e.Kind)
		assert.Equal(t, ReasonReset, e.Meta[event.MetaReason])
	}
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Snapshots())
}

func TestSnapshots(t *testing.T) {
	m := newMachine(t)
	hold(t, m, "right")
	m.Advance("left", Sample{Timestamp: 0, Scores: vec(gesture.Fist, 0.6)})

	snaps := m.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "left", snaps[0].HandID)
	assert.Equal(t, Entering, snaps[0].State)
	assert.Equal(t, gesture.Fist, snaps[0].Candidate.Gesture)
	assert.InDelta(t, 0.6, snaps[0].Scores["fist"], 1e-9)

	assert.Equal(t, "right", snaps[1].HandID)
	assert.Equal(t, Held, snaps[1].State)
	assert.Equal(t, gesture.Open, snaps[1].Gesture)
	assert.Equal(t, int64(120), snaps[1].LastUpdate)
	assert.Zero(t, snaps[1].CooldownUntil)
}
