package debounce

import (
	"sort"

	"github.com/ayusman/phantomhand/internal/event"
)

// Len returns the number of tracked hands.
func (m *Machine) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hands.Len()
}

// Snapshot returns a copy of handID's state.
func (m *Machine) Snapshot(handID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hs, ok := m.hands.Peek(handID)
	if !ok {
		return Snapshot{}, false
	}
	return hs.snapshot(), true
}

// Snapshots returns copies of every tracked hand's state ordered by hand id.
func (m *Machine) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Snapshot, 0, m.hands.Len())
	for _, hs := range m.hands.Values() {
		out = append(out, hs.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HandID < out[j].HandID })
	return out
}

// Reset forgets handID. If the hand had a committed gesture an exit event
// stamped ts is returned so consumers can release what they hold.
func (m *Machine) Reset(handID string, ts int64) []event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hands.Remove(handID)
	_, events := m.flushEvicted(ts, ReasonReset)
	return events
}

// ResetAll forgets every hand, returning exits for committed gestures.
func (m *Machine) ResetAll(ts int64) []event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hands.Purge()
	_, events := m.flushEvicted(ts, ReasonReset)
	return events
}

// Prune drops hands not seen for longer than the idle timeout and returns
// the ids it dropped along with exit events for committed gestures.
func (m *Machine) Prune(now int64) ([]string, []event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stale []string
	for _, id := range m.hands.Keys() {
		hs, _ := m.hands.Peek(id)
		if now-hs.lastSeen > m.idleTimeout {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		m.hands.Remove(id)
	}

	_, events := m.flushEvicted(now, ReasonEvicted)
	return stale, events
}
