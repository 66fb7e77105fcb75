package event

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus()
	var a, b recorder
	require.NoError(t, bus.Subscribe("a", a.handle))
	require.NoError(t, bus.Subscribe("b", b.handle))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(New(Hold, "open", "right", int64(i))))
	}
	require.NoError(t, bus.Close(time.Second))

	for _, r := range []*recorder{&a, &b} {
		got := r.snapshot()
		require.Len(t, got, 10)
		for i, e := range got {
			assert.Equal(t, int64(i), e.Timestamp)
		}
	}
	assert.Equal(t, uint64(10), bus.Published())
}

func TestBusSubscribeErrors(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Subscribe("a", func(Event) error { return nil }))

	assert.ErrorIs(t, bus.Subscribe("a", func(Event) error { return nil }), ErrSubscriberExists)
	assert.ErrorIs(t, bus.Subscribe("b", nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Unsubscribe("missing"), ErrSubscriberNotFound)

	require.NoError(t, bus.Close(time.Second))
	assert.ErrorIs(t, bus.Subscribe("c", func(Event) error { return nil }), ErrBusClosed)
	assert.ErrorIs(t, bus.Publish(New(Enter, "open", "right", 0)), ErrBusClosed)
	assert.NoError(t, bus.Close(time.Second))
}

func TestBusIsolatesFailingSubscriber(t *testing.T) {
	bus := NewBus()
	var good recorder
	require.NoError(t, bus.Subscribe("panics", func(Event) error { panic("boom") }))
	require.NoError(t, bus.Subscribe("errors", func(Event) error { return errors.New("nope") }))
	require.NoError(t, bus.Subscribe("good", good.handle))

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(New(Enter, "fist", "left", int64(i))))
	}

	require.Eventually(t, func() bool {
		st, _ := bus.Stats("panics")
		st2, _ := bus.Stats("errors")
		return st.Failed == 3 && st2.Failed == 3 && len(good.snapshot()) == 3
	}, time.Second, 5*time.Millisecond)

	st, err := bus.Stats("good")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), st.Delivered)
	require.NoError(t, bus.Close(time.Second))
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewBus(WithQueueSize(2))
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var fast recorder

	require.NoError(t, bus.Subscribe("slow", func(Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}))
	require.NoError(t, bus.Subscribe("fast", fast.handle))

	require.NoError(t, bus.Publish(New(Hold, "open", "right", 0)))
	<-started

	// Slow handler is blocked on the first event; two more fill its queue.
	for i := 1; i <= 5; i++ {
		require.NoError(t, bus.Publish(New(Hold, "open", "right", int64(i))))
	}

	st, err := bus.Stats("slow")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), st.Dropped)

	require.Eventually(t, func() bool { return len(fast.snapshot()) >= 2 }, time.Second, 5*time.Millisecond)

	close(release)
	require.NoError(t, bus.Close(time.Second))
}

func TestBusNeverDropsMustDeliverKinds(t *testing.T) {
	bus := NewBus(WithQueueSize(1))
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var got recorder

	require.NoError(t, bus.Subscribe("actuation", func(e Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return got.handle(e)
	}, MustDeliver(Exit)))

	require.NoError(t, bus.Publish(New(Enter, "pinch", "right", 0)))
	<-started
	require.NoError(t, bus.Publish(New(Hold, "pinch", "right", 1)))
	require.NoError(t, bus.Publish(New(Hold, "pinch", "right", 2)))

	published := make(chan error, 1)
	go func() {
		published <- bus.Publish(New(Exit, "pinch", "right", 3))
	}()

	select {
	case <-published:
		t.Fatal("exit published while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-published)

	// Only the second hold found the queue full.
	st, err := bus.Stats("actuation")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Dropped)
	require.NoError(t, bus.Close(time.Second))

	events := got.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, Exit, events[2].Kind)
	assert.Equal(t, int64(3), events[2].Timestamp)
}

func TestBusMetaIsolation(t *testing.T) {
	bus := NewBus()
	got := make(chan Event, 2)
	mutate := func(e Event) error {
		e.Meta["touched"] = true
		got <- e
		return nil
	}
	require.NoError(t, bus.Subscribe("a", mutate))
	require.NoError(t, bus.Subscribe("b", mutate))

	e := New(Slide, "slide_left", "right", 0).WithMeta("distance", 0.2)
	require.NoError(t, bus.Publish(e))
	require.NoError(t, bus.Close(time.Second))

	assert.NotContains(t, e.Meta, "touched")
	assert.Len(t, got, 2)
}

func TestBusUnsubscribeDrains(t *testing.T) {
	bus := NewBus()
	var r recorder
	require.NoError(t, bus.Subscribe("a", r.handle))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(New(Hold, "open", "right", int64(i))))
	}
	require.NoError(t, bus.Unsubscribe("a"))
	assert.Len(t, r.snapshot(), 5)

	require.NoError(t, bus.Publish(New(Hold, "open", "right", 99)))
	assert.Len(t, r.snapshot(), 5)
	require.NoError(t, bus.Close(time.Second))
}

func TestBusCloseTimeout(t *testing.T) {
	bus := NewBus()
	block := make(chan struct{})
	defer close(block)
	require.NoError(t, bus.Subscribe("stuck", func(Event) error {
		<-block
		return nil
	}))
	require.NoError(t, bus.Publish(New(Enter, "open", "right", 0)))

	err := bus.Close(20 * time.Millisecond)
	assert.Error(t, err)
}
