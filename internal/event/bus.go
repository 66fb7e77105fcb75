package event

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrBusClosed          = errors.New("event bus is closed")
	ErrSubscriberExists   = errors.New("subscriber already registered")
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrNilHandler         = errors.New("handler is nil")
)

// Handler consumes one event. A returned error or a panic is logged and
// does not affect other subscribers.
type Handler func(Event) error

// SubscriberStats counts what happened to events offered to a subscriber.
type SubscriberStats struct {
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

const (
	DefaultQueueSize = 64
)

type subscriber struct {
	name    string
	handler Handler
	ch      chan Event
	done    chan struct{}
	// mustDeliver kinds wait for queue room instead of being dropped.
	mustDeliver map[Kind]bool

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// Bus delivers each published event to every subscriber in publish order.
// Every subscriber runs on its own goroutine behind a bounded queue, so a
// slow subscriber only loses its own events once its queue is full.
type Bus struct {
	mu          sync.RWMutex
	subs        map[string]*subscriber
	closed      bool
	queueSize   int
	sendTimeout time.Duration
	published   atomic.Uint64
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueSize sets the per-subscriber queue capacity.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithSendTimeout makes Publish wait up to d for room in a full subscriber
// queue before dropping. Zero means never wait.
func WithSendTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.sendTimeout = d
		}
	}
}

// NewBus creates an empty Bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs:      make(map[string]*subscriber),
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SubscribeOption configures one subscriber.
type SubscribeOption func(*subscriber)

// MustDeliver makes Publish block until the subscriber has room for events
// of the given kinds, so they are never dropped. Use it for kinds that undo
// state, such as Exit for a subscriber that holds a button down.
func MustDeliver(kinds ...Kind) SubscribeOption {
	return func(s *subscriber) {
		if s.mustDeliver == nil {
			s.mustDeliver = make(map[Kind]bool, len(kinds))
		}
		for _, k := range kinds {
			s.mustDeliver[k] = true
		}
	}
}

// Subscribe registers h under name and starts its delivery goroutine.
func (b *Bus) Subscribe(name string, h Handler, opts ...SubscribeOption) error {
	if h == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subs[name]; exists {
		return fmt.Errorf("%w: %s", ErrSubscriberExists, name)
	}

	s := &subscriber{
		name:    name,
		handler: h,
		ch:      make(chan Event, b.queueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	b.subs[name] = s
	go s.run()

	return nil
}

// Unsubscribe removes a subscriber. Events already queued for it are still
// delivered.
func (b *Bus) Unsubscribe(name string) error {
	b.mu.Lock()
	s, ok := b.subs[name]
	if ok {
		delete(b.subs, name)
		close(s.ch)
	}
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSubscriberNotFound, name)
	}
	<-s.done
	return nil
}

// Publish offers e to every subscriber without blocking on the handlers,
// except for kinds a subscriber registered with MustDeliver. It returns
// ErrBusClosed after Close.
func (b *Bus) Publish(e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	b.published.Add(1)

	for _, s := range b.subs {
		ev := e
		ev.Meta = maps.Clone(e.Meta)
		if !b.offer(s, ev) {
			s.dropped.Add(1)
			slog.Warn("event dropped, subscriber queue full",
				"subscriber", s.name,
				"kind", e.Kind,
				"gesture", e.Gesture,
				"hand", e.HandID)
		}
	}
	return nil
}

func (b *Bus) offer(s *subscriber, e Event) bool {
	select {
	case s.ch <- e:
		return true
	default:
	}

	if s.mustDeliver[e.Kind] {
		s.ch <- e
		return true
	}

	if b.sendTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(b.sendTimeout)
	defer timer.Stop()

	select {
	case s.ch <- e:
		return true
	case <-timer.C:
		return false
	}
}

// Published returns the number of events accepted by Publish.
func (b *Bus) Published() uint64 {
	return b.published.Load()
}

// Stats returns counters for one subscriber.
func (b *Bus) Stats(name string) (SubscriberStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, ok := b.subs[name]
	if !ok {
		return SubscriberStats{}, fmt.Errorf("%w: %s", ErrSubscriberNotFound, name)
	}
	return s.stats(), nil
}

// AllStats returns counters for every subscriber keyed by name.
func (b *Bus) AllStats() map[string]SubscriberStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]SubscriberStats, len(b.subs))
	for name, s := range b.subs {
		out[name] = s.stats()
	}
	return out
}

// Close stops accepting events and waits up to timeout for subscribers to
// finish what is already queued. Events still queued at the deadline are
// abandoned.
func (b *Bus) Close(timeout time.Duration) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		close(s.ch)
		subs = append(subs, s)
	}
	b.subs = make(map[string]*subscriber)
	b.mu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for _, s := range subs {
		select {
		case <-s.done:
		case <-deadline.C:
			return fmt.Errorf("event bus close: subscriber %s still draining after %s", s.name, timeout)
		}
	}
	return nil
}

func (s *subscriber) stats() SubscriberStats {
	return SubscriberStats{
		Delivered: s.delivered.Load(),
		Failed:    s.failed.Load(),
		Dropped:   s.dropped.Load(),
	}
}

func (s *subscriber) run() {
	defer close(s.done)
	for e := range s.ch {
		if err := s.deliver(e); err != nil {
			s.failed.Add(1)
			slog.Error("event subscriber failed",
				"subscriber", s.name,
				"kind", e.Kind,
				"gesture", e.Gesture,
				"hand", e.HandID,
				"error", err)
			continue
		}
		s.delivered.Add(1)
	}
}

func (s *subscriber) deliver(e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler(e)
}
