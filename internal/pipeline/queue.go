package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/ayusman/phantomhand/internal/capture"
)

// QueueStats counts frames passing through a FrameQueue.
type QueueStats struct {
	Pushed  uint64 `json:"pushed"`
	Dropped uint64 `json:"dropped"`
	Popped  uint64 `json:"popped"`
	Len     int    `json:"len"`
}

// FrameQueue is a bounded FIFO that never blocks the producer: pushing
// into a full queue discards the oldest frame.
type FrameQueue struct {
	mu    sync.Mutex
	buf   []*capture.Frame
	head  int
	count int
	stats QueueStats

	// ready holds a token while the queue is non-empty.
	ready chan struct{}
}

// NewFrameQueue creates a queue holding at most capacity frames.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameQueue{
		buf:   make([]*capture.Frame, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push appends f, evicting the oldest frame if the queue is full. The
// evicted frame is returned, or nil.
func (q *FrameQueue) Push(f *capture.Frame) *capture.Frame {
	q.mu.Lock()
	var dropped *capture.Frame
	if q.count == len(q.buf) {
		dropped = q.buf[q.head]
		q.buf[q.head] = nil
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.stats.Dropped++
	}
	q.buf[(q.head+q.count)%len(q.buf)] = f
	q.count++
	q.stats.Pushed++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped
}

// TryPop removes the oldest frame without waiting.
func (q *FrameQueue) TryPop() (*capture.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil, false
	}
	f := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.stats.Popped++
	return f, true
}

// Pop removes the oldest frame, waiting up to timeout for one to arrive.
// It returns false on timeout or when ctx is done.
func (q *FrameQueue) Pop(ctx context.Context, timeout time.Duration) (*capture.Frame, bool) {
	if f, ok := q.TryPop(); ok {
		return f, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-timer.C:
			return q.TryPop()
		case <-q.ready:
			if f, ok := q.TryPop(); ok {
				return f, true
			}
		}
	}
}

// Drain discards every queued frame and returns how many were removed.
func (q *FrameQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count
	for i := range q.buf {
		q.buf[i] = nil
	}
	q.head, q.count = 0, 0
	return n
}

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity.
func (q *FrameQueue) Cap() int {
	return len(q.buf)
}

// Stats returns a copy of the counters.
func (q *FrameQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Len = q.count
	return s
}
