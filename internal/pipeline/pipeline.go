// Package pipeline connects a frame source to the gesture processing chain
// through a small drop-oldest queue and a single processing goroutine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/phantomhand/internal/capture"
	"github.com/ayusman/phantomhand/internal/event"
)

var (
	ErrAlreadyRunning = errors.New("pipeline already running")
	ErrNotRunning     = errors.New("pipeline not running")
	ErrStopTimeout    = errors.New("pipeline did not stop in time")
)

// Config controls queueing and shutdown.
type Config struct {
	QueueSize   int           `yaml:"queue_size"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:   2,
		PollTimeout: 100 * time.Millisecond,
		StopTimeout: 2 * time.Second,
	}
}

// Publisher receives the events produced for each frame. *event.Bus
// satisfies it.
type Publisher interface {
	Publish(e event.Event) error
}

// FrameObserver is called on the processing goroutine after every frame.
// It must not block.
type FrameObserver func(FrameResult)

// Stats reports pipeline counters.
type Stats struct {
	Running      bool       `json:"running"`
	Queue        QueueStats `json:"queue"`
	Processed    uint64     `json:"processed"`
	DetectErrors uint64     `json:"detect_errors"`
	ReadErrors   uint64     `json:"read_errors"`
	Events       uint64     `json:"events"`
	Hands        int        `json:"hands"`
}

type resetRequest struct {
	handID string
	done   chan []event.Event
}

// Pipeline owns the producer and processing goroutines.
type Pipeline struct {
	cfg   Config
	proc  *Processor
	pub   Publisher
	queue *FrameQueue

	obsMu     sync.RWMutex
	observers []FrameObserver

	resets chan resetRequest

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	camera  capture.Camera
	wg      sync.WaitGroup

	processed    atomic.Uint64
	detectErrors atomic.Uint64
	readErrors   atomic.Uint64
	events       atomic.Uint64
}

// New creates a stopped pipeline.
func New(cfg Config, proc *Processor, pub Publisher) *Pipeline {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultConfig().PollTimeout
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultConfig().StopTimeout
	}
	return &Pipeline{
		cfg:    cfg,
		proc:   proc,
		pub:    pub,
		queue:  NewFrameQueue(cfg.QueueSize),
		resets: make(chan resetRequest),
	}
}

// Processor returns the processing chain.
func (p *Pipeline) Processor() *Processor {
	return p.proc
}

// AddObserver registers fn to receive every FrameResult.
func (p *Pipeline) AddObserver(fn FrameObserver) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	p.observers = append(p.observers, fn)
}

// Submit queues a frame for processing. It never blocks; if the queue is
// full the oldest frame is discarded and Submit reports false.
func (p *Pipeline) Submit(frame *capture.Frame) bool {
	if dropped := p.queue.Push(frame); dropped != nil {
		slog.Debug("frame dropped", "frame", dropped.ID)
		return false
	}
	return true
}

// Start begins processing. When camera is non-nil it is opened and a
// producer goroutine feeds it into the queue; failing to open the camera
// is returned and nothing is started. With a nil camera frames arrive
// only through Submit.
func (p *Pipeline) Start(ctx context.Context, camera capture.Camera) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyRunning
	}

	if camera != nil {
		if err := camera.Open(); err != nil {
			return fmt.Errorf("open camera: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.camera = camera
	p.running = true

	if camera != nil {
		p.wg.Add(1)
		go p.produce(ctx, camera)
	}
	p.wg.Add(1)
	go p.consume(ctx)

	slog.Info("pipeline started", "queue_size", p.queue.Cap(), "camera", camera != nil)
	return nil
}

// Run starts the pipeline and blocks until ctx is done, then stops it.
func (p *Pipeline) Run(ctx context.Context, camera capture.Camera) error {
	if err := p.Start(ctx, camera); err != nil {
		return err
	}
	<-ctx.Done()
	return p.Stop()
}

// Stop halts acquisition, releases the camera, discards queued frames and
// waits for the processing goroutine to finish its current frame.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.cancel()
	camera := p.camera
	p.running = false
	p.camera = nil
	p.mu.Unlock()

	if camera != nil {
		if err := camera.Close(); err != nil {
			slog.Warn("close camera", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(p.cfg.StopTimeout):
		err = ErrStopTimeout
	}

	if n := p.queue.Drain(); n > 0 {
		slog.Debug("discarded queued frames", "count", n)
	}
	slog.Info("pipeline stopped", "processed", p.processed.Load())
	return err
}

// Running reports whether the pipeline is started.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Reset forgets one hand (or all hands when handID is empty) between
// frames and publishes exits for held gestures. If the pipeline is stopped
// the reset is applied directly.
func (p *Pipeline) Reset(ctx context.Context, handID string) error {
	if !p.Running() {
		p.publish(p.proc.Reset(handID, time.Now().UnixMilli()))
		return nil
	}

	req := resetRequest{handID: handID, done: make(chan []event.Event, 1)}
	select {
	case p.resets <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Running:      p.Running(),
		Queue:        p.queue.Stats(),
		Processed:    p.processed.Load(),
		DetectErrors: p.detectErrors.Load(),
		ReadErrors:   p.readErrors.Load(),
		Events:       p.events.Load(),
		Hands:        p.proc.Machine().Len(),
	}
}

func (p *Pipeline) produce(ctx context.Context, camera capture.Camera) {
	defer p.wg.Done()

	for ctx.Err() == nil {
		frame, err := camera.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, capture.ErrNoMoreFrames) {
				slog.Info("frame source exhausted")
				return
			}
			p.readErrors.Add(1)
			slog.Warn("frame read failed", "error", err)
			if !sleep(ctx, frameInterval(camera)) {
				return
			}
			continue
		}
		p.Submit(frame)
	}
}

func (p *Pipeline) consume(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.resets:
			events := p.proc.Reset(req.handID, time.Now().UnixMilli())
			p.publish(events)
			req.done <- events
			continue
		default:
		}

		frame, ok := p.queue.Pop(ctx, p.cfg.PollTimeout)
		if !ok {
			continue
		}

		result, err := p.proc.Process(frame)
		if err != nil {
			p.detectErrors.Add(1)
			slog.Warn("frame skipped", "frame", frame.ID, "error", err)
			continue
		}

		p.publish(result.Events)
		p.notify(result)
		p.processed.Add(1)
	}
}

func (p *Pipeline) publish(events []event.Event) {
	for _, e := range events {
		p.events.Add(1)
		if p.pub == nil {
			continue
		}
		if err := p.pub.Publish(e); err != nil {
			slog.Warn("publish event", "kind", e.Kind, "gesture", e.Gesture, "hand", e.HandID, "error", err)
		}
	}
}

func (p *Pipeline) notify(result FrameResult) {
	p.obsMu.RLock()
	defer p.obsMu.RUnlock()
	for _, fn := range p.observers {
		fn(result)
	}
}

func frameInterval(camera capture.Camera) time.Duration {
	fps := camera.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	return time.Second / time.Duration(fps)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
