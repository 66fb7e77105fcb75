package capture

import (
	"sync"
)

// MockCamera plays back a fixed frame sequence, optionally looping.
type MockCamera struct {
	frames  []Frame
	index   int
	loop    bool
	fps     int
	stamper *Stamper
	mu      sync.Mutex
	running bool
	readErr error
}

func NewMockCamera(frames []Frame, loop bool) *MockCamera {
	return &MockCamera{
		frames:  frames,
		loop:    loop,
		fps:     DefaultFPS,
		stamper: NewStamper(),
	}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// ReadFrame returns a copy of the next frame, stamped with a fresh id and
// timestamp.
func (c *MockCamera) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if c.readErr != nil {
		err := c.readErr
		c.readErr = nil
		return nil, err
	}

	if c.index >= len(c.frames) {
		if !c.loop || len(c.frames) == 0 {
			return nil, ErrNoMoreFrames
		}
		c.index = 0
	}

	frame := c.frames[c.index]
	c.index++
	c.stamper.Stamp(&frame)

	return &frame, nil
}

// FailNext makes the next ReadFrame return err.
func (c *MockCamera) FailNext(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Stamper exposes the id/timestamp source so tests can pin the clock.
func (c *MockCamera) Stamper() *Stamper {
	return c.stamper
}
