// Package capture defines the frame type and the camera abstraction that
// feeds the processing pipeline.
package capture

import (
	"errors"
	"sync"
	"time"
)

// Default camera settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrNoMoreFrames is returned by a non-looping mock once playback ends.
	ErrNoMoreFrames = errors.New("no more frames")
)

// Frame is one acquired image. Data holds the JPEG-encoded image.
type Frame struct {
	ID        uint64
	Timestamp int64 // milliseconds
	Width     int
	Height    int
	Data      []byte
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*Frame, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Config holds camera settings.
type Config struct {
	Device      int  `yaml:"device"`
	Width       int  `yaml:"width"`
	Height      int  `yaml:"height"`
	FPS         int  `yaml:"fps"`
	Mirror      bool `yaml:"mirror"`
	JPEGQuality int  `yaml:"jpeg_quality"`
}

// DefaultConfig returns the camera defaults.
func DefaultConfig() Config {
	return Config{
		Device:      0,
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		FPS:         DefaultFPS,
		Mirror:      true,
		JPEGQuality: 80,
	}
}

// Stamper assigns monotonically increasing ids and capture timestamps.
type Stamper struct {
	mu   sync.Mutex
	next uint64
	now  func() time.Time
}

// NewStamper returns a Stamper using the wall clock.
func NewStamper() *Stamper {
	return &Stamper{now: time.Now}
}

// SetClock replaces the time source.
func (s *Stamper) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Stamp sets the frame's id and timestamp.
func (s *Stamper) Stamp(f *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	f.ID = s.next
	f.Timestamp = s.now().UnixMilli()
}
