// Package webcam implements capture.Camera on top of GoCV (OpenCV).
package webcam

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/phantomhand/internal/capture"
)

// Camera manages video capture from a camera device using GoCV.
type Camera struct {
	config  capture.Config
	capture *gocv.VideoCapture
	stamper *capture.Stamper
	mu      sync.Mutex
	running bool
}

// New creates a Camera with the given settings. Zero sizes and rates fall
// back to the package defaults.
func New(config capture.Config) *Camera {
	if config.Width <= 0 {
		config.Width = capture.DefaultWidth
	}
	if config.Height <= 0 {
		config.Height = capture.DefaultHeight
	}
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}
	if config.JPEGQuality <= 0 || config.JPEGQuality > 100 {
		config.JPEGQuality = 80
	}

	return &Camera{
		config:  config,
		stamper: capture.NewStamper(),
	}
}

// Open opens the camera for capturing frames.
func (c *Camera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.config.Device)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.config.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("open camera %d: device unavailable", c.config.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.config.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.config.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(c.config.FPS))

	c.capture = vc
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame grabs one image, mirrors it when configured, and returns it
// JPEG-encoded.
func (c *Camera) ReadFrame() (*capture.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, capture.ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := c.capture.Read(&mat); !ok {
		return nil, errors.New("failed to read frame from camera")
	}
	if mat.Empty() {
		return nil, errors.New("captured frame is empty")
	}

	if c.config.Mirror {
		gocv.Flip(mat, &mat, 1)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, c.config.JPEGQuality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	frame := &capture.Frame{
		Width:  mat.Cols(),
		Height: mat.Rows(),
		Data:   append([]byte(nil), buf.GetBytes()...),
	}
	c.stamper.Stamp(frame)

	return frame, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *Camera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.config.FPS = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *Camera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.config.FPS
}

// IsOpen returns true if the camera is currently open and running.
func (c *Camera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

var _ capture.Camera = (*Camera)(nil)
