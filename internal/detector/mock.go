package detector

import (
	"sync"

	"github.com/ayusman/phantomhand/internal/capture"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	hands  []HandRecord
	err    error
	fn     func(frame *capture.Frame) ([]HandRecord, error)
	calls  int
	closed bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetFunc makes Detect delegate to fn, overriding SetHands and SetError.
func (m *MockDetector) SetFunc(fn func(frame *capture.Frame) ([]HandRecord, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
}

// Detect returns the pre-configured hands or error. Returned hands are
// stamped with the frame's id and timestamp.
func (m *MockDetector) Detect(frame *capture.Frame) ([]HandRecord, error) {
	m.mu.Lock()
	m.calls++
	fn, hands, err := m.fn, m.hands, m.err
	m.mu.Unlock()

	if fn != nil {
		return fn(frame)
	}
	if err != nil {
		return nil, err
	}

	out := make([]HandRecord, len(hands))
	copy(out, hands)
	if frame != nil {
		for i := range out {
			out[i].FrameID = frame.ID
			out[i].Timestamp = frame.Timestamp
		}
	}
	return out, nil
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
