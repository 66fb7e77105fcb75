package webcam

import (
	"testing"

	"github.com/ayusman/phantomhand/internal/capture"
)

func TestNew_Defaults(t *testing.T) {
	tests := []struct {
		name    string
		config  capture.Config
		wantFPS int
	}{
		{
			name:    "zero config uses defaults",
			config:  capture.Config{},
			wantFPS: capture.DefaultFPS,
		},
		{
			name:    "explicit fps kept",
			config:  capture.Config{FPS: 15},
			wantFPS: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := New(tt.config)

			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
			if cam.IsOpen() {
				t.Error("camera should not be running initially")
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := New(capture.DefaultConfig())

	cam.SetFPS(10)
	if got := cam.FPS(); got != 10 {
		t.Errorf("FPS() = %d, want 10", got)
	}

	cam.SetFPS(0)
	if got := cam.FPS(); got != 10 {
		t.Errorf("FPS() = %d, want previous value 10", got)
	}
}

func TestCamera_ReadWithoutOpen(t *testing.T) {
	cam := New(capture.DefaultConfig())

	if _, err := cam.ReadFrame(); err != capture.ErrCameraNotOpen {
		t.Errorf("expected ErrCameraNotOpen, got %v", err)
	}
	if err := cam.Close(); err != nil {
		t.Errorf("Close() on unopened camera returned %v", err)
	}
}

func TestCamera_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping camera integration test in short mode")
	}

	cam := New(capture.DefaultConfig())
	if err := cam.Open(); err != nil {
		t.Skipf("no camera available: %v", err)
	}
	defer cam.Close()

	frame, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if len(frame.Data) < 2 || frame.Data[0] != 0xFF || frame.Data[1] != 0xD8 {
		t.Error("expected JPEG-encoded frame data")
	}
	if frame.ID != 1 {
		t.Errorf("expected first frame id 1, got %d", frame.ID)
	}
}
