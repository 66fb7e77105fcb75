// Package detector turns camera frames into hand landmark records.
package detector

import (
	"time"

	"github.com/ayusman/phantomhand/internal/capture"
)

// Detector finds hands in a frame. An empty result means no hands.
type Detector interface {
	Detect(frame *capture.Frame) ([]HandRecord, error)
	Close() error
}

// Config configures the MediaPipe landmark service.
type Config struct {
	MaxHands        int     `yaml:"max_hands"`
	MinConfidence   float64 `yaml:"min_confidence"`
	MinTrackingConf float64 `yaml:"min_tracking_confidence"`

	// ScriptPath and PythonPath override the lookup of the service script
	// and its interpreter.
	ScriptPath string `yaml:"script_path"`
	PythonPath string `yaml:"python_path"`

	// IdleShutdown stops the service after this long without frames. It is
	// restarted on the next frame.
	IdleShutdown time.Duration `yaml:"idle_shutdown"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		IdleShutdown:    30 * time.Second,
	}
}
