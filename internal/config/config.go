// Package config loads the daemon configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/phantomhand/internal/action"
	"github.com/ayusman/phantomhand/internal/capture"
	"github.com/ayusman/phantomhand/internal/debounce"
	"github.com/ayusman/phantomhand/internal/detector"
	"github.com/ayusman/phantomhand/internal/emitter"
	"github.com/ayusman/phantomhand/internal/gesture"
	"github.com/ayusman/phantomhand/internal/pipeline"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// DataDirName is created under the user's home directory.
const DataDirName = ".phantomhand"

// Config is the complete daemon configuration.
type Config struct {
	Log      LogConfig            `yaml:"log"`
	Camera   capture.Config       `yaml:"camera"`
	Detector detector.Config      `yaml:"detector"`
	Scorer   gesture.ScorerConfig `yaml:"scorer"`
	Gesture  GestureConfig        `yaml:"gesture"`
	Slide    gesture.SlideConfig  `yaml:"slide"`
	Hands    HandsConfig          `yaml:"hands"`
	Pipeline pipeline.Config      `yaml:"pipeline"`
	Events   EventsConfig         `yaml:"events"`
	Action   ActionConfig         `yaml:"action"`
	Plugins  PluginsConfig        `yaml:"plugins"`
	Server   ServerConfig         `yaml:"server"`
	MQTT     emitter.Config       `yaml:"mqtt"`
	Store    StoreConfig          `yaml:"store"`
	Tray     TrayConfig           `yaml:"tray"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// GestureConfig holds the debounce thresholds and timers.
type GestureConfig struct {
	PHigh     float64        `yaml:"p_high"`
	PHold     float64        `yaml:"p_hold"`
	PLow      float64        `yaml:"p_low"`
	TEnter    time.Duration  `yaml:"t_enter"`
	TExit     time.Duration  `yaml:"t_exit"`
	TCooldown time.Duration  `yaml:"t_cooldown"`
	Priority  map[string]int `yaml:"priority"`

	gesture.SmootherConfig `yaml:",inline"`
}

// HandsConfig bounds per-hand state.
type HandsConfig struct {
	MaxTracked  int           `yaml:"max_tracked"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// EventsConfig tunes the event bus.
type EventsConfig struct {
	QueueSize    int           `yaml:"queue_size"`
	SendTimeout  time.Duration `yaml:"send_timeout"`
	CloseTimeout time.Duration `yaml:"close_timeout"`
}

// ActionConfig configures actuation.
type ActionConfig struct {
	action.Config `yaml:",inline"`

	// DryRun logs actions instead of running plugins.
	DryRun bool `yaml:"dry_run"`

	// RestoreActive resumes the activation state saved by the last run.
	// Off, the daemon always starts inactive.
	RestoreActive bool `yaml:"restore_active"`
}

// PluginsConfig locates and runs actuation plugins.
type PluginsConfig struct {
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig is the HTTP listen address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// TrayConfig toggles the system tray.
type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DataDir returns ~/.phantomhand, or a relative directory when the home
// directory is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DataDirName
	}
	return filepath.Join(home, DataDirName)
}

// DefaultPath is the config file read when none is given.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() Config {
	dc := debounce.DefaultConfig()
	dataDir := DataDir()

	priority := make(map[string]int, gesture.NumGestures)
	for g, p := range dc.Priorities {
		if gesture.Gesture(g) == gesture.Idle {
			continue
		}
		priority[gesture.Gesture(g).String()] = p
	}

	return Config{
		Log:      LogConfig{Level: "info", Format: "text"},
		Camera:   capture.DefaultConfig(),
		Detector: detector.DefaultConfig(),
		Scorer:   gesture.DefaultScorerConfig(),
		Gesture: GestureConfig{
			PHigh:          dc.PHigh,
			PHold:          dc.PHold,
			PLow:           dc.PLow,
			TEnter:         dc.TEnter,
			TExit:          dc.TExit,
			TCooldown:      dc.TCooldown,
			Priority:       priority,
			SmootherConfig: dc.Smoothing,
		},
		Slide:    gesture.DefaultSlideConfig(),
		Hands:    HandsConfig{MaxTracked: dc.MaxTracked, IdleTimeout: dc.IdleTimeout},
		Pipeline: pipeline.DefaultConfig(),
		Events: EventsConfig{
			QueueSize:    64,
			CloseTimeout: 2 * time.Second,
		},
		Action: ActionConfig{Config: action.DefaultConfig()},
		Plugins: PluginsConfig{
			Dir:     filepath.Join(dataDir, "plugins"),
			Timeout: 2 * time.Second,
		},
		Server: ServerConfig{Host: "127.0.0.1", Port: 8765},
		MQTT:   emitter.DefaultConfig(),
		Store:  StoreConfig{Path: filepath.Join(dataDir, "phantomhand.db")},
		Tray:   TrayConfig{Enabled: true},
	}
}

// Load reads path over the defaults and validates the result. A missing
// file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("config file not found, using defaults", "path", path)
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := Parse(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping values the document omits, and
// validates the result. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return nil
}

// Marshal renders cfg as YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks ranges and orderings.
func (c Config) Validate() error {
	g := c.Gesture
	for _, p := range []struct {
		name string
		v    float64
	}{{"gesture.p_high", g.PHigh}, {"gesture.p_hold", g.PHold}, {"gesture.p_low", g.PLow}} {
		if p.v <= 0 || p.v > 1 {
			return invalid("%s must be in (0,1], got %g", p.name, p.v)
		}
	}
	if !(g.PHigh > g.PHold && g.PHold > g.PLow) {
		return invalid("thresholds must satisfy p_high > p_hold > p_low, got %g/%g/%g", g.PHigh, g.PHold, g.PLow)
	}
	if g.TEnter < 0 || g.TExit < 0 || g.TCooldown < 0 {
		return invalid("gesture timers must not be negative")
	}
	if g.Alpha <= 0 || g.Alpha >= 1 {
		return invalid("gesture.ema_alpha must be in (0,1), got %g", g.Alpha)
	}
	if g.MedianWindow < 1 || g.MedianWindow > g.HistorySize {
		return invalid("gesture.median_window must be in [1,history_size], got %d", g.MedianWindow)
	}

	if c.Pipeline.QueueSize < 1 {
		return invalid("pipeline.queue_size must be at least 1")
	}
	if c.Slide.MinSamples < 2 || c.Slide.MinSamples > c.Slide.HistorySize {
		return invalid("slide.min_samples must be in [2,history_size], got %d", c.Slide.MinSamples)
	}
	if c.Hands.MaxTracked < 1 {
		return invalid("hands.max_tracked must be at least 1")
	}
	if c.Hands.IdleTimeout <= 0 {
		return invalid("hands.idle_timeout must be positive")
	}
	if c.Events.QueueSize < 1 {
		return invalid("events.queue_size must be at least 1")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format %q", c.Log.Format)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("server.port %d out of range", c.Server.Port)
	}
	if c.MQTT.QoS > 2 {
		return invalid("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}

// DebounceConfig builds the state machine configuration. Unknown gesture
// names in the priority table are logged and ignored.
func (c Config) DebounceConfig() debounce.Config {
	priorities, unknown := gesture.NewPriorities(c.Gesture.Priority)
	for _, name := range unknown {
		slog.Warn("ignoring priority for unknown gesture", "gesture", name)
	}

	return debounce.Config{
		PHigh:       c.Gesture.PHigh,
		PHold:       c.Gesture.PHold,
		PLow:        c.Gesture.PLow,
		TEnter:      c.Gesture.TEnter,
		TExit:       c.Gesture.TExit,
		TCooldown:   c.Gesture.TCooldown,
		Smoothing:   c.Gesture.SmootherConfig,
		Priorities:  priorities,
		MaxTracked:  c.Hands.MaxTracked,
		IdleTimeout: c.Hands.IdleTimeout,
	}
}

// SlogLevel maps Log.Level to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
