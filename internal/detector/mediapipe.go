package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/phantomhand/internal/capture"
)

const serviceScript = "mediapipe_service.py"

// ErrScriptNotFound is returned when the landmark service script cannot be
// located.
var ErrScriptNotFound = errors.New(serviceScript + " not found")

// MediaPipeDetector runs the MediaPipe hand landmarker in a Python child
// process. The process starts on the first frame and stops after
// Config.IdleShutdown without frames.
type MediaPipeDetector struct {
	cfg    Config
	script string
	python string

	mu   sync.Mutex
	proc *serviceProc
	idle *time.Timer
}

// NewMediaPipeDetector resolves the service script and interpreter. It does
// not start the service.
func NewMediaPipeDetector(cfg Config) (*MediaPipeDetector, error) {
	script := cfg.ScriptPath
	if script == "" {
		script = locate(filepath.Join("scripts", serviceScript))
	}
	if script == "" {
		return nil, ErrScriptNotFound
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("stat %s: %w", script, err)
	}

	python := cfg.PythonPath
	if python == "" {
		python = locate(filepath.Join("venv", "bin", "python"))
	}
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{cfg: cfg, script: script, python: python}, nil
}

// Detect sends the frame's JPEG to the service. Frames without image data
// yield no hands. A broken exchange kills the process so the next call
// starts a fresh one.
func (d *MediaPipeDetector) Detect(frame *capture.Frame) ([]HandRecord, error) {
	if frame == nil || len(frame.Data) == 0 {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc == nil {
		proc, err := startService(d.python, d.script, d.cfg)
		if err != nil {
			return nil, err
		}
		d.proc = proc
		slog.Info("mediapipe service started", "script", d.script, "python", d.python, "pid", proc.pid())
	}

	line, err := d.proc.exchange(frame.Data)
	if err != nil {
		d.proc.kill()
		d.proc = nil
		return nil, err
	}
	d.armIdle()

	return parseResponse(line, frame, d.cfg.MinConfidence)
}

// Close stops the service.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *MediaPipeDetector) stopLocked() error {
	if d.idle != nil {
		d.idle.Stop()
		d.idle = nil
	}
	if d.proc == nil {
		return nil
	}
	err := d.proc.stop()
	d.proc = nil
	return err
}

func (d *MediaPipeDetector) armIdle() {
	if d.cfg.IdleShutdown <= 0 {
		return
	}
	if d.idle != nil {
		d.idle.Reset(d.cfg.IdleShutdown)
		return
	}
	d.idle = time.AfterFunc(d.cfg.IdleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		slog.Info("mediapipe service idle, stopping", "after", d.cfg.IdleShutdown)
		if err := d.stopLocked(); err != nil {
			slog.Debug("mediapipe service exit", "error", err)
		}
	})
}

// serviceProc is one running service process and its pipes.
type serviceProc struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	out *bufio.Reader
}

func startService(python, script string, cfg Config) (*serviceProc, error) {
	cmd := exec.Command(python, script,
		"--max-hands", strconv.Itoa(cfg.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(cfg.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(cfg.MinTrackingConf, 'f', 2, 64),
	)
	cmd.Stderr = os.Stderr

	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mediapipe stdin: %w", err)
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mediapipe stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mediapipe service: %w", err)
	}
	return &serviceProc{cmd: cmd, in: in, out: bufio.NewReader(out)}, nil
}

func (p *serviceProc) pid() int {
	return p.cmd.Process.Pid
}

// exchange writes one frame and reads the service's one-line answer.
func (p *serviceProc) exchange(jpeg []byte) ([]byte, error) {
	if err := writeFrame(p.in, jpeg); err != nil {
		return nil, fmt.Errorf("send frame: %w", err)
	}
	line, err := p.out.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read landmarks: %w", err)
	}
	return line, nil
}

func (p *serviceProc) kill() {
	p.cmd.Process.Kill()
	if err := p.stop(); err != nil {
		slog.Debug("mediapipe service exit", "error", err)
	}
}

// stop closes stdin, which the service treats as end of input, and waits.
func (p *serviceProc) stop() error {
	p.in.Close()
	return p.cmd.Wait()
}

// writeFrame frames a JPEG as a 4-byte big-endian length and the bytes.
func writeFrame(w io.Writer, jpeg []byte) error {
	buf := make([]byte, 4+len(jpeg))
	binary.BigEndian.PutUint32(buf, uint32(len(jpeg)))
	copy(buf[4:], jpeg)
	_, err := w.Write(buf)
	return err
}

type serviceResponse struct {
	Hands []jsonHand `json:"hands"`
	Error string     `json:"error"`
}

type jsonHand struct {
	ID         string    `json:"id"`
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

// parseResponse decodes one service line and keeps the hands scoring at
// least minConfidence.
func parseResponse(line []byte, frame *capture.Frame, minConfidence float64) ([]HandRecord, error) {
	var resp serviceResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse landmarks: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("mediapipe service: %s", resp.Error)
	}

	hands := make([]HandRecord, 0, len(resp.Hands))
	for _, h := range resp.Hands {
		if h.Score < minConfidence {
			continue
		}
		hands = append(hands, h.toHandRecord(frame))
	}
	return hands, nil
}

// toHandRecord fills a record from the service's hand. Without an id the
// lowercased handedness identifies the hand.
func (h jsonHand) toHandRecord(frame *capture.Frame) HandRecord {
	rec := HandRecord{
		ID:         h.ID,
		Handedness: h.Handedness,
		Confidence: h.Score,
		FrameID:    frame.ID,
		Timestamp:  frame.Timestamp,
		Partial:    len(h.Points) < NumLandmarks,
	}
	if rec.ID == "" {
		rec.ID = strings.ToLower(h.Handedness)
	}
	copy(rec.Points[:], h.Points)
	return rec
}

// locate returns the absolute path of rel under the working directory, its
// parent, the executable's directory or ~/.phantomhand, whichever exists
// first.
func locate(rel string) string {
	dirs := []string{".", ".."}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".phantomhand"))
	}

	for _, dir := range dirs {
		path := filepath.Join(dir, rel)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}
