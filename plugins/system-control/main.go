// Command system-control is the system action plugin for macOS: volume,
// media keys, window switching and screenshots.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Request is read from stdin.
type Request struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// Response is written to stdout.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type switchParams struct {
	Forward *bool `json:"forward"`
}

type screenshotParams struct {
	Dir string `json:"dir"`
}

// scripts holds the AppleScript for parameterless actions.
var scripts = map[string]string{
	"volume_up":        `set volume output volume ((output volume of (get volume settings)) + 10)`,
	"volume_down":      `set volume output volume ((output volume of (get volume settings)) - 10)`,
	"volume_mute":      `set volume output muted (not (output muted of (get volume settings)))`,
	"media_play_pause": `tell application "System Events" to key code 100`,
	"media_next":       `tell application "System Events" to key code 101`,
	"media_prev":       `tell application "System Events" to key code 98`,
}

func main() {
	resp := handle(os.Stdin, time.Now(), run)
	json.NewEncoder(os.Stdout).Encode(resp)
}

type runner func(name string, args ...string) error

func handle(r io.Reader, now time.Time, exec runner) Response {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}

	name, args, err := command(req, now)
	if err != nil {
		return Response{Error: err.Error()}
	}
	if err := exec(name, args...); err != nil {
		return Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)}
	}
	return Response{Success: true}
}

func command(req Request, now time.Time) (string, []string, error) {
	if script, ok := scripts[req.Action]; ok {
		return "osascript", []string{"-e", script}, nil
	}

	switch req.Action {
	case "switch_window":
		var p switchParams
		if err := unmarshalParams(req.Params, &p); err != nil {
			return "", nil, err
		}
		using := "command down"
		if p.Forward != nil && !*p.Forward {
			using = "command down, shift down"
		}
		return "osascript", []string{"-e", `tell application "System Events" to key code 48 using {` + using + `}`}, nil
	case "screenshot":
		var p screenshotParams
		if err := unmarshalParams(req.Params, &p); err != nil {
			return "", nil, err
		}
		dir := p.Dir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", nil, fmt.Errorf("failed to resolve home: %w", err)
			}
			dir = filepath.Join(home, "Desktop")
		}
		name := "phantomhand-" + now.Format("20060102-150405") + ".png"
		return "screencapture", []string{"-x", filepath.Join(dir, name)}, nil
	default:
		return "", nil, fmt.Errorf("unknown action: %s", req.Action)
	}
}

func unmarshalParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse params: %w", err)
	}
	return nil
}

func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
