// Command keyboard is the input plugin for macOS. It sends keystrokes via
// AppleScript and drives the pointer with cliclick.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
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

type keystrokeParams struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"`
}

type moveParams struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

// keyCodes covers named keys that keystroke cannot type.
var keyCodes = map[string]int{
	"return": 36,
	"enter":  36,
	"tab":    48,
	"space":  49,
	"delete": 51,
	"escape": 53,
	"left":   123,
	"right":  124,
	"down":   125,
	"up":     126,
}

func main() {
	resp := handle(os.Stdin, run)
	json.NewEncoder(os.Stdout).Encode(resp)
}

type runner func(name string, args ...string) error

func handle(r io.Reader, exec runner) Response {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}

	name, args, err := command(req)
	if err != nil {
		return Response{Error: err.Error()}
	}
	if err := exec(name, args...); err != nil {
		return Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)}
	}
	return Response{Success: true}
}

// command maps a request to the program and arguments that perform it.
func command(req Request) (string, []string, error) {
	switch req.Action {
	case "keystroke":
		var p keystrokeParams
		if err := unmarshalParams(req.Params, &p); err != nil {
			return "", nil, err
		}
		if p.Key == "" {
			return "", nil, errors.New("key is required")
		}
		return "osascript", []string{"-e", keystrokeScript(p.Key, p.Modifiers)}, nil
	case "mouse_move":
		var p moveParams
		if err := unmarshalParams(req.Params, &p); err != nil {
			return "", nil, err
		}
		return "cliclick", []string{"m:" + relative(p.DX) + "," + relative(p.DY)}, nil
	case "mouse_down":
		return "cliclick", []string{"dd:."}, nil
	case "mouse_up":
		return "cliclick", []string{"du:."}, nil
	case "mouse_click":
		return "cliclick", []string{"c:."}, nil
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

// relative formats an offset the way cliclick expects: always signed.
func relative(d int) string {
	if d >= 0 {
		return fmt.Sprintf("+%d", d)
	}
	return fmt.Sprintf("%d", d)
}

func keystrokeScript(key string, modifiers []string) string {
	var using []string
	for _, mod := range modifiers {
		if m, ok := modifierMap[strings.ToLower(mod)]; ok {
			using = append(using, m)
		}
	}

	stroke := fmt.Sprintf("keystroke %q", key)
	if code, ok := keyCodes[strings.ToLower(key)]; ok {
		stroke = fmt.Sprintf("key code %d", code)
	}
	script := `tell application "System Events" to ` + stroke
	if len(using) > 0 {
		script += " using {" + strings.Join(using, ", ") + "}"
	}
	return script
}

func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
