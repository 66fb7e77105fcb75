package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned when a plugin outlives the executor's timeout.
var ErrTimeout = errors.New("plugin timed out")

// DefaultTimeout bounds a single plugin invocation.
const DefaultTimeout = 2 * time.Second

// waitDelay caps how long output pipes are drained after a plugin is
// killed, in case it left children holding them open.
const waitDelay = 500 * time.Millisecond

// Executor runs plugin executables.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an Executor. A non-positive timeout selects
// DefaultTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// Execute sends req to the plugin and decodes its reply. A reply with
// Success=false is returned as-is; only transport failures are errors.
func (e *Executor) Execute(ctx context.Context, p *Plugin, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.Executable)
	cmd.Dir = p.Path
	cmd.WaitDelay = waitDelay
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s: %s", ErrTimeout, e.timeout, p.Manifest.Name)
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("run %s: %w: %s", p.Manifest.Name, err, msg)
		}
		return nil, fmt.Errorf("run %s: %w", p.Manifest.Name, err)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("parse %s response: %w (stdout %q)", p.Manifest.Name, err, stdout.String())
	}
	return &resp, nil
}

// Call runs action on p with params and turns an unsuccessful reply into
// an error.
func (e *Executor) Call(ctx context.Context, p *Plugin, action string, params any) error {
	req := &Request{Action: action}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}

	resp, err := e.Execute(ctx, p, req)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s %s: %s", p.Manifest.Name, action, resp.Error)
	}
	return nil
}
