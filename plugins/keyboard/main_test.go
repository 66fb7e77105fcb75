package main

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		req      string
		wantName string
		wantArgs []string
	}{
		{`{"action":"mouse_move","params":{"dx":12,"dy":-3}}`, "cliclick", []string{"m:+12,-3"}},
		{`{"action":"mouse_down"}`, "cliclick", []string{"dd:."}},
		{`{"action":"mouse_up"}`, "cliclick", []string{"du:."}},
		{`{"action":"mouse_click"}`, "cliclick", []string{"c:."}},
		{`{"action":"keystroke","params":{"key":"c","modifiers":["cmd","shift"]}}`, "osascript",
			[]string{"-e", `tell application "System Events" to keystroke "c" using {command down, shift down}`}},
		{`{"action":"keystroke","params":{"key":"space"}}`, "osascript",
			[]string{"-e", `tell application "System Events" to key code 49`}},
	}

	for _, tt := range tests {
		var gotName string
		var gotArgs []string
		resp := handle(strings.NewReader(tt.req), func(name string, args ...string) error {
			gotName, gotArgs = name, args
			return nil
		})
		if !resp.Success {
			t.Errorf("%s: response error %q", tt.req, resp.Error)
			continue
		}
		if gotName != tt.wantName || !reflect.DeepEqual(gotArgs, tt.wantArgs) {
			t.Errorf("%s: ran %s %q, want %s %q", tt.req, gotName, gotArgs, tt.wantName, tt.wantArgs)
		}
	}
}

func TestHandleErrors(t *testing.T) {
	noop := func(string, ...string) error { return nil }

	tests := []struct {
		req  string
		want string
	}{
		{`not json`, "failed to decode request"},
		{`{"action":"fly"}`, "unknown action: fly"},
		{`{"action":"keystroke","params":{}}`, "key is required"},
		{`{"action":"mouse_move","params":{"dx":"far"}}`, "failed to parse params"},
	}
	for _, tt := range tests {
		resp := handle(strings.NewReader(tt.req), noop)
		if resp.Success || !strings.Contains(resp.Error, tt.want) {
			t.Errorf("%s: got %+v, want error containing %q", tt.req, resp, tt.want)
		}
	}

	failing := func(string, ...string) error { return errors.New("not installed") }
	resp := handle(strings.NewReader(`{"action":"mouse_click"}`), failing)
	if resp.Success || resp.Error != "action mouse_click failed: not installed" {
		t.Errorf("got %+v", resp)
	}
}
