// Package tray provides the system tray menu of the phantomhand daemon.
package tray

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/phantomhand/internal/event"
)

// Tray shows the activation state and the last recognized gesture.
type Tray struct {
	dashboardURL string

	onToggle func(active bool)
	onQuit   func()
	active   bool
	last     string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle      *systray.MenuItem
	menuLastGesture *systray.MenuItem
}

// New creates a Tray. dashboardURL is opened by the dashboard menu item.
func New(dashboardURL string, active bool) *Tray {
	return &Tray{dashboardURL: dashboardURL, active: active}
}

// OnToggle sets the callback run when the user toggles control.
func (t *Tray) OnToggle(fn func(active bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnQuit sets the callback run when the quit item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray. It must be called from the main goroutine
// and blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("PhantomHand")
	systray.SetTooltip("PhantomHand gesture control")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.active), "Toggle gesture control")
	systray.AddSeparator()
	t.menuLastGesture = systray.AddMenuItem(lastTitle(t.last), "Last recognized gesture")
	t.menuLastGesture.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit PhantomHand")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuDashboard.ClickedCh:
				if err := openURL(t.dashboardURL); err != nil {
					slog.Warn("open dashboard", "url", t.dashboardURL, "error", err)
				}
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func toggleTitle(active bool) string {
	if active {
		return "● Active"
	}
	return "○ Inactive"
}

func lastTitle(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}

func (t *Tray) handleToggle() {
	t.mu.RLock()
	active := !t.active
	callback := t.onToggle
	t.mu.RUnlock()

	// The new state is shown once SetActive reports it back.
	if callback != nil {
		callback(active)
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetActive updates the toggle item.
func (t *Tray) SetActive(active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active = active
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(active))
	}
}

// Active returns the state shown in the menu.
func (t *Tray) Active() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

// HandleEvent shows entered gestures and slides as the last gesture. It
// is an event.Handler.
func (t *Tray) HandleEvent(e event.Event) error {
	if e.Kind != event.Enter && e.Kind != event.Slide {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = e.Gesture
	if t.menuLastGesture != nil {
		t.menuLastGesture.SetTitle(lastTitle(e.Gesture))
	}
	return nil
}

// LastGesture returns the gesture shown in the menu.
func (t *Tray) LastGesture() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func openURL(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	go cmd.Wait()
	return nil
}
