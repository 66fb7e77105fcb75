package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
)

var (
	// ErrPluginNotFound is returned when no plugin matches a name or action.
	ErrPluginNotFound = errors.New("plugin not found")
)

// Manager holds the plugins found in one directory.
type Manager struct {
	pluginDir string

	mu      sync.RWMutex
	plugins map[string]*Plugin
	// actions maps an action to the plugin that serves it. When two
	// plugins claim an action the first by name wins.
	actions map[string]*Plugin
}

// NewManager creates a Manager for pluginDir. Call Discover to load it.
func NewManager(pluginDir string) *Manager {
	return &Manager{
		pluginDir: pluginDir,
		plugins:   make(map[string]*Plugin),
		actions:   make(map[string]*Plugin),
	}
}

// Discover rescans the plugin directory. A missing directory yields no
// plugins. Unreadable or malformed manifests are logged and skipped, as
// are plugins built for another platform.
func (m *Manager) Discover() error {
	plugins := make(map[string]*Plugin)

	entries, err := os.ReadDir(m.pluginDir)
	if errors.Is(err, os.ErrNotExist) {
		m.replace(plugins)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read plugin dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p, err := load(filepath.Join(m.pluginDir, entry.Name()))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			slog.Warn("skipping plugin", "dir", entry.Name(), "error", err)
			continue
		}
		if !p.runsOn(runtime.GOOS) {
			slog.Debug("plugin not built for this platform", "plugin", p.Manifest.Name, "os", runtime.GOOS)
			continue
		}
		plugins[p.Manifest.Name] = p
	}

	m.replace(plugins)
	slog.Info("plugins discovered", "dir", m.pluginDir, "count", len(plugins))
	return nil
}

func load(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if manifest.Name == "" || manifest.Executable == "" {
		return nil, fmt.Errorf("manifest missing name or executable")
	}

	return &Plugin{
		Manifest:   manifest,
		Path:       dir,
		Executable: filepath.Join(dir, manifest.Executable),
	}, nil
}

func (p *Plugin) runsOn(goos string) bool {
	if len(p.Manifest.Platforms) == 0 {
		return true
	}
	for _, platform := range p.Manifest.Platforms {
		if platform == goos {
			return true
		}
	}
	return false
}

func (m *Manager) replace(plugins map[string]*Plugin) {
	names := make([]string, 0, len(plugins))
	for name := range plugins {
		names = append(names, name)
	}
	sort.Strings(names)

	actions := make(map[string]*Plugin)
	for _, name := range names {
		p := plugins[name]
		for _, a := range p.Manifest.Actions {
			if _, taken := actions[a]; !taken {
				actions[a] = p
			}
		}
	}

	m.mu.Lock()
	m.plugins = plugins
	m.actions = actions
	m.mu.Unlock()
}

// Get returns a plugin by name.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return p, nil
}

// ForAction returns the plugin that serves action.
func (m *Manager) ForAction(action string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.actions[action]
	if !ok {
		return nil, fmt.Errorf("%w: no plugin handles %q", ErrPluginNotFound, action)
	}
	return p, nil
}

// List returns all plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.Name < out[j].Manifest.Name })
	return out
}

// Actions returns every action some plugin serves, sorted.
func (m *Manager) Actions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.actions))
	for a := range m.actions {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// PluginDir returns the scanned directory.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
