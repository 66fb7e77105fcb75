// Package app wires the camera, detector, processing pipeline, event
// subscribers and HTTP server of the phantomhand daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/phantomhand/internal/action"
	"github.com/ayusman/phantomhand/internal/capture"
	"github.com/ayusman/phantomhand/internal/config"
	"github.com/ayusman/phantomhand/internal/debounce"
	"github.com/ayusman/phantomhand/internal/detector"
	"github.com/ayusman/phantomhand/internal/emitter"
	"github.com/ayusman/phantomhand/internal/event"
	"github.com/ayusman/phantomhand/internal/gesture"
	"github.com/ayusman/phantomhand/internal/pipeline"
	"github.com/ayusman/phantomhand/internal/plugin"
	"github.com/ayusman/phantomhand/internal/server"
	"github.com/ayusman/phantomhand/internal/store"
)

// Subscriber names on the event bus.
const (
	SubscriberLog       = "log"
	SubscriberActuation = "actuation"
	SubscriberWebsocket = "websocket"
	SubscriberMQTT      = "mqtt"
)

// Options overrides collaborators that are otherwise built from the
// configuration.
type Options struct {
	// Camera feeds the pipeline. Without one, frames only arrive through
	// Pipeline().Submit.
	Camera capture.Camera
	// Detector defaults to MediaPipe, falling back to a detector that
	// never finds hands.
	Detector detector.Detector
	// Actuator defaults to plugins, or logging in dry-run mode.
	Actuator action.Actuator
	// Store defaults to the configured SQLite file. A provided store is
	// not closed by the App.
	Store *store.Store
	// StaticDir is served at / when set.
	StaticDir string
}

// App is the main application that orchestrates gesture detection and
// action execution.
type App struct {
	cfg       config.Config
	camera    capture.Camera
	detector  detector.Detector
	store     *store.Store
	ownsStore bool

	bus        *event.Bus
	pipeline   *pipeline.Pipeline
	controller *action.Controller
	plugins    *plugin.Manager
	hub        *server.Hub
	stream     *server.Stream
	server     *server.Server
	mqtt       *emitter.MQTT
}

// New builds the application. Nothing runs until Run.
func New(cfg config.Config, opts Options) (*App, error) {
	a := &App{
		cfg:      cfg,
		camera:   opts.Camera,
		detector: opts.Detector,
		store:    opts.Store,
	}

	if a.store == nil {
		st, err := store.New(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = st
		a.ownsStore = true
	}

	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(cfg.Detector); err == nil {
			a.detector = mp
			slog.Info("using MediaPipe hand detection")
		} else {
			slog.Warn("MediaPipe not available, no hands will be detected", "error", err)
			a.detector = detector.NewMockDetector()
		}
	}

	machine, err := debounce.NewMachine(cfg.DebounceConfig())
	if err != nil {
		a.closeStore()
		return nil, fmt.Errorf("create state machine: %w", err)
	}
	proc := pipeline.NewProcessor(a.detector,
		gesture.NewScorer(cfg.Scorer),
		machine,
		gesture.NewSlideDetector(cfg.Slide))

	busOpts := []event.Option{event.WithQueueSize(cfg.Events.QueueSize)}
	if cfg.Events.SendTimeout > 0 {
		busOpts = append(busOpts, event.WithSendTimeout(cfg.Events.SendTimeout))
	}
	a.bus = event.NewBus(busOpts...)
	a.pipeline = pipeline.New(cfg.Pipeline, proc, a.bus)

	a.plugins = plugin.NewManager(cfg.Plugins.Dir)
	actuator := opts.Actuator
	if actuator == nil {
		actuator = a.defaultActuator()
	}
	a.controller = action.NewController(cfg.Action.Config, actuator)

	a.hub = server.NewHub(a.controller)
	a.stream = server.NewStream()
	if cfg.MQTT.Enabled() {
		a.mqtt = emitter.NewMQTT(cfg.MQTT)
	}

	if err := a.loadState(); err != nil {
		a.closeStore()
		return nil, err
	}
	if err := a.subscribe(); err != nil {
		a.closeStore()
		return nil, err
	}
	a.pipeline.AddObserver(a.hub.ObserveFrame)
	a.pipeline.AddObserver(a.stream.ObserveFrame)

	a.server = server.New(server.Config{
		StaticDir:         opts.StaticDir,
		Store:             a.store,
		Pipeline:          a.pipeline,
		Bus:               a.bus,
		Hub:               a.hub,
		Stream:            a.stream,
		Activation:        a.controller,
		MQTT:              a.mqtt,
		OnBindingsChanged: a.controller.SetBindings,
	})

	return a, nil
}

func (a *App) defaultActuator() action.Actuator {
	if a.cfg.Action.DryRun {
		slog.Info("dry run: actions are logged, not performed")
		return action.LogActuator{}
	}
	if err := a.plugins.Discover(); err != nil {
		slog.Warn("plugin discovery failed", "dir", a.cfg.Plugins.Dir, "error", err)
	}
	slog.Info("plugins discovered", "dir", a.cfg.Plugins.Dir, "actions", a.plugins.Actions())
	return action.NewPluginActuator(a.plugins, plugin.NewExecutor(a.cfg.Plugins.Timeout))
}

// loadState restores bindings from the store, and the activation flag when
// action.restore_active is set, then starts persisting activation changes.
func (a *App) loadState() error {
	bindings, err := a.store.Bindings().List()
	if err != nil {
		return fmt.Errorf("load bindings: %w", err)
	}
	a.controller.SetBindings(bindings)

	if a.cfg.Action.RestoreActive && a.store.Settings().Bool(store.SettingActive, false) {
		if err := a.controller.SetActive(true); err != nil {
			return fmt.Errorf("restore activation: %w", err)
		}
	}

	a.controller.OnActiveChanged(func(active bool) {
		if err := a.store.Settings().SetBool(store.SettingActive, active); err != nil {
			slog.Warn("persist activation", "error", err)
		}
		a.hub.BroadcastActive(active)
	})
	return nil
}

type subscription struct {
	name    string
	handler event.Handler
	opts    []event.SubscribeOption
}

func (a *App) subscribe() error {
	subs := []subscription{
		{name: SubscriberLog, handler: logEvent},
		// A dropped Exit would leave a pinch holding the button.
		{name: SubscriberActuation, handler: a.controller.Handle, opts: []event.SubscribeOption{event.MustDeliver(event.Exit)}},
		{name: SubscriberWebsocket, handler: a.hub.HandleEvent},
	}
	if a.mqtt != nil {
		subs = append(subs, subscription{name: SubscriberMQTT, handler: a.mqtt.Handle})
	}

	for _, s := range subs {
		if err := a.bus.Subscribe(s.name, s.handler, s.opts...); err != nil {
			return fmt.Errorf("subscribe %s: %w", s.name, err)
		}
	}
	return nil
}

func logEvent(e event.Event) error {
	if e.Kind == event.Hold {
		slog.Debug("gesture held", "hand", e.HandID, "gesture", e.Gesture, "hold_ms", e.HoldDuration)
		return nil
	}
	slog.Info("gesture event",
		"kind", e.Kind.String(),
		"hand", e.HandID,
		"gesture", e.Gesture,
		"confidence", e.Confidence)
	return nil
}

// Run starts the pipeline and the HTTP server and blocks until ctx is
// cancelled or either fails. Resources are released before it returns.
func (a *App) Run(ctx context.Context) error {
	if a.mqtt != nil {
		if err := a.mqtt.Connect(ctx); err != nil {
			slog.Warn("mqtt unavailable, retrying in background", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.pipeline.Run(gctx, a.camera)
	})
	g.Go(func() error {
		return a.server.Run(gctx, a.cfg.Server.Addr())
	})

	err := g.Wait()
	if cerr := a.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close stops the pipeline, drains subscribers, releases held input and
// closes the detector and store. It is called by Run.
func (a *App) Close() error {
	var errs []error

	if err := a.pipeline.Stop(); err != nil {
		errs = append(errs, err)
	}
	// Queued events may still press the button, so release only after the
	// bus has drained.
	if err := a.bus.Close(a.cfg.Events.CloseTimeout); err != nil {
		errs = append(errs, err)
	}
	if err := a.controller.Close(); err != nil {
		errs = append(errs, fmt.Errorf("release input: %w", err))
	}
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
	if err := a.detector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close detector: %w", err))
	}
	if err := a.closeStore(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeStore() error {
	if !a.ownsStore || a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Bus returns the event bus.
func (a *App) Bus() *event.Bus {
	return a.bus
}

// Pipeline returns the frame pipeline.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Controller returns the actuation controller.
func (a *App) Controller() *action.Controller {
	return a.controller
}

// Handler returns the HTTP handler.
func (a *App) Handler() *server.Server {
	return a.server
}

// Config returns the configuration the App was built with.
func (a *App) Config() config.Config {
	return a.cfg
}
