// Package main provides the CLI entrypoint for phantomhand.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/phantomhand/internal/app"
	"github.com/ayusman/phantomhand/internal/capture/webcam"
	"github.com/ayusman/phantomhand/internal/config"
	"github.com/ayusman/phantomhand/internal/tray"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	logLevel   string

	runHost       string
	runPort       int
	runCamera     int
	runTray       bool
	runMQTTBroker string
	runDryRun     bool
	runWebDir     string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "phantomhand",
		Short:         "Hand gesture control for the desktop",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runDaemonCmd,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	addRunFlags(rootCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gesture daemon",
		Args:  cobra.NoArgs,
		RunE:  runDaemonCmd,
	}
	addRunFlags(runCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newBindingsCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runHost, "host", "", "HTTP listen host")
	cmd.Flags().IntVar(&runPort, "port", 0, "HTTP listen port")
	cmd.Flags().IntVar(&runCamera, "camera", 0, "camera device index")
	cmd.Flags().BoolVar(&runTray, "tray", true, "show the system tray icon")
	cmd.Flags().StringVar(&runMQTTBroker, "mqtt-broker", "", "publish events to this MQTT broker (host:port)")
	cmd.Flags().BoolVar(&runDryRun, "dry-run", false, "log actions instead of performing them")
	cmd.Flags().StringVar(&runWebDir, "web", "", "directory of dashboard files served at /")
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Lookup("host") != nil {
		applyString(cmd, "host", &cfg.Server.Host, runHost)
		applyInt(cmd, "port", &cfg.Server.Port, runPort)
		applyInt(cmd, "camera", &cfg.Camera.Device, runCamera)
		applyBool(cmd, "tray", &cfg.Tray.Enabled, runTray)
		applyString(cmd, "mqtt-broker", &cfg.MQTT.Broker, runMQTTBroker)
		applyBool(cmd, "dry-run", &cfg.Action.DryRun, runDryRun)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyString(cmd *cobra.Command, name string, dst *string, value string) {
	if cmd.Flags().Changed(name) {
		*dst = value
	}
}

func applyInt(cmd *cobra.Command, name string, dst *int, value int) {
	if cmd.Flags().Changed(name) {
		*dst = value
	}
}

func applyBool(cmd *cobra.Command, name string, dst *bool, value bool) {
	if cmd.Flags().Changed(name) {
		*dst = value
	}
}

func setupLogging(cfg config.Config, w io.Writer) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func runDaemonCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, app.Options{
		Camera:    webcam.New(cfg.Camera),
		StaticDir: findWebDir(runWebDir),
	})
	if err != nil {
		return err
	}

	slog.Info("phantomhand starting", "version", version, "addr", cfg.Server.Addr(), "config", configPath)

	if !cfg.Tray.Enabled {
		return a.Run(ctx)
	}
	return runWithTray(ctx, a)
}

// runWithTray runs the daemon in the background while the tray owns the
// main goroutine.
func runWithTray(ctx context.Context, a *app.App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl := a.Controller()
	t := tray.New("http://"+a.Config().Server.Addr(), ctrl.Active())
	t.OnToggle(func(active bool) {
		if err := ctrl.SetActive(active); err != nil {
			slog.Warn("toggle from tray", "error", err)
		}
	})
	t.OnQuit(cancel)
	ctrl.OnActiveChanged(t.SetActive)
	if err := a.Bus().Subscribe("tray", t.HandleEvent); err != nil {
		return fmt.Errorf("subscribe tray: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
		t.Quit()
	}()

	t.Run()
	cancel()
	return <-errCh
}

// findWebDir returns dir if given, otherwise the first existing dashboard
// directory among ./web, ../web and ~/.phantomhand/web.
func findWebDir(dir string) string {
	if dir != "" {
		return dir
	}

	candidates := []string{"web", filepath.Join("..", "web"), filepath.Join(config.DataDir(), "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "phantomhand %s\n", version)
		},
	}
}
