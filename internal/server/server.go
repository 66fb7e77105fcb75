// Package server provides the HTTP server of the phantomhand daemon: REST
// endpoints, the websocket hub and the MJPEG stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ayusman/phantomhand/internal/action"
	"github.com/ayusman/phantomhand/internal/debounce"
	"github.com/ayusman/phantomhand/internal/emitter"
	"github.com/ayusman/phantomhand/internal/event"
	"github.com/ayusman/phantomhand/internal/pipeline"
	"github.com/ayusman/phantomhand/internal/server/api"
	"github.com/ayusman/phantomhand/internal/store"
)

const shutdownTimeout = 2 * time.Second

// Config holds the server collaborators. Nil fields disable the routes
// that need them.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Pipeline   *pipeline.Pipeline
	Bus        *event.Bus
	Hub        *Hub
	Stream     *Stream
	Activation Activation
	MQTT       *emitter.MQTT

	// OnBindingsChanged receives the stored bindings after a REST change.
	OnBindingsChanged func([]action.Binding)
}

// Server is the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/stats", s.handleStats)

	if s.config.Pipeline != nil {
		s.mux.HandleFunc("/api/hands", s.handleHands)
		s.mux.HandleFunc("/api/hands/reset", s.handleReset)
	}

	if s.config.Activation != nil {
		s.mux.HandleFunc("/api/active", s.handleActive)
	}

	if s.config.Store != nil {
		bindings := api.NewBindingHandler(s.config.Store, s.config.OnBindingsChanged)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)
	}

	if s.config.Stream != nil {
		s.mux.Handle("/api/stream", s.config.Stream)
	}

	if s.config.Hub != nil {
		s.mux.Handle("/ws", s.config.Hub)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	}
	if s.config.Pipeline != nil {
		response["running"] = s.config.Pipeline.Running()
	}
	writeJSON(w, http.StatusOK, response)
}

type statsResponse struct {
	Pipeline    *pipeline.Stats                  `json:"pipeline,omitempty"`
	Published   uint64                           `json:"published"`
	Subscribers map[string]event.SubscriberStats `json:"subscribers,omitempty"`
	Websocket   *HubStats                        `json:"websocket,omitempty"`
	MQTT        *emitter.Stats                   `json:"mqtt,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var resp statsResponse
	if p := s.config.Pipeline; p != nil {
		stats := p.Stats()
		resp.Pipeline = &stats
	}
	if b := s.config.Bus; b != nil {
		resp.Published = b.Published()
		resp.Subscribers = b.AllStats()
	}
	if h := s.config.Hub; h != nil {
		stats := h.Stats()
		resp.Websocket = &stats
	}
	if m := s.config.MQTT; m != nil {
		stats := m.Stats()
		resp.MQTT = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hands := s.config.Pipeline.Processor().Machine().Snapshots()
	if hands == nil {
		hands = []debounce.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hands": hands})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hand := r.URL.Query().Get("hand")
	ctx, cancel := context.WithTimeout(r.Context(), shutdownTimeout)
	defer cancel()

	if err := s.config.Pipeline.Reset(ctx, hand); err != nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("reset: %v", err))
		return
	}

	if hand == "" {
		hand = "all"
	}
	slog.Info("hand state reset", "hand", hand)
	writeJSON(w, http.StatusOK, map[string]string{"reset": hand})
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut, http.MethodPost:
		var req struct {
			Active *bool `json:"active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
			writeError(w, http.StatusBadRequest, "body must be {\"active\": bool}")
			return
		}
		if err := s.config.Activation.SetActive(*req.Active); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"active": s.config.Activation.Active()})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// Request contexts end with ctx so MJPEG streams return on shutdown.
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.config.Hub != nil {
		s.config.Hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		if !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("http shutdown: %w", err)
		}
	}
	slog.Info("http server stopped")
	return nil
}
