// Package server exposes the consumer's snapshot and controls over a Unix socket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/agentwatch/internal/daemon/store"
	"github.com/sirupsen/logrus"
)

// Backend is the part of the engine the server talks to.
type Backend interface {
	Store() *store.Store
	Post(store.Update) bool
}

// RunningConfig holds the active settings of the consumer.
// This is exposed via the /api/config endpoint so clients can verify what config is active.
type RunningConfig struct {
	StateFile     string        `json:"state_file"`
	MaxTracked    int           `json:"max_tracked"`
	StaleAfter    time.Duration `json:"stale_after"`
	SweepInterval time.Duration `json:"sweep_interval"`
	PollInterval  time.Duration `json:"poll_interval"`
	StartedAt     time.Time     `json:"started_at"`
}

// Server manages the consumer's HTTP server over a Unix socket.
type Server struct {
	logger        *logrus.Entry
	server        *http.Server
	engine        Backend
	runningConfig *RunningConfig
}

// New creates a new Server instance.
func New(logger *logrus.Entry) *Server {
	return &Server{
		logger: logger,
	}
}

// SetEngine sets the engine backing the API.
func (s *Server) SetEngine(eng Backend) {
	s.engine = eng
}

// SetRunningConfig sets the running configuration for the server.
func (s *Server) SetRunningConfig(cfg *RunningConfig) {
	s.runningConfig = cfg
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/untrack", s.handleUntrack)
	mux.HandleFunc("/api/config", s.handleGetConfig)
	return mux
}

// ListenAndServe serves on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	// Cleanup stale socket
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set restrictive permissions on socket
	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.WithField("socket", socketPath).Info("Listening")
	return s.server.Serve(listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Store().Snapshot())
}

// handleStream sends the current snapshot and then every published one as
// Server-Sent Events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	st := s.engine.Store()
	ch := st.Subscribe()
	defer st.Unsubscribe(ch)

	fmt.Fprintf(w, ": connected\n\n")
	s.writeEvent(w, st.Snapshot())
	flusher.Flush()

	s.logger.Debug("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case u, ok := <-ch:
			if !ok {
				return
			}
			snap, isSnap := u.Payload.(store.Snapshot)
			if u.Type != store.UpdateSnapshot || !isSnap {
				continue
			}
			s.writeEvent(w, snap)
			flusher.Flush()
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, snap store.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal snapshot")
		return
	}
	// SSE format: "data: {json}\n\n"
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// UntrackRequest is the body of POST /api/untrack.
type UntrackRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleUntrack(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req UntrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !s.engine.Post(store.Update{Type: store.UpdateUntrack, Source: "api", Payload: req.ID}) {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	s.logger.WithField("session", req.ID).Debug("Untrack queued")
	writeJSON(w, http.StatusAccepted, map[string]string{"queued": req.ID})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.runningConfig)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
