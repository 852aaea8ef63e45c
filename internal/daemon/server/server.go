// Package server provides the HTTP server for the gitbutler daemon.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/gitbutler/errors"
	"github.com/grovetools/gitbutler/internal/daemon/engine"
	"github.com/grovetools/gitbutler/pkg/daemon"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// RunningConfig is served on /api/config so clients can see which
// settings the daemon actually loaded.
type RunningConfig = daemon.RunningConfig

// Server exposes the engine's state over HTTP on a unix socket.
type Server struct {
	log      *logrus.Entry
	http     *http.Server
	engine   *engine.Engine
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	running *RunningConfig
}

func New(log *logrus.Entry) *Server {
	return &Server{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Only local processes can reach the socket
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// SetEngine attaches the engine whose store backs the API.
func (s *Server) SetEngine(eng *engine.Engine) {
	s.engine = eng
}

// SetRunningConfig replaces the configuration reported on /api/config.
// Safe to call while serving.
func (s *Server) SetRunningConfig(cfg *RunningConfig) {
	s.mu.Lock()
	s.running = cfg
	s.mu.Unlock()
}

// Handler returns the daemon's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/state", s.withEngine(s.handleGetState))
	mux.HandleFunc("GET /api/projects", s.withEngine(s.handleGetProjects))
	mux.HandleFunc("GET /api/sessions", s.withEngine(s.handleGetSessions))
	mux.HandleFunc("GET /api/stream", s.withEngine(s.handleStream))
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	return mux
}

// withEngine answers 503 until SetEngine has been called.
func (s *Server) withEngine(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.engine == nil {
			http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
			return
		}
		next(w, r)
	}
}

// ListenAndServe binds socketPath, replacing a leftover socket file, and
// serves until Shutdown. The socket is readable by the owner only.
func (s *Server) ListenAndServe(socketPath string) error {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return errors.FilesystemFailed("create socket directory", filepath.Dir(socketPath), err)
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return errors.FilesystemFailed("remove stale socket", socketPath, err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return errors.FilesystemFailed("listen", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = ln.Close()
		return errors.FilesystemFailed("restrict socket", socketPath, err)
	}

	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.WithField("socket", socketPath).Info("Daemon listening")
	return s.http.Serve(ln)
}

// Shutdown stops accepting connections and waits for handlers to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.log.Info("Shutting down server")
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.engine.Store().Get())
}

// handleGetProjects lists registered projects with whether a collector is
// running for each, its last failure and its newest session.
func (s *Server) handleGetProjects(w http.ResponseWriter, _ *http.Request) {
	st := s.engine.Store()
	running := make(map[string]bool)
	for _, id := range s.engine.Running() {
		running[id] = true
	}

	projects := st.GetProjects()
	out := make([]daemon.ProjectStatus, 0, len(projects))
	for _, p := range projects {
		status := daemon.ProjectStatus{Project: p, Watching: running[p.ID]}
		if f := st.GetFailure(p.ID); f != nil {
			status.LastError = f.Message
		}
		if recent := st.GetSessions(p.ID); len(recent) > 0 {
			status.LastSession = recent[0].Hash
		}
		out = append(out, status)
	}
	writeJSON(w, out)
}

// handleGetSessions lists recently closed sessions, newest first. The
// project query parameter filters to one project.
func (s *Server) handleGetSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Store().GetSessions(r.URL.Query().Get("project")))
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	cfg := s.running
	s.mu.RUnlock()
	if cfg == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, cfg)
}

// handleStream upgrades to a websocket and pushes one models.Event per
// state change until the client goes away. The optional project query
// parameter limits the stream to one project.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	only := r.URL.Query().Get("project")
	ch := s.engine.Store().Subscribe()
	defer s.engine.Store().Unsubscribe(ch)

	s.log.Debug("Stream client connected")

	// The read side only handles control frames and notices disconnects
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			s.log.Debug("Stream client disconnected")
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case update, ok := <-ch:
			if !ok {
				return
			}
			event := update.Event()
			if event == nil || (only != "" && event.ProjectID != only) {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				s.log.WithError(err).Debug("Failed to write stream event")
				return
			}
		}
	}
}
