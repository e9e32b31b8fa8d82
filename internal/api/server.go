package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/TrayMinder/internal/app"
	"github.com/bryanchriswhite/TrayMinder/internal/config"
	"github.com/bryanchriswhite/TrayMinder/internal/logger"
)

const requestTimeout = 5 * time.Second

// Backend is the running TrayMinder instance as seen from HTTP handlers.
type Backend interface {
	Status(ctx context.Context) (app.Status, error)
	TrayClick(ctx context.Context) (string, error)
	Subscribe() (<-chan app.Event, func())
}

// Preferences is the store edited by the preferences pane.
type Preferences interface {
	Value(key string) (string, error)
	Set(key, value string) error
	GetConfigPath() string
}

// Server is the local preferences pane: a small JSON API plus a websocket
// status stream.
type Server struct {
	router   *mux.Router
	backend  Backend
	prefs    Preferences
	upgrader websocket.Upgrader
	http     *http.Server
	version  string
}

// NewServer creates a new API server
func NewServer(backend Backend, prefs Preferences, version string) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		backend: backend,
		prefs:   prefs,
		version: version,
	}

	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	api.HandleFunc("/preferences", s.handleGetPreferences).Methods("GET")
	api.HandleFunc("/preferences", s.handleUpdatePreferences).Methods("PUT")

	api.HandleFunc("/tray/click", s.handleTrayClick).Methods("POST")

	api.HandleFunc("/events", s.handleEvents)

	s.router.Path("/").HandlerFunc(s.handleIndex)
}

// Start serves on 127.0.0.1:port until Shutdown is called.
func (s *Server) Start(port int) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: requestTimeout,
	}

	logger.WithComponent("api").Info().Str("addr", "http://"+addr).Msg("Starting preferences pane")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// HTTP Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	st, err := s.backend.Status(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs := make(map[string]string, len(config.Keys))
	for _, key := range config.Keys {
		v, err := s.prefs.Value(key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		prefs[key] = v
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"path":        s.prefs.GetConfigPath(),
		"preferences": prefs,
	})
}

// handleUpdatePreferences applies a {"key": "value"} map. Keys are checked
// before anything is written so a bad request changes nothing.
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for key := range req {
		if !config.IsKey(key) {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %s", config.ErrUnknownKey, key))
			return
		}
	}

	for _, key := range config.Keys {
		value, ok := req[key]
		if !ok {
			continue
		}
		if err := s.prefs.Set(key, value); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleTrayClick(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	action, err := s.backend.TrayClick(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"action": action})
}

// handleEvents sends the current status, then every event until the client
// goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	events, unsubscribe := s.backend.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	st, err := s.backend.Status(ctx)
	cancel()
	if err == nil {
		if err := conn.WriteJSON(map[string]interface{}{"type": "status", "status": st}); err != nil {
			return
		}
	}

	// Reader: notices the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>TrayMinder</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 720px; margin: 40px auto; }
        code { background: #f5f5f5; padding: 2px 6px; border-radius: 3px; }
    </style>
</head>
<body>
    <h1>TrayMinder</h1>
    <ul>
        <li><a href="/api/status">/api/status</a> - window, helper and listener state</li>
        <li><a href="/api/preferences">/api/preferences</a> - preferences (PUT to change)</li>
        <li><code>POST /api/tray/click</code> - same as clicking the tray icon</li>
        <li><code>/api/events</code> - websocket event stream</li>
    </ul>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}
