package main

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CTAG07/folio/pkg/render"
	"github.com/CTAG07/folio/pkg/vcache"
	"github.com/google/uuid"
)

const (
	actionShutdown = "shutdown"
	actionRestart  = "restart"
)

// Server owns the HTTP surface: page rendering on every path plus the
// small operations API under /_folio/.
type Server struct {
	cm         *ConfigManager
	logger     *slog.Logger
	pipe       *render.Pipeline
	native     *render.NativeEngine
	store      vcache.Store
	actionChan chan string
	handler    http.Handler
}

func NewServer(cm *ConfigManager, logger *slog.Logger, store vcache.Store, actionChan chan string) (*Server, error) {
	config := cm.Get()

	// engine initialization
	native, err := render.NewNativeEngine(logger, config.Render.ViewsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create native engine: %w", err)
	}
	engines := render.NewEngines()
	if err = engines.Register(native); err != nil {
		return nil, err
	}

	pipe, err := render.New(config.Render, engines, store, render.NewRegistry(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create render pipeline: %w", err)
	}

	// create object, register routes to the mux, and return it
	server := &Server{
		cm:         cm,
		logger:     logger,
		pipe:       pipe,
		native:     native,
		store:      store,
		actionChan: actionChan,
	}
	cm.SetNativeEngine(native)

	mux := http.NewServeMux()
	mux.HandleFunc("/_folio/health", server.handleHealth)
	mux.HandleFunc("/_folio/config", server.handleConfig)
	mux.HandleFunc("/_folio/cache/clear", server.handleCacheClear)
	mux.HandleFunc("/_folio/restart", server.handleRestart)
	mux.HandleFunc("/_folio/shutdown", server.handleShutdown)
	mux.HandleFunc("/favicon.ico", handleFavicon)
	mux.HandleFunc("/", server.handlePage)
	server.handler = server.withAccessLog(mux)

	return server, nil
}

// handlePage renders the view a request path names. Recognized render
// failures come back as substitute pages the pipeline already emitted;
// anything else is an internal error.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	view, typ := s.resolveView(r.URL.Path)

	res, err := s.pipe.Emit(w, r, view, typ, nil)
	if err != nil {
		s.logger.Error("Failed to render page", "view", view, "error", err)
		if res == nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}
	if res.Err != nil {
		s.logger.Debug("Served substitute page", "view", view, "status", res.Status.String(), "error", res.Err)
	}
}

// resolveView maps a request path to a view name and type: "/" serves
// the configured index view, a recognized extension selects the type
// ("/feed.rss" renders view "feed" as rss) and everything else renders
// as html.
func (s *Server) resolveView(path string) (string, render.ViewType) {
	config := s.cm.Get()

	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return config.Server.IndexView, render.TypeHTML
	}
	if i := strings.LastIndex(trimmed, "."); i > strings.LastIndex(trimmed, "/") {
		if typ, err := render.ParseViewType(trimmed[i+1:]); err == nil {
			return trimmed[:i], typ
		}
	}
	return trimmed, render.TypeHTML
}

// handleHealth reports liveness. It is unauthenticated so something
// like docker can use it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": Version,
		"commit":  Commit,
		"views":   len(s.native.Views()),
	})
}

// handleConfig gets or updates the running configuration.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !s.authorized(r) {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		config := s.cm.Get()
		respondWithJSON(w, http.StatusOK, &config)
	case http.MethodPut:
		if !s.authorized(r) {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		// Decode over defaults so omitted sections keep their default
		// values instead of arriving nil.
		newConfig := Config{Server: DefaultServerConfig(), Render: defaultRenderConfig()}
		if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		if err := s.cm.Update(newConfig); err != nil {
			s.logger.Error("Failed to update configuration", "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save configuration: %v", err))
			return
		}

		s.logger.Info("Application configuration updated and saved via API. Some changes may require a restart.")
		config := s.cm.Get()
		respondWithJSON(w, http.StatusOK, &config)
	default:
		w.Header().Set("Allow", "GET, PUT")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleCacheClear wipes the response cache.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.authorized(r) {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if s.store == nil {
		respondWithError(w, http.StatusConflict, "No cache backend configured")
		return
	}

	n, err := s.store.Clear(r.Context(), "")
	if err != nil {
		s.logger.Error("Failed to clear cache", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to clear cache")
		return
	}
	s.logger.Info("Response cache cleared", "entries", n)
	respondWithJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

// handleRestart initiates a graceful restart of the server.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.authorized(r) {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	s.logger.Warn("Restart initiated via API")
	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Server is restarting..."})

	go func() {
		s.actionChan <- actionRestart
	}()
}

// handleShutdown initiates a graceful shutdown of the server.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.authorized(r) {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	s.logger.Warn("Shutdown initiated via API")
	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Server is shutting down..."})

	go func() {
		s.actionChan <- actionShutdown
	}()
}

// authorized checks the bearer token against the configured admin
// token. An empty configured token leaves the operations API open,
// which is only sensible for local development.
func (s *Server) authorized(r *http.Request) bool {
	token := s.cm.Get().Server.AdminToken
	if token == "" {
		return true
	}
	presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	want := sha256.Sum256([]byte(token))
	got := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}

// withAccessLog tags every request with an id and logs method, path,
// status and timing once the handler returns.
func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("Handled request",
			"id", uuid.NewString(),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr)
	})
}

// statusRecorder captures the status code a handler writes so the
// access log can report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// handleFavicon returns no content so browser favicon probes are not
// routed through the render pipeline. This prevents every page load
// from producing a second, useless 404 render.
func handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		err := json.NewEncoder(w).Encode(payload)
		if err != nil {
			fmt.Printf("ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}
