// Package server provides the HTTP server for the Mudra gesture recognition service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/mudra/internal/history"
	"github.com/ayusman/mudra/internal/recognizer"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// ModelStatus reports on the classifier for the health endpoint.
type ModelStatus interface {
	Available() bool
	Labels() []string
}

// Config holds the server configuration.
type Config struct {
	Backend    store.Backend
	Recognizer *recognizer.Recognizer
	Sessions   *session.Manager
	History    *history.Service
	Model      ModelStatus

	// Hub serves live session events. Nil disables the endpoint.
	Hub *Hub

	// APIToken, if set, is required as a bearer token on /api routes.
	APIToken string

	StaticDir    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server represents the HTTP server for the Mudra service.
type Server struct {
	config Config
	router chi.Router
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/api/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(api.BearerAuth(s.config.APIToken))
		r.Use(api.Identity(s.config.Backend.Users()))

		r.Mount("/api/prediction", api.NewPredictionHandler(s.config.Recognizer, s.config.History).Routes())

		var live http.Handler
		if s.config.Hub != nil {
			live = s.config.Hub
		}
		r.Mount("/api/sessions", api.NewSessionHandler(s.config.Sessions).Routes(live))

		r.Mount("/api/user", api.NewProfileHandler(s.config.Backend.Users()).Routes())
		r.Mount("/api/admin", api.NewAdminHandler(s.config.Backend.Users(), s.config.History).Routes())
	})

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type healthResponse struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	ModelLoaded  bool   `json:"model_loaded"`
	DegradedMode bool   `json:"degraded_mode"`
	Classes      int    `json:"classes"`
	Database     string `json:"database"`
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Uptime:   time.Since(s.start).Round(time.Second).String(),
		Database: "ok",
	}
	if m := s.config.Model; m != nil {
		resp.ModelLoaded = m.Available()
		resp.Classes = len(m.Labels())
	}
	resp.DegradedMode = !resp.ModelLoaded

	status := http.StatusOK
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.config.Backend.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("health check: database unreachable")
		resp.Status = "unavailable"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Debug().Err(err).Msg("write health response")
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if s.config.Hub != nil {
		s.config.Hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
