package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lapublica/platform/internal/auth"
	"github.com/lapublica/platform/internal/config"
	"github.com/lapublica/platform/internal/realtime"
)

// Deps is everything the HTTP layer is built from.
type Deps struct {
	Server   config.ServerConfig
	Auth     *auth.Manager
	Events   *realtime.Hub
	Health   *HealthChecker
	Services Services
	// MaxUploadBytes caps logo and image uploads.
	MaxUploadBytes int64
}

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	router  *chi.Mux
	server  *http.Server

	// endStreams closes open /api/events connections on shutdown.
	endStreams context.CancelFunc
}

// NewServer builds the router from deps.
func NewServer(deps Deps) *Server {
	streams, cancel := context.WithCancel(context.Background())
	router := setupRoutes(deps, streams)
	return &Server{
		config:     deps.Server,
		handler:    router,
		router:     router,
		endStreams: cancel,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// No WriteTimeout: /api/events streams for the life of the session.
		IdleTimeout: 120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown ends open event streams and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.endStreams()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
