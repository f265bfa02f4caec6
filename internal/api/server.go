package api

import (
	"context"
	"net/http"
	"time"
)

// Server wraps the HTTP server for the funnel API.
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer creates an API server over the given service.
func NewServer(svc FunnelService, allowedOrigins []string) *Server {
	handlers := NewHandlers(svc)
	return &Server{handler: SetupRoutes(handlers, allowedOrigins)}
}

// ListenAndServe starts the HTTP server on addr and blocks until shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// Reconciliation over a long date range can take a while upstream.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
