// Package server is the optional local gateway: health and status routes,
// the prediction card over HTTP, and the bridge relay over WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/predictlive/internal/server/handler"
	"github.com/alanyoungcy/predictlive/internal/server/middleware"
	"github.com/alanyoungcy/predictlive/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host        string // defaults to 127.0.0.1
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates the HTTP handlers the server registers. Card may be
// nil when no stream is followed.
type Handlers struct {
	Health *handler.HealthHandler
	Status *handler.StatusHandler
	Card   *handler.CardHandler
}

// Server is the local HTTP + WebSocket gateway.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer registers routes and wraps them in auth, logging and CORS.
func NewServer(cfg Config, handlers Handlers, gateway *ws.Gateway, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	if handlers.Card != nil {
		mux.HandleFunc("GET /api/card", handlers.Card.GetCard)
		mux.HandleFunc("POST /api/card/select", handlers.Card.Select)
		mux.HandleFunc("POST /api/card/reconnect", handlers.Card.Reconnect)
	}

	if gateway != nil {
		mux.HandleFunc("GET /ws", gateway.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	srv := &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(cfg.Port)),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		// Select waits for the wallet and the chain step.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		handler:    h,
		logger:     logger,
	}
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
