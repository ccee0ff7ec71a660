// Package api exposes the editing backend over a loopback HTTP surface.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/clipforge/clipforge-server/internal/ffmpeg"
	"github.com/clipforge/clipforge-server/internal/playback"
	"github.com/clipforge/clipforge-server/internal/session"
)

// ServerConfig carries the handlers' collaborators from the composition root.
type ServerConfig struct {
	Port         int
	Manager      *session.Manager
	Playback     *playback.Server
	Capabilities ffmpeg.Capabilities
	Version      string
	StartTime    time.Time
	Logger       *slog.Logger
}

// Server wraps the HTTP server bound to loopback only. The backend is a local
// companion process, never a network-facing service.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0, // streaming and renders can be long
			IdleTimeout:  120 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
