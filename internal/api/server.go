package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewAgentServer serves the local agent API on the loopback interface.
func NewAgentServer(cfg AgentConfig) *Server {
	return newServer(fmt.Sprintf("127.0.0.1:%d", cfg.Port), NewAgentRouter(cfg), cfg.Logger)
}

// NewMediaServer serves the media service on every interface.
func NewMediaServer(cfg MediaConfig) *Server {
	return newServer(fmt.Sprintf(":%d", cfg.Port), NewMediaRouter(cfg), cfg.Logger)
}

func newServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
