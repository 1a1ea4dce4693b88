package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/draftdesk/draftdesk-agent/internal/backend"
	"github.com/draftdesk/draftdesk-agent/internal/editor"
	"github.com/draftdesk/draftdesk-agent/internal/generate"
	"github.com/draftdesk/draftdesk-agent/internal/media"
	"github.com/draftdesk/draftdesk-agent/internal/store"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port      int
	Version   string
	Offline   bool
	Templates backend.TemplateRepository
	Drafts    *generate.Service
	Store     store.Repository
	Picker    media.DirectoryPicker
	// Sessions holds open editor sessions. NewRouter creates one when nil.
	Sessions *editor.Registry
	// Defaults are the settings used until the user stores their own.
	Defaults store.Settings
	// OnSettingsChanged runs after settings are stored. A returned error is
	// reported to the caller but the stored values stay.
	OnSettingsChanged func(store.Settings) error
	Logger            *slog.Logger
	StartTime         time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:           LoopbackOnly(cfg.Logger)(router),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Draft generation can take as long as the backend timeout.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

// Start blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	err := s.httpServer.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
