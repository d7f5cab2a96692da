package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/actionsum/wsbridge/internal/config"
	"github.com/actionsum/wsbridge/internal/database"
	"github.com/sirupsen/logrus"
)

type Server struct {
	config  *config.Config
	handler *Handler
	server  *http.Server
	logger  *logrus.Entry
}

// NewServer wires the HTTP API to a bridge. repo may be nil when the journal
// is disabled; the report and error endpoints then answer 503.
func NewServer(cfg *config.Config, bridge Bridge, repo *database.Repository, logger *logrus.Entry, customPort int) *Server {
	handler := NewHandler(cfg, bridge, repo, logger)
	mux := http.NewServeMux()
	handler.SetupRoutes(mux)

	port := cfg.Web.Port
	if customPort > 0 {
		port = customPort
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		config:  cfg,
		handler: handler,
		server:  httpServer,
		logger:  logger,
	}
}

func (s *Server) Start() error {
	s.logger.Infof("Starting web server on http://%s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and ends open streams
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down web server...")
	s.handler.closeStreams()
	return s.server.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return s.server.Addr
}
