// Package server wires the HTTP surface together: routing, admin auth gating,
// public rate limiting and server lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/eventinvite/eventinvite-go/internal/api/admin"
	"github.com/eventinvite/eventinvite-go/internal/api/public"
	"github.com/eventinvite/eventinvite-go/internal/config"
	"github.com/eventinvite/eventinvite-go/internal/events"
	"github.com/eventinvite/eventinvite-go/internal/invitations"
	"github.com/eventinvite/eventinvite-go/internal/platform/logutil"
	"github.com/eventinvite/eventinvite-go/internal/qr"
	"github.com/eventinvite/eventinvite-go/internal/ratelimit"
	"github.com/eventinvite/eventinvite-go/internal/rsvp"
)

// Deps carries the collaborators the HTTP surface exposes.
type Deps struct {
	Events      *events.Manager
	Invitations *invitations.Manager
	RSVPs       *rsvp.Manager
	QR          *qr.Generator

	// Limiter guards the public surface; nil disables rate limiting.
	Limiter *ratelimit.Limiter
}

// Server is the HTTP server for the admin and public surfaces.
type Server struct {
	httpServer *http.Server
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
}

// New assembles the server from configuration and dependencies.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	logger = logutil.NoopIfNil(logger)

	gate, err := newAuthGate(cfg.Server.AdminUsername, cfg.Server.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("auth gate: %w", err)
	}

	s := &Server{
		limiter: deps.Limiter,
		logger:  logger,
	}

	adminH := admin.NewHandler(deps.Events, deps.Invitations, deps.RSVPs, logger)
	publicH := public.NewHandler(deps.Events, deps.Invitations, deps.RSVPs, deps.QR, cfg.PublicOrigin, logger)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.buildRouter(adminH, publicH, gate),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Handler returns the assembled routing tree (tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the server until it fails or Shutdown is called.
// http.ErrServerClosed is swallowed; it is the normal shutdown signal.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
