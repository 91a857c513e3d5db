// Package server implements the admin HTTP server: health and version
// endpoints plus inspection and reset surfaces for cache stores and rate
// limiter state, so operators can watch and manage shared coordination state
// without attaching to the processes using it.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/core/fetchcache"
	apperrors "github.com/toolgate/toolgate/internal/errors"
	"github.com/toolgate/toolgate/internal/observability"
	servermw "github.com/toolgate/toolgate/internal/server/middleware"
)

// Deps are the collaborators the admin endpoints operate on.
type Deps struct {
	// Env is the cache environment whose stores are inspected and managed.
	Env *fetchcache.Env
	// RateLimit supplies the state directory and default policy used when
	// inspecting limiters by name.
	RateLimit config.RateLimitConfig
}

// Server represents the admin HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    config.ServerConfig
	deps   Deps
}

// New creates the admin server and registers its routes.
func New(cfg config.ServerConfig, deps Deps) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(servermw.RequestID)
	r.Use(recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithEnvelope(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithEnvelope(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router: r,
		cfg:    cfg,
		deps:   deps,
	}
	s.registerRoutes()
	return s
}

// recovery converts panics into standardized 500 responses.
func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if observability.ServerLogger != nil {
					observability.ServerLogger.Error("Panic in HTTP handler",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path))
				}
				apperrors.RespondWithEnvelope(w, r, apperrors.NewInternalError("Internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	observability.ServerLogger.Info("Starting admin HTTP server",
		zap.String("host", s.cfg.Host),
		zap.Int("port", s.cfg.Port),
		zap.String("addr", addr))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.ServerLogger.Info("Shutting down admin HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}
