package server

import (
	"github.com/go-chi/chi/v5"
)

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.healthHandler)
	s.router.Get("/version", s.versionHandler)

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/caches/{name}", s.cacheStatsHandler)
		r.Delete("/caches/{name}", s.cacheClearHandler)
		r.Get("/ratelimits/{name}", s.rateLimitShowHandler)
		r.Delete("/ratelimits/{name}", s.rateLimitResetHandler)
	})
}
