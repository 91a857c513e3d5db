package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/toolgate/toolgate/internal/core/ratelimit"
	apperrors "github.com/toolgate/toolgate/internal/errors"
)

// Version information set by the main package.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{"dev", "unknown", "unknown"}

// SetVersionInfo records build version details for the version endpoint.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    versionInfo.Version,
		"commit":     versionInfo.Commit,
		"build_date": versionInfo.BuildDate,
	})
}

// cacheStatsHandler reports entry count, byte volume and the resolved
// directory for a named cache.
func (s *Server) cacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		apperrors.RespondWithEnvelope(w, r, apperrors.NewInvalidInputError("cache name is required"))
		return
	}

	stats, err := s.deps.Env.StatsFor(r.Context(), name, "")
	if err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.WrapInternal(r.Context(), err, "failed to read cache stats"))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// cacheClearHandler destroys every entry of a named cache. The confirm query
// parameter is mandatory, mirroring the programmatic Clear contract.
func (s *Server) cacheClearHandler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		apperrors.RespondWithEnvelope(w, r, apperrors.NewInvalidInputError("cache name is required"))
		return
	}
	if r.URL.Query().Get("confirm") != "true" {
		apperrors.RespondWithEnvelope(w, r, apperrors.NewConfirmationRequiredError("pass confirm=true to clear the cache"))
		return
	}

	store, err := s.deps.Env.Store(r.Context(), s.deps.Env.DirFor(name), 0)
	if err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.WrapInternal(r.Context(), err, "failed to open cache store"))
		return
	}
	if err := store.Clear(r.Context()); err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.WrapInternal(r.Context(), err, "failed to clear cache store"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "name": name})
}

func (s *Server) limiterFor(name string) (*ratelimit.Limiter, error) {
	cfg := ratelimit.Config{
		MaxRequests: s.deps.RateLimit.MaxRequests,
		Window:      s.deps.RateLimit.Window,
		Name:        name,
		StateDir:    s.deps.RateLimit.StateDir,
	}
	return ratelimit.New(cfg)
}

// rateLimitShowHandler reports the persisted sliding window state for a
// named limiter, interpreted against the configured default policy.
func (s *Server) rateLimitShowHandler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		apperrors.RespondWithEnvelope(w, r, apperrors.NewInvalidInputError("limiter name is required"))
		return
	}

	limiter, err := s.limiterFor(name)
	if err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.NewConfigInvalidError(err.Error()))
		return
	}

	snap, err := limiter.Inspect()
	if err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.WrapInternal(r.Context(), err, "failed to inspect rate limiter state"))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// rateLimitResetHandler removes the persisted state file, restoring full
// capacity for the named limiter.
func (s *Server) rateLimitResetHandler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		apperrors.RespondWithEnvelope(w, r, apperrors.NewInvalidInputError("limiter name is required"))
		return
	}

	limiter, err := s.limiterFor(name)
	if err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.NewConfigInvalidError(err.Error()))
		return
	}
	if err := limiter.Reset(); err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.WrapInternal(r.Context(), err, "failed to reset rate limiter state"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "name": name})
}
