// Package fetchcache provides a persistent, versioned disk cache for fetch
// functions that wrap external APIs.
//
// Wrapped functions get read-through/write-through caching backed by one
// libsql database per cache directory, with late-binding directory
// resolution: the effective directory, size limit and TTL are re-resolved on
// every call from the per-call override, the wrap-time configuration, the
// Env and the environment, in that order. A process can therefore redirect
// all future cache access (for example for test isolation) after wrappers
// already exist.
//
// All mutable registry state lives on an explicitly constructed Env rather
// than in package globals, so isolated Envs can run concurrently in tests.
// The package Default Env preserves plain process-wide ergonomics.
package fetchcache

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Environment variables consumed by the resolution chains.
const (
	EnvCacheDir      = "TOOLGATE_CACHE_DIR"
	EnvCacheSize     = "TOOLGATE_CACHE_SIZE_LIMIT_BYTES"
	EnvCacheExpire   = "TOOLGATE_CACHE_EXPIRE_SECS"
	EnvFetchLimit    = "TOOLGATE_FETCH_LIMIT"
	defaultCacheName = "toolgate"
)

// DefaultFetchLimit is the canonical fetch/result limit when neither the Env
// nor the environment specifies one.
const DefaultFetchLimit = 50

// Env holds the process-wide cache state: the root override, global
// defaults, the fetch limit and the directory-to-store registry. Stores are
// singletons per resolved directory for the Env's lifetime, so size-limit
// and handle state stay consistent across wrappers sharing a directory.
type Env struct {
	mu         sync.Mutex
	root       string
	sizeLimit  int64 // 0 means unset
	expire     time.Duration
	expireSet  bool
	fetchLimit int
	stores     map[string]*Store

	// Logger receives cache degradation warnings. Defaults to a nop logger.
	Logger *zap.Logger
}

// Default is the shared process-wide Env used when callers do not construct
// their own.
var Default = NewEnv()

// NewEnv returns an isolated Env with no overrides set.
func NewEnv() *Env {
	return &Env{
		stores: make(map[string]*Store),
		Logger: zap.NewNop(),
	}
}

// SetRoot sets the cache root programmatically, overriding the environment
// for every subsequent resolution.
func (e *Env) SetRoot(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.root = path
}

// SetDefaultSizeLimit sets the global default store size limit in bytes.
// A non-positive value clears the default.
func (e *Env) SetDefaultSizeLimit(bytes int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if bytes <= 0 {
		e.sizeLimit = 0
		return
	}
	e.sizeLimit = bytes
}

// SetDefaultExpire sets the global default TTL. A non-positive duration
// clears the default (entries never expire).
func (e *Env) SetDefaultExpire(ttl time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ttl <= 0 {
		e.expire = 0
		e.expireSet = false
		return
	}
	e.expire = ttl
	e.expireSet = true
}

// CacheRoot resolves the effective cache root, evaluated fresh on every
// call: programmatic override, then TOOLGATE_CACHE_DIR, then the user cache
// directory.
func (e *Env) CacheRoot() string {
	e.mu.Lock()
	root := e.root
	e.mu.Unlock()

	if root != "" {
		return root
	}
	if env := os.Getenv(EnvCacheDir); env != "" {
		return env
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, defaultCacheName)
}

// DirFor resolves the directory for a logical cache name under the current
// root.
func (e *Env) DirFor(name string) string {
	return filepath.Join(e.CacheRoot(), name)
}

// resolveSizeLimit picks the effective store size limit:
// wrap-time value, Env default, environment variable, then effectively
// unbounded.
func (e *Env) resolveSizeLimit(fromConfig int64) int64 {
	if fromConfig > 0 {
		return fromConfig
	}
	e.mu.Lock()
	global := e.sizeLimit
	e.mu.Unlock()
	if global > 0 {
		return global
	}
	if env := os.Getenv(EnvCacheSize); env != "" {
		if n, err := strconv.ParseInt(env, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return math.MaxInt64
}

// resolveExpire picks the effective TTL: wrap-time value, Env default,
// environment variable, then never-expire (zero).
func (e *Env) resolveExpire(fromConfig time.Duration) time.Duration {
	if fromConfig > 0 {
		return fromConfig
	}
	e.mu.Lock()
	set, global := e.expireSet, e.expire
	e.mu.Unlock()
	if set {
		return global
	}
	if env := os.Getenv(EnvCacheExpire); env != "" {
		if secs, err := strconv.ParseFloat(env, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return 0
}

// SetFetchLimit sets the canonical fetch limit used by callers for cache-key
// stable API pagination.
func (e *Env) SetFetchLimit(n int) error {
	if n <= 0 {
		return errInvalidFetchLimit(n)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fetchLimit = n
	return nil
}

// FetchLimit resolves the canonical fetch limit: programmatic value,
// TOOLGATE_FETCH_LIMIT, then DefaultFetchLimit. The value is resolved and
// returned but never enforced here; callers fold it into their requests and
// cache keys.
func (e *Env) FetchLimit() int {
	e.mu.Lock()
	limit := e.fetchLimit
	e.mu.Unlock()
	if limit > 0 {
		return limit
	}
	if env := os.Getenv(EnvFetchLimit); env != "" {
		if n, err := strconv.Atoi(env); err == nil && n > 0 {
			e.mu.Lock()
			e.fetchLimit = n
			e.mu.Unlock()
			return n
		}
	}
	return DefaultFetchLimit
}

// Store returns the singleton store for a directory, creating the directory
// and database on first use. The size limit is fixed when the store is first
// opened; later resolutions to the same directory reuse the existing store.
func (e *Env) Store(ctx context.Context, dir string, sizeLimitBytes int64) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}

	e.mu.Lock()
	if s, ok := e.stores[abs]; ok {
		e.mu.Unlock()
		return s, nil
	}
	e.mu.Unlock()

	s, err := openStore(ctx, abs, e.resolveSizeLimit(sizeLimitBytes))
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.stores[abs]; ok {
		// Lost the open race; keep the registered instance.
		_ = s.Close()
		return existing, nil
	}
	e.stores[abs] = s
	return s, nil
}

// Close releases every registered store. Intended for tests and process
// shutdown.
func (e *Env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var first error
	for dir, s := range e.stores {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
		delete(e.stores, dir)
	}
	return first
}

func (e *Env) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
