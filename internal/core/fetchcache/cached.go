package fetchcache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/toolgate/toolgate/internal/core/cachekey"
)

// Func is a fetch function wrapped by the cache. It must be pure with
// respect to args and kwargs for caching to be semantically sound.
type Func[T any] func(ctx context.Context, args []any, kwargs map[string]any) (T, error)

// Config is the wrap-time cache configuration. Everything except Name is
// optional; zero values fall through the resolution chains at call time.
type Config struct {
	// Name is the logical cache name, appended to the resolved root.
	Name string
	// BaseDir pins the cache directory, bypassing root resolution.
	BaseDir string
	// SizeLimitBytes bounds the store opened for this wrapper.
	SizeLimitBytes int64
	// Expire is the default TTL for written entries.
	Expire time.Duration
	// OfflineOnly makes every miss a hard failure instead of invoking the
	// wrapped function.
	OfflineOnly bool
	// CacheVersion is the declared logical version. Defaults to "1".
	CacheVersion string
	// SkipFingerprint disables suffixing the version with the function's
	// source fingerprint.
	SkipFingerprint bool
	// Tag partitions keys within one version.
	Tag string
	// KeyFn replaces the default key derivation entirely.
	KeyFn cachekey.KeyFunc
}

// Call carries the arguments for one invocation plus reserved per-call
// control parameters. The controls are struct fields rather than magic
// arguments, so they never participate in key derivation and never reach the
// wrapped function.
type Call struct {
	Args []any
	KW   map[string]any

	// Dir overrides the cache directory for this call.
	Dir string
	// Offline overrides offline-only mode for this call.
	Offline *bool
	// TTL overrides the entry TTL for this call's write.
	TTL *time.Duration
}

// Cached is a fetch function wrapped with read-through/write-through disk
// caching. Build with Wrap.
type Cached[T any] struct {
	env      *Env
	cfg      Config
	fn       Func[T]
	funcName string
	version  string
}

// Wrap decorates fn with persistent caching against env (the Default Env
// when nil). The effective version is fixed at wrap time: the declared
// CacheVersion, suffixed with the function's source fingerprint unless
// disabled. Directory, size limit and TTL stay late-bound.
func Wrap[T any](env *Env, cfg Config, fn Func[T]) *Cached[T] {
	if env == nil {
		env = Default
	}
	if cfg.CacheVersion == "" {
		cfg.CacheVersion = "1"
	}

	version := cfg.CacheVersion
	if !cfg.SkipFingerprint {
		version = version + "+" + cachekey.Fingerprint(fn)
	}

	return &Cached[T]{
		env:      env,
		cfg:      cfg,
		fn:       fn,
		funcName: cachekey.FuncName(fn),
		version:  version,
	}
}

// Version returns the effective cache version.
func (c *Cached[T]) Version() string {
	return c.version
}

// Do invokes the wrapped function with positional arguments only.
func (c *Cached[T]) Do(ctx context.Context, args ...any) (T, error) {
	return c.Call(ctx, Call{Args: args})
}

// Call performs one cached invocation. On a hit the stored value is returned
// and the wrapped function is never invoked. On a miss in offline-only mode
// a *MissError is returned. Otherwise the function runs and its result is
// persisted with the resolved TTL; persistence failures degrade through the
// encoder chain and are ultimately swallowed, the computed result is always
// returned. Results that no encoder can decode back into T are not persisted
// at all, so such calls run the function every time.
func (c *Cached[T]) Call(ctx context.Context, call Call) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}

	dir := c.resolveDir(call.Dir)
	key := c.deriveKey(call)

	store, err := c.env.Store(ctx, dir, c.cfg.SizeLimitBytes)
	if err != nil {
		// Cache infrastructure failure must not block the real work.
		c.env.logger().Warn("cache store unavailable, calling through uncached",
			zap.String("name", c.cfg.Name),
			zap.String("directory", dir),
			zap.Error(err))
		store = nil
	}

	if store != nil {
		if raw, ok, err := store.Get(ctx, key); err != nil {
			c.env.logger().Warn("cache read failed, treating as miss",
				zap.String("name", c.cfg.Name),
				zap.Error(err))
		} else if ok {
			var out T
			if err := json.Unmarshal([]byte(raw), &out); err == nil {
				return out, nil
			}
			// Undecodable entry, fall through to a miss.
		}
	}

	offline := c.cfg.OfflineOnly
	if call.Offline != nil {
		offline = *call.Offline
	}
	if offline {
		return zero, &MissError{KeyPrefix: keyPrefix(key), Directory: dir}
	}

	result, err := c.fn(ctx, call.Args, call.KW)
	if err != nil {
		return zero, err
	}

	if store != nil {
		c.persist(ctx, store, key, result, c.resolveTTL(call.TTL))
	}
	return result, nil
}

// resolveDir applies the late-binding directory chain for one call.
func (c *Cached[T]) resolveDir(callOverride string) string {
	if callOverride != "" {
		return callOverride
	}
	if c.cfg.BaseDir != "" {
		return c.cfg.BaseDir
	}
	return c.env.DirFor(c.cfg.Name)
}

func (c *Cached[T]) resolveTTL(callOverride *time.Duration) time.Duration {
	if callOverride != nil {
		return *callOverride
	}
	return c.env.resolveExpire(c.cfg.Expire)
}

func (c *Cached[T]) deriveKey(call Call) string {
	if c.cfg.KeyFn != nil {
		return c.cfg.KeyFn(c.funcName, call.Args, call.KW)
	}
	return cachekey.Derive(c.funcName, call.Args, call.KW, c.version, c.cfg.Tag)
}

// persist writes a computed result through the encoder chain. Each encoder
// catches only its own failure mode, and an encoding is only stored when it
// decodes back into T, so every written entry can serve a future hit. A
// result no encoder can round-trip is uncacheable: the write is skipped and
// logged rather than leaving an entry the read path would always reject.
func (c *Cached[T]) persist(ctx context.Context, store *Store, key string, value T, ttl time.Duration) {
	for _, enc := range encoders {
		text, err := enc.encode(value)
		if err != nil {
			continue
		}
		var check T
		if err := json.Unmarshal([]byte(text), &check); err != nil {
			continue
		}
		if err := store.Set(ctx, key, text, ttl); err != nil {
			c.env.logger().Warn("cache write failed",
				zap.String("name", c.cfg.Name),
				zap.String("encoder", enc.name),
				zap.Error(err))
			return
		}
		return
	}
	c.env.logger().Warn("result is not round-trippable by any cache encoder, not persisted",
		zap.String("name", c.cfg.Name),
		zap.String("key_prefix", keyPrefix(key)))
}

func keyPrefix(key string) string {
	if len(key) > 10 {
		return key[:10]
	}
	return key
}
