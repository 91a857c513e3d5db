// Package ratelimit implements a file-based sliding window rate limiter.
//
// Request timestamps are stored in a JSON state file guarded by an exclusive
// advisory file lock, so every process and goroutine that shares a limiter
// name also shares its budget. Before each acquisition old timestamps are
// pruned; when the window is full the caller sleeps until the oldest
// timestamp slides out, then records its own timestamp and releases the lock.
//
// Infrastructure failures (unreadable state file, lock errors) are logged and
// the limiter fails open: the caller proceeds without throttling rather than
// having its real work blocked by coordination machinery.
package ratelimit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// Config describes a named limiter. All cooperating processes must agree on
// Name (and StateDir) to share one budget.
type Config struct {
	// MaxRequests is the number of acquisitions allowed per Window.
	MaxRequests int
	// Window is the sliding time window.
	Window time.Duration
	// Name scopes the state file. Defaults to "default".
	Name string
	// StateDir overrides the directory holding the state file.
	// Defaults to os.TempDir().
	StateDir string
}

// Limiter coordinates acquisitions across processes through a shared state
// file. Construct with New; the zero value is not usable.
type Limiter struct {
	maxRequests int
	window      time.Duration
	stateFile   string

	// Logger receives fail-open warnings. Defaults to a nop logger.
	Logger *zap.Logger
	// Clock returns monotonic seconds. Overridable for tests.
	Clock func() float64
	// Sleep performs the in-lock wait. Overridable for tests.
	Sleep func(time.Duration)
}

// New validates the configuration and returns a limiter. Invalid limits are
// a configuration error and fail immediately; nothing is touched on disk
// until the first acquisition.
func New(cfg Config) (*Limiter, error) {
	if cfg.MaxRequests <= 0 {
		return nil, fmt.Errorf("max requests must be a positive integer, got %d", cfg.MaxRequests)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("time window must be a positive duration, got %s", cfg.Window)
	}

	name := cfg.Name
	if name == "" {
		name = "default"
	}
	stateDir := cfg.StateDir
	if stateDir == "" {
		stateDir = os.TempDir()
	}

	return &Limiter{
		maxRequests: cfg.MaxRequests,
		window:      cfg.Window,
		stateFile:   filepath.Join(stateDir, StateFileName(name)),
		Logger:      zap.NewNop(),
		Clock:       monotonicSeconds,
		Sleep:       time.Sleep,
	}, nil
}

// StateFileName returns the state file name for a limiter name.
func StateFileName(name string) string {
	return name + "_rate_limiter.json"
}

// StateFile returns the path of the shared state file.
func (l *Limiter) StateFile() string {
	return l.stateFile
}

// Acquire blocks until proceeding respects the sliding window policy, then
// durably records the acquisition. The context is only honored before the
// critical section begins; once the lock is held the wait runs to completion.
// An error is returned only for a context already cancelled on entry.
func (l *Limiter) Acquire(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.acquire()
	return nil
}

// AcquireAsync runs the identical acquisition on its own goroutine so a
// cooperative scheduler is not blocked by the in-lock wait. The returned
// channel receives the result of Acquire exactly once.
func (l *Limiter) AcquireAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- l.Acquire(ctx)
	}()
	return done
}

func (l *Limiter) acquire() {
	if err := l.ensureStateFile(); err != nil {
		l.Logger.Warn("failed to create rate limiter state file, proceeding without throttling",
			zap.String("path", l.stateFile),
			zap.Error(err))
		return
	}

	lock := flock.New(l.stateFile)
	if err := lock.Lock(); err != nil {
		l.Logger.Warn("failed to lock rate limiter state file, proceeding without throttling",
			zap.String("path", l.stateFile),
			zap.Error(err))
		return
	}
	defer func() {
		_ = lock.Unlock()
	}()

	st := l.readState()
	now := l.Clock()
	windowSecs := l.window.Seconds()
	st.Requests = prune(st.Requests, now, windowSecs)

	if len(st.Requests) >= l.maxRequests {
		oldest := st.Requests[0]
		wait := windowSecs - (now - oldest)
		if wait > 0 {
			l.Sleep(time.Duration(wait * float64(time.Second)))
			now = l.Clock()
			st.Requests = prune(st.Requests, now, windowSecs)
		}
	}

	st.Requests = append(st.Requests, now)
	if err := writeState(l.stateFile, st); err != nil {
		l.Logger.Warn("failed to write rate limiter state file",
			zap.String("path", l.stateFile),
			zap.Error(err))
	}
}

// ensureStateFile creates the state file with an empty log if it is absent.
// A concurrent creator winning the race is fine, the content is validated on
// every read.
func (l *Limiter) ensureStateFile() error {
	f, err := os.OpenFile(l.stateFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(`{"requests": []}`)
	return err
}

func (l *Limiter) readState() state {
	raw, err := os.ReadFile(l.stateFile)
	if err != nil {
		l.Logger.Warn("failed to read rate limiter state file, assuming full capacity",
			zap.String("path", l.stateFile),
			zap.Error(err))
		return state{}
	}

	st, err := parseState(raw)
	if err != nil {
		l.Logger.Warn("corrupted rate limiter state file, resetting to full capacity",
			zap.String("path", l.stateFile),
			zap.Error(err))
		return state{}
	}
	return st
}

// prune drops timestamps older than windowSecs relative to now. Timestamps
// are appended in order, so the retained slice stays ordered.
func prune(requests []float64, now, windowSecs float64) []float64 {
	kept := requests[:0]
	for _, ts := range requests {
		if now-ts < windowSecs {
			kept = append(kept, ts)
		}
	}
	return kept
}

// Reset removes the state file, restoring full capacity for the next
// acquisition. Missing state is not an error.
func (l *Limiter) Reset() error {
	if err := os.Remove(l.stateFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Snapshot describes the persisted state at inspection time.
type Snapshot struct {
	StateFile   string  `json:"state_file"`
	MaxRequests int     `json:"max_requests"`
	Window      float64 `json:"window_secs"`
	Recorded    int     `json:"recorded"`
	Active      int     `json:"active"`
}

// Inspect reads the state file under a shared lock without mutating it.
// Recorded is the raw event count, Active the count still inside the window.
func (l *Limiter) Inspect() (Snapshot, error) {
	snap := Snapshot{
		StateFile:   l.stateFile,
		MaxRequests: l.maxRequests,
		Window:      l.window.Seconds(),
	}

	if _, err := os.Stat(l.stateFile); os.IsNotExist(err) {
		return snap, nil
	}

	lock := flock.New(l.stateFile)
	if err := lock.RLock(); err != nil {
		return snap, fmt.Errorf("lock state file: %w", err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	st := l.readState()
	snap.Recorded = len(st.Requests)
	now := l.Clock()
	snap.Active = len(prune(append([]float64(nil), st.Requests...), now, l.window.Seconds()))
	return snap, nil
}
