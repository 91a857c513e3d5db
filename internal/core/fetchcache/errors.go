package fetchcache

import (
	"errors"
	"fmt"
)

// ErrConfirmRequired is returned by Clear when the confirmation flag is not
// set. Clearing a cache is destructive and must be explicit.
var ErrConfirmRequired = errors.New("pass confirm=true to clear the cache")

// MissError reports a cache miss while offline-only mode is in effect. The
// wrapped function is never invoked in that mode, so the miss is an unmet
// precondition the caller must handle.
type MissError struct {
	KeyPrefix string
	Directory string
}

func (e *MissError) Error() string {
	return fmt.Sprintf("cache miss in offline-only mode for key=%s… (cache=%s)", e.KeyPrefix, e.Directory)
}

func errInvalidFetchLimit(n int) error {
	return fmt.Errorf("fetch limit must be a positive integer, got %d", n)
}
