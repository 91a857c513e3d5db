package ratelimit

import (
	"time"

	"golang.org/x/sys/unix"
)

// monotonicSeconds reads CLOCK_MONOTONIC so timestamps compare consistently
// across every process on the machine. The values are only meaningful within
// one boot session: a persisted window is invalidated by a reboot, which at
// worst grants one full window of extra capacity.
func monotonicSeconds() float64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// Wall clock fallback keeps the window enforceable, at the cost of
		// sensitivity to clock adjustments.
		return float64(time.Now().UnixNano()) / 1e9
	}
	return float64(ts.Sec) + float64(ts.Nsec)/1e9
}
