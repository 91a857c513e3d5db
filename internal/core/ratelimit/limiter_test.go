package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLimiter(t *testing.T, maxRequests int, window time.Duration) *Limiter {
	t.Helper()
	limiter, err := New(Config{
		MaxRequests: maxRequests,
		Window:      window,
		Name:        fmt.Sprintf("test_%s_%d", t.Name(), time.Now().UnixNano()),
		StateDir:    t.TempDir(),
	})
	require.NoError(t, err)
	return limiter
}

func TestNewValidation(t *testing.T) {
	t.Run("RejectsNonPositiveMaxRequests", func(t *testing.T) {
		_, err := New(Config{MaxRequests: 0, Window: time.Second})
		require.Error(t, err)

		_, err = New(Config{MaxRequests: -1, Window: time.Second})
		require.Error(t, err)
	})

	t.Run("RejectsNonPositiveWindow", func(t *testing.T) {
		_, err := New(Config{MaxRequests: 3, Window: 0})
		require.Error(t, err)

		_, err = New(Config{MaxRequests: 3, Window: -time.Second})
		require.Error(t, err)
	})

	t.Run("DefaultsNameAndStateDir", func(t *testing.T) {
		limiter, err := New(Config{MaxRequests: 3, Window: time.Second})
		require.NoError(t, err)
		require.Contains(t, limiter.StateFile(), "default_rate_limiter.json")
	})

	t.Run("StateFileNotCreatedOnConstruction", func(t *testing.T) {
		limiter := testLimiter(t, 3, time.Second)
		snap, err := limiter.Inspect()
		require.NoError(t, err)
		require.Zero(t, snap.Recorded)
	})
}

func TestAcquireWithinCapacity(t *testing.T) {
	limiter := testLimiter(t, 3, time.Second)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Acquire(context.Background()))
	}
	require.Less(t, time.Since(start), 200*time.Millisecond,
		"acquisitions within capacity should be near-instant")
}

func TestFourthAcquisitionWaitsForWindow(t *testing.T) {
	limiter := testLimiter(t, 3, time.Second)

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, limiter.Acquire(context.Background()))
	}
	elapsed := time.Since(start)

	require.GreaterOrEqual(t, elapsed, 900*time.Millisecond,
		"4th acquisition should wait for the window")
	require.Less(t, elapsed, 1500*time.Millisecond,
		"should not wait excessively")
}

func TestCapacityRestoredAfterIdleWindow(t *testing.T) {
	limiter := testLimiter(t, 3, 500*time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Acquire(context.Background()))
	}

	time.Sleep(600 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Acquire(context.Background()))
	}
	require.Less(t, time.Since(start), 200*time.Millisecond,
		"full capacity should be available after idling past the window")
}

func TestInstancesWithSameNameShareState(t *testing.T) {
	dir := t.TempDir()
	name := fmt.Sprintf("shared_%d", time.Now().UnixNano())

	newShared := func() *Limiter {
		limiter, err := New(Config{
			MaxRequests: 2,
			Window:      time.Second,
			Name:        name,
			StateDir:    dir,
		})
		require.NoError(t, err)
		return limiter
	}

	limiter1 := newShared()
	limiter2 := newShared()

	require.NoError(t, limiter1.Acquire(context.Background()))
	require.NoError(t, limiter1.Acquire(context.Background()))

	start := time.Now()
	require.NoError(t, limiter2.Acquire(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond,
		"instances with the same name should enforce jointly")
}

func TestConcurrentAcquisitionsRespectWindow(t *testing.T) {
	const (
		workers     = 8
		maxRequests = 4
	)
	window := 500 * time.Millisecond
	limiter := testLimiter(t, maxRequests, window)

	var (
		mu          sync.Mutex
		completions []time.Time
		errs        []error
	)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := limiter.Acquire(context.Background())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			completions = append(completions, time.Now())
		}()
	}
	wg.Wait()
	require.Empty(t, errs)

	require.Len(t, completions, workers)
	sort.Slice(completions, func(i, j int) bool { return completions[i].Before(completions[j]) })

	// No rolling window may contain more than maxRequests completions.
	// Completion times lag the recorded timestamps slightly, so allow a
	// small scheduling margin.
	margin := 50 * time.Millisecond
	for i := 0; i+maxRequests < len(completions); i++ {
		span := completions[i+maxRequests].Sub(completions[i])
		require.GreaterOrEqual(t, span+margin, window,
			"window [%d..%d] contains too many completions", i, i+maxRequests)
	}
}

func TestAcquireAsync(t *testing.T) {
	limiter := testLimiter(t, 3, time.Second)

	t.Run("CompletesLikeSynchronousMode", func(t *testing.T) {
		require.NoError(t, <-limiter.AcquireAsync(context.Background()))

		snap, err := limiter.Inspect()
		require.NoError(t, err)
		require.Equal(t, 1, snap.Recorded)
	})

	t.Run("DoesNotBlockTheCaller", func(t *testing.T) {
		start := time.Now()
		done := limiter.AcquireAsync(context.Background())
		require.Less(t, time.Since(start), 50*time.Millisecond)
		require.NoError(t, <-done)
	})
}

func TestAcquireHonorsCancelledContextOnEntry(t *testing.T) {
	limiter := testLimiter(t, 3, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, limiter.Acquire(ctx))

	snap, err := limiter.Inspect()
	require.NoError(t, err)
	require.Zero(t, snap.Recorded, "a cancelled acquire must not record an event")
}

func TestReset(t *testing.T) {
	limiter := testLimiter(t, 3, time.Second)

	require.NoError(t, limiter.Acquire(context.Background()))
	require.NoError(t, limiter.Reset())

	snap, err := limiter.Inspect()
	require.NoError(t, err)
	require.Zero(t, snap.Recorded)

	t.Run("MissingStateIsNotAnError", func(t *testing.T) {
		require.NoError(t, limiter.Reset())
	})
}

func TestWaitUsesInjectedSleep(t *testing.T) {
	limiter := testLimiter(t, 1, time.Hour)

	now := 1000.0
	limiter.Clock = func() float64 { return now }

	var slept time.Duration
	limiter.Sleep = func(d time.Duration) {
		slept = d
		now += d.Seconds()
	}

	require.NoError(t, limiter.Acquire(context.Background()))
	require.Zero(t, slept, "first acquisition should not wait")

	require.NoError(t, limiter.Acquire(context.Background()))
	require.Equal(t, time.Hour, slept, "second acquisition should wait out the full window")
}
