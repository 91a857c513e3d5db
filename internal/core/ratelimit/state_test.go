package ratelimit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	t.Run("ValidState", func(t *testing.T) {
		st, err := parseState([]byte(`{"requests": [1.5, 2.0, 3.25]}`))
		require.NoError(t, err)
		require.Equal(t, []float64{1.5, 2.0, 3.25}, st.Requests)
	})

	t.Run("EmptyLog", func(t *testing.T) {
		st, err := parseState([]byte(`{"requests": []}`))
		require.NoError(t, err)
		require.Empty(t, st.Requests)
	})

	t.Run("EmptyFileIsEmptyState", func(t *testing.T) {
		st, err := parseState(nil)
		require.NoError(t, err)
		require.Empty(t, st.Requests)

		st, err = parseState([]byte("   \n"))
		require.NoError(t, err)
		require.Empty(t, st.Requests)
	})

	t.Run("ExtraKeysAreIgnored", func(t *testing.T) {
		st, err := parseState([]byte(`{"requests": [1.0], "generation": 7}`))
		require.NoError(t, err)
		require.Equal(t, []float64{1.0}, st.Requests)
	})

	t.Run("ContentAfterNulByteIsDiscarded", func(t *testing.T) {
		raw := append([]byte(`{"requests": [1.0, 2.0]}`), 0x00)
		raw = append(raw, []byte(`garbage trailing data`)...)
		st, err := parseState(raw)
		require.NoError(t, err)
		require.Equal(t, []float64{1.0, 2.0}, st.Requests)
	})

	t.Run("Corruption", func(t *testing.T) {
		cases := map[string]string{
			"InvalidJSON":          `{"requests": [1.0`,
			"TopLevelList":         `[1.0, 2.0]`,
			"TopLevelString":       `"requests"`,
			"MissingRequestsKey":   `{"timestamps": [1.0]}`,
			"RequestsNotAList":     `{"requests": "soon"}`,
			"NonNumericTimestamps": `{"requests": [1.0, "two"]}`,
			"NestedLists":          `{"requests": [[1.0]]}`,
		}
		for name, raw := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := parseState([]byte(raw))
				require.Error(t, err)
			})
		}
	})
}

func TestCorruptedStateFileResetsToFullCapacity(t *testing.T) {
	dir := t.TempDir()
	limiter, err := New(Config{
		MaxRequests: 2,
		Window:      time.Minute,
		Name:        "corrupt",
		StateDir:    dir,
	})
	require.NoError(t, err)

	path := filepath.Join(dir, StateFileName("corrupt"))
	require.NoError(t, os.WriteFile(path, []byte(`not json at all`), 0o644))

	// A full window's worth of acquisitions must go through without waiting
	// because the corrupted log is treated as empty.
	var slept bool
	limiter.Sleep = func(d time.Duration) { slept = true }
	require.NoError(t, limiter.Acquire(context.Background()))
	require.NoError(t, limiter.Acquire(context.Background()))
	require.False(t, slept)

	snap, err := limiter.Inspect()
	require.NoError(t, err)
	require.Equal(t, 2, snap.Recorded, "valid state should be rewritten over the corrupted file")
}
