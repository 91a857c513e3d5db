package fetchcache

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, sizeLimit int64) *Store {
	t.Helper()
	store, err := openStore(context.Background(), filepath.Join(t.TempDir(), "cache"), sizeLimit)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreSetGet(t *testing.T) {
	store := testStore(t, 0)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "k1", `{"answer": 42}`, 0))

	value, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"answer": 42}`, value)

	t.Run("SetReplacesExistingEntry", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k1", `"replaced"`, 0))
		value, ok, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, `"replaced"`, value)

		count, err := store.Count(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, count)
	})
}

func TestStoreExpiry(t *testing.T) {
	store := testStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "ephemeral", `"v"`, 50*time.Millisecond))
	require.NoError(t, store.Set(ctx, "durable", `"v"`, 0))

	_, ok, err := store.Get(ctx, "ephemeral")
	require.NoError(t, err)
	require.True(t, ok, "entry should be readable before its TTL elapses")

	time.Sleep(100 * time.Millisecond)

	_, ok, err = store.Get(ctx, "ephemeral")
	require.NoError(t, err)
	require.False(t, ok, "entry should be invisible after its TTL elapses")

	_, ok, err = store.Get(ctx, "durable")
	require.NoError(t, err)
	require.True(t, ok, "zero TTL means the entry never expires")
}

func TestStoreSizeLimitEviction(t *testing.T) {
	store := testStore(t, 250)
	ctx := context.Background()

	value := strings.Repeat("x", 100)
	for _, key := range []string{"first", "second", "third"} {
		require.NoError(t, store.Set(ctx, key, value, 0))
		// Eviction is ordered by stored_at; keep the timestamps distinct.
		time.Sleep(2 * time.Millisecond)
	}

	volume, err := store.Volume(ctx)
	require.NoError(t, err)
	require.LessOrEqual(t, volume, int64(250))

	_, ok, err := store.Get(ctx, "first")
	require.NoError(t, err)
	require.False(t, ok, "oldest entry should be evicted first")

	for _, key := range []string{"second", "third"} {
		_, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok, "newer entry %q should survive eviction", key)
	}
}

func TestStoreDeleteAndClear(t *testing.T) {
	store := testStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", `1`, 0))
	require.NoError(t, store.Set(ctx, "b", `2`, 0))

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"), "deleting a missing key is not an error")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	require.NoError(t, store.Clear(ctx))
	count, err = store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	volume, err := store.Volume(ctx)
	require.NoError(t, err)
	require.Zero(t, volume)
}

func TestStoreEntriesOrderedByAge(t *testing.T) {
	store := testStore(t, 0)
	ctx := context.Background()

	for _, key := range []string{"one", "two", "three"} {
		require.NoError(t, store.Set(ctx, key, `"`+key+`"`, 0))
		time.Sleep(2 * time.Millisecond)
	}

	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "one", entries[0].Key)
	require.Equal(t, "three", entries[2].Key)
}

func TestStoreNilReceiver(t *testing.T) {
	var store *Store
	require.NoError(t, store.Close())
	require.Empty(t, store.Directory())

	_, _, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	require.Error(t, store.Set(context.Background(), "k", "v", 0))
}
