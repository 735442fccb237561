package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoint.db")
	store, err := Open(nil, Options{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndNextGame(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	const dir = "/tmp/matchA"

	next, err := store.NextGame(ctx, dir, 5)
	require.NoError(t, err)
	require.Equal(t, 1, next)

	require.NoError(t, store.RecordGame(ctx, dir, 1))
	require.NoError(t, store.RecordGame(ctx, dir, 2))

	next, err = store.NextGame(ctx, dir, 5)
	require.NoError(t, err)
	require.Equal(t, 3, next)

	done, err := store.CompletedSeqs(ctx, dir)
	require.NoError(t, err)
	require.True(t, done[1])
	require.True(t, done[2])
	require.False(t, done[3])
}

func TestNextGameAllDone(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	const dir = "/tmp/matchB"

	for seq := 1; seq <= 3; seq++ {
		require.NoError(t, store.RecordGame(ctx, dir, seq))
	}
	next, err := store.NextGame(ctx, dir, 3)
	require.NoError(t, err)
	require.Equal(t, 4, next)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	const dir = "/tmp/matchC"

	require.NoError(t, store.RecordGame(ctx, dir, 1))
	require.NoError(t, store.Reset(ctx, dir))

	next, err := store.NextGame(ctx, dir, 3)
	require.NoError(t, err)
	require.Equal(t, 1, next)
}

func TestMatchDirsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.RecordGame(ctx, "/tmp/x", 1))
	next, err := store.NextGame(ctx, "/tmp/y", 3)
	require.NoError(t, err)
	require.Equal(t, 1, next)
}

func TestLastUpdatedZeroWhenEmpty(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	ts, err := store.LastUpdated(ctx, "/tmp/matchD")
	require.NoError(t, err)
	require.True(t, ts.IsZero())
}

func TestLastUpdatedAfterRecord(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	const dir = "/tmp/matchE"

	require.NoError(t, store.RecordGame(ctx, dir, 1))
	ts, err := store.LastUpdated(ctx, dir)
	require.NoError(t, err)
	require.False(t, ts.IsZero())
}
