package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openBackends(t *testing.T) map[string]Database {
	t.Helper()
	level, err := NewLevelDB(t.TempDir())
	require.NoError(t, err)
	memLevel, err := NewMemLevelDB()
	require.NoError(t, err)
	bolt, err := NewBoltDB(filepath.Join(t.TempDir(), "state.db"), nil)
	require.NoError(t, err)
	backends := map[string]Database{
		"mem":      NewMemDB(),
		"level":    level,
		"memlevel": memLevel,
		"bolt":     bolt,
	}
	t.Cleanup(func() {
		for _, db := range backends {
			db.Close()
		}
	})
	return backends
}

func TestDatabaseRoundTrip(t *testing.T) {
	for name, db := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("missing"))
			require.True(t, errors.Is(err, ErrNotFound))

			require.NoError(t, db.Put([]byte("key"), []byte("value")))
			got, err := db.Get([]byte("key"))
			require.NoError(t, err)
			require.Equal(t, []byte("value"), got)

			require.NoError(t, db.Delete([]byte("key")))
			_, err = db.Get([]byte("key"))
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBatchAppliesOnWrite(t *testing.T) {
	for name, db := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("stale"), []byte("x")))

			batch := db.NewBatch()
			batch.Put([]byte("a"), []byte("1"))
			batch.Put([]byte("b"), []byte("2"))
			batch.Delete([]byte("stale"))
			require.Equal(t, 3, batch.Len())

			_, err := db.Get([]byte("a"))
			require.ErrorIs(t, err, ErrNotFound, "batch must stay invisible until written")

			require.NoError(t, batch.Write())
			got, err := db.Get([]byte("b"))
			require.NoError(t, err)
			require.Equal(t, []byte("2"), got)
			_, err = db.Get([]byte("stale"))
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db1, err := NewLevelDB(dir)
	require.NoError(t, err)
	require.NoError(t, db1.Put([]byte("key"), []byte("value")))
	db1.Close()

	db2, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()
	got, err := db2.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)
}
