package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolutionStore_SaveLoadDelete(t *testing.T) {
	store, err := NewSolutionStore(filepath.Join(t.TempDir(), "solutions"))
	require.NoError(t, err)

	_, found, err := store.Load("Collect Beepers")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Save("Collect Beepers", "first"))
	require.NoError(t, store.Save("Collect Beepers", "second"))
	require.NoError(t, store.Save("maze/2", "maze"))

	src, found, err := store.Load("Collect Beepers")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "second", src)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"Collect Beepers", "maze/2"}, keys)

	require.NoError(t, store.Delete("Collect Beepers"))
	require.NoError(t, store.Delete("Collect Beepers"))
	_, found, err = store.Load("Collect Beepers")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = os.Stat(filepath.Join(store.Dir(), solutionLockName))
	assert.True(t, os.IsNotExist(err), "store lock must not outlive Save")
}

func TestSolutionStore_RejectsUnsafeKeys(t *testing.T) {
	store, err := NewSolutionStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "   ", ".", "..", ".hidden"} {
		assert.ErrorIs(t, store.Save(key, "x"), ErrInvalidKey, "%q", key)
	}

	require.NoError(t, store.Save("a/../../escape", "x"))
	entries, err := os.ReadDir(filepath.Dir(store.Dir()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "escape.js", e.Name(), "key escaped the store directory")
	}
}

func TestSolutionStore_BusyWhileLocked(t *testing.T) {
	store, err := NewSolutionStore(t.TempDir())
	require.NoError(t, err)

	lock, ok, err := AcquireLock(filepath.Join(store.Dir(), solutionLockName))
	require.NoError(t, err)
	require.True(t, ok)
	defer ReleaseLock(lock)

	assert.ErrorIs(t, store.Save("a", "b"), ErrStoreBusy)
}
