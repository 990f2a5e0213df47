package dismiss

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Run("case-insensitive membership", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Dismiss("TESCO Express"))

		assert.True(t, store.IsDismissed("tesco express"))
		assert.True(t, store.IsDismissed("  TESCO EXPRESS  "))
		assert.False(t, store.IsDismissed("tesco"))
	})

	t.Run("rejects empty patterns", func(t *testing.T) {
		store := NewMemoryStore()
		assert.Error(t, store.Dismiss("   "))
	})

	t.Run("undismiss and clear", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Dismiss("uber"))
		require.NoError(t, store.Dismiss("lidl"))

		require.NoError(t, store.Undismiss("UBER"))
		assert.False(t, store.IsDismissed("uber"))
		assert.True(t, store.IsDismissed("lidl"))

		require.NoError(t, store.Clear())
		assert.Empty(t, store.Patterns())
	})

	t.Run("patterns sorted", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Dismiss("zara"))
		require.NoError(t, store.Dismiss("aldi"))
		require.NoError(t, store.Dismiss("lidl"))

		assert.Equal(t, []string{"aldi", "lidl", "zara"}, store.Patterns())
	})
}

func TestFileStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dismissed.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Dismiss("TESCO EXPRESS"))
	require.NoError(t, store.Dismiss("uber"))
	require.NoError(t, store.Undismiss("uber"))

	// A fresh store at the same path sees the surviving dismissals.
	reloaded, err := NewFileStore(path)
	require.NoError(t, err)
	assert.True(t, reloaded.IsDismissed("tesco express"))
	assert.False(t, reloaded.IsDismissed("uber"))
	assert.Equal(t, []string{"tesco express"}, reloaded.Patterns())
}

func TestFileStoreMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "dismissed.json")

	store, err := NewFileStore(path)
	require.NoError(t, err, "a missing file is an empty set")
	assert.Empty(t, store.Patterns())

	// First dismissal creates the directory chain.
	require.NoError(t, store.Dismiss("lidl"))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dismissed.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	_, err := NewFileStore(path)
	assert.Error(t, err, "corrupt persistence must surface, not silently reset")
}

func TestFileStoreFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dismissed.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Dismiss("ocado"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
