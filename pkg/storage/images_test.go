package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cheeseagent/pkg/cheese"
)

func TestFileName(t *testing.T) {
	assert.Equal(t, "blue_3fa9c81d02e4b761.jpg", FileName(cheese.Blue, "3fa9c81d02e4b761"))
	assert.Equal(t, "washed-rind_aabbccdd.jpg", FileName(cheese.WashedRind, "aabbccdd"))
}

func TestSaveAndHas(t *testing.T) {
	store, err := NewImageStore(t.TempDir())
	require.NoError(t, err)

	data := []byte("jpeg bytes")
	path, err := store.Save(cheese.Fresh, "deadbeef00000000", data)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(), "fresh_deadbeef00000000.jpg"), path)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)

	assert.True(t, store.Has(cheese.Fresh, "deadbeef00000000"))
	assert.False(t, store.Has(cheese.Fresh, "0000000000000000"))
	assert.Equal(t, 1, store.Count())

	// No temp file may survive the rename.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestScanExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hard_cafe000000000000.jpg"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	store, err := NewImageStore(dir)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Count())
	assert.True(t, store.Has(cheese.Hard, "cafe000000000000"))
}

func TestRemove(t *testing.T) {
	store, err := NewImageStore(t.TempDir())
	require.NoError(t, err)

	path, err := store.Save(cheese.Bloomy, "abc1230000000000", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, store.Remove(path))
	assert.Equal(t, 0, store.Count())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing an already-gone file is a no-op, not an error.
	require.NoError(t, store.Remove(path))
}

func TestNewImageStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "images")
	_, err := NewImageStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
