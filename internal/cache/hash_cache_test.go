package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashCache_UpdateAndGetRoot(t *testing.T) {
	c := NewHashCache()
	c.UpdateRoot("/repo", map[string]string{"a.go": "hash1"})

	got, ok := c.GetRoot("/repo")
	require.True(t, ok)
	assert.Equal(t, "hash1", got["a.go"])
}

func TestHashCache_Roots(t *testing.T) {
	c := NewHashCache()
	c.UpdateRoot("/repo-a", map[string]string{"a.go": "hash1"})
	c.UpdateRoot("/repo-b", map[string]string{"b.go": "hash2"})

	assert.ElementsMatch(t, []string{"/repo-a", "/repo-b"}, c.Roots())
}

func TestHashCache_RemoveRootClearsDirty(t *testing.T) {
	c := NewHashCache()
	c.UpdateRoot("/repo", map[string]string{"a.go": "hash1"})
	c.MarkDirty("/repo")
	require.True(t, c.IsDirty("/repo"))

	c.RemoveRoot("/repo")
	assert.False(t, c.IsDirty("/repo"))
	_, ok := c.GetRoot("/repo")
	assert.False(t, ok)
}

func TestHashCache_MarkAndClearDirty(t *testing.T) {
	c := NewHashCache()
	assert.False(t, c.IsDirty("/repo"))
	c.MarkDirty("/repo")
	assert.True(t, c.IsDirty("/repo"))
	c.ClearDirty("/repo")
	assert.False(t, c.IsDirty("/repo"))
}

func TestHashCache_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hash_cache.json")

	c := NewHashCache()
	c.UpdateRoot("/repo", map[string]string{"a.go": "hash1", "b.go": "hash2"})
	c.MarkDirty("/repo")
	require.NoError(t, c.Save(path))

	loaded, err := LoadHashCache(path)
	require.NoError(t, err)
	got, ok := loaded.GetRoot("/repo")
	require.True(t, ok)
	assert.Equal(t, "hash1", got["a.go"])
	assert.True(t, loaded.IsDirty("/repo"))
}

func TestHashCache_SaveCreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "hash_cache.json")

	c := NewHashCache()
	require.NoError(t, c.Save(path))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadHashCache_MissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	c, err := LoadHashCache(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	_, ok := c.GetRoot("/repo")
	assert.False(t, ok)
}

func TestLoadHashCache_MissingDirtyRootsDefaultsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hash_cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"roots": {"/repo": {"a.go": "h1"}}}`), 0o644))

	c, err := LoadHashCache(path)
	require.NoError(t, err)
	assert.False(t, c.IsDirty("/repo"))
	got, ok := c.GetRoot("/repo")
	require.True(t, ok)
	assert.Equal(t, "h1", got["a.go"])
}
