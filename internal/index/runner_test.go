package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragctl/ragcore/internal/cache"
	"github.com/ragctl/ragcore/internal/config"
	"github.com/ragctl/ragcore/internal/embed"
	"github.com/ragctl/ragcore/internal/scanner"
)

func newTestRunner(t *testing.T, idx *fakeHybridIndex) (*Runner, string) {
	t.Helper()

	sc, err := scanner.New()
	require.NoError(t, err)

	cachePath := filepath.Join(t.TempDir(), "hashes.json")
	cfg := config.NewConfig()

	runner := NewRunner(Deps{
		Scanner:   sc,
		Embedder:  embed.NewStaticEmbedder768(),
		Index:     idx,
		Cache:     cache.NewHashCache(),
		CachePath: cachePath,
		Config:    cfg,
	})
	t.Cleanup(runner.Close)

	return runner, cachePath
}

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestFullIndex_ChunksAndStoresGoFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
	writeFile(t, root, "util.go", "package main\n\nfunc helper() int {\n\treturn 42\n}\n")

	idx := newFakeHybridIndex()
	runner, _ := newTestRunner(t, idx)

	resp, err := runner.FullIndex(context.Background(), Request{RootDir: root})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.FilesProcessed)
	assert.Greater(t, resp.ChunksCreated, 0)
	assert.Equal(t, resp.ChunksCreated, idx.rowCount())
	assert.Empty(t, resp.Errors)
}

func TestFullIndex_NoChunksReturnsNotFoundError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "empty.go", "")

	idx := newFakeHybridIndex()
	runner, _ := newTestRunner(t, idx)

	_, err := runner.FullIndex(context.Background(), Request{RootDir: root})
	require.Error(t, err)
}

func TestFullIndex_UpdatesHashCacheForRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")

	idx := newFakeHybridIndex()
	runner, _ := newTestRunner(t, idx)

	_, err := runner.FullIndex(context.Background(), Request{RootDir: root})
	require.NoError(t, err)

	hashes, ok := runner.cache.GetRoot(canonicalRoot(root))
	require.True(t, ok)
	assert.Contains(t, hashes, "main.go")
}

func TestIncrementalUpdate_ClassifiesNewModifiedAndRemoved(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package main\n\nfunc A() {}\n")
	writeFile(t, root, "b.go", "package main\n\nfunc B() {}\n")

	idx := newFakeHybridIndex()
	runner, _ := newTestRunner(t, idx)

	_, err := runner.FullIndex(context.Background(), Request{RootDir: root})
	require.NoError(t, err)
	initialRows := idx.rowCount()

	// Modify a.go, remove b.go, add c.go.
	writeFile(t, root, "a.go", "package main\n\nfunc A() {\n\tprintln(\"changed\")\n}\n")
	require.NoError(t, os.Remove(filepath.Join(root, "b.go")))
	writeFile(t, root, "c.go", "package main\n\nfunc C() {}\n")

	resp, err := runner.IncrementalUpdate(context.Background(), Request{RootDir: root})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.FilesAdded)
	assert.Equal(t, 1, resp.FilesUpdated)
	assert.Equal(t, 1, resp.FilesRemoved)

	paths := idx.filePaths()
	assert.NotContains(t, paths, "b.go")
	assert.Contains(t, paths, "c.go")
	assert.NotEqual(t, initialRows, idx.rowCount())
}

func TestIncrementalUpdate_UnchangedFileIsNotReembedded(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package main\n\nfunc A() {}\n")

	idx := newFakeHybridIndex()
	runner, _ := newTestRunner(t, idx)

	_, err := runner.FullIndex(context.Background(), Request{RootDir: root})
	require.NoError(t, err)
	rowsAfterFull := idx.rowCount()

	resp, err := runner.IncrementalUpdate(context.Background(), Request{RootDir: root})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.FilesAdded)
	assert.Equal(t, 0, resp.FilesUpdated)
	assert.Equal(t, 0, resp.FilesRemoved)
	assert.Equal(t, rowsAfterFull, idx.rowCount())
}

func TestFullIndex_ReportsProgress(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package main\n\nfunc A() {}\n")

	idx := newFakeHybridIndex()
	runner, _ := newTestRunner(t, idx)

	var pcts []int
	_, err := runner.FullIndex(context.Background(), Request{
		RootDir:  root,
		Progress: func(pct int, _ string) { pcts = append(pcts, pct) },
	})
	require.NoError(t, err)
	require.NotEmpty(t, pcts)
	assert.Equal(t, 100, pcts[len(pcts)-1])
}
