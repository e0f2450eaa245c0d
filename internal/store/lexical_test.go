package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLexicalIndex(t *testing.T) *BleveLexicalIndex {
	t.Helper()
	idx, err := NewBleveLexicalIndex("", DefaultBM25Config())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveLexicalIndex_AddAndSearch(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddDocuments(ctx, []LexicalDocument{
		{ID: 1, Content: "the quick brown fox jumps", FilePath: "a.go"},
		{ID: 2, Content: "completely unrelated content", FilePath: "b.go"},
	}))

	results, err := idx.Search(ctx, "quick fox", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, uint64(1), results[0].ID)
}

func TestBleveLexicalIndex_DeleteByFilePathRemovesAllDocsForFile(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddDocuments(ctx, []LexicalDocument{
		{ID: 1, Content: "alpha beta", FilePath: "a.go"},
		{ID: 2, Content: "alpha gamma", FilePath: "a.go"},
		{ID: 3, Content: "alpha delta", FilePath: "b.go"},
	}))

	require.NoError(t, idx.DeleteByFilePath("a.go"))

	results, err := idx.Search(ctx, "alpha", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(3), results[0].ID)
}

func TestBleveLexicalIndex_DeleteByFilePathIsIdempotent(t *testing.T) {
	idx := newTestLexicalIndex(t)
	require.NoError(t, idx.DeleteByFilePath("missing.go"))
	require.NoError(t, idx.DeleteByFilePath("missing.go"))
}

func TestBleveLexicalIndex_ClearEmptiesIndex(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddDocuments(ctx, []LexicalDocument{
		{ID: 1, Content: "alpha beta", FilePath: "a.go"},
	}))
	require.NoError(t, idx.Clear())

	stats := idx.Stats()
	assert.Equal(t, 0, stats.TotalDocuments)
}

func TestBleveLexicalIndex_SearchEmptyQueryReturnsEmpty(t *testing.T) {
	idx := newTestLexicalIndex(t)
	results, err := idx.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLexicalManager_GetOrCreateIsIdempotentPerRoot(t *testing.T) {
	m := NewLexicalManager(t.TempDir(), DefaultBM25Config())

	idx1, err := m.GetOrCreate("/repo/root")
	require.NoError(t, err)
	idx2, err := m.GetOrCreate("/repo/root")
	require.NoError(t, err)

	assert.Same(t, idx1, idx2)
}

func TestLexicalManager_DifferentRootsGetDifferentIndexes(t *testing.T) {
	m := NewLexicalManager(t.TempDir(), DefaultBM25Config())

	idx1, err := m.GetOrCreate("/repo/one")
	require.NoError(t, err)
	idx2, err := m.GetOrCreate("/repo/two")
	require.NoError(t, err)

	assert.NotSame(t, idx1, idx2)
}

func TestRootKey_IsSixteenHexChars(t *testing.T) {
	key := RootKey("/repo/root")
	assert.Len(t, key, 16)
}
