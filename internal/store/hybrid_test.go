package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHybridEngine(t *testing.T) *HybridEngine {
	t.Helper()
	vector := NewHNSWVectorStore(DefaultVectorStoreConfig(3))
	lexical := NewLexicalManager(t.TempDir(), DefaultBM25Config())
	return NewHybridEngine(vector, lexical)
}

func TestHybridEngine_StoreMirrorsRowIDsIntoLexicalIndex(t *testing.T) {
	e := newTestHybridEngine(t)
	ctx := context.Background()

	n, err := e.Store(ctx, []VectorRow{
		{Vector: []float32{1, 0, 0}, FilePath: "a.go", Content: "the quick brown fox"},
	}, "/repo/root")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ids, _ := e.lexicalSearch(ctx, "quick", 10)
	require.Len(t, ids, 1)
	assert.Equal(t, uint64(0), ids[0])
}

func TestHybridEngine_SearchPureVectorDropsBelowMinScore(t *testing.T) {
	e := newTestHybridEngine(t)
	ctx := context.Background()

	_, err := e.Store(ctx, []VectorRow{
		{Vector: []float32{1, 0, 0}, FilePath: "close.go", Content: "close match"},
		{Vector: []float32{-1, 0, 0}, FilePath: "far.go", Content: "far match"},
	}, "/repo/root")
	require.NoError(t, err)

	results, err := e.Search(ctx, SearchOptions{
		QueryVector: []float32{1, 0, 0},
		Limit:       10,
		MinScore:    0.9,
		Hybrid:      false,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "close.go", results[0].FilePath)
}

func TestHybridEngine_SearchHybridFindsKeywordOnlyMatch(t *testing.T) {
	// Scenario 3 from the testable-properties section: a chunk whose
	// embedding is dissimilar to the query vector but whose text matches
	// strongly on keywords must still surface in hybrid mode.
	e := newTestHybridEngine(t)
	ctx := context.Background()

	_, err := e.Store(ctx, []VectorRow{
		{Vector: []float32{1, 0, 0}, FilePath: "fox.go", Content: "the quick brown fox jumps"},
	}, "/repo/root")
	require.NoError(t, err)

	results, err := e.Search(ctx, SearchOptions{
		QueryVector: []float32{0, 0, -1}, // orthogonal/opposite: low cosine similarity
		QueryText:   "xyzzy quick",
		Limit:       10,
		MinScore:    0.5,
		Hybrid:      true,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].KeywordScore)
	assert.GreaterOrEqual(t, *results[0].KeywordScore, 0.5)
}

func TestHybridEngine_DeleteByFileRemovesFromBothStores(t *testing.T) {
	e := newTestHybridEngine(t)
	ctx := context.Background()

	_, err := e.Store(ctx, []VectorRow{
		{Vector: []float32{1, 0, 0}, FilePath: "a.go", Content: "alpha beta"},
	}, "/repo/root")
	require.NoError(t, err)

	require.NoError(t, e.DeleteByFile("a.go"))

	stats := e.Stats()
	assert.Equal(t, 0, stats.TotalRows)

	ids, _ := e.lexicalSearch(ctx, "alpha", 10)
	assert.Empty(t, ids)
}

func TestHybridEngine_ClearResetsStats(t *testing.T) {
	e := newTestHybridEngine(t)
	ctx := context.Background()

	_, err := e.Store(ctx, []VectorRow{
		{Vector: []float32{1, 0, 0}, FilePath: "a.go", Content: "alpha"},
	}, "/repo/root")
	require.NoError(t, err)

	require.NoError(t, e.Clear())

	stats := e.Stats()
	assert.Equal(t, 0, stats.TotalRows)
	assert.Empty(t, stats.LanguageBreakdown)
}

func TestHybridEngine_SearchFilteredAppliesLanguageAndExtension(t *testing.T) {
	e := newTestHybridEngine(t)
	ctx := context.Background()

	_, err := e.Store(ctx, []VectorRow{
		{Vector: []float32{1, 0, 0}, FilePath: "a.go", Language: "go", Extension: ".go", Content: "alpha"},
		{Vector: []float32{1, 0, 0}, FilePath: "b.py", Language: "python", Extension: ".py", Content: "alpha"},
	}, "/repo/root")
	require.NoError(t, err)

	results, err := e.SearchFiltered(ctx, SearchOptions{
		QueryVector: []float32{1, 0, 0},
		Limit:       10,
		MinScore:    0,
		Hybrid:      false,
	}, []string{".go"}, []string{"go"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.go", results[0].FilePath)
}

func TestMatchesAnyGlob_DoubleStarMatchesAnyDepth(t *testing.T) {
	assert.True(t, matchesAnyGlob("internal/store/hybrid.go", []string{"**/store/*.go"}))
	assert.True(t, matchesAnyGlob("store/hybrid.go", []string{"**/store/*.go"}))
	assert.False(t, matchesAnyGlob("internal/search/engine.go", []string{"**/store/*.go"}))
}
