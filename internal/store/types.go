// Package store owns the two persistent stores behind the hybrid index: a
// per-root BM25 lexical index (Bleve) and a single HNSW vector store, plus
// the engine that keeps their row ids synchronized.
package store

import (
	"context"
	"fmt"
)

// VectorRow is a single stored row: an embedding plus the metadata needed to
// answer scalar filters and to re-render the chunk or commit it came from.
//
// RowID is the monotonically increasing integer assigned at insert time; it
// doubles as the lexical document id for the same content (see Invariants in
// the data model). ID is a separate, human-readable identifier — never used
// as a storage key — formatted "<relative_path>:<start_line>" for code rows
// and "git://<repo_path>" for commit rows.
type VectorRow struct {
	RowID     uint64
	Vector    []float32
	ID        string
	FilePath  string
	RootPath  *string
	StartLine uint32
	EndLine   uint32
	Language  string
	Extension string
	FileHash  string
	IndexedAt string
	Content   string
	Project   *string
}

// VectorSearchResult is a VectorRow annotated with its distance to a query
// vector and the similarity score derived from it.
type VectorSearchResult struct {
	Row      VectorRow
	Distance float32
	Score    float64
}

// VectorStore is the C7 embedded, append-oriented columnar table. Rows are
// keyed on an implicit, monotonic row index assigned by Store.
type VectorStore interface {
	// Initialize creates the table for the given embedding dimension if it
	// does not already exist. Idempotent.
	Initialize(dimension int) error

	// Store appends rows, assigning monotonically increasing row ids that
	// continue from the last id assigned; ids of deleted rows are not
	// reused, so the first id can exceed CountRows(nil). Returns the first
	// assigned row id.
	Store(ctx context.Context, rows []VectorRow) (startID uint64, err error)

	// CountRows returns the number of rows matching filter (nil matches
	// all).
	CountRows(filter *Predicate) (int, error)

	// VectorSearch returns the rows nearest to query, each annotated with
	// distance and the derived similarity score, optionally restricted by
	// filter.
	VectorSearch(ctx context.Context, query []float32, limit int, filter *Predicate) ([]VectorSearchResult, error)

	// DeleteWhere removes every row matching predicate, e.g. `file_path =
	// 'internal/foo.go'`.
	DeleteWhere(predicate string) (int, error)

	// DropTable removes every row; used by Clear.
	DropTable() error

	Close() error
}

// LexicalDocument is one document added to a per-root BM25 index.
type LexicalDocument struct {
	ID       uint64
	Content  string
	FilePath string
}

// LexicalResult is a single BM25 hit: a row id and its raw, unbounded score.
type LexicalResult struct {
	ID    uint64
	Score float64
}

// LexicalStats summarizes one per-root lexical index.
type LexicalStats struct {
	TotalDocuments int
}

// BM25Index is the C6 per-root, on-disk inverted index.
type BM25Index interface {
	// AddDocuments appends documents; commits at the end. Safe to call
	// concurrently — callers serialize writes with their own mutex, but
	// implementations must not corrupt state if called concurrently with
	// Search.
	AddDocuments(ctx context.Context, docs []LexicalDocument) error

	// DeleteByID removes every document carrying id.
	DeleteByID(id uint64) error

	// DeleteByFilePath removes every document carrying file_path.
	DeleteByFilePath(path string) error

	// Clear empties the index.
	Clear() error

	// Search parses query against the content field and returns the
	// top-limit hits by BM25 score.
	Search(ctx context.Context, query string, limit int) ([]LexicalResult, error)

	Stats() LexicalStats

	Close() error
}

// SearchOptions configures a single C8 search call.
type SearchOptions struct {
	QueryVector []float32
	QueryText   string
	Limit       int
	MinScore    float64
	Project     *string
	RootPath    *string
	Hybrid      bool
}

// SearchResult is one hybrid-index hit returned to the query planner.
type SearchResult struct {
	RowID         uint64
	FilePath      string
	RootPath      *string
	StartLine     uint32
	EndLine       uint32
	Language      string
	Extension     string
	FileHash      string
	IndexedAt     string
	Content       string
	Project       *string
	Score         float64
	VectorScore   *float64
	KeywordScore  *float64
}

// LanguageCount is one entry of a stats breakdown, sorted descending by
// Count.
type LanguageCount struct {
	Language string
	Count    int
}

// HybridStats summarizes the whole hybrid index.
type HybridStats struct {
	TotalRows         int
	LanguageBreakdown []LanguageCount
}

// HybridIndexEngine is C8: it owns the vector store and every per-root
// lexical index and is responsible for keeping their row ids in sync.
type HybridIndexEngine interface {
	Initialize(dimension int) error

	// Store appends rows to the vector store, then mirrors the same
	// (row id, content, file_path) triples into the lexical index for
	// rootPath, creating it if absent. Returns the number of rows stored.
	Store(ctx context.Context, rows []VectorRow, rootPath string) (int, error)

	Search(ctx context.Context, opts SearchOptions) ([]SearchResult, error)

	SearchFiltered(ctx context.Context, opts SearchOptions, fileExtensions, languages, pathPatterns []string) ([]SearchResult, error)

	// DeleteByFile removes every row (vector + every lexical index) whose
	// file_path equals path.
	DeleteByFile(path string) error

	Clear() error

	Stats() HybridStats

	// Flush is called after a run's writes. HybridEngine's Flush does
	// nothing; its vector store reaches disk only through an explicit Save.
	Flush() error
}

// ErrDimensionMismatch indicates a vector's length does not match the store's
// configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// VectorStoreConfig configures the HNSW-backed vector store.
type VectorStoreConfig struct {
	Dimensions     int
	Metric         string // "cos" or "l2"; "cos" is the primary search key per spec.
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultVectorStoreConfig returns the defaults used when a caller does not
// override HNSW tuning parameters.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// BM25Config configures a per-root lexical index's code-aware analyzer.
type BM25Config struct {
	StopWords      []string
	MinTokenLength int
}

// DefaultBM25Config returns the default lexical index configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		StopWords:      DefaultCodeStopWords,
		MinTokenLength: 2,
	}
}

// DefaultCodeStopWords contains programming keywords filtered out of the
// lexical analyzer.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}
