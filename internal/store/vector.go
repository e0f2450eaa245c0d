package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWVectorStore implements VectorStore on top of coder/hnsw, a pure-Go
// HNSW graph. Unlike a general-purpose vector store keyed by an opaque
// string id, every row id here is itself a monotonic uint64 — exactly the
// key type coder/hnsw's Graph already uses — so rows are stored directly
// under their row id with no separate id-mapping table.
type HNSWVectorStore struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[uint64]
	config   VectorStoreConfig
	rows     map[uint64]VectorRow
	nextID   uint64
	closed   bool
}

type vectorStorePersisted struct {
	Rows   map[uint64]VectorRow
	NextID uint64
	Config VectorStoreConfig
}

// NewHNSWVectorStore creates an empty vector store for the given config.
func NewHNSWVectorStore(cfg VectorStoreConfig) *HNSWVectorStore {
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWVectorStore{
		graph:  graph,
		config: cfg,
		rows:   make(map[uint64]VectorRow),
	}
}

// Initialize is idempotent: the table shape is fixed by config.Dimensions at
// construction time, so this only validates the dimension matches.
func (s *HNSWVectorStore) Initialize(dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config.Dimensions == 0 {
		s.config.Dimensions = dimension
		return nil
	}
	if s.config.Dimensions != dimension {
		return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: dimension}
	}
	return nil
}

// Store appends rows, assigning monotonically increasing row ids.
func (s *HNSWVectorStore) Store(ctx context.Context, batch []VectorRow) (uint64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("vector store is closed")
	}

	for _, row := range batch {
		if len(row.Vector) != s.config.Dimensions {
			return 0, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(row.Vector)}
		}
	}

	startID := s.nextID
	for _, row := range batch {
		row.RowID = s.nextID
		s.nextID++

		vec := make([]float32, len(row.Vector))
		copy(vec, row.Vector)
		if s.config.Metric == "cos" {
			normalizeVectorInPlace(vec)
		}
		row.Vector = vec

		s.graph.Add(hnsw.MakeNode(row.RowID, vec))
		s.rows[row.RowID] = row
	}

	return startID, nil
}

// CountRows returns the number of rows matching filter.
func (s *HNSWVectorStore) CountRows(filter *Predicate) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter == nil {
		return len(s.rows), nil
	}
	n := 0
	for _, row := range s.rows {
		if filter.Matches(row) {
			n++
		}
	}
	return n, nil
}

// VectorSearch returns the rows nearest to query, optionally filtered.
func (s *HNSWVectorStore) VectorSearch(ctx context.Context, query []float32, limit int, filter *Predicate) ([]VectorSearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return []VectorSearchResult{}, nil
	}

	normalizedQuery := make([]float32, len(query))
	copy(normalizedQuery, query)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(normalizedQuery)
	}

	// When a scalar filter is present, over-fetch against the whole graph
	// so filtering never starves the result set below limit.
	k := limit
	if filter != nil {
		k = s.graph.Len()
	}

	nodes := s.graph.Search(normalizedQuery, k)

	results := make([]VectorSearchResult, 0, len(nodes))
	for _, node := range nodes {
		row, exists := s.rows[node.Key]
		if !exists {
			continue // lazily deleted
		}
		if filter != nil && !filter.Matches(row) {
			continue
		}

		distance := s.graph.Distance(normalizedQuery, node.Value)
		results = append(results, VectorSearchResult{
			Row:      row,
			Distance: distance,
			Score:    distanceToScore(distance),
		})
		if len(results) >= limit {
			break
		}
	}

	return results, nil
}

// DeleteWhere removes every row matching predicate, returning the count
// removed. Deletion is lazy: nodes are orphaned from the row map but never
// removed from the HNSW graph itself, since coder/hnsw can corrupt the graph
// when the last node is deleted.
func (s *HNSWVectorStore) DeleteWhere(predicateStr string) (int, error) {
	pred, err := ParsePredicate(predicateStr)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, row := range s.rows {
		if pred.Matches(row) {
			delete(s.rows, id)
			removed++
		}
	}
	return removed, nil
}

// DropTable removes every row.
func (s *HNSWVectorStore) DropTable() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = make(map[uint64]VectorRow)
	s.nextID = 0
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = s.graph.Distance
	graph.M = s.config.M
	graph.EfSearch = s.config.EfSearch
	graph.Ml = 0.25
	s.graph = graph
	return nil
}

// Save persists the graph and row metadata to disk (temp-file-then-rename).
func (s *HNSWVectorStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpGraphPath := path + ".tmp"
	file, err := os.Create(tmpGraphPath)
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpGraphPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpGraphPath)
		return fmt.Errorf("close graph file: %w", err)
	}
	if err := os.Rename(tmpGraphPath, path); err != nil {
		os.Remove(tmpGraphPath)
		return fmt.Errorf("rename graph file: %w", err)
	}

	return s.saveMetadata(path + ".meta")
}

func (s *HNSWVectorStore) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := vectorStorePersisted{Rows: s.rows, NextID: s.nextID, Config: s.config}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores the graph and row metadata from disk.
func (s *HNSWVectorStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	if err := s.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open graph file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	if err := s.graph.Import(reader); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func (s *HNSWVectorStore) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer file.Close()

	var meta vectorStorePersisted
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	s.rows = meta.Rows
	s.nextID = meta.NextID
	s.config = meta.Config
	return nil
}

// Close releases resources.
func (s *HNSWVectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// rowByID returns the row stored under id, used by the hybrid engine to
// resolve metadata for lexical-only hits outside the vector search's
// oversampled window.
func (s *HNSWVectorStore) rowByID(id uint64) (VectorRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	return row, ok
}

// allRows returns every live row, used by the hybrid engine's language
// breakdown in Stats.
func (s *HNSWVectorStore) allRows() []VectorRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]VectorRow, 0, len(s.rows))
	for _, row := range s.rows {
		rows = append(rows, row)
	}
	return rows
}

var _ VectorStore = (*HNSWVectorStore)(nil)

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts a distance value to a similarity score, per
// score = 1 / (1 + distance), for every configured metric.
func distanceToScore(distance float32) float64 {
	return 1.0 / (1.0 + float64(distance))
}
