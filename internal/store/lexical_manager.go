package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"
)

// LexicalManager owns the `hash → lexical index handle` map described in
// the data model's Ownership section: per-root lexical indexes are created
// lazily on first store for that root, addressed by
// first_16_hex(SHA-256(root_path)), and referenced behind a reader/writer
// lock.
type LexicalManager struct {
	mu      sync.RWMutex
	baseDir string
	config  BM25Config
	indexes map[string]BM25Index
}

// NewLexicalManager creates a manager whose per-root indexes live under
// baseDir, at "<baseDir>/bm25_<hash>/".
func NewLexicalManager(baseDir string, config BM25Config) *LexicalManager {
	return &LexicalManager{
		baseDir: baseDir,
		config:  config,
		indexes: make(map[string]BM25Index),
	}
}

// RootKey computes the first_16_hex(SHA-256(root_path)) addressing key for
// a root path.
func RootKey(rootPath string) string {
	sum := sha256.Sum256([]byte(rootPath))
	return hex.EncodeToString(sum[:])[:16]
}

// GetOrCreate returns the lexical index handle for rootPath, creating it
// (and its on-disk directory) on first use.
func (m *LexicalManager) GetOrCreate(rootPath string) (BM25Index, error) {
	key := RootKey(rootPath)

	m.mu.RLock()
	if idx, ok := m.indexes[key]; ok {
		m.mu.RUnlock()
		return idx, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.indexes[key]; ok {
		return idx, nil
	}

	path := filepath.Join(m.baseDir, "bm25_"+key)
	idx, err := NewBleveLexicalIndex(path, m.config)
	if err != nil {
		return nil, fmt.Errorf("create lexical index for root %q: %w", rootPath, err)
	}
	m.indexes[key] = idx
	return idx, nil
}

// All returns a snapshot of every open lexical index handle, used by
// delete-by-file (which must search every per-root index) and by Clear.
func (m *LexicalManager) All() []BM25Index {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]BM25Index, 0, len(m.indexes))
	for _, idx := range m.indexes {
		all = append(all, idx)
	}
	return all
}

// Clear empties every lexical index; the handles stay in the map.
func (m *LexicalManager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, idx := range m.indexes {
		if err := idx.Clear(); err != nil {
			return fmt.Errorf("clear lexical index %q: %w", key, err)
		}
	}
	return nil
}

// Close closes every open lexical index.
func (m *LexicalManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, idx := range m.indexes {
		if err := idx.Close(); err != nil {
			return fmt.Errorf("close lexical index %q: %w", key, err)
		}
	}
	return nil
}
