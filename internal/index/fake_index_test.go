package index

import (
	"context"
	"sync"

	"github.com/ragctl/ragcore/internal/store"
)

// fakeHybridIndex is an in-memory store.HybridIndexEngine used to exercise
// the runner without a real HNSW/Bleve backend.
type fakeHybridIndex struct {
	mu   sync.Mutex
	rows []store.VectorRow
}

func newFakeHybridIndex() *fakeHybridIndex {
	return &fakeHybridIndex{}
}

func (f *fakeHybridIndex) Initialize(int) error { return nil }

func (f *fakeHybridIndex) Store(_ context.Context, rows []store.VectorRow, rootPath string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		r.RootPath = &rootPath
		f.rows = append(f.rows, r)
	}
	return len(rows), nil
}

func (f *fakeHybridIndex) Search(context.Context, store.SearchOptions) ([]store.SearchResult, error) {
	return nil, nil
}

func (f *fakeHybridIndex) SearchFiltered(context.Context, store.SearchOptions, []string, []string, []string) ([]store.SearchResult, error) {
	return nil, nil
}

func (f *fakeHybridIndex) DeleteByFile(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.FilePath != path {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return nil
}

func (f *fakeHybridIndex) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = nil
	return nil
}

func (f *fakeHybridIndex) Stats() store.HybridStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return store.HybridStats{TotalRows: len(f.rows)}
}

func (f *fakeHybridIndex) Flush() error { return nil }

func (f *fakeHybridIndex) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeHybridIndex) filePaths() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, r := range f.rows {
		counts[r.FilePath]++
	}
	return counts
}

var _ store.HybridIndexEngine = (*fakeHybridIndex)(nil)
