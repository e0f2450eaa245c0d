package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ragctl/ragcore/internal/cache"
	"github.com/ragctl/ragcore/internal/config"
	"github.com/ragctl/ragcore/internal/embed"
	"github.com/ragctl/ragcore/internal/index"
	"github.com/ragctl/ragcore/internal/scanner"
	"github.com/ragctl/ragcore/internal/store"
)

// dataDirName is where every on-disk index artifact for a project lives,
// rooted at the project's detected root directory.
const dataDirName = ".ragctl"

// project resolves the on-disk layout a subcommand operates on: the
// detected project root, its data directory, and the loaded configuration.
type project struct {
	root    string
	dataDir string
	cfg     *config.Config

	vectorPath      string
	hashCachePath   string
	commitCachePath string
	lockDir         string
}

func openProject(path string) (*project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	root, err := config.FindProjectRoot(abs)
	if err != nil {
		root = abs
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}

	dataDir := filepath.Join(root, dataDirName)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	return &project{
		root:            root,
		dataDir:         dataDir,
		cfg:             cfg,
		vectorPath:      filepath.Join(dataDir, "vectors.hnsw"),
		hashCachePath:   filepath.Join(dataDir, "hashes.json"),
		commitCachePath: filepath.Join(dataDir, "commits.json"),
		lockDir:         filepath.Join(dataDir, "locks"),
	}, nil
}

// engineSet bundles the runtime components wired from a project: the
// embedder and the hybrid index engine, plus the on-disk state loaded into
// them.
type engineSet struct {
	embedder embed.Embedder
	vector   *store.HNSWVectorStore
	hybrid   *store.HybridEngine
	hashes   *cache.HashCache
}

// openEngine loads (or creates) the vector store and hash cache for p and
// wires them into a HybridEngine. Callers must call Close when done.
func (p *project) openEngine(ctx context.Context) (*engineSet, error) {
	embedder, err := embed.NewDefaultEmbedder(ctx)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	vector := store.NewHNSWVectorStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	if _, statErr := os.Stat(p.vectorPath); statErr == nil {
		if loadErr := vector.Load(p.vectorPath); loadErr != nil {
			_ = embedder.Close()
			return nil, fmt.Errorf("load vector store: %w", loadErr)
		}
	}

	lexical := store.NewLexicalManager(p.dataDir, store.DefaultBM25Config())
	hybrid := store.NewHybridEngine(vector, lexical)

	hashes, err := cache.LoadHashCache(p.hashCachePath)
	if err != nil {
		hashes = cache.NewHashCache()
	}

	return &engineSet{embedder: embedder, vector: vector, hybrid: hybrid, hashes: hashes}, nil
}

// persist flushes the vector store to disk. The lexical (Bleve) index and
// hash cache are already durable as of their own calls; only the in-memory
// HNSW graph needs an explicit save.
func (p *project) persist(e *engineSet) error {
	return e.vector.Save(p.vectorPath)
}

func (e *engineSet) Close() {
	_ = e.embedder.Close()
	_ = e.vector.Close()
}

// newRunner wires a fresh index.Runner over e, scoped to p's cache path and
// configuration.
func (p *project) newRunner(e *engineSet) (*index.Runner, error) {
	sc, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}
	return index.NewRunner(index.Deps{
		Scanner:   sc,
		Embedder:  e.embedder,
		Index:     e.hybrid,
		Cache:     e.hashes,
		CachePath: p.hashCachePath,
		Config:    p.cfg,
	}), nil
}
