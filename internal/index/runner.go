package index

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ragctl/ragcore/internal/cache"
	"github.com/ragctl/ragcore/internal/chunk"
	"github.com/ragctl/ragcore/internal/config"
	ragerrors "github.com/ragctl/ragcore/internal/errors"
	"github.com/ragctl/ragcore/internal/embed"
	"github.com/ragctl/ragcore/internal/scanner"
	"github.com/ragctl/ragcore/internal/store"
)

// Deps are the collaborators a Runner drives. All fields except Config are
// required; a nil Config falls back to config.NewConfig().
type Deps struct {
	Scanner  *scanner.Scanner
	Embedder embed.Embedder
	Index    store.HybridIndexEngine
	Cache    *cache.HashCache

	// CachePath is where Cache is persisted after every mutation.
	CachePath string

	Config *config.Config
}

// Runner drives C9's full and incremental passes. SmartIndex (in
// smart.go) additionally wraps these with C10's lock coordination.
type Runner struct {
	scanner  *scanner.Scanner
	embedder embed.Embedder
	index    store.HybridIndexEngine
	cache    *cache.HashCache
	cachePath string
	cfg      *config.Config
	chunker  *fileChunker
}

// NewRunner wires a Runner from its dependencies.
func NewRunner(deps Deps) *Runner {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Runner{
		scanner:   deps.Scanner,
		embedder:  deps.Embedder,
		index:     deps.Index,
		cache:     deps.Cache,
		cachePath: deps.CachePath,
		cfg:       cfg,
		chunker:   newFileChunker(cfg.Search.ChunkSize, cfg.Search.ChunkOverlap),
	}
}

// Close releases the AST parser backing the Runner's chunker.
func (r *Runner) Close() {
	r.chunker.Close()
}

// canonicalRoot resolves root to an absolute, symlink-free path so it is a
// stable cache and lock key regardless of how the caller spelled it.
func canonicalRoot(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return root
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func (r *Runner) scanOptions(req Request, root string) *scanner.ScanOptions {
	maxSize := req.MaxFileSize
	if maxSize == 0 {
		maxSize = scanner.DefaultMaxFileSize
	}
	return &scanner.ScanOptions{
		RootDir:          root,
		Project:          req.Project,
		IncludePatterns:  req.IncludePatterns,
		ExcludePatterns:  req.ExcludePatterns,
		RespectGitignore: true,
		Workers:          r.cfg.Performance.IndexWorkers,
		MaxFileSize:      maxSize,
		Submodules:       &r.cfg.Submodules,
	}
}

// walkedFile is one file seen during a walk, with its chunks (if any) and
// whatever per-file error the chunker produced.
type walkedFile struct {
	record *chunk.FileRecord
	chunks []*chunk.Chunk
	err    error
}

// walkAndChunk runs C1 then C2 over root: it blocks until the walk
// completes (or ctx is cancelled), chunking each discovered file
// concurrently across cfg.Performance.IndexWorkers goroutines.
func (r *Runner) walkAndChunk(ctx context.Context, req Request, root string) ([]walkedFile, error) {
	results, err := r.scanner.Walk(ctx, r.scanOptions(req, root))
	if err != nil {
		return nil, ragerrors.IO("walk project root", err)
	}

	workers := r.cfg.Performance.IndexWorkers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var (
		files []walkedFile
		mu    sync.Mutex
	)

	for res := range results {
		res := res
		if res.Error != nil {
			mu.Lock()
			files = append(files, walkedFile{err: res.Error})
			mu.Unlock()
			continue
		}
		file := res.File
		file.IndexedAt = time.Now().Unix()

		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			chunks, chunkErr := r.chunker.ChunkFile(gctx, file)
			mu.Lock()
			files = append(files, walkedFile{record: file, chunks: chunks, err: chunkErr})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ragerrors.Cancelled("indexing cancelled during walk/chunk")
	}

	// Deterministic ordering over successfully-scanned files; per-file
	// errors (record == nil) sort after, in whatever order they arrived.
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].record == nil || files[j].record == nil {
			return files[j].record == nil && files[i].record != nil
		}
		return files[i].record.RelPath < files[j].record.RelPath
	})

	return files, nil
}

// embedAndStore embeds chunks and stores them in the C8 index: it embeds in batches of
// cfg.Embeddings.BatchSize, each batch bounded by its own timeout, and
// stores every successfully embedded batch. A failed batch is recorded and
// skipped rather than aborting the whole run.
func (r *Runner) embedAndStore(ctx context.Context, chunks []*chunk.Chunk, root string, progress ProgressFunc, pctLo, pctHi int) (int, []string, error) {
	if len(chunks) == 0 {
		return 0, nil, nil
	}

	batchSize := r.cfg.Embeddings.BatchSize
	if batchSize < 1 {
		batchSize = embed.DefaultBatchSize
	}
	// Cancellation is checked once before each batch. CancellationCheckInterval
	// is not read: a batch is embedded in one call and is not split into
	// smaller sub-batches with checks between them.
	timeout := time.Duration(r.cfg.Embeddings.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = embed.DefaultTimeout
	}

	if err := r.index.Initialize(r.embedder.Dimensions()); err != nil {
		return 0, nil, ragerrors.IO("initialize vector store", err)
	}

	var (
		stored    int
		errs      []string
		processed int
	)

	for start := 0; start < len(chunks); start += batchSize {
		select {
		case <-ctx.Done():
			return stored, errs, ragerrors.Cancelled("indexing cancelled before embed batch")
		default:
		}

		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		batchCtx, cancel := context.WithTimeout(ctx, timeout)
		vectors, err := r.embedder.EmbedBatch(batchCtx, texts)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Sprintf("embed batch %d-%d: %v", start, end, err))
			processed += len(batch)
			if progress != nil {
				progress(progressPct(pctLo, pctHi, processed, len(chunks)), "embedding")
			}
			continue
		}

		rows := make([]store.VectorRow, len(batch))
		for i, c := range batch {
			rows[i] = chunkToRow(c, vectors[i], root)
		}

		n, err := r.index.Store(ctx, rows, root)
		if err != nil {
			errs = append(errs, fmt.Sprintf("store batch %d-%d: %v", start, end, err))
			processed += len(batch)
			if progress != nil {
				progress(progressPct(pctLo, pctHi, processed, len(chunks)), "embedding")
			}
			continue
		}
		stored += n
		processed += len(batch)
		if progress != nil {
			progress(progressPct(pctLo, pctHi, processed, len(chunks)), "embedding")
		}
	}

	return stored, errs, nil
}

func progressPct(lo, hi, done, total int) int {
	if total == 0 {
		return hi
	}
	return lo + (hi-lo)*done/total
}

// chunkToRow converts a C2 chunk into C7's storage row. IndexedAt is
// converted from Unix seconds to RFC3339, matching the convention the git
// history pipeline uses for the same field (internal/githistory/chunker.go).
func chunkToRow(c *chunk.Chunk, vector []float32, root string) store.VectorRow {
	return store.VectorRow{
		Vector:    vector,
		ID:        fmt.Sprintf("%s:%d", c.FilePath, c.StartLine),
		FilePath:  c.FilePath,
		RootPath:  &root,
		StartLine: uint32(c.StartLine),
		EndLine:   uint32(c.EndLine),
		Language:  c.Language,
		Extension: c.Extension,
		FileHash:  c.FileHash,
		IndexedAt: time.Unix(c.IndexedAt, 0).UTC().Format(time.RFC3339),
		Content:   c.Content,
		Project:   c.Project,
	}
}

// FullIndex implements full_index: walk, chunk, embed, and store every
// indexable file under req.RootDir, replacing whatever hash-cache entry the
// root previously had.
func (r *Runner) FullIndex(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	root := canonicalRoot(req.RootDir)

	report(req.Progress, 0, "scanning")
	files, err := r.walkAndChunk(ctx, req, root)
	if err != nil {
		return Response{}, err
	}
	report(req.Progress, 20, "chunked")

	var (
		allChunks  []*chunk.Chunk
		perFileErr []string
		hashes     = make(map[string]string, len(files))
	)
	for _, f := range files {
		if f.err != nil {
			perFileErr = append(perFileErr, f.err.Error())
			continue
		}
		if f.record == nil {
			continue
		}
		hashes[f.record.RelPath] = f.record.FileHash
		allChunks = append(allChunks, f.chunks...)
	}

	if len(allChunks) == 0 {
		return Response{}, ragerrors.NotFound("No code chunks found", nil)
	}
	report(req.Progress, 40, "embedding")

	stored, embedErrs, err := r.embedAndStore(ctx, allChunks, root, req.Progress, 40, 80)
	if err != nil {
		return Response{}, err
	}
	report(req.Progress, 80, "updating cache")

	r.cache.UpdateRoot(root, hashes)
	if err := r.cache.Save(r.cachePath); err != nil {
		return Response{}, ragerrors.IO("save hash cache", err)
	}
	if err := r.index.Flush(); err != nil {
		return Response{}, ragerrors.IO("flush vector store", err)
	}
	report(req.Progress, 100, "done")

	return Response{
		FilesProcessed: len(hashes),
		FilesAdded:     len(hashes),
		ChunksCreated:  stored,
		Errors:         append(perFileErr, embedErrs...),
		Duration:       time.Since(start),
	}, nil
}

// IncrementalUpdate implements incremental_update: classify files against
// the root's existing hash-cache entry, then chunk+embed only new and
// modified files, and remove rows for modified+removed files.
func (r *Runner) IncrementalUpdate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	root := canonicalRoot(req.RootDir)

	existing, _ := r.cache.GetRoot(root)
	if existing == nil {
		existing = map[string]string{}
	}

	report(req.Progress, 0, "scanning")
	files, err := r.walkAndChunk(ctx, req, root)
	if err != nil {
		return Response{}, err
	}
	report(req.Progress, 20, "classifying")

	var (
		newHashes  = make(map[string]string, len(files))
		toEmbed    []*chunk.Chunk
		perFileErr []string
		added, updated int
	)
	seen := make(map[string]struct{}, len(files))

	for _, f := range files {
		if f.err != nil {
			perFileErr = append(perFileErr, f.err.Error())
			continue
		}
		if f.record == nil {
			continue
		}
		rel := f.record.RelPath
		seen[rel] = struct{}{}
		newHashes[rel] = f.record.FileHash

		oldHash, hadEntry := existing[rel]
		switch {
		case !hadEntry:
			added++
			toEmbed = append(toEmbed, f.chunks...)
		case oldHash != f.record.FileHash:
			updated++
			if err := r.index.DeleteByFile(rel); err != nil {
				return Response{}, ragerrors.IO(fmt.Sprintf("delete stale rows for %s", rel), err)
			}
			toEmbed = append(toEmbed, f.chunks...)
		}
	}

	removed := 0
	for rel := range existing {
		if _, ok := seen[rel]; !ok {
			removed++
			if err := r.index.DeleteByFile(rel); err != nil {
				return Response{}, ragerrors.IO(fmt.Sprintf("delete removed file %s", rel), err)
			}
		}
	}

	report(req.Progress, 40, "embedding")
	stored, embedErrs, err := r.embedAndStore(ctx, toEmbed, root, req.Progress, 40, 80)
	if err != nil {
		return Response{}, err
	}
	report(req.Progress, 80, "updating cache")

	r.cache.UpdateRoot(root, newHashes)
	if err := r.cache.Save(r.cachePath); err != nil {
		return Response{}, ragerrors.IO("save hash cache", err)
	}
	if err := r.index.Flush(); err != nil {
		return Response{}, ragerrors.IO("flush vector store", err)
	}
	report(req.Progress, 100, "done")

	return Response{
		FilesProcessed: len(newHashes),
		FilesAdded:     added,
		FilesUpdated:   updated,
		FilesRemoved:   removed,
		ChunksCreated:  stored,
		Errors:         append(perFileErr, embedErrs...),
		Duration:       time.Since(start),
	}, nil
}

func report(fn ProgressFunc, pct int, msg string) {
	if fn != nil {
		fn(pct, msg)
	}
}
