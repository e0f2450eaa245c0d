package index

import (
	"context"
	"sync"

	"github.com/ragctl/ragcore/internal/chunk"
)

// fileChunker dispatches C2's strategy per file: the AST chunker for
// languages the tree-sitter registry recognizes, a sliding-window fallback
// for everything else (plain text, unsupported languages, markdown).
//
// The underlying tree-sitter parser is not safe for concurrent use, so AST
// chunking is serialized; the sliding-window fallback is pure and runs
// unguarded.
type fileChunker struct {
	registry *chunk.LanguageRegistry
	code     *chunk.CodeChunker
	fallback chunk.Chunker

	mu sync.Mutex
}

func newFileChunker(windowSize, windowOverlap int) *fileChunker {
	return &fileChunker{
		registry: chunk.DefaultRegistry(),
		code:     chunk.NewCodeChunker(),
		fallback: chunk.NewSlidingWindowChunker(windowSize, windowOverlap),
	}
}

func (c *fileChunker) ChunkFile(ctx context.Context, file *chunk.FileRecord) ([]*chunk.Chunk, error) {
	if _, supported := c.registry.GetByName(file.Language); supported {
		c.mu.Lock()
		defer c.mu.Unlock()
		chunks, err := c.code.ChunkFile(ctx, file)
		if err != nil || len(chunks) == 0 {
			// Unparseable or structurally empty source (e.g. a file full of
			// package-level comments with no matching node kinds) still
			// needs to be searchable: fall back rather than drop it.
			return c.fallback.ChunkFile(ctx, file)
		}
		return chunks, nil
	}
	return c.fallback.ChunkFile(ctx, file)
}

func (c *fileChunker) Close() {
	c.code.Close()
}

var _ chunk.Chunker = (*fileChunker)(nil)
