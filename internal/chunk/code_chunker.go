package chunk

import (
	"context"
	"fmt"
)

// CodeChunker implements the AST strategy: for a supported language
// it parses the file and emits exactly one chunk per node whose kind is in
// that language's allow-list. It never splits a node across chunks and
// never emits content for lines outside any matched node.
type CodeChunker struct {
	parser   *Parser
	registry *LanguageRegistry
}

// NewCodeChunker creates an AST chunker backed by the default language
// registry.
func NewCodeChunker() *CodeChunker {
	registry := DefaultRegistry()
	return &CodeChunker{parser: NewParserWithRegistry(registry), registry: registry}
}

// Close releases the underlying tree-sitter parser.
func (c *CodeChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// ChunkFile parses file.Content with the grammar for file.Language and
// returns one chunk per allow-listed node. An empty file yields no chunks; a
// file whose language has no registered grammar yields an error.
func (c *CodeChunker) ChunkFile(ctx context.Context, file *FileRecord) ([]*Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}

	config, supported := c.registry.GetByName(file.Language)
	if !supported {
		return nil, fmt.Errorf("unsupported language for AST chunking: %s", file.Language)
	}

	tree, err := c.parser.Parse(ctx, file.Content, file.Language)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file.RelPath, err)
	}

	allowed := make(map[string]struct{}, len(config.NodeKinds))
	for _, k := range config.NodeKinds {
		allowed[k] = struct{}{}
	}

	var chunks []*Chunk
	tree.Root.Walk(func(n *Node) bool {
		if _, ok := allowed[n.Type]; ok {
			chunks = append(chunks, nodeChunk(n, file))
			return false // don't descend into a node already emitted as a chunk
		}
		return true
	})

	return chunks, nil
}

func nodeChunk(n *Node, file *FileRecord) *Chunk {
	return &Chunk{
		FilePath:  file.RelPath,
		Content:   string(file.Content[n.StartByte:n.EndByte]),
		Project:   file.Project,
		StartLine: int(n.StartPoint.Row) + 1,
		EndLine:   int(n.EndPoint.Row) + 1,
		Language:  file.Language,
		Extension: file.Extension,
		FileHash:  file.FileHash,
		IndexedAt: file.IndexedAt,
	}
}
