package chunk

import (
	"context"
	"strings"
)

// FixedLinesChunker implements the fixed-lines strategy: split lines
// into groups of N, dropping any group whose trimmed content is empty.
type FixedLinesChunker struct {
	LinesPerChunk int
}

// NewFixedLinesChunker returns a chunker grouping lines in batches of n. A
// non-positive n falls back to FixedLinesDefault.
func NewFixedLinesChunker(n int) *FixedLinesChunker {
	if n <= 0 {
		n = FixedLinesDefault
	}
	return &FixedLinesChunker{LinesPerChunk: n}
}

// ChunkFile splits file.Content into LinesPerChunk-line groups.
func (c *FixedLinesChunker) ChunkFile(ctx context.Context, file *FileRecord) ([]*Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}

	lines := strings.Split(string(file.Content), "\n")
	var chunks []*Chunk

	for i := 0; i < len(lines); i += c.LinesPerChunk {
		end := i + c.LinesPerChunk
		if end > len(lines) {
			end = len(lines)
		}

		content := strings.Join(lines[i:end], "\n")
		if strings.TrimSpace(content) == "" {
			continue
		}

		chunks = append(chunks, &Chunk{
			FilePath:  file.RelPath,
			Content:   content,
			Project:   file.Project,
			StartLine: i + 1,
			EndLine:   end,
			Language:  file.Language,
			Extension: file.Extension,
			FileHash:  file.FileHash,
			IndexedAt: file.IndexedAt,
		})
	}

	return chunks, nil
}
