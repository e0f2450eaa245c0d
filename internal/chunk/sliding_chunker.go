package chunk

import (
	"context"
	"strings"
)

// SlidingWindowChunker implements the sliding-window strategy: emit
// overlapping [start, start+size) line windows, clamping the final window to
// the file's length.
type SlidingWindowChunker struct {
	Size    int
	Overlap int
}

// NewSlidingWindowChunker returns a chunker over windows of size lines with
// overlap lines shared between consecutive windows.
func NewSlidingWindowChunker(size, overlap int) *SlidingWindowChunker {
	return &SlidingWindowChunker{Size: size, Overlap: overlap}
}

// ChunkFile splits file.Content into overlapping line windows.
func (c *SlidingWindowChunker) ChunkFile(ctx context.Context, file *FileRecord) ([]*Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}

	lines := strings.Split(string(file.Content), "\n")
	if len(lines) == 0 {
		return nil, nil
	}

	step := c.Size - c.Overlap
	if c.Overlap >= c.Size || step < 1 {
		step = 1
	}

	var chunks []*Chunk
	for start := 0; ; start += step {
		end := start + c.Size
		if end > len(lines) {
			end = len(lines)
		}

		content := strings.Join(lines[start:end], "\n")
		chunks = append(chunks, &Chunk{
			FilePath:  file.RelPath,
			Content:   content,
			Project:   file.Project,
			StartLine: start + 1,
			EndLine:   end,
			Language:  file.Language,
			Extension: file.Extension,
			FileHash:  file.FileHash,
			IndexedAt: file.IndexedAt,
		})

		if end >= len(lines) {
			break
		}
	}

	return chunks, nil
}
