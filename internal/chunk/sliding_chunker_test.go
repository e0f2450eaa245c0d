package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowChunker_OverlapsWindows(t *testing.T) {
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "line"
	}
	source := strings.Join(lines, "\n")

	chunker := NewSlidingWindowChunker(10, 5)
	chunks, err := chunker.ChunkFile(context.Background(), &FileRecord{
		RelPath: "win.txt", Content: []byte(source), Language: "text",
	})
	require.NoError(t, err)
	require.True(t, len(chunks) >= 2)

	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 10, chunks[0].EndLine)
	assert.Equal(t, 6, chunks[1].StartLine)
}

func TestSlidingWindowChunker_ClampsFinalWindowToFileLength(t *testing.T) {
	lines := make([]string, 23)
	for i := range lines {
		lines[i] = "l"
	}
	source := strings.Join(lines, "\n")

	chunker := NewSlidingWindowChunker(10, 5)
	chunks, err := chunker.ChunkFile(context.Background(), &FileRecord{
		RelPath: "clamp.txt", Content: []byte(source), Language: "text",
	})
	require.NoError(t, err)

	last := chunks[len(chunks)-1]
	assert.Equal(t, 23, last.EndLine)
	assert.LessOrEqual(t, last.EndLine-last.StartLine+1, 10)
}

func TestSlidingWindowChunker_OverlapGreaterOrEqualSizeFallsBackToStepOne(t *testing.T) {
	source := "a\nb\nc\nd\n"
	chunker := NewSlidingWindowChunker(3, 3)
	chunks, err := chunker.ChunkFile(context.Background(), &FileRecord{
		RelPath: "step.txt", Content: []byte(source), Language: "text",
	})
	require.NoError(t, err)
	require.True(t, len(chunks) >= 2)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 2, chunks[1].StartLine)
}

func TestSlidingWindowChunker_EmptyFileReturnsNoChunks(t *testing.T) {
	chunker := NewSlidingWindowChunker(10, 5)
	chunks, err := chunker.ChunkFile(context.Background(), &FileRecord{RelPath: "empty.txt"})
	require.NoError(t, err)
	assert.Nil(t, chunks)
}

func TestSlidingWindowChunker_TerminatesAtEndOfFile(t *testing.T) {
	lines := make([]string, 4)
	for i := range lines {
		lines[i] = "x"
	}
	source := strings.Join(lines, "\n")

	chunker := NewSlidingWindowChunker(10, 5)
	chunks, err := chunker.ChunkFile(context.Background(), &FileRecord{
		RelPath: "short.txt", Content: []byte(source), Language: "text",
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 4, chunks[0].EndLine)
}
