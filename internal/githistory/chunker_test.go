package githistory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragctl/ragcore/internal/gitlog"
)

func sampleCommit() gitlog.CommitInfo {
	return gitlog.CommitInfo{
		Hash:         "abc123",
		Message:      "fix the race in the scheduler",
		AuthorName:   "Ada Lovelace",
		AuthorEmail:  "ada@example.com",
		CommitDate:   1700000000,
		FilesChanged: []string{"scheduler.go", "scheduler_test.go"},
		DiffContent:  "-old line\n+new line\n",
	}
}

func TestCommitContent_IncludesAllSections(t *testing.T) {
	content := commitContent(sampleCommit(), DefaultMaxContentLength)
	assert.Contains(t, content, "Commit Message:\nfix the race in the scheduler")
	assert.Contains(t, content, "Author: Ada Lovelace <ada@example.com>")
	assert.Contains(t, content, "Files Changed:\n- scheduler.go\n- scheduler_test.go")
	assert.Contains(t, content, "Diff:\n-old line\n+new line")
}

func TestCommitContent_OmitsEmptySections(t *testing.T) {
	c := sampleCommit()
	c.AuthorEmail = ""
	c.FilesChanged = nil
	c.DiffContent = ""

	content := commitContent(c, DefaultMaxContentLength)
	assert.Contains(t, content, "Author: Ada Lovelace\n")
	assert.NotContains(t, content, "<")
	assert.NotContains(t, content, "Files Changed:")
	assert.NotContains(t, content, "Diff:")
}

func TestCommitContent_TruncatesAtMaxLengthWithMarker(t *testing.T) {
	c := sampleCommit()
	c.DiffContent = strings.Repeat("x", 1000)

	content := commitContent(c, 100)
	assert.LessOrEqual(t, len(content), 100+len(truncationMarker))
	assert.Contains(t, content, "[... content truncated for embedding ...]")
}

func TestParseCommitContent_RoundTrips(t *testing.T) {
	c := sampleCommit()
	content := commitContent(c, DefaultMaxContentLength)

	parsed := parseCommitContent(content)
	assert.Equal(t, c.Message, parsed.message)
	assert.Equal(t, c.AuthorName, parsed.authorName)
	assert.Equal(t, c.AuthorEmail, parsed.authorEmail)
	assert.Equal(t, c.FilesChanged, parsed.files)
	assert.Contains(t, parsed.diffSnippet, "new line")
}

func TestParseCommitContent_HandlesMissingFilesAndDiff(t *testing.T) {
	c := sampleCommit()
	c.FilesChanged = nil
	c.DiffContent = ""
	content := commitContent(c, DefaultMaxContentLength)

	parsed := parseCommitContent(content)
	assert.Empty(t, parsed.files)
	assert.Empty(t, parsed.diffSnippet)
}

func TestParseCommitContent_TruncatesSnippetTo500Chars(t *testing.T) {
	c := sampleCommit()
	c.DiffContent = strings.Repeat("y", 2000)
	content := commitContent(c, 10000)

	parsed := parseCommitContent(content)
	assert.LessOrEqual(t, len(parsed.diffSnippet), diffSnippetLimit)
}

func TestCommitToChunk_SetsGitCommitMetadata(t *testing.T) {
	row := CommitToChunk(sampleCommit(), "/repo/root", nil, DefaultMaxContentLength)
	require.Equal(t, "git://"+"/repo/root", row.FilePath)
	require.NotNil(t, row.RootPath)
	assert.Equal(t, "/repo/root", *row.RootPath)
	assert.Equal(t, "git-commit", row.Language)
	assert.Equal(t, "commit", row.Extension)
	assert.Equal(t, "abc123", row.FileHash)
	assert.Equal(t, uint32(0), row.StartLine)
	assert.Equal(t, uint32(0), row.EndLine)
}
