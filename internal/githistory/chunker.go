package githistory

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ragctl/ragcore/internal/gitlog"
	"github.com/ragctl/ragcore/internal/store"
)

// DefaultMaxContentLength is the default byte budget for a commit's
// pseudo-chunk content before truncation.
const DefaultMaxContentLength = 6000

const diffSnippetLimit = 500

const truncationMarker = "\n\n[... content truncated for embedding ...]"

// commitContent renders a commit into the fixed pseudo-chunk template: a
// message section, an author section, an optional files-changed section,
// and an optional diff section - each of the latter two omitted entirely
// when empty, matching the chunker the Git History Pipeline is ported from.
func commitContent(c gitlog.CommitInfo, maxContentLength int) string {
	var b strings.Builder

	b.WriteString("Commit Message:\n")
	b.WriteString(c.Message)
	b.WriteString("\n\nAuthor: ")
	b.WriteString(c.AuthorName)
	if c.AuthorEmail != "" {
		b.WriteString(" <")
		b.WriteString(c.AuthorEmail)
		b.WriteString(">")
	}
	b.WriteString("\n\n")

	if len(c.FilesChanged) > 0 {
		b.WriteString("Files Changed:\n")
		for _, f := range c.FilesChanged {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if c.DiffContent != "" {
		b.WriteString("Diff:\n")
		b.WriteString(c.DiffContent)
	}

	if maxContentLength <= 0 {
		maxContentLength = DefaultMaxContentLength
	}
	return truncateBytes(strings.TrimRight(b.String(), "\n")+"\n", maxContentLength)
}

// truncateBytes cuts s to at most max bytes, backing off to the nearest
// valid UTF-8 boundary, and appends the truncation marker when it does.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut + truncationMarker
}

// CommitToChunk builds the vector row a commit is stored as: one pseudo-chunk
// per commit under the "git-commit" language, addressed by a synthetic
// "git://<repo path>" file path so it never collides with a real source
// file and is easy to recognize and strip from ordinary code search results.
func CommitToChunk(c gitlog.CommitInfo, repoPath string, project *string, maxContentLength int) store.VectorRow {
	root := repoPath
	return store.VectorRow{
		FilePath:  "git://" + repoPath,
		RootPath:  &root,
		StartLine: 0,
		EndLine:   0,
		Language:  "git-commit",
		Extension: "commit",
		FileHash:  c.Hash,
		IndexedAt: time.Unix(c.CommitDate, 0).UTC().Format(time.RFC3339),
		Content:   commitContent(c, maxContentLength),
		Project:   project,
	}
}

// parsedCommit is commitContent's inverse: enough of the original fields to
// apply author/file-pattern post-filters and to report a short diff preview.
type parsedCommit struct {
	message     string
	authorName  string
	authorEmail string
	files       []string
	diffSnippet string
}

func parseCommitContent(content string) parsedCommit {
	rest := strings.TrimPrefix(content, "Commit Message:\n")

	var p parsedCommit
	if idx := strings.Index(rest, "\n\nAuthor: "); idx >= 0 {
		p.message = rest[:idx]
		rest = rest[idx+len("\n\nAuthor: "):]
	} else {
		p.message = rest
		return p
	}

	authorLine := strings.TrimRight(rest, "\n")
	if idx := strings.Index(rest, "\n\n"); idx >= 0 {
		authorLine = rest[:idx]
		rest = rest[idx+2:]
	} else {
		rest = ""
	}
	p.authorName, p.authorEmail = parseAuthor(authorLine)

	if strings.HasPrefix(rest, "Files Changed:\n") {
		rest = strings.TrimPrefix(rest, "Files Changed:\n")
		block := rest
		if idx := strings.Index(rest, "\n\n"); idx >= 0 {
			block = rest[:idx]
			rest = rest[idx+2:]
		} else {
			rest = ""
		}
		for _, line := range strings.Split(block, "\n") {
			if f := strings.TrimPrefix(line, "- "); f != "" {
				p.files = append(p.files, f)
			}
		}
	}

	if strings.HasPrefix(rest, "Diff:\n") {
		diff := strings.TrimPrefix(rest, "Diff:\n")
		if len(diff) > diffSnippetLimit {
			diff = diff[:diffSnippetLimit]
		}
		p.diffSnippet = diff
	}

	return p
}

func parseAuthor(s string) (name, email string) {
	if idx := strings.Index(s, " <"); idx >= 0 && strings.HasSuffix(s, ">") {
		return s[:idx], s[idx+2 : len(s)-1]
	}
	return s, ""
}
