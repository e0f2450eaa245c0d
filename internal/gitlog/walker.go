package gitlog

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

const (
	diffContextLines = 3
	diffHardCap      = 8000
	diffInterimCap   = 100000
)

// Walker is C3: it discovers a repository by walking upward from a path and
// iterates its commit history with filters, extracting truncated diffs.
type Walker struct {
	repo     *git.Repository
	repoPath string
}

// Discover opens the git repository containing path, walking up through
// parent directories until a .git is found.
func Discover(path string) (*Walker, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("discover git repository: %w", err)
	}

	repoPath := filepath.Clean(path)
	if wt, err := repo.Worktree(); err == nil {
		repoPath = wt.Filesystem.Root()
	}

	return &Walker{repo: repo, repoPath: repoPath}, nil
}

// RepoPath returns the repository's working tree root.
func (w *Walker) RepoPath() string {
	return w.repoPath
}

// HasCommits reports whether HEAD resolves to a commit.
func (w *Walker) HasCommits() bool {
	_, err := w.repo.Head()
	return err == nil
}

// IterCommits walks commit history newest-first by committer time (the
// order is not topologically constrained), applying
// opts' branch/max-count/since/until/skip-hash filters, and returns one
// CommitInfo per retained commit.
func (w *Walker) IterCommits(opts IterOptions) ([]CommitInfo, error) {
	from, err := w.startHash(opts.Branch)
	if err != nil {
		return nil, err
	}

	commitIter, err := w.repo.Log(&git.LogOptions{From: from, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("walk commit log: %w", err)
	}
	defer commitIter.Close()

	var commits []CommitInfo
	err = commitIter.ForEach(func(c *object.Commit) error {
		if opts.MaxCount > 0 && len(commits) >= opts.MaxCount {
			return storer.ErrStop
		}

		hash := c.Hash.String()
		if _, skip := opts.SkipHashes[hash]; skip {
			return nil
		}

		commitTime := c.Committer.When.Unix()
		if opts.SinceTS != nil && commitTime < *opts.SinceTS {
			// commits are time-ordered descending: once we see one older
			// than since, every remaining commit is too.
			return storer.ErrStop
		}
		if opts.UntilTS != nil && commitTime > *opts.UntilTS {
			return nil
		}

		info, err := w.extractCommit(c)
		if err != nil {
			return fmt.Errorf("extract commit %s: %w", hash, err)
		}
		commits = append(commits, info)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return commits, nil
}

func (w *Walker) startHash(branch string) (plumbing.Hash, error) {
	if branch == "" {
		head, err := w.repo.Head()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("resolve HEAD: %w", err)
		}
		return head.Hash(), nil
	}

	ref, err := w.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve branch %q: %w", branch, err)
	}
	return ref.Hash(), nil
}

func (w *Walker) extractCommit(c *object.Commit) (CommitInfo, error) {
	parentHashes := make([]string, 0, c.NumParents())
	for _, h := range c.ParentHashes {
		parentHashes = append(parentHashes, h.String())
	}

	files, diffContent, err := w.extractDiff(c)
	if err != nil {
		return CommitInfo{}, err
	}

	return CommitInfo{
		Hash:         c.Hash.String(),
		Message:      strings.TrimSpace(c.Message),
		AuthorName:   c.Author.Name,
		AuthorEmail:  c.Author.Email,
		CommitDate:   c.Committer.When.Unix(),
		FilesChanged: files,
		DiffContent:  diffContent,
		ParentHashes: parentHashes,
	}, nil
}

// extractDiff diffs a commit against its first parent (or the empty tree
// for a root commit), using 3 lines of context and no inter-hunk merging.
// Binary files are skipped entirely; invalid-UTF-8 lines are dropped.
// Accumulation stops at diffInterimCap bytes so the file list still stays
// complete even when the text is abandoned early; the final text is then
// hard-truncated to diffHardCap with a marker.
func (w *Walker) extractDiff(c *object.Commit) ([]string, string, error) {
	toTree, err := c.Tree()
	if err != nil {
		return nil, "", fmt.Errorf("load tree: %w", err)
	}

	fromTree := &object.Tree{}
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, "", fmt.Errorf("load parent: %w", err)
		}
		fromTree, err = parent.Tree()
		if err != nil {
			return nil, "", fmt.Errorf("load parent tree: %w", err)
		}
	}

	patch, err := fromTree.Patch(toTree)
	if err != nil {
		return nil, "", fmt.Errorf("compute patch: %w", err)
	}

	var files []string
	var buf strings.Builder
	truncated := false

	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		if p := filePatchPath(from, to); p != "" {
			files = append(files, p)
		}

		if truncated || fp.IsBinary() {
			continue
		}
		writeFilePatch(&buf, fp, &truncated)
	}

	content := buf.String()
	if len(content) > diffHardCap {
		content = content[:diffHardCap] + "\n\n[... diff truncated ...]"
	}

	return files, content, nil
}

func filePatchPath(from, to diff.File) string {
	if to != nil {
		return to.Path()
	}
	if from != nil {
		return from.Path()
	}
	return ""
}

type diffLine struct {
	text string
	op   diff.Operation
}

// writeFilePatch flattens a file's chunks into lines and keeps, around
// every added/deleted line, up to diffContextLines of surrounding equal
// (context) lines on each side - matching a 3-line-context, non-merged
// unified diff.
func writeFilePatch(buf *strings.Builder, fp diff.FilePatch, truncated *bool) {
	var lines []diffLine
	for _, chunk := range fp.Chunks() {
		content := strings.TrimSuffix(chunk.Content(), "\n")
		if content == "" {
			continue
		}
		for _, text := range strings.Split(content, "\n") {
			lines = append(lines, diffLine{text: text, op: chunk.Type()})
		}
	}

	include := make([]bool, len(lines))
	for i, l := range lines {
		if l.op == diff.Equal {
			continue
		}
		include[i] = true
		for j := 1; j <= diffContextLines; j++ {
			if i-j >= 0 {
				include[i-j] = true
			}
			if i+j < len(lines) {
				include[i+j] = true
			}
		}
	}

	for i, l := range lines {
		if *truncated {
			return
		}
		if !include[i] || !utf8.ValidString(l.text) {
			continue
		}

		prefix := byte(' ')
		switch l.op {
		case diff.Add:
			prefix = '+'
		case diff.Delete:
			prefix = '-'
		}
		buf.WriteByte(prefix)
		buf.WriteString(l.text)
		buf.WriteByte('\n')

		if buf.Len() >= diffInterimCap {
			*truncated = true
		}
	}
}
