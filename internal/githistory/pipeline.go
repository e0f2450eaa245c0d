package githistory

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ragctl/ragcore/internal/cache"
	"github.com/ragctl/ragcore/internal/embed"
	"github.com/ragctl/ragcore/internal/gitlog"
	"github.com/ragctl/ragcore/internal/store"
)

// gitCommitLanguage is the language tag every commit pseudo-chunk is stored
// and searched under, keeping history results out of ordinary code search.
const gitCommitLanguage = "git-commit"

// Pipeline is C12: it ingests new commits into a hybrid index engine and
// answers history queries over them.
type Pipeline struct {
	engine          store.HybridIndexEngine
	commits         *cache.CommitCache
	commitCachePath string
	embedder        embed.Embedder
}

// NewPipeline wires the hybrid index engine, commit cache (persisted at
// commitCachePath), and embedder the pipeline needs.
func NewPipeline(engine store.HybridIndexEngine, commits *cache.CommitCache, commitCachePath string, embedder embed.Embedder) *Pipeline {
	return &Pipeline{engine: engine, commits: commits, commitCachePath: commitCachePath, embedder: embedder}
}

// SearchGitHistory implements search_git_history: discover the repository,
// ingest commits not already cached (up to MaxCommits total), embed the
// query, search the hybrid index restricted to git-commit chunks, and apply
// author/file-pattern post-filters before truncating to Limit.
func (p *Pipeline) SearchGitHistory(ctx context.Context, opts SearchGitHistoryOptions) (*SearchGitHistoryResponse, error) {
	start := time.Now()

	if strings.TrimSpace(opts.Query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	maxCommits := opts.MaxCommits
	if maxCommits <= 0 {
		maxCommits = 500
	}

	var authorRe, fileRe *regexp.Regexp
	var err error
	if opts.Author != "" {
		if authorRe, err = regexp.Compile(opts.Author); err != nil {
			return nil, fmt.Errorf("invalid author pattern: %w", err)
		}
	}
	if opts.FilePattern != "" {
		if fileRe, err = regexp.Compile(opts.FilePattern); err != nil {
			return nil, fmt.Errorf("invalid file pattern: %w", err)
		}
	}

	w, err := gitlog.Discover(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("discover repository: %w", err)
	}
	repoPath := w.RepoPath()

	commitsIndexed, err := p.ingestNewCommits(ctx, w, repoPath, opts, maxCommits)
	if err != nil {
		return nil, fmt.Errorf("ingest commits: %w", err)
	}

	queryVector, err := p.embedder.Embed(ctx, opts.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	searchOpts := store.SearchOptions{
		QueryVector: queryVector,
		QueryText:   opts.Query,
		Limit:       limit * 2,
		MinScore:    opts.MinScore,
		Project:     opts.Project,
		RootPath:    &repoPath,
		Hybrid:      true,
	}
	hits, err := p.engine.SearchFiltered(ctx, searchOpts, nil, []string{gitCommitLanguage}, nil)
	if err != nil {
		return nil, fmt.Errorf("search hybrid index: %w", err)
	}

	results := make([]CommitSearchResult, 0, len(hits))
	for _, hit := range hits {
		parsed := parseCommitContent(hit.Content)
		if authorRe != nil && !(authorRe.MatchString(parsed.authorName) || authorRe.MatchString(parsed.authorEmail)) {
			continue
		}
		if fileRe != nil && !matchesAnyFile(fileRe, parsed.files) {
			continue
		}
		results = append(results, CommitSearchResult{
			Hash:         hit.FileHash,
			Message:      parsed.message,
			AuthorName:   parsed.authorName,
			AuthorEmail:  parsed.authorEmail,
			FilesChanged: parsed.files,
			DiffSnippet:  parsed.diffSnippet,
			CommitDate:   hit.IndexedAt,
			Score:        hit.Score,
		})
		if len(results) >= limit {
			break
		}
	}

	return &SearchGitHistoryResponse{
		Results:            results,
		CommitsIndexed:     commitsIndexed,
		TotalCachedCommits: p.commits.CommitCount(repoPath),
		DurationMs:         time.Since(start).Milliseconds(),
	}, nil
}

// ingestNewCommits tops up the repo's indexed commits to maxCommits, storing
// any newly-discovered commits into the hybrid index and the commit cache.
func (p *Pipeline) ingestNewCommits(ctx context.Context, w *gitlog.Walker, repoPath string, opts SearchGitHistoryOptions, maxCommits int) (int, error) {
	cached, _ := p.commits.GetRepo(repoPath)
	if len(cached) >= maxCommits {
		return 0, nil
	}

	skip := make(map[string]struct{}, len(cached))
	for _, h := range cached {
		skip[h] = struct{}{}
	}

	commits, err := w.IterCommits(gitlog.IterOptions{
		Branch:     opts.Branch,
		MaxCount:   maxCommits - len(cached),
		SinceTS:    opts.Since,
		UntilTS:    opts.Until,
		SkipHashes: skip,
	})
	if err != nil {
		return 0, fmt.Errorf("iterate commits: %w", err)
	}
	if len(commits) == 0 {
		return 0, nil
	}

	rows := make([]store.VectorRow, len(commits))
	texts := make([]string, len(commits))
	hashes := make([]string, len(commits))
	for i, c := range commits {
		rows[i] = CommitToChunk(c, repoPath, opts.Project, DefaultMaxContentLength)
		texts[i] = rows[i].Content
		hashes[i] = c.Hash
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed commits: %w", err)
	}
	for i := range rows {
		rows[i].Vector = vectors[i]
	}

	stored, err := p.engine.Store(ctx, rows, repoPath)
	if err != nil {
		return 0, fmt.Errorf("store commit chunks: %w", err)
	}

	p.commits.AddCommits(repoPath, hashes)
	if err := p.commits.Save(p.commitCachePath); err != nil {
		return stored, fmt.Errorf("save commit cache: %w", err)
	}

	return stored, nil
}

func matchesAnyFile(re *regexp.Regexp, files []string) bool {
	for _, f := range files {
		if re.MatchString(f) {
			return true
		}
	}
	return false
}

// ParseDate parses a date given as Unix seconds, RFC3339, or YYYY-MM-DD,
// trying each form in that order.
func ParseDate(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Unix(), nil
	}
	return 0, fmt.Errorf("invalid date %q: expected unix timestamp, RFC3339, or YYYY-MM-DD", s)
}
