package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragctl/ragcore/internal/cache"
	"github.com/ragctl/ragcore/internal/githistory"
)

type gitSearchFlags struct {
	path        string
	limit       int
	minScore    float64
	maxCommits  int
	branch      string
	author      string
	filePattern string
	since       string
	until       string
	jsonOutput  bool
}

func newGitSearchCmd() *cobra.Command {
	var flags gitSearchFlags

	cmd := &cobra.Command{
		Use:   "git-search <query>",
		Short: "Search commit history",
		Long: `Search a repository's commit history using the same hybrid search as
the code index: new commits (up to --max-commits) are ingested into the
index under the "git-commit" language tag on first use, then cached so
later runs only ingest what's new.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runGitSearch(cmd.Context(), cmd, query, flags)
		},
	}

	cmd.Flags().StringVar(&flags.path, "path", ".", "Repository path")
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().Float64Var(&flags.minScore, "min-score", defaultMinScore, "Similarity floor in [0,1]")
	cmd.Flags().IntVar(&flags.maxCommits, "max-commits", 500, "Maximum commits to ingest from history")
	cmd.Flags().StringVar(&flags.branch, "branch", "", "Branch to walk (default: repository HEAD)")
	cmd.Flags().StringVar(&flags.author, "author", "", "Filter by author name/email (regex)")
	cmd.Flags().StringVar(&flags.filePattern, "file-pattern", "", "Filter by changed file path (regex)")
	cmd.Flags().StringVar(&flags.since, "since", "", "Only commits after this time (RFC3339)")
	cmd.Flags().StringVar(&flags.until, "until", "", "Only commits before this time (RFC3339)")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func runGitSearch(ctx context.Context, cmd *cobra.Command, query string, flags gitSearchFlags) error {
	p, err := openProject(flags.path)
	if err != nil {
		return err
	}

	e, err := p.openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	commits, err := cache.LoadCommitCache(p.commitCachePath)
	if err != nil {
		commits = cache.NewCommitCache()
	}

	since, err := parseOptionalTime(flags.since)
	if err != nil {
		return fmt.Errorf("invalid --since: %w", err)
	}
	until, err := parseOptionalTime(flags.until)
	if err != nil {
		return fmt.Errorf("invalid --until: %w", err)
	}

	pipeline := githistory.NewPipeline(e.hybrid, commits, p.commitCachePath, e.embedder)
	resp, err := pipeline.SearchGitHistory(ctx, githistory.SearchGitHistoryOptions{
		Query:       query,
		Path:        p.root,
		Branch:      flags.branch,
		MaxCommits:  flags.maxCommits,
		Limit:       flags.limit,
		MinScore:    flags.minScore,
		Author:      flags.author,
		Since:       since,
		Until:       until,
		FilePattern: flags.filePattern,
	})
	if err != nil {
		return fmt.Errorf("search git history: %w", err)
	}

	if err := p.persist(e); err != nil {
		return fmt.Errorf("save vector store: %w", err)
	}

	if flags.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Results)
	}
	return printGitSearchText(cmd, query, resp)
}

func printGitSearchText(cmd *cobra.Command, query string, resp *githistory.SearchGitHistoryResponse) error {
	out := cmd.OutOrStdout()
	if len(resp.Results) == 0 {
		_, err := fmt.Fprintf(out, "No commits found for %q\n", query)
		return err
	}

	_, _ = fmt.Fprintf(out, "%d commits for %q (%d newly ingested, %d cached):\n\n",
		len(resp.Results), query, resp.CommitsIndexed, resp.TotalCachedCommits)
	for i, r := range resp.Results {
		_, _ = fmt.Fprintf(out, "%d. %s %s (score: %.3f)\n", i+1, shortHash(r.Hash), firstLine(r.Message), r.Score)
		_, _ = fmt.Fprintf(out, "   %s <%s>\n\n", r.AuthorName, r.AuthorEmail)
	}
	return nil
}

func shortHash(hash string) string {
	if len(hash) > 10 {
		return hash[:10]
	}
	return hash
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func parseOptionalTime(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	unix := t.Unix()
	return &unix, nil
}
