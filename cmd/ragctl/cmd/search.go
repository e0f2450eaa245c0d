package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragctl/ragcore/internal/search"
)

// defaultMinScore matches the search.min_score default in the
// configuration table: the similarity floor before adaptive fallback kicks
// in.
const defaultMinScore = 0.7

type searchFlags struct {
	path       string
	limit      int
	minScore   float64
	hybrid     bool
	extensions []string
	languages  []string
	paths      []string
	jsonOutput bool
}

func newSearchCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search the indexed codebase using hybrid (BM25 + semantic) search with
reciprocal rank fusion. If the query returns nothing at the requested
--min-score, the similarity floor is progressively lowered through
{0.6, 0.5, 0.4, 0.3} until a result is found or the floor bottoms out.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, flags)
		},
	}

	cmd.Flags().StringVar(&flags.path, "project", ".", "Project directory to search")
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().Float64Var(&flags.minScore, "min-score", defaultMinScore, "Similarity floor in [0,1]")
	cmd.Flags().BoolVar(&flags.hybrid, "hybrid", true, "Combine BM25 and semantic search (false = vector-only)")
	cmd.Flags().StringSliceVar(&flags.extensions, "ext", nil, "Restrict to file extensions (repeatable, e.g. --ext .go)")
	cmd.Flags().StringSliceVar(&flags.languages, "lang", nil, "Restrict to languages (repeatable, e.g. --lang go)")
	cmd.Flags().StringSliceVar(&flags.paths, "path", nil, "Restrict to path patterns (repeatable, glob-style)")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, flags searchFlags) error {
	p, err := openProject(flags.path)
	if err != nil {
		return err
	}

	e, err := p.openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	engine := search.NewEngine(e.embedder, e.hybrid)

	resp, err := engine.QueryCodebase(ctx, search.Query{
		Text:           query,
		RootPath:       &p.root,
		Limit:          flags.limit,
		MinScore:       flags.minScore,
		Hybrid:         flags.hybrid,
		FileExtensions: flags.extensions,
		Languages:      flags.languages,
		PathPatterns:   flags.paths,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if flags.jsonOutput {
		return printSearchJSON(cmd, resp)
	}
	return printSearchText(cmd, query, resp)
}

func printSearchText(cmd *cobra.Command, query string, resp search.Response) error {
	out := cmd.OutOrStdout()
	if len(resp.Results) == 0 {
		_, err := fmt.Fprintf(out, "No results for %q\n", query)
		return err
	}

	if resp.ThresholdLowered {
		_, _ = fmt.Fprintf(out, "No results at the requested threshold; lowered to %.1f\n", resp.ThresholdUsed)
	}
	_, _ = fmt.Fprintf(out, "%d results for %q (%s):\n\n", len(resp.Results), query, resp.Duration.Round(time.Millisecond))

	for i, r := range resp.Results {
		location := r.FilePath
		if r.StartLine > 0 {
			location = fmt.Sprintf("%s:%d", r.FilePath, r.StartLine)
		}
		_, _ = fmt.Fprintf(out, "%d. %s (score: %.3f)\n", i+1, location, r.Score)
		for _, line := range snippet(r.Content, 3) {
			_, _ = fmt.Fprintf(out, "   %s\n", line)
		}
		_, _ = fmt.Fprintln(out)
	}
	return nil
}

func printSearchJSON(cmd *cobra.Command, resp search.Response) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp.Results)
}

func snippet(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
