package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

type statusInfo struct {
	ProjectRoot  string `json:"project_root"`
	IndexedRoots int    `json:"indexed_roots"`
	DirtyRoots   int    `json:"dirty_roots"`
	TotalRows    int    `json:"total_rows"`
	VectorSize   int64  `json:"vector_store_bytes"`
	LexicalSize  int64  `json:"lexical_index_bytes"`
	Embedder     string `json:"embedder_model"`
	Dimensions   int    `json:"embedder_dimensions"`
}

func newStatusCmd() *cobra.Command {
	var (
		path       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display the current index's state: how many roots are indexed, any
root left dirty by an interrupted run, row counts, and on-disk sizes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, path, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&path, "project", ".", "Project directory")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, path string, jsonOutput bool) error {
	p, err := openProject(path)
	if err != nil {
		return err
	}

	e, err := p.openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	info := statusInfo{
		ProjectRoot: p.root,
		Embedder:    e.embedder.ModelName(),
		Dimensions:  e.embedder.Dimensions(),
	}

	roots := e.hashes.Roots()
	info.IndexedRoots = len(roots)
	for _, root := range roots {
		if e.hashes.IsDirty(root) {
			info.DirtyRoots++
		}
	}

	info.TotalRows = e.hybrid.Stats().TotalRows
	info.VectorSize = fileSize(p.vectorPath)
	info.LexicalSize = dirSize(p.dataDir, "bm25_")

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	return printStatusText(cmd, info)
}

func printStatusText(cmd *cobra.Command, info statusInfo) error {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Project:        %s\n", info.ProjectRoot)
	_, _ = fmt.Fprintf(out, "Indexed roots:  %d (%d dirty)\n", info.IndexedRoots, info.DirtyRoots)
	_, _ = fmt.Fprintf(out, "Rows:           %d\n", info.TotalRows)
	_, _ = fmt.Fprintf(out, "Vector store:   %s\n", humanBytes(info.VectorSize))
	_, _ = fmt.Fprintf(out, "Lexical index:  %s\n", humanBytes(info.LexicalSize))
	_, _ = fmt.Fprintf(out, "Embedder:       %s (%d dims)\n", info.Embedder, info.Dimensions)
	return nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func dirSize(dataDir, prefix string) int64 {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return 0
	}
	var total int64
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) < len(prefix) || entry.Name()[:len(prefix)] != prefix {
			continue
		}
		_ = filepath.WalkDir(filepath.Join(dataDir, entry.Name()), func(p string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if fi, statErr := d.Info(); statErr == nil {
				total += fi.Size()
			}
			return nil
		})
	}
	return total
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
