package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ragctl/ragcore/internal/index"
)

func newIndexCmd() *cobra.Command {
	var (
		force bool
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory for searching",
		Long: `Index a directory to enable hybrid search over its contents.

This walks the tree, chunks code and documents, generates embeddings, and
builds both the BM25 and vector indices. Re-running it only re-embeds files
that changed since the last run (smart_index): new files are added, changed
files are re-embedded, removed files are dropped, and unchanged files are
left alone.

Use --force to discard the existing index and rebuild from scratch. Use
--watch to keep incrementally re-indexing as files change, until
interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			return runIndex(ctx, cmd, path, force, watch)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Discard the existing index and rebuild from scratch")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep indexing as files change until interrupted")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, force, watch bool) error {
	p, err := openProject(path)
	if err != nil {
		return err
	}

	if force {
		if err := clearIndexData(p.dataDir); err != nil {
			return fmt.Errorf("clear existing index: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cleared existing index data for %s\n", p.root)
	}

	e, err := p.openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	runner, err := p.newRunner(e)
	if err != nil {
		return err
	}
	defer runner.Close()

	smart := index.NewSmartRunner(runner, p.lockDir)

	if err := runOnce(ctx, cmd, p, e, smart, force); err != nil {
		return err
	}

	if !watch {
		return nil
	}
	return runWatch(ctx, cmd, p, e, smart)
}

func runOnce(ctx context.Context, cmd *cobra.Command, p *project, e *engineSet, smart *index.SmartRunner, force bool) error {
	req := index.Request{
		RootDir: p.root,
		Progress: func(pct int, message string) {
			slog.Debug("index_progress", slog.Int("percent", pct), slog.String("message", message))
		},
	}

	var (
		resp index.Response
		err  error
	)
	if force {
		resp, err = smart.FullIndex(ctx, req)
	} else {
		resp, err = smart.SmartIndex(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("index %s: %w", p.root, err)
	}

	if err := p.persist(e); err != nil {
		return fmt.Errorf("save vector store: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(),
		"Indexed %s: %d files processed (+%d ~%d -%d), %d chunks, %d errors, took %s\n",
		p.root, resp.FilesProcessed, resp.FilesAdded, resp.FilesUpdated, resp.FilesRemoved,
		resp.ChunksCreated, len(resp.Errors), resp.Duration.Round(time.Millisecond))
	for _, errMsg := range resp.Errors {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  error: %s\n", errMsg)
	}
	return nil
}

// runWatch re-runs smart_index whenever fsnotify reports a write/create/
// remove/rename under p.root, debounced by the configured watch interval so
// a burst of edits triggers one re-index instead of many.
func runWatch(ctx context.Context, cmd *cobra.Command, p *project, e *engineSet, smart *index.SmartRunner) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchRecursive(watcher, p.root); err != nil {
		return fmt.Errorf("watch %s: %w", p.root, err)
	}

	debounce := 500 * time.Millisecond
	if d, err := time.ParseDuration(p.cfg.Performance.WatchDebounce); err == nil && d > 0 {
		debounce = d
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes (Ctrl+C to stop)...\n", p.root)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldReindex(evt) {
				pending = true
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", slog.String("error", err.Error()))
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := runOnce(ctx, cmd, p, e, smart, false); err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "reindex failed: %v\n", err)
			}
		}
	}
}

func shouldReindex(evt fsnotify.Event) bool {
	return evt.Has(fsnotify.Write) || evt.Has(fsnotify.Create) ||
		evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename)
}

// addWatchRecursive registers every directory under root with watcher,
// skipping the data directory itself so index writes don't retrigger a
// reindex.
func addWatchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == dataDirName || d.Name() == ".git" {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// clearIndexData removes every on-disk index artifact under dataDir,
// leaving project configuration (which lives at the project root, not in
// dataDir) untouched.
func clearIndexData(dataDir string) error {
	patterns := []string{
		"vectors.hnsw",
		"vectors.hnsw.meta",
		"hashes.json",
		"commits.json",
		"bm25_*",
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dataDir, pattern))
		if err != nil {
			return err
		}
		for _, match := range matches {
			if err := os.RemoveAll(match); err != nil {
				return fmt.Errorf("remove %s: %w", filepath.Base(match), err)
			}
		}
	}
	return nil
}
