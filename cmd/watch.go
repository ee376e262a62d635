package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flanksource/code-intel/internal/cache"
	"github.com/flanksource/code-intel/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Index a directory and keep it indexed as files change",
	Long: `Watch performs an initial index of the directory, then re-indexes
files as they are created or modified. Because cache keys are content
fingerprints, a save that doesn't change file content is a cache hit and
costs no re-parse. Stop with Ctrl-C; final cache statistics are printed on
exit.`,
	RunE: runWatch,
}

var watchDebounce time.Duration

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before re-indexing a changed file")
	watchCmd.Flags().IntVar(&indexWorkers, "workers", 0, "Number of parallel parsing workers for the initial index")
	watchCmd.Flags().DurationVar(&indexTTL, "cache-ttl", cache.DefaultTTL, "Time-to-live for cached ASTs")
	watchCmd.Flags().IntVar(&indexCacheMax, "cache-size", cache.DefaultMaxEntries, "Maximum number of cached ASTs")
}

func runWatch(cmd *cobra.Command, args []string) error {
	workDir := "."
	if len(args) > 0 {
		workDir = args[0]
	}
	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", workDir, err)
	}

	indexer, metadata, err := buildIndexer()
	if err != nil {
		return err
	}
	if metadata != nil {
		defer func() { _ = metadata.Close() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := indexer.IndexDirectory(ctx, absWorkDir)
	if err != nil {
		return err
	}
	renderReport(absWorkDir, report)

	watcher, err := watch.New(absWorkDir, indexer, watchDebounce)
	if err != nil {
		return err
	}

	err = watcher.Run(ctx)
	renderCacheStats(indexer.Cache())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
