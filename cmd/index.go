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

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/flanksource/code-intel/internal/analysis"
	"github.com/flanksource/code-intel/internal/cache"
	"github.com/flanksource/code-intel/internal/index"
	"github.com/flanksource/code-intel/internal/store"
)

var indexCmd = &cobra.Command{
	Use:   "index [directory]",
	Short: "Parse and index all source files in a directory",
	Long: `Index parses every supported source file under the given directory
(default: current directory), caching ASTs by content fingerprint so
unchanged files are served from the cache.

Examples:
  # Index the current directory
  code-intel index

  # Index a specific tree with 8 workers
  code-intel index ./src --workers 8

  # Force a full re-parse, ignoring cached ASTs
  code-intel index --no-cache`,
	RunE: runIndex,
}

var (
	indexWorkers  int
	indexCacheMax int
	indexMaxBytes int64
	indexTTL      time.Duration
	indexIncludes []string
	indexExcludes []string
	indexNoCache  bool
	indexNoStore  bool
	indexFull     bool
)

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().IntVar(&indexWorkers, "workers", 0, "Number of parallel parsing workers (default: number of CPUs)")
	indexCmd.Flags().IntVar(&indexCacheMax, "cache-size", cache.DefaultMaxEntries, "Maximum number of cached ASTs")
	indexCmd.Flags().Int64Var(&indexMaxBytes, "cache-max-bytes", 0, "Maximum aggregate size of cached ASTs in bytes (0 = unlimited)")
	indexCmd.Flags().DurationVar(&indexTTL, "cache-ttl", cache.DefaultTTL, "Time-to-live for cached ASTs")
	indexCmd.Flags().StringSliceVar(&indexIncludes, "include", nil, "Glob patterns of files to index (default: all supported files)")
	indexCmd.Flags().StringSliceVar(&indexExcludes, "exclude", nil, "Glob patterns of files to skip")
	indexCmd.Flags().BoolVar(&indexNoCache, "no-cache", false, "Bypass the AST cache and re-parse every file")
	indexCmd.Flags().BoolVar(&indexNoStore, "no-store", false, "Do not persist file metadata")
	indexCmd.Flags().BoolVar(&indexFull, "full", false, "Clear persisted metadata before indexing")
}

func runIndex(cmd *cobra.Command, args []string) error {
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
		if indexFull {
			if err := metadata.DeleteAll(); err != nil {
				return fmt.Errorf("failed to clear metadata: %w", err)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := indexer.IndexDirectory(ctx, absWorkDir)
	if report == nil {
		return err
	}

	renderReport(absWorkDir, report)
	renderCacheStats(indexer.Cache())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// buildIndexer wires the cache, metadata store and Go extractor into an
// indexer from the command flags.
func buildIndexer() (*index.Indexer, *store.MetadataStore, error) {
	astCache, err := cache.New(cache.Options{
		MaxEntries: indexCacheMax,
		MaxBytes:   indexMaxBytes,
		TTL:        indexTTL,
	})
	if err != nil {
		return nil, nil, err
	}

	var metadata *store.MetadataStore
	if !indexNoStore {
		dir, err := resolveCacheDir()
		if err != nil {
			return nil, nil, err
		}
		metadata, err = store.NewMetadataStore(dir)
		if err != nil {
			return nil, nil, err
		}
	}

	indexer := index.New(astCache, metadata, analysis.NewGoExtractor(), index.Options{
		Workers:  indexWorkers,
		Includes: indexIncludes,
		Excludes: indexExcludes,
		NoCache:  indexNoCache,
	})
	return indexer, metadata, nil
}

func renderReport(workDir string, report *index.Report) {
	fmt.Printf("Indexed %s in %s\n", color.CyanString(workDir), report.Duration.Round(time.Millisecond))
	fmt.Printf("  Files found:  %d\n", report.FilesFound)
	fmt.Printf("  Parsed:       %d\n", report.Parsed)
	fmt.Printf("  Cache hits:   %s\n", color.GreenString("%d", report.CacheHits))
	fmt.Printf("  Unchanged:    %d\n", report.Unchanged)
	if report.Failed > 0 {
		fmt.Printf("  Failed:       %s\n", color.RedString("%d", report.Failed))
		for _, line := range lo.Map(report.Errors, func(fe index.FileError, _ int) string {
			return fmt.Sprintf("    %s: %v", fe.Path, fe.Err)
		}) {
			fmt.Println(line)
		}
	}
}
