package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flanksource/code-intel/internal/cache"
	"github.com/flanksource/code-intel/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display index statistics",
	Long: `Show what the persistent index knows: how many files have been
analyzed and their aggregate size. Live AST cache statistics are printed by
the index and watch commands, which own a running cache.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	dir, err := resolveCacheDir()
	if err != nil {
		return err
	}

	metadata, err := store.NewMetadataStore(dir)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = metadata.Close() }()

	count, err := metadata.Count()
	if err != nil {
		return err
	}
	totalSize, err := metadata.TotalSize()
	if err != nil {
		return err
	}

	fmt.Printf("📊 Index statistics (%s)\n", color.CyanString(dir))
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("  Indexed files:  %d\n", count)
	fmt.Printf("  Total size:     %s\n", humanBytes(totalSize))

	if count == 0 {
		fmt.Println("\nNo files indexed yet. Run: code-intel index")
	}
	return nil
}

// renderCacheStats prints a live cache snapshot, shared by index and watch.
func renderCacheStats(astCache *cache.ASTCache) {
	stats := astCache.Stats()

	fmt.Printf("\nAST cache: %d resident entries, %s\n", stats.ResidentCount, humanBytes(stats.EstimatedBytes))
	fmt.Printf("  Hits: %s  Misses: %d  Hit rate: %.1f%%\n",
		color.GreenString("%d", stats.Hits), stats.Misses, stats.HitRate*100)
	if stats.Evictions > 0 || stats.Expirations > 0 {
		fmt.Printf("  Evictions: %d  Expirations: %d\n", stats.Evictions, stats.Expirations)
	}
	if len(stats.TopAccessed) > 0 {
		fmt.Println("  Most accessed:")
		for _, top := range stats.TopAccessed {
			fmt.Printf("    %s  %d accesses\n", top.Fingerprint[:12], top.AccessCount)
		}
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
