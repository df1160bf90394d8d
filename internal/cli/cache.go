package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"repostack/internal/cache"
)

// cacheCmd represents the cache command group
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the download cache",
	Long: `Manage the local download cache under ~/.repostack/cache.

Cached entries are keyed by normalized URI, so the same resource fetched
through different spellings of its URL shares one entry.`,
}

// cacheCleanCmd removes cached entries
var cacheCleanCmd = &cobra.Command{
	Use:   "clean [pattern]",
	Short: "Remove cached entries",
	Long: `Remove cached downloads matching a glob pattern.

The pattern matches against cached URIs with '://' treated as a path
separator, so '**' spans hosts and paths. With no pattern everything
is removed.

Examples:
  rsk cache clean
  rsk cache clean 'https/repo.example.com/**'
  rsk cache clean '**/*.json'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := "**"
		if len(args) > 0 {
			pattern = args[0]
		}
		return runCacheClean(pattern)
	},
}

func init() {
	cacheCmd.AddCommand(cacheCleanCmd)
}

func runCacheClean(pattern string) error {
	dir, err := cache.DefaultDir()
	if err != nil {
		return fmt.Errorf("failed to locate cache directory: %w", err)
	}

	c, err := cache.New(dir)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}

	removed, err := c.Clean(pattern)
	if err != nil {
		return fmt.Errorf("failed to clean cache: %w", err)
	}

	fmt.Printf("🧹 Removed %d cached entries\n", removed)
	return nil
}
