package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"citisampler/internal/cache"
)

var purgeDryRun bool

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete the local shard cache",
	Long: `Deletes every cached shard and the cache directory itself. The event
log lives outside the cache and is not touched. Use --dry-run to see what
would be deleted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		layout := cache.Layout{Root: appConfig.CacheDir}
		stats, err := layout.Purge(purgeDryRun)
		if err != nil {
			return err
		}

		verb := "Deleted"
		if stats.DryRun {
			verb = "Would delete"
		}
		fmt.Printf("%s %d shard file(s), %.1f MB, under %s\n",
			verb, stats.MatchedCSV, float64(stats.TotalBytes)/1e6, appConfig.CacheDir)
		return nil
	},
}

func init() {
	purgeCmd.Flags().BoolVar(&purgeDryRun, "dry-run", false, "Report what would be deleted without deleting")
}
