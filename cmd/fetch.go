package cmd

import (
	"github.com/spf13/cobra"

	"citisampler/internal/fetch"
	"citisampler/internal/progress"
	"citisampler/internal/timerange"
)

var (
	fetchStart string
	fetchEnd   string
	fetchForce bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and cache trip data for a time range",
	Long: `Downloads the archives covering a time range and extracts their CSV
shards into the local cache. Months already cached and complete are skipped
unless --force is given.

Years up to and including 2023 are published as annual bundles, so ranges
touching them must cover those years in full.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := timerange.Normalize(fetchStart, fetchEnd)
		if err != nil {
			return err
		}

		ctx, cancel := cmdContext()
		defer cancel()

		return withReporter(func(reporter progress.Reporter) error {
			orchestrator := fetch.NewOrchestrator(appConfig, getLogger(), events, reporter)
			return orchestrator.FetchRange(ctx, r, !fetchForce)
		})
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "Start of the range: YYYY or YYYY-MM (required)")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "End of the range: YYYY or YYYY-MM (default: same as --start)")
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "Re-download periods even when fully cached")
	fetchCmd.MarkFlagRequired("start")
}
