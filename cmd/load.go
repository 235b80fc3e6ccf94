package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"citisampler/internal/cache"
	"citisampler/internal/export"
	"citisampler/internal/fetch"
	"citisampler/internal/loader"
	"citisampler/internal/progress"
	"citisampler/internal/timerange"
	"citisampler/internal/trips"
)

var (
	loadStart  string
	loadEnd    string
	loadOutput string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Export the full, unthinned trip data for a time range",
	Long: `Loads every trip record in a time range and writes the result to a CSV
or Parquet file. Months missing from the cache are fetched automatically
first.

Single months already run to millions of records, so prefer 'sample' unless
you genuinely need the complete data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := timerange.Normalize(loadStart, loadEnd)
		if err != nil {
			return err
		}

		ctx, cancel := cmdContext()
		defer cancel()

		var frame *trips.Frame
		err = withReporter(func(reporter progress.Reporter) error {
			logger := getLogger()
			l := &loader.Loader{
				Layout:   cache.Layout{Root: appConfig.CacheDir},
				Fetcher:  fetch.NewOrchestrator(appConfig, logger, events, reporter),
				Logger:   logger,
				Reporter: reporter,
			}
			frame, err = l.LoadAll(ctx, r)
			return err
		})
		if err != nil {
			return err
		}

		if err := export.Write(frame, loadOutput); err != nil {
			return err
		}
		if !quiet {
			fmt.Printf("Wrote %d records to %s\n", frame.Len(), loadOutput)
		}
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadStart, "start", "", "Start of the range: YYYY or YYYY-MM (required)")
	loadCmd.Flags().StringVar(&loadEnd, "end", "", "End of the range: YYYY or YYYY-MM (default: same as --start)")
	loadCmd.Flags().StringVarP(&loadOutput, "output", "o", "", "Output file, .csv or .parquet (required)")
	loadCmd.MarkFlagRequired("start")
	loadCmd.MarkFlagRequired("output")
}
