package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"citisampler/internal/cache"
	"citisampler/internal/export"
	"citisampler/internal/fetch"
	"citisampler/internal/progress"
	"citisampler/internal/sampler"
	"citisampler/internal/timerange"
	"citisampler/internal/trips"
)

var (
	sampleStart    string
	sampleEnd      string
	sampleFraction float64
	sampleSeed     int64
	sampleOutput   string
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Draw a random sample of trip records for a time range",
	Long: `Randomly samples a fraction of all trip records in a time range and
writes the result to a CSV or Parquet file. Months missing from the cache are
fetched automatically first.

With --seed the sample is reproducible: the same seed over the same range and
fraction always selects the same records.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := timerange.Normalize(sampleStart, sampleEnd)
		if err != nil {
			return err
		}

		var seed *int64
		if cmd.Flags().Changed("seed") {
			seed = &sampleSeed
		}

		ctx, cancel := cmdContext()
		defer cancel()

		var frame *trips.Frame
		err = withReporter(func(reporter progress.Reporter) error {
			logger := getLogger()
			engine := &sampler.Engine{
				Layout:   cache.Layout{Root: appConfig.CacheDir},
				Fetcher:  fetch.NewOrchestrator(appConfig, logger, events, reporter),
				Logger:   logger,
				Events:   events,
				Reporter: reporter,
			}
			frame, err = engine.Run(ctx, r, sampler.Options{
				Fraction:   sampleFraction,
				Seed:       seed,
				MaxWorkers: appConfig.MaxWorkers,
				Verbose:    !quiet,
			})
			return err
		})
		if err != nil {
			return err
		}

		if err := export.Write(frame, sampleOutput); err != nil {
			return err
		}
		if !quiet {
			fmt.Printf("Wrote %d sampled records to %s\n", frame.Len(), sampleOutput)
		}
		return nil
	},
}

func init() {
	sampleCmd.Flags().StringVar(&sampleStart, "start", "", "Start of the range: YYYY or YYYY-MM (required)")
	sampleCmd.Flags().StringVar(&sampleEnd, "end", "", "End of the range: YYYY or YYYY-MM (default: same as --start)")
	sampleCmd.Flags().Float64Var(&sampleFraction, "fraction", 0.01, "Fraction of records to retain, between 0 and 1 exclusive")
	sampleCmd.Flags().Int64Var(&sampleSeed, "seed", 0, "Random seed for a reproducible sample")
	sampleCmd.Flags().StringVarP(&sampleOutput, "output", "o", "", "Output file, .csv or .parquet (required)")
	sampleCmd.MarkFlagRequired("start")
	sampleCmd.MarkFlagRequired("output")
}
