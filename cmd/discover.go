package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"citisampler/internal/discover"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the archives published in the trip-data bucket",
	Long: `Queries the public S3 bucket and lists every archive it currently
holds, with size and upload date. Useful for checking which months have been
published before fetching them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		archives, err := discover.NewLister().ListArchives(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PERIOD\tKEY\tSIZE\tUPLOADED")
		for _, a := range archives {
			period := fmt.Sprintf("%d", a.Year)
			if a.Month != 0 {
				period = fmt.Sprintf("%d-%02d", a.Year, a.Month)
			}
			fmt.Fprintf(w, "%s\t%s\t%.1f MB\t%s\n",
				period, a.Key, float64(a.Size)/1e6, a.LastModified.Format("2006-01-02"))
		}
		return w.Flush()
	},
}
