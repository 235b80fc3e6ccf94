package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	historyKind  string
	historyEvent string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent fetch and sampling events",
	Long: `Prints the most recent entries of the DuckDB event log, newest first.
Filter by subject kind (archive, month, range) or event type (download_start,
download_end, extract_start, extract_end, sample_start, sample_end, skip,
error).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if events == nil {
			return fmt.Errorf("event logging is disabled (--event-log was set to an empty path)")
		}

		ctx, cancel := cmdContext()
		defer cancel()

		entries, err := events.History(ctx, historyKind, historyEvent, historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No events recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tKIND\tSUBJECT\tEVENT\tDURATION\tMESSAGE")
		for _, e := range entries {
			duration := "-"
			if e.DurationMS >= 0 {
				duration = fmt.Sprintf("%dms", e.DurationMS)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Format("2006-01-02 15:04:05"), e.Kind, e.Subject, e.Event, duration, e.Message)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "Filter by subject kind (archive, month, range)")
	historyCmd.Flags().StringVar(&historyEvent, "event", "", "Filter by event type")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Max entries to show")
}
