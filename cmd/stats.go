package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Shows queue and database counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			queueStats, err := appInstance.Queue().Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("queue stats: %w", err)
			}
			fmt.Fprintln(out, "Queue:")
			fmt.Fprintf(out, "  pending:     %s\n", humanize.Comma(int64(queueStats.Pending)))
			fmt.Fprintf(out, "  failed:      %s\n", humanize.Comma(int64(queueStats.Failed)))
			fmt.Fprintf(out, "  blacklisted: %s\n", humanize.Comma(int64(queueStats.Blacklisted)))

			dbStats, err := appInstance.Database().Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("database stats: %w", err)
			}
			fmt.Fprintln(out, "Database:")
			fmt.Fprintf(out, "  total:   %s\n", humanize.Comma(dbStats.Total))
			fmt.Fprintf(out, "  scraped: %s\n", humanize.Comma(dbStats.Scraped))
			fmt.Fprintf(out, "  manual:  %s\n", humanize.Comma(dbStats.Manual))
			return nil
		},
	}
}
