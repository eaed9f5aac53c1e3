package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nsgamedb/eshop-scraper/internal/runner"
)

func newScrapeCmd() *cobra.Command {
	var (
		batchSize    int
		concurrency  int
		forceRefresh bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Processes pending queue items",
		Long: `Claims a batch of pending ids from the queue, scrapes each product
page with bounded concurrency, and upserts the results into the
database. The run report is persisted to the configured report sink.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()
			logger := appInstance.Logger()

			if !cmd.Flags().Changed("batch-size") {
				batchSize = cfg.Queue.BatchSize
			}
			if !cmd.Flags().Changed("concurrency") {
				concurrency = cfg.Scraper.Concurrency
			}

			s, err := appInstance.NewScraper()
			if err != nil {
				return err
			}
			defer s.Close()

			r := runner.New(runner.Config{
				BatchSize:    batchSize,
				Concurrency:  concurrency,
				ForceRefresh: forceRefresh,
			}, appInstance.Queue(), s, appInstance.Database(), nil, logger)

			report, err := r.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("run scrape: %w", err)
			}

			report.Emit(cmd.Context(),
				appInstance.Reports(),
				appInstance.Publisher(),
				cfg.Reports.Prefix,
				cfg.Publisher.Topic,
				logger,
			)
			logger.Info("scrape command finished", zap.String("run_id", report.RunID))
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "max items to claim this run (0 = no cap)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 3, "simultaneous scrapes")
	cmd.Flags().BoolVar(&forceRefresh, "force-refresh", false, "treat scraped data as authoritative for every item")

	return cmd
}
