// Package cmd defines the CLI commands for the eshop-scraper executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nsgamedb/eshop-scraper/internal/app"
	"github.com/nsgamedb/eshop-scraper/internal/config"
	"github.com/nsgamedb/eshop-scraper/internal/database"
	"github.com/nsgamedb/eshop-scraper/internal/publisher"
	"github.com/nsgamedb/eshop-scraper/internal/queue"
	"github.com/nsgamedb/eshop-scraper/internal/scraper"
	"github.com/nsgamedb/eshop-scraper/internal/storage"
)

var cfgFile string

// appKeyType is the key for storing the App in the command context.
type appKeyType struct{}

var appKey appKeyType

// App is the service surface commands consume. An interface so tests can
// inject a fake container.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Queue() *queue.Manager
	Database() database.Provider
	Reports() storage.Provider
	Publisher() publisher.Provider
	NewScraper() (scraper.Scraper, error)
}

// newApp is the application factory, a variable so tests can swap in a
// mock factory.
var newApp = func(ctx context.Context) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

// NewRootCmd creates and configures the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eshop-scraper",
		Short: "Scrapes game metadata from the HK eShop into Postgres.",
		Long: `eshop-scraper works through a durable queue of game ids, renders each
storefront product page, and merges the extracted metadata into a
Postgres games table. Failed ids are retried across runs and
blacklisted after repeated failures.`,

		// Runs after flags are parsed and before the subcommand's RunE:
		// build the service container and hand it down via the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newEnqueueCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
