// Package app initializes and holds long-lived application services,
// acting as a dependency injection container. It is built once at startup
// from the loaded configuration and handed to the commands that need it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nsgamedb/eshop-scraper/internal/clock"
	"github.com/nsgamedb/eshop-scraper/internal/config"
	"github.com/nsgamedb/eshop-scraper/internal/database"
	"github.com/nsgamedb/eshop-scraper/internal/kvstore"
	leveldbstore "github.com/nsgamedb/eshop-scraper/internal/kvstore/leveldb"
	memorystore "github.com/nsgamedb/eshop-scraper/internal/kvstore/memory"
	"github.com/nsgamedb/eshop-scraper/internal/logging"
	"github.com/nsgamedb/eshop-scraper/internal/metrics"
	"github.com/nsgamedb/eshop-scraper/internal/publisher"
	memorypublisher "github.com/nsgamedb/eshop-scraper/internal/publisher/memory"
	pubsubpublisher "github.com/nsgamedb/eshop-scraper/internal/publisher/pubsub"
	"github.com/nsgamedb/eshop-scraper/internal/queue"
	"github.com/nsgamedb/eshop-scraper/internal/scraper"
	"github.com/nsgamedb/eshop-scraper/internal/storage"
	gcsstorage "github.com/nsgamedb/eshop-scraper/internal/storage/gcs"
	localstorage "github.com/nsgamedb/eshop-scraper/internal/storage/local"
)

// App holds all the shared, long-lived services for the application.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     kvstore.Store
	queue     *queue.Manager
	database  database.Provider
	reports   storage.Provider
	publisher publisher.Provider

	gcsStore  *gcsstorage.Store
	pubsubPub *pubsubpublisher.Publisher
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Queue returns the work queue manager.
func (a *App) Queue() *queue.Manager { return a.queue }

// Database returns the game record persistence provider.
func (a *App) Database() database.Provider { return a.database }

// Reports returns the run report sink.
func (a *App) Reports() storage.Provider { return a.reports }

// Publisher returns the run event publisher.
func (a *App) Publisher() publisher.Provider { return a.publisher }

// NewScraper builds a scraper from the configuration. Scrapers hold a
// browser allocator, so commands create one only when they scrape and
// close it when done.
func (a *App) NewScraper() (scraper.Scraper, error) {
	scraperCfg := scraper.Config{
		UserAgent:         a.cfg.Scraper.UserAgent,
		NavigationTimeout: a.cfg.Scraper.NavTimeout(),
		DelayMin:          a.cfg.Scraper.DelayMin(),
		DelayMax:          a.cfg.Scraper.DelayMax(),
	}
	headless, err := scraper.NewHeadless(scraperCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init headless scraper: %w", err)
	}
	if !a.cfg.Scraper.StaticFallback {
		return headless, nil
	}
	return scraper.NewComposite(headless, scraper.NewStatic(scraperCfg, a.logger), a.logger), nil
}

// New creates and initializes the App container. It fails fast when any
// configured backend cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}
	clk := clock.System{}

	switch cfg.Queue.Store {
	case "leveldb":
		logger.Info("using leveldb queue store", zap.String("path", cfg.Queue.StorePath))
		a.store, err = leveldbstore.New(cfg.Queue.StorePath, clk)
		if err != nil {
			return nil, fmt.Errorf("open queue store: %w", err)
		}
	case "memory":
		logger.Info("using in-memory queue store")
		a.store = memorystore.New(clk)
	default:
		return nil, fmt.Errorf("unknown queue store: %s", cfg.Queue.Store)
	}
	a.queue = queue.NewManager(a.store, clk, logger, queue.Config{
		SkipBlacklisted: cfg.Queue.SkipBlacklisted,
	})

	switch cfg.DB.Provider {
	case "postgres":
		logger.Info("connecting to PostgreSQL")
		a.database, err = database.NewPostgresProvider(ctx, database.PostgresConfig{
			DSN:             cfg.DB.DSN,
			MaxConns:        int32(cfg.DB.MaxConns),
			MinConns:        int32(cfg.DB.MinConns),
			MaxConnLifetime: cfg.DB.ConnLifetime(),
		}, logger)
		if err != nil {
			a.closeStore()
			return nil, fmt.Errorf("init database: %w", err)
		}
	case "noop":
		logger.Info("using no-op database provider, records will be discarded")
		a.database = database.NoOpProvider{}
	default:
		a.closeStore()
		return nil, fmt.Errorf("unknown database provider: %s", cfg.DB.Provider)
	}

	switch cfg.Reports.Provider {
	case "local":
		a.reports, err = localstorage.New(localstorage.Config{BaseDir: cfg.Reports.Dir})
		if err != nil {
			a.closePartial()
			return nil, fmt.Errorf("init local report store: %w", err)
		}
	case "gcs":
		logger.Info("using GCS report store", zap.String("bucket", cfg.Reports.GCSBucket))
		a.gcsStore, err = gcsstorage.New(ctx, cfg.Reports.GCSBucket, logger)
		if err != nil {
			a.closePartial()
			return nil, fmt.Errorf("init GCS report store: %w", err)
		}
		a.reports = a.gcsStore
	case "noop":
		a.reports = storage.NoOpProvider{}
	default:
		a.closePartial()
		return nil, fmt.Errorf("unknown reports provider: %s", cfg.Reports.Provider)
	}

	switch cfg.Publisher.Provider {
	case "pubsub":
		logger.Info("connecting to Pub/Sub",
			zap.String("project", cfg.Publisher.ProjectID),
			zap.String("topic", cfg.Publisher.Topic),
		)
		a.pubsubPub, err = pubsubpublisher.New(ctx, cfg.Publisher.ProjectID)
		if err != nil {
			a.closePartial()
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.publisher = a.pubsubPub
	case "memory":
		a.publisher = memorypublisher.New()
	case "noop":
		a.publisher = publisher.NoOpProvider{}
	default:
		a.closePartial()
		return nil, fmt.Errorf("unknown publisher provider: %s", cfg.Publisher.Provider)
	}

	logger.Info("application services initialized")
	return a, nil
}

// Close shuts down all services in the container.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	if a.pubsubPub != nil {
		if err := a.pubsubPub.Close(); err != nil {
			a.logger.Warn("close pubsub publisher", zap.Error(err))
		}
	}
	if a.gcsStore != nil {
		if err := a.gcsStore.Close(); err != nil {
			a.logger.Warn("close GCS client", zap.Error(err))
		}
	}
	a.closePartial()
	// Best effort; stderr sync fails on some platforms.
	_ = a.logger.Sync()
}

func (a *App) closePartial() {
	if a.database != nil {
		a.database.Close()
	}
	a.closeStore()
}

func (a *App) closeStore() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close queue store", zap.Error(err))
	}
}
