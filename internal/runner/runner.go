// Package runner orchestrates one scrape run: claim a batch from the
// queue, scrape each game with bounded concurrency, upsert the results,
// and settle every item back into the queue as completed or failed.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/remeh/sizedwaitgroup"
	"go.uber.org/zap"

	"github.com/nsgamedb/eshop-scraper/internal/clock"
	"github.com/nsgamedb/eshop-scraper/internal/database"
	"github.com/nsgamedb/eshop-scraper/internal/eshop"
	"github.com/nsgamedb/eshop-scraper/internal/metrics"
	"github.com/nsgamedb/eshop-scraper/internal/queue"
	"github.com/nsgamedb/eshop-scraper/internal/scraper"
)

const defaultConcurrency = 3

// Queue is the slice of queue.Manager the runner needs.
type Queue interface {
	Ping(ctx context.Context) error
	ListPending(ctx context.Context, limit int) ([]queue.Item, error)
	MarkCompleted(ctx context.Context, id string)
	MarkFailed(ctx context.Context, id, errorMessage string)
	Stats(ctx context.Context) (queue.Stats, error)
}

// Config controls one run.
type Config struct {
	// BatchSize caps how many queue items one run claims. Zero means no cap.
	BatchSize int
	// Concurrency bounds simultaneous scrapes.
	Concurrency int
	// ForceRefresh makes every item's incoming data authoritative,
	// regardless of per-item flags.
	ForceRefresh bool
}

// Runner executes scrape runs.
type Runner struct {
	cfg     Config
	queue   Queue
	scraper scraper.Scraper
	db      database.Provider
	clock   clock.Clock
	logger  *zap.Logger
}

// New constructs a Runner.
func New(cfg Config, q Queue, s scraper.Scraper, db database.Provider, clk clock.Clock, logger *zap.Logger) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Runner{cfg: cfg, queue: q, scraper: s, db: db, clock: clk, logger: logger}
}

// Run claims a batch and processes it, returning the run report. Both
// backends must be reachable before any item is claimed so that a dead
// database cannot mark claimed items failed.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if !r.db.TestConnection(ctx) {
		return nil, fmt.Errorf("database connection check failed")
	}
	if err := r.queue.Ping(ctx); err != nil {
		return nil, fmt.Errorf("queue connection check: %w", err)
	}

	items, err := r.queue.ListPending(ctx, r.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}

	started := r.clock.Now()
	report := &Report{
		RunID:     uuid.New().String(),
		Timestamp: started,
	}
	if len(items) == 0 {
		r.logger.Info("queue is empty, nothing to do")
		r.finish(ctx, report, started)
		return report, nil
	}
	r.logger.Info("starting run",
		zap.String("run_id", report.RunID),
		zap.Int("items", len(items)),
		zap.Int("concurrency", r.cfg.Concurrency),
	)

	var (
		mu        sync.Mutex
		succeeded int
		failedIDs []string
	)
	swg := sizedwaitgroup.New(r.cfg.Concurrency)
	for _, item := range items {
		if ctx.Err() != nil {
			// Unclaimed items simply stay pending for the next run.
			break
		}
		if err := swg.AddWithContext(ctx); err != nil {
			break
		}
		go func(item queue.Item) {
			defer swg.Done()
			if err := r.processItem(ctx, item); err != nil {
				mu.Lock()
				failedIDs = append(failedIDs, item.ID)
				mu.Unlock()
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}(item)
	}
	swg.Wait()

	report.Processed = succeeded + len(failedIDs)
	report.Succeeded = succeeded
	report.Failed = len(failedIDs)
	report.FailedIDs = failedIDs
	r.finish(ctx, report, started)

	r.logger.Info("run finished",
		zap.String("run_id", report.RunID),
		zap.Int("processed", report.Processed),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Float64("success_rate", report.SuccessRate),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// processItem scrapes one game and settles its queue state. The returned
// error only signals failure to the run counters; it is already recorded
// in the queue's failure partition.
func (r *Runner) processItem(ctx context.Context, item queue.Item) error {
	start := r.clock.Now()
	metrics.IncActiveScrapes()
	defer metrics.DecActiveScrapes()

	force := r.cfg.ForceRefresh || item.ForceRefresh
	rec, err := r.scraper.Scrape(ctx, item.ID)
	if err != nil {
		metrics.ObserveScrape("error", r.clock.Now().Sub(start))
		r.logger.Warn("scrape failed",
			zap.String("id", item.ID),
			zap.String("source", item.Source),
			zap.Error(err),
		)
		r.queue.MarkFailed(ctx, item.ID, err.Error())
		return err
	}
	metrics.ObserveScrape("ok", r.clock.Now().Sub(start))

	if err := r.db.Upsert(ctx, []eshop.GameRecord{*rec}, force); err != nil {
		metrics.ObserveUpsert("error")
		r.logger.Warn("upsert failed",
			zap.String("id", item.ID),
			zap.String("title_id", rec.TitleID),
			zap.Error(err),
		)
		r.queue.MarkFailed(ctx, item.ID, fmt.Sprintf("upsert: %v", err))
		return err
	}
	metrics.ObserveUpsert("ok")

	r.queue.MarkCompleted(ctx, item.ID)
	r.logger.Info("item completed",
		zap.String("id", item.ID),
		zap.String("title_id", rec.TitleID),
		zap.String("name", rec.DisplayName()),
	)
	return nil
}

// finish stamps derived report fields and refreshes queue gauges.
func (r *Runner) finish(ctx context.Context, report *Report, started time.Time) {
	report.Duration = r.clock.Now().Sub(started)
	if report.Processed > 0 {
		report.SuccessRate = float64(report.Succeeded) / float64(report.Processed)
	}
	stats, err := r.queue.Stats(ctx)
	if err != nil {
		r.logger.Warn("queue stats unavailable for report", zap.Error(err))
		return
	}
	report.QueueStats = &stats
	metrics.SetQueueDepth("pending", stats.Pending)
	metrics.SetQueueDepth("failed", stats.Failed)
	metrics.SetQueueDepth("blacklisted", stats.Blacklisted)
}
