package scraper

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nsgamedb/eshop-scraper/internal/eshop"
)

// Composite runs the headless scraper and falls back to the static one.
// Blocked pages and unresolved title ids are deterministic outcomes that a
// static refetch cannot change, so those errors pass through untouched.
type Composite struct {
	primary  Scraper
	fallback Scraper
	logger   *zap.Logger
}

// NewComposite chains primary and fallback scrapers.
func NewComposite(primary, fallback Scraper, logger *zap.Logger) *Composite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composite{primary: primary, fallback: fallback, logger: logger}
}

// Scrape tries the primary scraper first.
func (c *Composite) Scrape(ctx context.Context, id string) (*eshop.GameRecord, error) {
	rec, err := c.primary.Scrape(ctx, id)
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, ErrBlocked) || errors.Is(err, ErrTitleIDUnresolved) || ctx.Err() != nil {
		return nil, err
	}

	c.logger.Warn("headless scrape failed, trying static fallback",
		zap.String("id", id), zap.Error(err))
	rec, fallbackErr := c.fallback.Scrape(ctx, id)
	if fallbackErr != nil {
		// The primary error usually carries more signal than a second
		// miss on a degraded path.
		return nil, errors.Join(err, fallbackErr)
	}
	return rec, nil
}

// Close closes both scrapers.
func (c *Composite) Close() {
	c.primary.Close()
	c.fallback.Close()
}
