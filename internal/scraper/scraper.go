// Package scraper extracts game metadata from storefront product pages.
// The primary path renders the page in headless Chrome and reads the
// store's embedded JSON payload; a static fallback scrapes meta tags when
// no rendered payload is available.
package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/nsgamedb/eshop-scraper/internal/eshop"
)

// Sentinel errors callers branch on.
var (
	// ErrBlocked means the storefront served a block or captcha page.
	ErrBlocked = errors.New("storefront blocked the request")
	// ErrNotFound means the page rendered but carried no game data.
	ErrNotFound = errors.New("no game information on page")
	// ErrTitleIDUnresolved means an nsuid lookup could not discover the
	// canonical title id, so the record has no primary key to store under.
	ErrTitleIDUnresolved = errors.New("title id could not be resolved from page")
)

// Scraper fetches the metadata record for a single game id. The id may be
// either a 16-hex title id or a 14-digit nsuid.
type Scraper interface {
	Scrape(ctx context.Context, id string) (*eshop.GameRecord, error)
	Close()
}

// Config controls scraping behavior shared by implementations.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// DelayMin and DelayMax bound the randomized pause before each page
	// visit. Zero values disable the pause.
	DelayMin time.Duration
	DelayMax time.Duration
}

func (c Config) navTimeout() time.Duration {
	if c.NavigationTimeout > 0 {
		return c.NavigationTimeout
	}
	return 30 * time.Second
}
