// Package database defines the interface for persisting game records. The
// interface decouples the rest of the application from Postgres, so tests
// and local runs can swap in a mock or no-op implementation.
package database

import (
	"context"

	"github.com/nsgamedb/eshop-scraper/internal/eshop"
)

// Stats summarizes stored rows by origin.
type Stats struct {
	Total   int64 `json:"total"`
	Scraped int64 `json:"scraped"`
	Manual  int64 `json:"manual"`
}

// Provider is the relational persistence contract for game records.
type Provider interface {
	// Upsert writes records sequentially. A present row is merged
	// field-by-field before the update; forceRefresh makes incoming data
	// authoritative instead. One record's failure is logged and does not
	// abort the rest of the batch; an error is returned only when every
	// record in the call failed, so single-record calls surface their
	// outcome.
	Upsert(ctx context.Context, records []eshop.GameRecord, forceRefresh bool) error

	// TestConnection runs a trivial count query and reports reachability.
	// It never returns an error.
	TestConnection(ctx context.Context) bool

	// Stats counts stored rows by data source.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the connection pool.
	Close()
}

// NoOpProvider discards all writes. Useful for dry runs.
type NoOpProvider struct{}

// Upsert does nothing.
func (NoOpProvider) Upsert(context.Context, []eshop.GameRecord, bool) error { return nil }

// TestConnection always succeeds.
func (NoOpProvider) TestConnection(context.Context) bool { return true }

// Stats reports an empty store.
func (NoOpProvider) Stats(context.Context) (Stats, error) { return Stats{}, nil }

// Close does nothing.
func (NoOpProvider) Close() {}
