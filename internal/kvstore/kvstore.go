// Package kvstore defines the contract for the key-value store backing the
// scrape queue. The queue manager is the only intended caller; nothing else
// should construct prefixed keys.
package kvstore

import (
	"context"
	"time"
)

// Store is a minimal key-value contract: prefix listing, point get/put with
// optional TTL, and idempotent delete. No key ordering is guaranteed by the
// store; callers re-sort as needed.
type Store interface {
	// ListKeys returns up to limit keys starting with prefix.
	ListKeys(ctx context.Context, prefix string, limit int) ([]string, error)

	// Get returns the value for key, with found=false when the key is
	// absent (or expired).
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Put stores value under key. A ttl of zero means no expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any underlying resources.
	Close() error
}
