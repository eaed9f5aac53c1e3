// Package leveldb implements the queue key-value store on a local LevelDB
// database, giving pending work durability across process restarts.
package leveldb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/nsgamedb/eshop-scraper/internal/clock"
)

// envelope wraps stored values so entries can carry an expiry. LevelDB has
// no native TTL; expired entries are evicted lazily on read.
type envelope struct {
	ExpiresAt int64  `json:"expires_at,omitempty"` // unix seconds, 0 = no expiry
	Value     []byte `json:"value"`
}

// Store is a LevelDB-backed kvstore.Store.
type Store struct {
	db    *leveldb.DB
	clock clock.Clock
}

// New opens (or creates) the database at path.
func New(path string, clk clock.Clock) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if clk == nil {
		clk = clock.System{}
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
	}
	return &Store{db: db, clock: clk}, nil
}

// ListKeys returns up to limit live keys under prefix. Expired entries are
// skipped but not deleted here; Get handles eviction.
func (s *Store) ListKeys(ctx context.Context, prefix string, limit int) ([]string, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	now := s.clock.Now().Unix()
	var keys []string
	for iter.Next() {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("list keys canceled: %w", ctx.Err())
		}
		if limit > 0 && len(keys) >= limit {
			break
		}
		var env envelope
		if err := json.Unmarshal(iter.Value(), &env); err == nil && expired(env, now) {
			continue
		}
		keys = append(keys, string(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate prefix %q: %w", prefix, err)
	}
	return keys, nil
}

// Get returns the value stored under key. Expired entries are deleted and
// reported as absent.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, fmt.Errorf("decode envelope for %q: %w", key, err)
	}
	if expired(env, s.clock.Now().Unix()) {
		// Best effort; a leftover expired entry is harmless.
		_ = s.db.Delete([]byte(key), nil)
		return nil, false, nil
	}
	return env.Value, true, nil
}

// Put stores value under key, with an optional TTL.
func (s *Store) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	env := envelope{Value: value}
	if ttl > 0 {
		env.ExpiresAt = s.clock.Now().Add(ttl).Unix()
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope for %q: %w", key, err)
	}
	if err := s.db.Put([]byte(key), raw, nil); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Delete removes key; missing keys are not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(key), nil); err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close leveldb: %w", err)
	}
	return nil
}

func expired(env envelope, now int64) bool {
	return env.ExpiresAt > 0 && env.ExpiresAt <= now
}
