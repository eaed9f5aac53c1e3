// Package memory provides an in-memory queue key-value store for tests and
// local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nsgamedb/eshop-scraper/internal/clock"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero = no expiry
}

// Store is a map-backed kvstore.Store. Keys are listed in lexical order for
// deterministic tests.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	clock   clock.Clock
}

// New constructs an empty Store.
func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.System{}
	}
	return &Store{
		entries: make(map[string]entry),
		clock:   clk,
	}
}

// ListKeys returns up to limit live keys under prefix, sorted lexically.
func (s *Store) ListKeys(_ context.Context, prefix string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	var keys []string
	for k, e := range s.entries {
		if !strings.HasPrefix(k, prefix) || e.isExpired(now) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

// Get returns the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || e.isExpired(s.clock.Now()) {
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Put stores value under key, with an optional TTL.
func (s *Store) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.clock.Now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Delete removes key; missing keys are not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (e entry) isExpired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}
