package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nsgamedb/eshop-scraper/internal/clock"
	"github.com/nsgamedb/eshop-scraper/internal/kvstore"
)

const (
	pendingPrefix = "pending:"
	failedPrefix  = "failed:"

	// maxFailures is the failure count at which an item is blacklisted.
	maxFailures = 3
	// blacklistTTL is the retention window for blacklisted failure records.
	blacklistTTL = 30 * 24 * time.Hour
	// reasonLimit bounds the stored failure message.
	reasonLimit = 500
	// statsScanCap bounds key scans so Stats never walks an unbounded store.
	statsScanCap = 1000
)

// Config controls Manager behavior.
type Config struct {
	// SkipBlacklisted cross-checks the failed partition and drops
	// blacklisted ids from ListPending results. Off by default: the two
	// partitions are only loosely coupled and external consumers may want
	// to see blacklisted work.
	SkipBlacklisted bool
}

// Manager coordinates the pending and failed partitions of the queue store.
// Membership in the pending partition itself denotes outstanding work; items
// are claimed in-memory by the orchestrator, never marked in the store, so a
// crash mid-scrape simply leaves the item pending for a later run.
type Manager struct {
	store  kvstore.Store
	clock  clock.Clock
	logger *zap.Logger
	cfg    Config
}

// NewManager constructs a Manager over the given store.
func NewManager(store kvstore.Store, clk clock.Clock, logger *zap.Logger, cfg Config) *Manager {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, clock: clk, logger: logger, cfg: cfg}
}

// Ping verifies the queue store is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	if _, err := m.store.ListKeys(ctx, pendingPrefix, 1); err != nil {
		return fmt.Errorf("queue store unreachable: %w", err)
	}
	return nil
}

// ListPending returns up to limit items, refresh class first, each class in
// FIFO order by addedAt. A malformed stored value degrades to a default item
// rather than blocking the batch. Store errors on the core list/get path are
// propagated: the caller cannot proceed without a batch.
func (m *Manager) ListPending(ctx context.Context, limit int) ([]Item, error) {
	keys, err := m.store.ListKeys(ctx, pendingPrefix, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	var refresh, normal []Item
	for _, key := range keys {
		id := strings.TrimPrefix(key, pendingPrefix)
		item, err := m.readItem(ctx, key, id)
		if err != nil {
			return nil, err
		}
		if m.cfg.SkipBlacklisted && m.isBlacklisted(ctx, id) {
			m.logger.Debug("skipping blacklisted item", zap.String("id", id))
			continue
		}
		if item.IsRefresh() {
			refresh = append(refresh, item)
		} else {
			normal = append(normal, item)
		}
	}

	sort.SliceStable(refresh, func(i, j int) bool { return refresh[i].AddedAt < refresh[j].AddedAt })
	sort.SliceStable(normal, func(i, j int) bool { return normal[i].AddedAt < normal[j].AddedAt })

	if len(refresh) > 0 {
		m.logger.Info("refresh items scheduled ahead of normal work",
			zap.Int("refresh", len(refresh)),
			zap.Int("normal", len(normal)),
		)
	}
	return append(refresh, normal...), nil
}

// readItem fetches and decodes one pending entry, degrading gracefully when
// the stored value is missing or malformed.
func (m *Manager) readItem(ctx context.Context, key, id string) (Item, error) {
	raw, found, err := m.store.Get(ctx, key)
	if err != nil {
		return Item{}, fmt.Errorf("get %s: %w", key, err)
	}

	item := Item{
		ID:       id,
		AddedAt:  m.nowMillis(),
		Source:   "unknown",
		Status:   statusPending,
		Priority: PriorityNormal,
	}
	if !found {
		return item, nil
	}
	var parsed Item
	if err := json.Unmarshal(raw, &parsed); err != nil {
		m.logger.Warn("malformed queue entry, using defaults",
			zap.String("key", key), zap.Error(err))
		return item, nil
	}
	parsed.ID = id
	if parsed.AddedAt == 0 {
		parsed.AddedAt = m.nowMillis()
	}
	if parsed.Source == "" {
		parsed.Source = "unknown"
	}
	if parsed.Priority == "" {
		parsed.Priority = PriorityNormal
	}
	return parsed, nil
}

// Enqueue adds a pending entry for id. Existing entries are overwritten,
// which makes repeated enqueues of the same id idempotent.
func (m *Manager) Enqueue(ctx context.Context, item Item) error {
	if item.ID == "" {
		return fmt.Errorf("queue item id is required")
	}
	if item.AddedAt == 0 {
		item.AddedAt = m.nowMillis()
	}
	if item.Source == "" {
		item.Source = "manual"
	}
	if item.Priority == "" {
		item.Priority = PriorityNormal
	}
	item.Status = statusPending

	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode queue item %s: %w", item.ID, err)
	}
	if err := m.store.Put(ctx, pendingPrefix+item.ID, raw, 0); err != nil {
		return fmt.Errorf("enqueue %s: %w", item.ID, err)
	}
	return nil
}

// MarkCompleted removes both the pending entry and any failure history for
// id. Idempotent; store errors on this cleanup path are logged, never
// escalated.
func (m *Manager) MarkCompleted(ctx context.Context, id string) {
	m.deleteKey(ctx, pendingPrefix+id)
	m.deleteKey(ctx, failedPrefix+id)
}

// MarkFailed removes the pending entry and creates or updates the failure
// record for id. The failure count is monotonic; it only resets through
// MarkCompleted. Once the count reaches the blacklist threshold the record
// is flagged and retained with an extended TTL.
func (m *Manager) MarkFailed(ctx context.Context, id, errorMessage string) {
	m.deleteKey(ctx, pendingPrefix+id)

	failedKey := failedPrefix + id
	record := Item{
		ID:           id,
		AddedAt:      m.nowMillis(),
		Source:       "unknown",
		Status:       statusFailed,
		FailureCount: 1,
	}
	if raw, found, err := m.store.Get(ctx, failedKey); err != nil {
		m.logger.Warn("failed to read failure record", zap.String("id", id), zap.Error(err))
	} else if found {
		var prior Item
		if err := json.Unmarshal(raw, &prior); err == nil {
			prior.ID = id
			prior.FailureCount++
			record = prior
		}
	}
	record.Status = statusFailed
	record.LastFailedAt = m.nowMillis()
	record.Reason = truncate(errorMessage, reasonLimit)

	ttl := time.Duration(0)
	if record.FailureCount >= maxFailures {
		record.Blacklisted = true
		ttl = blacklistTTL
		m.logger.Warn("item blacklisted after repeated failures",
			zap.String("id", id),
			zap.Int("failures", record.FailureCount),
		)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		m.logger.Error("encode failure record", zap.String("id", id), zap.Error(err))
		return
	}
	if err := m.store.Put(ctx, failedKey, raw, ttl); err != nil {
		m.logger.Error("persist failure record", zap.String("id", id), zap.Error(err))
	}
}

// Stats counts pending, failed, and blacklisted entries. Scans are capped;
// a store larger than the cap reports the capped counts.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	pendingKeys, err := m.store.ListKeys(ctx, pendingPrefix, statsScanCap)
	if err != nil {
		return Stats{}, fmt.Errorf("list pending: %w", err)
	}
	failedKeys, err := m.store.ListKeys(ctx, failedPrefix, statsScanCap)
	if err != nil {
		return Stats{}, fmt.Errorf("list failed: %w", err)
	}

	stats := Stats{Pending: len(pendingKeys), Failed: len(failedKeys)}
	for _, key := range failedKeys {
		raw, found, err := m.store.Get(ctx, key)
		if err != nil || !found {
			continue
		}
		var record Item
		if err := json.Unmarshal(raw, &record); err != nil {
			continue
		}
		if record.Blacklisted {
			stats.Blacklisted++
		}
	}
	return stats, nil
}

// CleanupStale is a reserved extension point. There is no processing state
// to go stale: a crash mid-scrape leaves the item pending, which a later run
// retries.
func (m *Manager) CleanupStale(_ context.Context) error {
	return nil
}

// GetFailure returns the failure record for id, if one exists.
func (m *Manager) GetFailure(ctx context.Context, id string) (Item, bool, error) {
	raw, found, err := m.store.Get(ctx, failedPrefix+id)
	if err != nil {
		return Item{}, false, fmt.Errorf("get failure record %s: %w", id, err)
	}
	if !found {
		return Item{}, false, nil
	}
	var record Item
	if err := json.Unmarshal(raw, &record); err != nil {
		return Item{}, false, fmt.Errorf("decode failure record %s: %w", id, err)
	}
	record.ID = id
	return record, true, nil
}

func (m *Manager) isBlacklisted(ctx context.Context, id string) bool {
	record, found, err := m.GetFailure(ctx, id)
	return err == nil && found && record.Blacklisted
}

func (m *Manager) deleteKey(ctx context.Context, key string) {
	if err := m.store.Delete(ctx, key); err != nil {
		// Cleanup failures must never abort the main scrape flow.
		m.logger.Warn("delete key failed", zap.String("key", key), zap.Error(err))
	}
}

func (m *Manager) nowMillis() int64 {
	return m.clock.Now().UnixMilli()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
