package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nsgamedb/eshop-scraper/internal/database"
	"github.com/nsgamedb/eshop-scraper/internal/eshop"
	"github.com/nsgamedb/eshop-scraper/internal/kvstore/memory"
	"github.com/nsgamedb/eshop-scraper/internal/queue"
	"github.com/nsgamedb/eshop-scraper/internal/scraper"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

// fakeScraper returns canned records or errors per id.
type fakeScraper struct {
	mu      sync.Mutex
	records map[string]*eshop.GameRecord
	errs    map[string]error
	calls   []string
}

func (s *fakeScraper) Scrape(_ context.Context, id string) (*eshop.GameRecord, error) {
	s.mu.Lock()
	s.calls = append(s.calls, id)
	s.mu.Unlock()
	if err, ok := s.errs[id]; ok {
		return nil, err
	}
	if rec, ok := s.records[id]; ok {
		copied := *rec
		return &copied, nil
	}
	return nil, scraper.ErrNotFound
}

func (s *fakeScraper) Close() {}

func (s *fakeScraper) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// fakeDB records upserts in memory.
type fakeDB struct {
	mu        sync.Mutex
	rows      map[string]eshop.GameRecord
	forced    []bool
	reachable bool
	upsertErr error
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string]eshop.GameRecord), reachable: true}
}

func (db *fakeDB) Upsert(_ context.Context, records []eshop.GameRecord, forceRefresh bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.upsertErr != nil {
		return db.upsertErr
	}
	for _, rec := range records {
		db.rows[rec.TitleID] = rec
		db.forced = append(db.forced, forceRefresh)
	}
	return nil
}

func (db *fakeDB) TestConnection(context.Context) bool { return db.reachable }

func (db *fakeDB) Stats(context.Context) (database.Stats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return database.Stats{Total: int64(len(db.rows))}, nil
}

func (db *fakeDB) Close() {}

func (db *fakeDB) row(titleID string) (eshop.GameRecord, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	rec, ok := db.rows[titleID]
	return rec, ok
}

func newTestRunner(t *testing.T, cfg Config, s scraper.Scraper, db database.Provider) (*Runner, *queue.Manager, *memory.Store) {
	t.Helper()
	clk := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	store := memory.New(clk)
	q := queue.NewManager(store, clk, nil, queue.Config{})
	return New(cfg, q, s, db, clk, nil), q, store
}

func TestRunProcessesPendingItem(t *testing.T) {
	t.Parallel()

	const id = "0100000000010000"
	s := &fakeScraper{records: map[string]*eshop.GameRecord{
		id: {TitleID: id, NameZhHant: "Game", DataSource: eshop.DataSourceScraper},
	}}
	db := newFakeDB()
	r, q, store := newTestRunner(t, Config{}, s, db)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, queue.Item{ID: id, Source: "manual"}))

	report, err := r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)
	require.Equal(t, 1, report.Succeeded)
	require.Zero(t, report.Failed)
	require.Equal(t, 1.0, report.SuccessRate)
	require.NotEmpty(t, report.RunID)

	rec, ok := db.row(id)
	require.True(t, ok)
	require.Equal(t, eshop.DataSourceScraper, rec.DataSource)

	// Both queue partitions are cleared for the id.
	for _, prefix := range []string{"pending:", "failed:"} {
		keys, err := store.ListKeys(ctx, prefix, 0)
		require.NoError(t, err)
		require.Empty(t, keys)
	}
	require.NotNil(t, report.QueueStats)
	require.Zero(t, report.QueueStats.Pending)
}

func TestRunEmptyQueue(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRunner(t, Config{}, &fakeScraper{}, newFakeDB())
	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Processed)
	require.Zero(t, report.SuccessRate)
}

func TestRunFailureRecordsAndBlacklists(t *testing.T) {
	t.Parallel()

	const id = "0100000000010000"
	s := &fakeScraper{errs: map[string]error{id: scraper.ErrBlocked}}
	db := newFakeDB()
	r, q, _ := newTestRunner(t, Config{}, s, db)
	ctx := context.Background()

	for run := 1; run <= 3; run++ {
		require.NoError(t, q.Enqueue(ctx, queue.Item{ID: id, Source: "manual"}))
		report, err := r.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, report.Failed)
		require.Equal(t, []string{id}, report.FailedIDs)
	}

	record, found, err := q.GetFailure(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 3, record.FailureCount)
	require.True(t, record.Blacklisted)

	// A blacklisted id re-enqueued by an operator is still processed.
	require.NoError(t, q.Enqueue(ctx, queue.Item{ID: id, Source: "manual"}))
	report, err := r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)
	require.Equal(t, 4, s.callCount())
}

func TestRunUpsertFailureMarksItemFailed(t *testing.T) {
	t.Parallel()

	const id = "0100000000010000"
	s := &fakeScraper{records: map[string]*eshop.GameRecord{id: {TitleID: id, NameZhHant: "Game"}}}
	db := newFakeDB()
	db.upsertErr = errors.New("constraint violation")
	r, q, _ := newTestRunner(t, Config{}, s, db)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, queue.Item{ID: id, Source: "manual"}))
	report, err := r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)

	record, found, err := q.GetFailure(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	require.Contains(t, record.Reason, "upsert")
}

func TestRunForceRefreshFlags(t *testing.T) {
	t.Parallel()

	const id = "0100000000010000"
	s := &fakeScraper{records: map[string]*eshop.GameRecord{id: {TitleID: id, NameZhHant: "Game"}}}

	t.Run("per item flag", func(t *testing.T) {
		t.Parallel()
		db := newFakeDB()
		r, q, _ := newTestRunner(t, Config{}, s, db)
		ctx := context.Background()
		require.NoError(t, q.Enqueue(ctx, queue.Item{ID: id, Source: "manual", ForceRefresh: true}))
		_, err := r.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, []bool{true}, db.forced)
	})

	t.Run("run level flag", func(t *testing.T) {
		t.Parallel()
		db := newFakeDB()
		r, q, _ := newTestRunner(t, Config{ForceRefresh: true}, s, db)
		ctx := context.Background()
		require.NoError(t, q.Enqueue(ctx, queue.Item{ID: id, Source: "manual"}))
		_, err := r.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, []bool{true}, db.forced)
	})
}

func TestRunBatchSizeCapsClaim(t *testing.T) {
	t.Parallel()

	s := &fakeScraper{records: map[string]*eshop.GameRecord{}}
	db := newFakeDB()
	r, q, _ := newTestRunner(t, Config{BatchSize: 2, Concurrency: 2}, s, db)
	ctx := context.Background()

	for i := range 5 {
		id := fmt.Sprintf("010000000001000%d", i)
		s.records[id] = &eshop.GameRecord{TitleID: id, NameZhHant: "Game"}
		require.NoError(t, q.Enqueue(ctx, queue.Item{ID: id, Source: "manual"}))
	}

	report, err := r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Processed)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Pending, "unclaimed items stay pending")
}

func TestRunFailsFastWhenDatabaseDown(t *testing.T) {
	t.Parallel()

	db := newFakeDB()
	db.reachable = false
	r, q, _ := newTestRunner(t, Config{}, &fakeScraper{}, db)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, queue.Item{ID: "0100000000010000"}))

	_, err := r.Run(ctx)
	require.Error(t, err)

	stats, statsErr := q.Stats(ctx)
	require.NoError(t, statsErr)
	require.Equal(t, 1, stats.Pending, "no failure budget burned on a dead backend")
}

func TestRunFailsFastWhenQueueDown(t *testing.T) {
	t.Parallel()

	boom := errors.New("store down")
	r := New(Config{}, &failingQueue{err: boom}, &fakeScraper{}, newFakeDB(), nil, nil)
	_, err := r.Run(context.Background())
	require.ErrorIs(t, err, boom)
}

type failingQueue struct{ err error }

func (q *failingQueue) Ping(context.Context) error { return q.err }
func (q *failingQueue) ListPending(context.Context, int) ([]queue.Item, error) {
	return nil, q.err
}
func (q *failingQueue) MarkCompleted(context.Context, string)   {}
func (q *failingQueue) MarkFailed(context.Context, string, string) {}
func (q *failingQueue) Stats(context.Context) (queue.Stats, error) {
	return queue.Stats{}, q.err
}
