package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/nsgamedb/eshop-scraper/internal/eshop"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

var gameColumns = []string{
	"nsuid", "formal_name", "name_zh_hant", "name_zh_hans", "name_en",
	"name_ja", "catch_copy", "description", "publisher_name",
	"publisher_id", "genre", "release_date", "hero_banner_url",
	"screenshots", "platform", "languages", "player_number", "play_styles",
	"rom_size", "rating_age", "rating_name", "in_app_purchase",
	"cloud_backup_type", "region", "data_source", "notes", "created_at",
}

// anyArgs returns n match-anything argument placeholders; pgxmock requires
// the expected argument count to match even when values are irrelevant.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

// emptyRowValues returns a full NULL row created at t, for AddRow.
func emptyRowValues(createdAt time.Time, overrides map[string]any) []any {
	values := make([]any, len(gameColumns))
	values[len(values)-1] = createdAt
	for i, col := range gameColumns[:len(gameColumns)-1] {
		if v, ok := overrides[col]; ok {
			values[i] = v
		}
	}
	return values
}

func newTestProvider(t *testing.T) (*PostgresProvider, pgxmock.PgxPoolIface, *fakeClock) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	clk := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	provider, err := NewPostgresProviderWithPool(mock, clk, nil)
	require.NoError(t, err)
	return provider, mock, clk
}

func TestUpsertInsertsNewRow(t *testing.T) {
	t.Parallel()

	provider, mock, _ := newTestProvider(t)
	const id = "0100000000010000"

	mock.ExpectQuery(`(?s)SELECT.+FROM games WHERE title_id`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO games").
		WithArgs(anyArgs(29)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := eshop.GameRecord{
		TitleID:    id,
		NameZhHant: "薩爾達傳說",
		Genre:      "ADV",
		DataSource: eshop.DataSourceScraper,
	}
	require.NoError(t, provider.Upsert(context.Background(), []eshop.GameRecord{rec}, false))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertMergesExistingRow(t *testing.T) {
	t.Parallel()

	provider, mock, clk := newTestProvider(t)
	const id = "0100000000010000"
	createdAt := clk.now.Add(-48 * time.Hour)

	mock.ExpectQuery(`(?s)SELECT.+FROM games WHERE title_id`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(gameColumns).AddRow(
			emptyRowValues(createdAt, map[string]any{
				"name_zh_hant": "A",
				"data_source":  eshop.DataSourceManual,
			})...,
		))

	// Fill-forward: the empty incoming name must not clobber "A", the new
	// genre must land, and the changed row takes the scraper origin tag.
	mock.ExpectExec("UPDATE games SET").
		WithArgs(
			pgxmock.AnyArg(), // nsuid
			pgxmock.AnyArg(), // formal_name
			"A",              // name_zh_hant preserved
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), // zh_hans, en, ja
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), // catch, desc, publisher_name
			pgxmock.AnyArg(), // publisher_id
			"RPG",            // genre
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), // release, hero, screenshots
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), // platform, languages, player_number
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), // play_styles, rom_size, rating_age
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), // rating_name, iap, cloud_backup
			pgxmock.AnyArg(),          // region
			eshop.DataSourceScraper,   // data_source moved with the change
			pgxmock.AnyArg(),          // notes
			clk.now,                   // updated_at
			id,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	rec := eshop.GameRecord{
		TitleID:    id,
		NameZhHant: "",
		Genre:      "RPG",
		DataSource: eshop.DataSourceScraper,
	}
	require.NoError(t, provider.Upsert(context.Background(), []eshop.GameRecord{rec}, false))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertForceRefreshOverwrites(t *testing.T) {
	t.Parallel()

	provider, mock, clk := newTestProvider(t)
	const id = "0100000000010000"

	mock.ExpectQuery(`(?s)SELECT.+FROM games WHERE title_id`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(gameColumns).AddRow(
			emptyRowValues(clk.now.Add(-time.Hour), map[string]any{
				"name_zh_hant": "A",
			})...,
		))

	mock.ExpectExec("UPDATE games SET").
		WithArgs(
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			nil, // name_zh_hant cleared: incoming is authoritative
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			"RPG",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			clk.now,
			id,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	rec := eshop.GameRecord{TitleID: id, Genre: "RPG", DataSource: eshop.DataSourceScraper}
	require.NoError(t, provider.Upsert(context.Background(), []eshop.GameRecord{rec}, true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatchIsolatesFailures(t *testing.T) {
	t.Parallel()

	provider, mock, _ := newTestProvider(t)

	mock.ExpectQuery(`(?s)SELECT.+FROM games WHERE title_id`).
		WithArgs("0100000000010000").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectQuery(`(?s)SELECT.+FROM games WHERE title_id`).
		WithArgs("0100000000020000").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO games").
		WithArgs(anyArgs(29)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	records := []eshop.GameRecord{
		{TitleID: "0100000000010000"},
		{TitleID: "0100000000020000"},
	}
	require.NoError(t, provider.Upsert(context.Background(), records, false),
		"one failure must not abort the batch")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAllFailedReturnsError(t *testing.T) {
	t.Parallel()

	provider, mock, _ := newTestProvider(t)

	mock.ExpectQuery(`(?s)SELECT.+FROM games WHERE title_id`).
		WithArgs("0100000000010000").
		WillReturnError(errors.New("connection reset"))

	err := provider.Upsert(context.Background(),
		[]eshop.GameRecord{{TitleID: "0100000000010000"}}, false)
	require.Error(t, err, "single-record calls must surface the outcome")
}

func TestTestConnection(t *testing.T) {
	t.Parallel()

	provider, mock, _ := newTestProvider(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM games`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(17)))
	require.True(t, provider.TestConnection(context.Background()))

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM games`).
		WillReturnError(errors.New("dial timeout"))
	require.False(t, provider.TestConnection(context.Background()))
}

func TestStats(t *testing.T) {
	t.Parallel()

	provider, mock, _ := newTestProvider(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM games`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(10)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM games WHERE data_source`).
		WithArgs(eshop.DataSourceScraper).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM games WHERE data_source`).
		WithArgs(eshop.DataSourceManual).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	stats, err := provider.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, Stats{Total: 10, Scraped: 7, Manual: 3}, stats)
}
