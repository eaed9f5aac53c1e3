package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nsgamedb/eshop-scraper/internal/clock"
	"github.com/nsgamedb/eshop-scraper/internal/eshop"
)

// pgxPool is the subset of pgxpool.Pool the provider needs. Satisfied by
// pgxmock in tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresConfig controls the Postgres connection pool.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// PostgresProvider implements Provider on a pgx connection pool. The games
// table is expected to pre-exist; there are no migration concerns here.
type PostgresProvider struct {
	pool   pgxPool
	clock  clock.Clock
	logger *zap.Logger
}

// NewPostgresProvider connects a pool using the provided config.
func NewPostgresProvider(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*PostgresProvider, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return newProvider(pool, nil, logger), nil
}

// NewPostgresProviderWithPool constructs a provider from an existing pool
// (primarily for testing).
func NewPostgresProviderWithPool(pool pgxPool, clk clock.Clock, logger *zap.Logger) (*PostgresProvider, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return newProvider(pool, clk, logger), nil
}

func newProvider(pool pgxPool, clk clock.Clock, logger *zap.Logger) *PostgresProvider {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresProvider{pool: pool, clock: clk, logger: logger}
}

// Close releases the pool.
func (p *PostgresProvider) Close() {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
}

const selectGameQuery = `
SELECT nsuid, formal_name, name_zh_hant, name_zh_hans, name_en, name_ja,
	catch_copy, description, publisher_name, publisher_id, genre,
	release_date, hero_banner_url, screenshots, platform, languages,
	player_number, play_styles, rom_size, rating_age, rating_name,
	in_app_purchase, cloud_backup_type, region, data_source, notes,
	created_at
FROM games WHERE title_id = $1`

const insertGameQuery = `
INSERT INTO games (
	title_id, nsuid, formal_name, name_zh_hant, name_zh_hans, name_en,
	name_ja, catch_copy, description, publisher_name, publisher_id, genre,
	release_date, hero_banner_url, screenshots, platform, languages,
	player_number, play_styles, rom_size, rating_age, rating_name,
	in_app_purchase, cloud_backup_type, region, data_source, notes,
	created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,
	$20,$21,$22,$23,$24,$25,$26,$27,$28,$29
)`

const updateGameQuery = `
UPDATE games SET
	nsuid = $1, formal_name = $2, name_zh_hant = $3, name_zh_hans = $4,
	name_en = $5, name_ja = $6, catch_copy = $7, description = $8,
	publisher_name = $9, publisher_id = $10, genre = $11,
	release_date = $12, hero_banner_url = $13, screenshots = $14,
	platform = $15, languages = $16, player_number = $17,
	play_styles = $18, rom_size = $19, rating_age = $20,
	rating_name = $21, in_app_purchase = $22, cloud_backup_type = $23,
	region = $24, data_source = $25, notes = $26, updated_at = $27
WHERE title_id = $28`

// Upsert writes records one at a time. A failed record is logged and the
// batch continues; the call errors only when nothing succeeded.
func (p *PostgresProvider) Upsert(ctx context.Context, records []eshop.GameRecord, forceRefresh bool) error {
	if len(records) == 0 {
		return nil
	}

	var failed int
	var lastErr error
	for _, rec := range records {
		if err := p.upsertOne(ctx, rec, forceRefresh); err != nil {
			failed++
			lastErr = err
			p.logger.Error("upsert record failed",
				zap.String("title_id", rec.TitleID),
				zap.Error(err),
			)
			continue
		}
		p.logger.Info("record stored",
			zap.String("title_id", rec.TitleID),
			zap.String("name", rec.DisplayName()),
		)
	}
	if failed == len(records) {
		return fmt.Errorf("all %d records failed: %w", failed, lastErr)
	}
	return nil
}

func (p *PostgresProvider) upsertOne(ctx context.Context, rec eshop.GameRecord, forceRefresh bool) error {
	if rec.TitleID == "" {
		return fmt.Errorf("record title id is required")
	}

	existing, found, err := p.lookup(ctx, rec.TitleID)
	if err != nil {
		return err
	}

	now := p.clock.Now()
	if !found {
		rec.CreatedAt = now
		rec.UpdatedAt = now
		if rec.Region == "" {
			rec.Region = eshop.Region
		}
		if rec.DataSource == "" {
			rec.DataSource = eshop.DataSourceScraper
		}
		args := append([]any{rec.TitleID}, recordArgs(rec)...)
		args = append(args, rec.CreatedAt, rec.UpdatedAt)
		if _, err := p.pool.Exec(ctx, insertGameQuery, args...); err != nil {
			return fmt.Errorf("insert game %s: %w", rec.TitleID, err)
		}
		return nil
	}

	merged := eshop.Merge(existing, rec, forceRefresh, now)
	args := append(recordArgs(merged), merged.UpdatedAt, merged.TitleID)
	if _, err := p.pool.Exec(ctx, updateGameQuery, args...); err != nil {
		return fmt.Errorf("update game %s: %w", merged.TitleID, err)
	}
	return nil
}

// lookup fetches the stored row for titleID, reporting found=false when the
// row does not exist.
func (p *PostgresProvider) lookup(ctx context.Context, titleID string) (eshop.GameRecord, bool, error) {
	var (
		nsuid, formalName, nameZhHant, nameZhHans   sql.NullString
		nameEn, nameJa, catchCopy, description      sql.NullString
		publisherName, genre, releaseDate           sql.NullString
		heroBannerURL, screenshots, platform        sql.NullString
		languages, playerNumber, playStyles         sql.NullString
		ratingName, cloudBackupType, region         sql.NullString
		dataSource, notes                           sql.NullString
		publisherID, romSize, ratingAge             sql.NullInt64
		inAppPurchase                               sql.NullBool
		createdAt                                   time.Time
	)

	err := p.pool.QueryRow(ctx, selectGameQuery, titleID).Scan(
		&nsuid, &formalName, &nameZhHant, &nameZhHans, &nameEn, &nameJa,
		&catchCopy, &description, &publisherName, &publisherID, &genre,
		&releaseDate, &heroBannerURL, &screenshots, &platform, &languages,
		&playerNumber, &playStyles, &romSize, &ratingAge, &ratingName,
		&inAppPurchase, &cloudBackupType, &region, &dataSource, &notes,
		&createdAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return eshop.GameRecord{}, false, nil
	}
	if err != nil {
		return eshop.GameRecord{}, false, fmt.Errorf("lookup game %s: %w", titleID, err)
	}

	rec := eshop.GameRecord{
		TitleID:         titleID,
		NSUID:           nsuid.String,
		FormalName:      formalName.String,
		NameZhHant:      nameZhHant.String,
		NameZhHans:      nameZhHans.String,
		NameEn:          nameEn.String,
		NameJa:          nameJa.String,
		CatchCopy:       catchCopy.String,
		Description:     description.String,
		PublisherName:   publisherName.String,
		Genre:           genre.String,
		ReleaseDate:     releaseDate.String,
		HeroBannerURL:   heroBannerURL.String,
		Screenshots:     decodeList(screenshots),
		Platform:        platform.String,
		Languages:       decodeList(languages),
		PlayerNumber:    playerNumber.String,
		PlayStyles:      decodeList(playStyles),
		RatingName:      ratingName.String,
		CloudBackupType: cloudBackupType.String,
		Region:          region.String,
		DataSource:      dataSource.String,
		Notes:           notes.String,
		CreatedAt:       createdAt,
	}
	if publisherID.Valid {
		v := publisherID.Int64
		rec.PublisherID = &v
	}
	if romSize.Valid {
		v := romSize.Int64
		rec.RomSize = &v
	}
	if ratingAge.Valid {
		v := int(ratingAge.Int64)
		rec.RatingAge = &v
	}
	if inAppPurchase.Valid {
		v := inAppPurchase.Bool
		rec.InAppPurchase = &v
	}
	return rec, true, nil
}

// recordArgs returns the 26 reconciled column values in query order,
// excluding title_id and the audit timestamps.
func recordArgs(rec eshop.GameRecord) []any {
	return []any{
		nullIfEmpty(rec.NSUID),
		nullIfEmpty(rec.FormalName),
		nullIfEmpty(rec.NameZhHant),
		nullIfEmpty(rec.NameZhHans),
		nullIfEmpty(rec.NameEn),
		nullIfEmpty(rec.NameJa),
		nullIfEmpty(rec.CatchCopy),
		nullIfEmpty(rec.Description),
		nullIfEmpty(rec.PublisherName),
		rec.PublisherID,
		nullIfEmpty(rec.Genre),
		nullIfEmpty(rec.ReleaseDate),
		nullIfEmpty(rec.HeroBannerURL),
		encodeList(rec.Screenshots),
		nullIfEmpty(rec.Platform),
		encodeList(rec.Languages),
		nullIfEmpty(rec.PlayerNumber),
		encodeList(rec.PlayStyles),
		rec.RomSize,
		rec.RatingAge,
		nullIfEmpty(rec.RatingName),
		rec.InAppPurchase,
		nullIfEmpty(rec.CloudBackupType),
		nullIfEmpty(rec.Region),
		nullIfEmpty(rec.DataSource),
		nullIfEmpty(rec.Notes),
	}
}

// TestConnection executes a trivial count query and reports the result.
func (p *PostgresProvider) TestConnection(ctx context.Context) bool {
	var count int64
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM games").Scan(&count); err != nil {
		p.logger.Warn("database connection test failed", zap.Error(err))
		return false
	}
	p.logger.Info("database reachable", zap.Int64("games", count))
	return true
}

// Stats counts stored rows by data source.
func (p *PostgresProvider) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	queries := []struct {
		sql  string
		args []any
		dst  *int64
	}{
		{"SELECT COUNT(*) FROM games", nil, &stats.Total},
		{"SELECT COUNT(*) FROM games WHERE data_source = $1", []any{eshop.DataSourceScraper}, &stats.Scraped},
		{"SELECT COUNT(*) FROM games WHERE data_source = $1", []any{eshop.DataSourceManual}, &stats.Manual},
	}
	for _, q := range queries {
		if err := p.pool.QueryRow(ctx, q.sql, q.args...).Scan(q.dst); err != nil {
			return Stats{}, fmt.Errorf("count games: %w", err)
		}
	}
	return stats, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func encodeList(list []string) any {
	if len(list) == 0 {
		return nil
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return nil
	}
	return string(raw)
}

func decodeList(col sql.NullString) []string {
	if !col.Valid || col.String == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(col.String), &list); err != nil {
		return nil
	}
	return list
}
