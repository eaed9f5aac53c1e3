package scraper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nsgamedb/eshop-scraper/internal/eshop"
)

const samplePayload = `{
	"id": 70010000095550,
	"formal_name": "薩爾達傳說 王國之淚",
	"catch_copy": "廣闊的世界與天空",
	"description": "長篇冒險。",
	"genre": "冒險",
	"release_date_on_eshop": "2023-05-12",
	"hero_banner_url": "https://img.example/hero.jpg",
	"label_platform": "HAC",
	"cloud_backup_type": "supported",
	"in_app_purchase": false,
	"player_number": {"local_min": 1, "local_max": 1},
	"languages": [{"name": "中文"}, {"name": "日本語"}],
	"applications": [{"id": "0100f2c0115b6000"}],
	"publisher": {"id": 1, "name": "Nintendo"},
	"rating_info": {"rating": {"age": 12, "name": "12+"}},
	"screenshots": [
		{"images": [{"url": "https://img.example/s1.jpg"}]},
		{"images": []},
		{"images": [{"url": "https://img.example/s2.jpg"}]}
	],
	"play_styles": [{"name": "TV"}, {"name": "手提"}],
	"rom_size_infos": [
		{"platform": "HAC", "total_rom_size": 18000000000},
		{"platform": "BEE", "total_rom_size": 20000000000}
	]
}`

func TestBuildRecordFromPayload(t *testing.T) {
	t.Parallel()

	p, err := parsePayload([]byte(samplePayload))
	require.NoError(t, err)

	rec, err := buildRecord(p, "70010000095550", eshop.IDKindNSUID)
	require.NoError(t, err)

	require.Equal(t, "0100f2c0115b6000", rec.TitleID, "title id discovered from applications")
	require.Equal(t, "70010000095550", rec.NSUID)
	require.Equal(t, "薩爾達傳說 王國之淚", rec.FormalName)
	require.Equal(t, "薩爾達傳說 王國之淚", rec.NameZhHant)
	require.Equal(t, "Nintendo", rec.PublisherName)
	require.NotNil(t, rec.PublisherID)
	require.Equal(t, int64(1), *rec.PublisherID)
	require.Equal(t, []string{"https://img.example/s1.jpg", "https://img.example/s2.jpg"}, rec.Screenshots)
	require.Equal(t, []string{"TV", "手提"}, rec.PlayStyles)
	require.Equal(t, []string{"中文", "日本語"}, rec.Languages)
	require.Equal(t, `{"local_min":1,"local_max":1}`, rec.PlayerNumber)
	require.NotNil(t, rec.RomSize)
	require.Equal(t, int64(20000000000), *rec.RomSize, "BEE size wins over HAC")
	require.NotNil(t, rec.RatingAge)
	require.Equal(t, 12, *rec.RatingAge)
	require.Equal(t, "12+", rec.RatingName)
	require.NotNil(t, rec.InAppPurchase)
	require.False(t, *rec.InAppPurchase)
	require.Equal(t, eshop.Region, rec.Region)
	require.Equal(t, eshop.DataSourceScraper, rec.DataSource)
}

func TestBuildRecordTitleIDInputKeepsInputKey(t *testing.T) {
	t.Parallel()

	p, err := parsePayload([]byte(`{"formal_name": "Game", "id": 70010000000001}`))
	require.NoError(t, err)

	rec, err := buildRecord(p, "0100000000010000", eshop.IDKindTitle)
	require.NoError(t, err)
	require.Equal(t, "0100000000010000", rec.TitleID)
	require.Equal(t, "70010000000001", rec.NSUID, "nsuid picked up from the payload")
}

func TestBuildRecordNSUIDWithoutDiscoveryFails(t *testing.T) {
	t.Parallel()

	p, err := parsePayload([]byte(`{"formal_name": "Game"}`))
	require.NoError(t, err)

	_, err = buildRecord(p, "70010000095550", eshop.IDKindNSUID)
	require.ErrorIs(t, err, ErrTitleIDUnresolved)
}

func TestBuildRecordEmptyNameIsNotFound(t *testing.T) {
	t.Parallel()

	p, err := parsePayload([]byte(`{"id": 70010000095550}`))
	require.NoError(t, err)

	_, err = buildRecord(p, "0100000000010000", eshop.IDKindTitle)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBuildRecordLanguagesAsBareStrings(t *testing.T) {
	t.Parallel()

	p, err := parsePayload([]byte(`{"formal_name": "Game", "languages": ["zh-Hant", "ja"]}`))
	require.NoError(t, err)

	rec, err := buildRecord(p, "0100000000010000", eshop.IDKindTitle)
	require.NoError(t, err)
	require.Equal(t, []string{"zh-Hant", "ja"}, rec.Languages)
}

func TestMetaRecord(t *testing.T) {
	t.Parallel()

	rec, err := metaRecord("瑪利歐賽車8", "Nintendo", "0100000000010000", eshop.IDKindTitle)
	require.NoError(t, err)
	require.Equal(t, "瑪利歐賽車8", rec.NameZhHant)
	require.Equal(t, "Nintendo", rec.PublisherName)
	require.Equal(t, "0100000000010000", rec.TitleID)

	_, err = metaRecord("", "Nintendo", "0100000000010000", eshop.IDKindTitle)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = metaRecord("瑪利歐賽車8", "", "70010000095550", eshop.IDKindNSUID)
	require.ErrorIs(t, err, ErrTitleIDUnresolved)
}

func TestParsePayloadRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := parsePayload([]byte("<!doctype html>"))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotFound))
}
