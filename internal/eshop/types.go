// Package eshop defines core types shared across subsystems and the pure
// reconciliation logic applied when freshly scraped data meets stored data.
package eshop

import (
	"time"
)

// Region is the storefront region every record in this deployment belongs to.
const Region = "HK"

// Data source values persisted in the data_source column.
const (
	DataSourceScraper = "scraper"
	DataSourceManual  = "manual"
)

// GameRecord is the domain entity being scraped and stored. TitleID is the
// primary key and immutable once assigned.
//
// Scalar string fields use "" as absent. Numeric and boolean fields are
// pointers: nil means the scraper did not report the field at all, which is a
// different statement than reporting zero/false.
type GameRecord struct {
	TitleID         string    `json:"title_id"`
	NSUID           string    `json:"nsuid,omitempty"`
	FormalName      string    `json:"formal_name,omitempty"`
	NameZhHant      string    `json:"name_zh_hant,omitempty"`
	NameZhHans      string    `json:"name_zh_hans,omitempty"`
	NameEn          string    `json:"name_en,omitempty"`
	NameJa          string    `json:"name_ja,omitempty"`
	CatchCopy       string    `json:"catch_copy,omitempty"`
	Description     string    `json:"description,omitempty"`
	PublisherName   string    `json:"publisher_name,omitempty"`
	PublisherID     *int64    `json:"publisher_id,omitempty"`
	Genre           string    `json:"genre,omitempty"`
	ReleaseDate     string    `json:"release_date,omitempty"`
	HeroBannerURL   string    `json:"hero_banner_url,omitempty"`
	Screenshots     []string  `json:"screenshots,omitempty"`
	Platform        string    `json:"platform,omitempty"`
	Languages       []string  `json:"languages,omitempty"`
	PlayerNumber    string    `json:"player_number,omitempty"`
	PlayStyles      []string  `json:"play_styles,omitempty"`
	RomSize         *int64    `json:"rom_size,omitempty"`
	RatingAge       *int      `json:"rating_age,omitempty"`
	RatingName      string    `json:"rating_name,omitempty"`
	InAppPurchase   *bool     `json:"in_app_purchase,omitempty"`
	CloudBackupType string    `json:"cloud_backup_type,omitempty"`
	Region          string    `json:"region,omitempty"`
	DataSource      string    `json:"data_source,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// DisplayName returns the best human-readable name for log lines.
func (g GameRecord) DisplayName() string {
	switch {
	case g.NameZhHant != "":
		return g.NameZhHant
	case g.FormalName != "":
		return g.FormalName
	default:
		return g.TitleID
	}
}

// RomSizeInfo is one per-platform ROM size entry as reported by the
// storefront payload.
type RomSizeInfo struct {
	Platform     string `json:"platform"`
	TotalRomSize int64  `json:"total_rom_size"`
}
