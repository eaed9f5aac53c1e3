package eshop

import (
	"slices"
	"time"
)

// Merge reconciles a freshly scraped record against the stored row for the
// same title and returns the row to write back. It performs no I/O.
//
// With forceRefresh false the policy is fill-forward: a non-empty incoming
// value replaces the stored one, an empty incoming value preserves it. A
// non-empty incoming list fully replaces the stored list, never appends.
//
// With forceRefresh true the incoming record is authoritative: strings and
// lists overwrite even when empty. Pointer-typed fields (numerics, booleans)
// follow presence in both modes: nil means the scraper did not report the
// field and the stored value survives, while an explicit zero overwrites.
//
// TitleID and CreatedAt always come from existing; UpdatedAt is stamped with
// now. DataSource only moves to the incoming origin when the merge actually
// changed a reconciled field.
func Merge(existing, incoming GameRecord, forceRefresh bool, now time.Time) GameRecord {
	merged := GameRecord{
		TitleID:   existing.TitleID,
		CreatedAt: existing.CreatedAt,
	}

	str := func(old, new string) string {
		if forceRefresh || new != "" {
			return new
		}
		return old
	}
	list := func(old, new []string) []string {
		if forceRefresh || len(new) > 0 {
			return new
		}
		return old
	}

	merged.NSUID = str(existing.NSUID, incoming.NSUID)
	merged.FormalName = str(existing.FormalName, incoming.FormalName)
	merged.NameZhHant = str(existing.NameZhHant, incoming.NameZhHant)
	merged.NameZhHans = str(existing.NameZhHans, incoming.NameZhHans)
	merged.NameEn = str(existing.NameEn, incoming.NameEn)
	merged.NameJa = str(existing.NameJa, incoming.NameJa)
	merged.CatchCopy = str(existing.CatchCopy, incoming.CatchCopy)
	merged.Description = str(existing.Description, incoming.Description)
	merged.PublisherName = str(existing.PublisherName, incoming.PublisherName)
	merged.Genre = str(existing.Genre, incoming.Genre)
	merged.ReleaseDate = str(existing.ReleaseDate, incoming.ReleaseDate)
	merged.HeroBannerURL = str(existing.HeroBannerURL, incoming.HeroBannerURL)
	merged.Platform = str(existing.Platform, incoming.Platform)
	merged.PlayerNumber = str(existing.PlayerNumber, incoming.PlayerNumber)
	merged.RatingName = str(existing.RatingName, incoming.RatingName)
	merged.CloudBackupType = str(existing.CloudBackupType, incoming.CloudBackupType)
	merged.Region = str(existing.Region, incoming.Region)
	merged.Notes = str(existing.Notes, incoming.Notes)

	merged.Screenshots = list(existing.Screenshots, incoming.Screenshots)
	merged.Languages = list(existing.Languages, incoming.Languages)
	merged.PlayStyles = list(existing.PlayStyles, incoming.PlayStyles)

	merged.PublisherID = coalesceInt64(existing.PublisherID, incoming.PublisherID)
	merged.RomSize = coalesceInt64(existing.RomSize, incoming.RomSize)
	merged.RatingAge = coalesceInt(existing.RatingAge, incoming.RatingAge)
	merged.InAppPurchase = coalesceBool(existing.InAppPurchase, incoming.InAppPurchase)

	merged.DataSource = existing.DataSource
	if changedFields(existing, merged) && incoming.DataSource != "" {
		merged.DataSource = incoming.DataSource
	}
	merged.UpdatedAt = now

	return merged
}

func coalesceInt64(old, new *int64) *int64 {
	if new != nil {
		return new
	}
	return old
}

func coalesceInt(old, new *int) *int {
	if new != nil {
		return new
	}
	return old
}

func coalesceBool(old, new *bool) *bool {
	if new != nil {
		return new
	}
	return old
}

// changedFields reports whether the merge altered any reconciled field,
// ignoring the audit columns.
func changedFields(existing, merged GameRecord) bool {
	a, b := existing, merged
	a.DataSource, b.DataSource = "", ""
	a.CreatedAt, b.CreatedAt = time.Time{}, time.Time{}
	a.UpdatedAt, b.UpdatedAt = time.Time{}, time.Time{}
	return !recordsEqual(a, b)
}

func recordsEqual(a, b GameRecord) bool {
	return a.TitleID == b.TitleID &&
		a.NSUID == b.NSUID &&
		a.FormalName == b.FormalName &&
		a.NameZhHant == b.NameZhHant &&
		a.NameZhHans == b.NameZhHans &&
		a.NameEn == b.NameEn &&
		a.NameJa == b.NameJa &&
		a.CatchCopy == b.CatchCopy &&
		a.Description == b.Description &&
		a.PublisherName == b.PublisherName &&
		int64PtrEqual(a.PublisherID, b.PublisherID) &&
		a.Genre == b.Genre &&
		a.ReleaseDate == b.ReleaseDate &&
		a.HeroBannerURL == b.HeroBannerURL &&
		slices.Equal(a.Screenshots, b.Screenshots) &&
		a.Platform == b.Platform &&
		slices.Equal(a.Languages, b.Languages) &&
		a.PlayerNumber == b.PlayerNumber &&
		slices.Equal(a.PlayStyles, b.PlayStyles) &&
		int64PtrEqual(a.RomSize, b.RomSize) &&
		intPtrEqual(a.RatingAge, b.RatingAge) &&
		a.RatingName == b.RatingName &&
		boolPtrEqual(a.InAppPurchase, b.InAppPurchase) &&
		a.CloudBackupType == b.CloudBackupType &&
		a.Region == b.Region &&
		a.Notes == b.Notes
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func boolPtrEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
