package eshop

// Platform tags under which the storefront reports ROM sizes. Different
// distribution channels report under different tags, and zero sizes are
// placeholders rather than data.
const (
	platformBEE = "BEE"
	platformHAC = "HAC"
)

// SelectRomSize picks the ROM size from per-platform entries. Preference
// order: BEE with a positive size, then HAC with a positive size, then the
// first entry with any positive size. Returns false when no entry qualifies.
func SelectRomSize(infos []RomSizeInfo) (int64, bool) {
	for _, platform := range []string{platformBEE, platformHAC} {
		for _, info := range infos {
			if info.Platform == platform && info.TotalRomSize > 0 {
				return info.TotalRomSize, true
			}
		}
	}
	for _, info := range infos {
		if info.TotalRomSize > 0 {
			return info.TotalRomSize, true
		}
	}
	return 0, false
}
