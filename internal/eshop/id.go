package eshop

import (
	"fmt"
	"regexp"
)

// IDKind classifies the external identifier a queue item is keyed by.
type IDKind string

// Identifier kinds accepted by the scraper.
const (
	// IDKindTitle is the 16-character hex title ID, e.g. 0100f43008c44000.
	IDKindTitle IDKind = "titleId"
	// IDKindNSUID is the 14-digit storefront ID, e.g. 70010000095550.
	IDKindNSUID IDKind = "nsuid"
)

var (
	titleIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{16}$`)
	nsuidPattern   = regexp.MustCompile(`^[0-9]{14}$`)
)

// ClassifyID determines whether id is a title ID or an NSUID.
func ClassifyID(id string) (IDKind, error) {
	switch {
	case titleIDPattern.MatchString(id):
		return IDKindTitle, nil
	case nsuidPattern.MatchString(id):
		return IDKindNSUID, nil
	default:
		return "", fmt.Errorf("invalid game id format: %q", id)
	}
}

// StorefrontURL builds the product page URL for the given identifier.
// The two kinds are served from different URL schemes on the storefront.
func StorefrontURL(id string, kind IDKind) string {
	if kind == IDKindNSUID {
		return fmt.Sprintf("https://ec.nintendo.com/%s/zh/titles/%s", Region, id)
	}
	return fmt.Sprintf("https://ec.nintendo.com/apps/%s/%s", id, Region)
}
