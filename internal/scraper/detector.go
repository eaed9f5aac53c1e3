package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Block pages are recognized by keywords rather than status codes: the
// storefront's edge serves them with 200.
var (
	titleBlockMarkers = []string{"access denied", "blocked"}
	bodyBlockMarkers  = []string{"access denied", "blocked", "captcha"}
)

// blockedDocument reports whether the parsed page is a block or captcha
// interstitial instead of a product page.
func blockedDocument(doc *goquery.Document) bool {
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	for _, marker := range titleBlockMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	body := strings.ToLower(doc.Find("body").Text())
	for _, marker := range bodyBlockMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

// metaContent returns the content attribute of <meta name="..."> or "".
func metaContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}
