package scraper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mkjeldsen/dba-watcher/internal/models"
	"github.com/mkjeldsen/dba-watcher/internal/util"
)

const jsonLDSelector = `script[type="application/ld+json"]`

// ParseSearchPage extracts listings from a dba.dk search-results page.
// dba.dk embeds all listing data in a JSON-LD CollectionPage block; a page
// with no such block, or one with an empty item list, yields an empty slice.
// That is the normal "no results" signal, not an error.
func ParseSearchPage(doc *goquery.Document) []models.Listing {
	var collection *jsonLDCollectionPage

	doc.Find(jsonLDSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := s.Text()
		var envelope jsonLDEnvelope
		if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
			return true // skip malformed scripts
		}
		if envelope.Type != "CollectionPage" {
			return true
		}
		var page jsonLDCollectionPage
		if err := json.Unmarshal([]byte(raw), &page); err != nil {
			return true
		}
		collection = &page
		return false
	})

	if collection == nil {
		return nil
	}

	var listings []models.Listing
	for _, entry := range collection.MainEntity.ItemListElement {
		product := entry.Item
		if product.URL == "" || product.Name == "" {
			continue
		}

		currency := product.Offers.PriceCurrency
		if currency == "" {
			currency = models.DefaultCurrency
		}

		listings = append(listings, models.Listing{
			Title:    product.Name,
			Price:    util.ParsePrice(product.Offers.rawPrice()),
			Currency: currency,
			URL:      product.URL,
			ImageURL: optional(product.firstImage()),
			Location: nil, // not present in the JSON-LD
			Source:   models.SourceDBA,
		})
	}
	return listings
}

// ParseListingPage extracts exactly one listing from a dba.dk item page.
// The JSON-LD Product block is the primary source; when it is missing the
// OpenGraph meta tags (always present on dba.dk pages) are the fallback.
// Fails only when neither strategy recovers a title.
func ParseListingPage(doc *goquery.Document, pageURL string) (*models.Listing, error) {
	var product *jsonLDProduct

	doc.Find(jsonLDSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := s.Text()
		var envelope jsonLDEnvelope
		if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
			return true
		}
		if envelope.Type != "Product" {
			return true
		}
		var p jsonLDProduct
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return true
		}
		product = &p
		return false
	})

	if product != nil && product.Name != "" {
		currency := product.Offers.PriceCurrency
		if currency == "" {
			currency = models.DefaultCurrency
		}
		return &models.Listing{
			Title:    product.Name,
			Price:    util.ParsePrice(product.Offers.rawPrice()),
			Currency: currency,
			URL:      pageURL,
			ImageURL: optional(product.firstImage()),
			Location: nil,
			Source:   models.SourceDBA,
		}, nil
	}

	title := strings.TrimSpace(metaContent(doc, `meta[property="og:title"]`))
	if title == "" {
		return nil, fmt.Errorf("no listing data found on %s: neither JSON-LD product nor og:title present", pageURL)
	}

	return &models.Listing{
		Title:    title,
		Price:    util.ParsePrice(metaContent(doc, `meta[property="product:price:amount"]`)),
		Currency: models.DefaultCurrency,
		URL:      pageURL,
		ImageURL: optional(metaContent(doc, `meta[property="og:image"]`)),
		Location: nil,
		Source:   models.SourceDBA,
	}, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return content
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
