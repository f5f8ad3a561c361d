package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/mkjeldsen/dba-watcher/internal/models"
	"github.com/mkjeldsen/dba-watcher/internal/query"
	"github.com/mkjeldsen/dba-watcher/internal/util"
)

const searchBaseURL = "https://www.dba.dk/soeg/"

// Searcher is the orchestration surface the ingestion run consumes.
type Searcher interface {
	Search(ctx context.Context, queryText string, maxPages int) ([]models.Listing, error)
	FetchListing(ctx context.Context, listingURL string) (*models.Listing, error)
}

// Orchestrator drives the fetcher and extractor across query variants and
// result pages. Fetches are strictly sequential with deliberate delays:
// dba.dk has no published rate limit, but parallel hammering gets the IP
// blocked.
type Orchestrator struct {
	fetcher      *Fetcher
	synonyms     *query.Synonyms
	pageDelay    time.Duration
	variantDelay time.Duration
	baseURL      string
}

// NewOrchestrator wires an Orchestrator. pageDelay separates page fetches
// within one variant; variantDelay separates variants.
func NewOrchestrator(fetcher *Fetcher, synonyms *query.Synonyms, pageDelay, variantDelay time.Duration) *Orchestrator {
	return &Orchestrator{
		fetcher:      fetcher,
		synonyms:     synonyms,
		pageDelay:    pageDelay,
		variantDelay: variantDelay,
		baseURL:      searchBaseURL,
	}
}

// Search fetches up to maxPages result pages for every variant of queryText
// and returns the merged, deduplicated listings. A variant that fails is
// skipped; Search fails only when every variant does.
func (o *Orchestrator) Search(ctx context.Context, queryText string, maxPages int) ([]models.Listing, error) {
	variants := query.Variants(queryText, o.synonyms)
	if len(variants) == 0 {
		return nil, fmt.Errorf("query %q is empty after normalization", queryText)
	}
	if maxPages < 1 {
		maxPages = 1
	}

	var merged []models.Listing
	var lastErr error
	failures := 0

	for i, variant := range variants {
		if i > 0 {
			if err := sleepCtx(ctx, o.variantDelay); err != nil {
				return nil, err
			}
		}

		listings, err := o.searchVariant(ctx, variant, maxPages)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Search variant failed, skipping", "variant", variant, "error", err)
			failures++
			lastErr = err
			continue
		}
		merged = append(merged, listings...)
	}

	if failures == len(variants) {
		return nil, fmt.Errorf("all %d query variants failed: %w", len(variants), lastErr)
	}

	canonicalizeURLs(merged)
	deduped := dedupeByListingID(merged)
	slog.Info("Search complete", "query", queryText, "variants", len(variants), "merged", len(merged), "unique", len(deduped))
	return deduped, nil
}

// canonicalizeURLs rewrites every listing permalink to its canonical form,
// so the same item scraped with different tracking parameters or a trailing
// slash maps onto one stored row.
func canonicalizeURLs(listings []models.Listing) {
	for i := range listings {
		if canonical, err := util.NormalizeListingURL(listings[i].URL); err == nil {
			listings[i].URL = canonical
		}
	}
}

// searchVariant pages through results for one variant, stopping at maxPages
// or the first empty page, whichever comes first.
func (o *Orchestrator) searchVariant(ctx context.Context, variant string, maxPages int) ([]models.Listing, error) {
	var all []models.Listing

	for page := 1; page <= maxPages; page++ {
		if page > 1 {
			if err := sleepCtx(ctx, o.pageDelay); err != nil {
				return nil, err
			}
		}

		doc, err := o.fetcher.Get(ctx, searchPageURL(o.baseURL, variant, page))
		if err != nil {
			// A mid-pagination failure still fails the variant: partial
			// results would skew the new/changed detection downstream.
			return nil, err
		}

		listings := ParseSearchPage(doc)
		if len(listings) == 0 {
			break // results exhausted, don't waste requests on further pages
		}
		all = append(all, listings...)
	}

	return all, nil
}

// FetchListing fetches and extracts a single pinned listing page. The
// returned listing carries the canonical permalink, not the URL as given.
func (o *Orchestrator) FetchListing(ctx context.Context, listingURL string) (*models.Listing, error) {
	doc, err := o.fetcher.Get(ctx, listingURL)
	if err != nil {
		return nil, err
	}
	listing, err := ParseListingPage(doc, listingURL)
	if err != nil {
		return nil, err
	}
	if canonical, err := util.NormalizeListingURL(listing.URL); err == nil {
		listing.URL = canonical
	}
	return listing, nil
}

func searchPageURL(baseURL, variant string, page int) string {
	params := url.Values{}
	params.Set("soeg", variant)
	if page > 1 {
		params.Set("side", fmt.Sprintf("%d", page))
	}
	return baseURL + "?" + params.Encode()
}

// dedupeByListingID drops listings whose marketplace ID was already seen.
// First occurrence in merge order wins.
func dedupeByListingID(listings []models.Listing) []models.Listing {
	seen := make(map[string]bool, len(listings))
	deduped := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		id := util.ListingID(l.URL)
		if seen[id] {
			continue
		}
		seen[id] = true
		deduped = append(deduped, l)
	}
	return deduped
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
