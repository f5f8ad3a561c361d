// Package scraper fetches and parses dba.dk search-results and listing
// pages, and orchestrates multi-variant, multi-page searches.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	// A realistic browser identity; dba.dk serves a degraded page (and
	// eventually blocks) plain Go user agents.
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	acceptLanguage = "da-DK,da;q=0.9"
)

// StatusError is the failure kind for non-2xx responses. Transport errors
// (DNS, timeout, reset) surface as ordinary wrapped errors instead.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dba.dk fetch failed: %s (%s)", e.Status, e.URL)
}

// Fetcher issues single outbound GETs against dba.dk. Every call hits the
// network, responses are never cached, and non-2xx responses are failures.
// There is no retry here; retry policy lives in the orchestrator, which moves
// on to the next query variant rather than re-hitting the same URL.
type Fetcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewFetcher creates a Fetcher whose outbound requests are spaced at least
// minInterval apart, on top of whatever delays callers add between pages.
func NewFetcher(timeout, minInterval time.Duration) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Get fetches urlStr and parses the response body into a document.
func (f *Fetcher) Get(ctx context.Context, urlStr string) (*goquery.Document, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %s: %w", urlStr, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme %s: only http and https allowed", parsedURL.Scheme)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for URL %s: %w", urlStr, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Cache-Control", "no-cache")

	res, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", urlStr, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{StatusCode: res.StatusCode, Status: res.Status, URL: urlStr}
	}

	return goquery.NewDocumentFromReader(res.Body)
}
