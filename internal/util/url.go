package util

import (
	"net/url"
	"regexp"
	"strings"
)

// dbaDomains lists hostnames treated as dba.dk for URL canonicalization.
var dbaDomains = []string{
	"dba.dk",
	"www.dba.dk",
}

func isDBADomain(host string) bool {
	for _, d := range dbaDomains {
		if host == d {
			return true
		}
	}
	return false
}

// The two URL shapes dba.dk uses for listing permalinks. The numeric ID in
// either shape identifies the item regardless of slug or query string.
var (
	classicListingIDRe    = regexp.MustCompile(`/id-(\d+)`)
	recommerceListingIDRe = regexp.MustCompile(`/recommerce/forsale/item/(\d+)`)
)

// ListingID extracts the marketplace-native listing identifier from a
// permalink. Falls back to the full URL when neither known shape matches,
// so deduplication still works on exact-URL equality.
func ListingID(rawURL string) string {
	if m := classicListingIDRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	if m := recommerceListingIDRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return rawURL
}

// IsListingURL reports whether input points at a single dba.dk listing
// rather than a search results page. Used to validate pinned-item targets.
func IsListingURL(input string) bool {
	parsed, err := url.Parse(input)
	if err != nil {
		return false
	}
	if !isDBADomain(parsed.Hostname()) {
		return false
	}
	return !strings.HasPrefix(parsed.Path, "/soeg") &&
		!strings.HasPrefix(parsed.Path, "/recommerce/forsale/search")
}

// NormalizeListingURL canonicalizes a dba.dk permalink: forces HTTPS, drops
// the www prefix, strips tracking parameters and any trailing slash. URLs on
// other hosts are returned untouched.
func NormalizeListingURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, err
	}
	if !isDBADomain(parsed.Hostname()) {
		return rawURL, nil
	}

	parsed.Scheme = "https"
	parsed.Host = strings.TrimPrefix(parsed.Host, "www.")
	if len(parsed.Path) > 1 && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = parsed.Path[:len(parsed.Path)-1]
		// Clear RawPath so String() regenerates the path without the slash
		parsed.RawPath = ""
	}

	queryParams := parsed.Query()
	trackingParams := []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "fbclid", "gclid"}
	for _, param := range trackingParams {
		if queryParams.Has(param) {
			queryParams.Del(param)
		}
	}
	parsed.RawQuery = queryParams.Encode()
	return parsed.String(), nil
}
