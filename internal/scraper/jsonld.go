package scraper

import "encoding/json"

// jsonLDEnvelope carries just enough of any ld+json block to dispatch on
// its @type before a full decode.
type jsonLDEnvelope struct {
	Type string `json:"@type"`
}

// jsonLDCollectionPage represents the CollectionPage block dba.dk embeds
// on search-results pages. All listing data lives in mainEntity.
type jsonLDCollectionPage struct {
	Type       string `json:"@type"` // "CollectionPage"
	MainEntity struct {
		ItemListElement []struct {
			Item jsonLDProduct `json:"item"`
		} `json:"itemListElement"`
	} `json:"mainEntity"`
}

// jsonLDProduct represents a Product block, either nested in a search page's
// item list or standing alone on a listing page.
type jsonLDProduct struct {
	Type   string          `json:"@type"` // "Product"
	Name   string          `json:"name"`
	URL    string          `json:"url"`
	Image  json.RawMessage `json:"image"` // string or array of strings
	Offers jsonLDOffer     `json:"offers"`
}

type jsonLDOffer struct {
	Price         json.RawMessage `json:"price"` // string or number
	PriceCurrency string          `json:"priceCurrency"`
}

// firstImage resolves the image field, which dba.dk serves either as a
// single URL or as an array.
func (p *jsonLDProduct) firstImage() string {
	if len(p.Image) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(p.Image, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(p.Image, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

// rawPrice resolves the offer price field to its string form, which may be
// a JSON string or a bare number.
func (o *jsonLDOffer) rawPrice() string {
	if len(o.Price) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(o.Price, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(o.Price, &n); err == nil {
		return n.String()
	}
	return ""
}
