package models

import (
	"errors"
	"time"
)

// Source tag stamped on every listing scraped from dba.dk.
const SourceDBA = "dba.dk"

// DefaultCurrency is used when a listing does not declare one.
const DefaultCurrency = "DKK"

// ErrListingExists is returned when an insert collides with the
// (url, watch_target_id) uniqueness constraint.
var ErrListingExists = errors.New("listing already exists")

// WatchTargetKind discriminates between standing search queries and
// pinned single listings.
type WatchTargetKind string

const (
	KindSearchQuery WatchTargetKind = "search-query"
	KindPinnedItem  WatchTargetKind = "pinned-item"
)

// WatchTarget is a user's standing interest: either a free-text search
// query or a single pinned dba.dk listing. Created by the user-facing
// API; the ingestion run only reads it.
type WatchTarget struct {
	ID        string          `validate:"required"`
	UserID    string          `validate:"required"`
	Kind      WatchTargetKind `validate:"required,oneof=search-query pinned-item"`
	Query     string          `validate:"required_if=Kind search-query"`
	SourceURL string          `validate:"required_if=Kind pinned-item,omitempty,url"`
	MaxPrice  *int            `validate:"omitempty,gte=0"`
	Active    bool
	CreatedAt time.Time
}

// Label returns the human-readable handle used in notifications and logs.
func (t WatchTarget) Label() string {
	if t.Kind == KindPinnedItem {
		return t.SourceURL
	}
	return t.Query
}

// Listing is one observed marketplace item. Uniqueness is (URL, TargetID);
// the same physical item under two targets is two rows. A nil TargetID marks
// a one-off manual search result.
type Listing struct {
	ID         string
	TargetID   *string
	Title      string `validate:"required"`
	Price      *int   `validate:"omitempty,gte=0"`
	Currency   string `validate:"required"`
	URL        string `validate:"required,url"`
	ImageURL   *string
	Location   *string
	Source     string `validate:"required"`
	ScrapedAt  time.Time
	NotifiedAt *time.Time
}

// PriceSnapshot is an immutable point-in-time observation of a listing's
// price and title. Append-only; written once per scrape, never updated.
type PriceSnapshot struct {
	ID        string
	TargetID  *string
	URL       string
	Title     string
	Price     *int
	Currency  string
	ScrapedAt time.Time
}

// TargetResult summarizes the outcome of one ingestion run for one target.
// Error and the counts are mutually exclusive in practice, but both are
// always serialized so callers see every target they asked about.
type TargetResult struct {
	TargetID string `json:"target_id"`
	Query    string `json:"query"`
	Fetched  int    `json:"fetched"`
	Upserted int    `json:"upserted"`
	Notified int    `json:"notified"`
	Error    string `json:"error,omitempty"`
}
