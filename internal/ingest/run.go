// Package ingest runs the scheduled scrape cycle: for every active watch
// target it fetches current marketplace state, persists it, and notifies
// the owner about listings they have never been told about.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkjeldsen/dba-watcher/internal/models"
	"github.com/mkjeldsen/dba-watcher/internal/scraper"
	"github.com/mkjeldsen/dba-watcher/internal/util"
	"github.com/mkjeldsen/dba-watcher/internal/validator"
)

type Runner struct {
	store    Store
	notifier Notifier
	searcher scraper.Searcher
	validate *validator.Validator
	maxPages int
}

func New(store Store, n Notifier, s scraper.Searcher, maxPages int) *Runner {
	if maxPages < 1 {
		maxPages = 1
	}
	return &Runner{
		store:    store,
		notifier: n,
		searcher: s,
		validate: validator.New(),
		maxPages: maxPages,
	}
}

// Run executes one ingestion cycle. Targets are processed strictly one at
// a time, never concurrently against the marketplace. Every target gets
// an entry in the returned summary, failed ones included; a target's failure
// never aborts the rest of the run.
func (r *Runner) Run(ctx context.Context) ([]models.TargetResult, error) {
	targets, err := r.store.ActiveTargets(ctx)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		slog.Info("No active watch targets, nothing to do")
		return []models.TargetResult{}, nil
	}

	slog.Info("Starting ingestion run", "targets", len(targets))
	results := make([]models.TargetResult, 0, len(targets))

	for _, target := range targets {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		result := r.processTarget(ctx, target)
		if result.Error != "" {
			slog.Warn("Target failed", "target", target.ID, "label", target.Label(), "error", result.Error)
		} else {
			slog.Info("Target processed", "target", target.ID, "label", target.Label(),
				"fetched", result.Fetched, "upserted", result.Upserted, "notified", result.Notified)
		}
		results = append(results, result)
	}

	slog.Info("Ingestion run complete", "targets", len(results))
	return results, nil
}

func (r *Runner) processTarget(ctx context.Context, target models.WatchTarget) models.TargetResult {
	result := models.TargetResult{TargetID: target.ID, Query: target.Label()}

	listings, err := r.fetchTarget(ctx, target)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Fetched = len(listings)

	listings = r.prepare(target, listings)
	if len(listings) == 0 {
		return result
	}

	targetID := target.ID
	upserted, err := r.store.UpsertListings(ctx, &targetID, listings)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Upserted = upserted

	// Snapshots are appended even when the upsert changed nothing: the
	// history records every observation, not every change.
	if err := r.store.InsertSnapshots(ctx, &targetID, listings); err != nil {
		result.Error = err.Error()
		return result
	}

	result.Notified = r.notifyNew(ctx, target)
	return result
}

func (r *Runner) fetchTarget(ctx context.Context, target models.WatchTarget) ([]models.Listing, error) {
	if target.Kind == models.KindPinnedItem {
		if !util.IsListingURL(target.SourceURL) {
			return nil, fmt.Errorf("%q is not a dba.dk listing URL", target.SourceURL)
		}
		listing, err := r.searcher.FetchListing(ctx, target.SourceURL)
		if err != nil {
			return nil, err
		}
		return []models.Listing{*listing}, nil
	}
	return r.searcher.Search(ctx, target.Query, r.maxPages)
}

// prepare stamps scrape metadata, applies the target's price ceiling, and
// drops listings that fail structural validation.
func (r *Runner) prepare(target models.WatchTarget, listings []models.Listing) []models.Listing {
	now := time.Now().UTC()
	kept := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if target.MaxPrice != nil && l.Price != nil && *l.Price > *target.MaxPrice {
			continue
		}
		l.ScrapedAt = now
		if l.Source == "" {
			l.Source = models.SourceDBA
		}
		if err := r.validate.ValidateStruct(l); err != nil {
			slog.Warn("Dropping malformed listing", "url", l.URL, "error", err)
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

// notifyNew claims every never-notified listing for the target and attempts
// a single summary send. Claiming happens before the send: a listing gets
// at most one notification attempt, ever. A send failure is logged and the
// listings stay claimed, because retrying on the next run risks duplicate
// emails.
func (r *Runner) notifyNew(ctx context.Context, target models.WatchTarget) int {
	claimed, err := r.store.ClaimUnnotified(ctx, target.ID)
	if err != nil {
		slog.Warn("Failed to claim unnotified listings", "target", target.ID, "error", err)
		return 0
	}
	if len(claimed) == 0 {
		return 0
	}

	email, err := r.store.ContactEmail(ctx, target.UserID)
	if err != nil {
		slog.Warn("No contact address, skipping notification", "target", target.ID, "user", target.UserID, "error", err)
		return 0
	}

	if err := r.notifier.SendNewListings(ctx, email, target.Label(), claimed); err != nil {
		slog.Warn("Notification send failed", "target", target.ID, "count", len(claimed), "error", err)
		return 0
	}
	return len(claimed)
}
