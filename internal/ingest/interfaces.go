package ingest

import (
	"context"

	"github.com/mkjeldsen/dba-watcher/internal/models"
)

// Store abstracts the durable layer the ingestion run writes to.
type Store interface {
	ActiveTargets(ctx context.Context) ([]models.WatchTarget, error)
	UpsertListings(ctx context.Context, targetID *string, listings []models.Listing) (int, error)
	InsertSnapshots(ctx context.Context, targetID *string, listings []models.Listing) error
	ClaimUnnotified(ctx context.Context, targetID string) ([]models.Listing, error)
	ContactEmail(ctx context.Context, userID string) (string, error)
}

// Notifier abstracts the notification layer. Sends are best-effort; the
// run logs failures and moves on.
type Notifier interface {
	SendNewListings(ctx context.Context, to, label string, listings []models.Listing) error
}
