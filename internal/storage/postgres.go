// Package storage persists watch targets, listings, and price snapshots
// in Postgres. The (url, watch_target_id) uniqueness constraint makes
// listing upserts idempotent, so overlapping ingestion runs are safe.
package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkjeldsen/dba-watcher/internal/models"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and verifies connectivity.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema applies the embedded schema. All statements are idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// ActiveTargets returns every watch target the ingestion run should visit.
func (s *Store) ActiveTargets(ctx context.Context) ([]models.WatchTarget, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, kind, query, source_url, max_price, active, created_at
		 FROM watch_targets
		 WHERE active = true
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("query watch_targets: %w", err)
	}
	defer rows.Close()

	var targets []models.WatchTarget
	for rows.Next() {
		var t models.WatchTarget
		var sourceURL *string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Kind, &t.Query, &sourceURL, &t.MaxPrice, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan watch_target: %w", err)
		}
		if sourceURL != nil {
			t.SourceURL = *sourceURL
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// UpsertListings writes listings for a target (nil for manual scrapes),
// refreshing title, price, and image on conflict. notified_at is never
// touched by the upsert; once set it stays set. Returns the number of
// rows written.
func (s *Store) UpsertListings(ctx context.Context, targetID *string, listings []models.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, l := range listings {
		batch.Queue(
			`INSERT INTO listings (id, watch_target_id, title, price, currency, url, image_url, location, source, scraped_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (url, watch_target_id) DO UPDATE SET
			     title      = EXCLUDED.title,
			     price      = EXCLUDED.price,
			     currency   = EXCLUDED.currency,
			     image_url  = EXCLUDED.image_url,
			     location   = EXCLUDED.location,
			     scraped_at = EXCLUDED.scraped_at`,
			uuid.NewString(), targetID, l.Title, l.Price, l.Currency, l.URL, l.ImageURL, l.Location, l.Source, l.ScrapedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	upserted := 0
	for range listings {
		tag, err := results.Exec()
		if err != nil {
			return upserted, fmt.Errorf("upsert listing: %w", translateError(err))
		}
		upserted += int(tag.RowsAffected())
	}
	return upserted, nil
}

// uniqueViolation is the Postgres error code for a unique constraint failure.
const uniqueViolation = "23505"

// translateError maps unique-violation failures onto ErrListingExists so
// callers can detect the collision with errors.Is instead of matching on
// driver error strings.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %w", models.ErrListingExists, err)
	}
	return err
}

// InsertSnapshots appends one immutable price observation per listing.
// Runs unconditionally on every scrape, changed or not: the snapshot table
// is the raw history, not a change log.
func (s *Store) InsertSnapshots(ctx context.Context, targetID *string, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, l := range listings {
		batch.Queue(
			`INSERT INTO price_snapshots (id, watch_target_id, url, title, price, currency, scraped_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.NewString(), targetID, l.URL, l.Title, l.Price, l.Currency, l.ScrapedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range listings {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert price snapshot: %w", err)
		}
	}
	return nil
}

// ClaimUnnotified atomically stamps notified_at on every unnotified listing
// of a target and returns the claimed rows. The conditional update is the
// claim step: of two overlapping runs, only one gets a given row back, so a
// listing triggers at most one notification attempt ever.
func (s *Store) ClaimUnnotified(ctx context.Context, targetID string) ([]models.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE listings
		 SET notified_at = $2
		 WHERE watch_target_id = $1 AND notified_at IS NULL
		 RETURNING id, watch_target_id, title, price, currency, url, image_url, location, source, scraped_at, notified_at`,
		targetID, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("claim unnotified listings: %w", err)
	}
	defer rows.Close()

	var claimed []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.ID, &l.TargetID, &l.Title, &l.Price, &l.Currency, &l.URL, &l.ImageURL, &l.Location, &l.Source, &l.ScrapedAt, &l.NotifiedAt); err != nil {
			return nil, fmt.Errorf("scan claimed listing: %w", err)
		}
		claimed = append(claimed, l)
	}
	return claimed, rows.Err()
}

// ContactEmail resolves the notification address for a target owner.
func (s *Store) ContactEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.pool.QueryRow(ctx,
		`SELECT email FROM profiles WHERE user_id = $1`, userID,
	).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("no contact address for user %s", userID)
	}
	if err != nil {
		return "", fmt.Errorf("query contact address: %w", err)
	}
	return email, nil
}
