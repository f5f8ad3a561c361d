package storage

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mkjeldsen/dba-watcher/internal/models"
)

func TestTranslateError_UniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           uniqueViolation,
		ConstraintName: "listings_url_target_key",
	}

	err := translateError(pgErr)
	if !errors.Is(err, models.ErrListingExists) {
		t.Fatalf("translateError(23505) = %v, want ErrListingExists", err)
	}
	if !errors.As(err, &pgErr) || pgErr.ConstraintName != "listings_url_target_key" {
		t.Errorf("constraint name lost in translation: %v", err)
	}
}

func TestTranslateError_PassesThroughOtherErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"plain error", errors.New("connection reset")},
		{"other pg error", &pgconn.PgError{Code: "57014"}}, // query_canceled
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err)
			if errors.Is(got, models.ErrListingExists) {
				t.Errorf("translateError(%v) wrongly mapped to ErrListingExists", tt.err)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("translateError(%v) = %v, want the original error", tt.err, got)
			}
		})
	}
}
