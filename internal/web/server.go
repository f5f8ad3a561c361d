// Package web exposes the HTTP surface: the cron trigger, the manual
// on-demand search endpoint, and a health check.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/singleflight"

	"github.com/mkjeldsen/dba-watcher/internal/models"
	"github.com/mkjeldsen/dba-watcher/internal/query"
	"github.com/mkjeldsen/dba-watcher/internal/scraper"
)

// Runner abstracts the ingestion run for the cron trigger.
type Runner interface {
	Run(ctx context.Context) ([]models.TargetResult, error)
}

// Upserter is the slice of the storage layer the manual search endpoint
// needs: persisting one-off results under a NULL target.
type Upserter interface {
	UpsertListings(ctx context.Context, targetID *string, listings []models.Listing) (int, error)
}

type Server struct {
	runner     Runner
	searcher   scraper.Searcher
	store      Upserter
	cronSecret string
	maxPages   int
	searches   singleflight.Group
}

func New(runner Runner, searcher scraper.Searcher, store Upserter, cronSecret string, maxPages int) *Server {
	return &Server{
		runner:     runner,
		searcher:   searcher,
		store:      store,
		cronSecret: cronSecret,
		maxPages:   maxPages,
	}
}

// Routes builds the router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/cron/scrape", s.handleCronScrape)
	r.Post("/api/scrape", s.handleManualScrape)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCronScrape runs one full ingestion cycle, synchronously, and
// returns the per-target summary. Only the external scheduler knows the
// bearer secret; everyone else gets a 401.
func (s *Server) handleCronScrape(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	results, err := s.runner.Run(r.Context())
	if err != nil {
		slog.Error("Ingestion run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "results": results})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cronSecret == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cronSecret)) == 1
}

type manualScrapeRequest struct {
	Query string `json:"query"`
}

type manualScrapeResponse struct {
	Query    string           `json:"query"`
	Total    int              `json:"total_scraped"`
	Upserted int              `json:"upserted"`
	Listings []models.Listing `json:"listings"`
}

// handleManualScrape runs one orchestrated search for a free-text query and
// returns the listings directly. Results are also upserted without a target,
// so a later watchlist on the same query starts warm. Concurrent identical
// queries are collapsed into a single scrape.
func (s *Server) handleManualScrape(w http.ResponseWriter, r *http.Request) {
	var req manualScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter"})
		return
	}

	normalized := query.Normalize(req.Query)
	if normalized == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is empty after normalization"})
		return
	}

	// ScrapedAt is stamped inside the singleflight function: every collapsed
	// caller shares the returned slice, so it must be read-only afterwards.
	v, err, _ := s.searches.Do(normalized, func() (any, error) {
		listings, err := s.searcher.Search(r.Context(), req.Query, s.maxPages)
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		for i := range listings {
			listings[i].ScrapedAt = now
		}
		return listings, nil
	})
	if err != nil {
		status := http.StatusBadGateway
		var statusErr *scraper.StatusError
		if !errors.As(err, &statusErr) && r.Context().Err() != nil {
			status = http.StatusRequestTimeout
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	listings := v.([]models.Listing)

	upserted := 0
	if len(listings) > 0 {
		upserted, err = s.store.UpsertListings(r.Context(), nil, listings)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusOK, manualScrapeResponse{
		Query:    req.Query,
		Total:    len(listings),
		Upserted: upserted,
		Listings: listings,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
