package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkjeldsen/dba-watcher/internal/models"
)

type stubRunner struct {
	results []models.TargetResult
	err     error
	calls   int
}

func (s *stubRunner) Run(_ context.Context) ([]models.TargetResult, error) {
	s.calls++
	return s.results, s.err
}

type stubSearcher struct {
	listings []models.Listing
	err      error
	calls    atomic.Int32
	release  chan struct{} // when non-nil, Search blocks until closed
}

func (s *stubSearcher) Search(_ context.Context, _ string, _ int) ([]models.Listing, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	return s.listings, s.err
}

func (s *stubSearcher) FetchListing(_ context.Context, _ string) (*models.Listing, error) {
	return nil, errors.New("not implemented")
}

type stubUpserter struct {
	upserted  int
	err       error
	gotTarget *string
	targetSet bool
}

func (s *stubUpserter) UpsertListings(_ context.Context, targetID *string, listings []models.Listing) (int, error) {
	s.gotTarget = targetID
	s.targetSet = true
	if s.err != nil {
		return 0, s.err
	}
	s.upserted = len(listings)
	return len(listings), nil
}

func newTestServer(runner *stubRunner, searcher *stubSearcher, store *stubUpserter) *Server {
	return New(runner, searcher, store, "topsecret", 3)
}

func TestCronScrape_RejectsMissingAndWrongToken(t *testing.T) {
	runner := &stubRunner{}
	srv := newTestServer(runner, &stubSearcher{}, &stubUpserter{})
	router := srv.Routes()

	tests := []struct {
		name string
		auth string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic topsecret"},
		{"wrong token", "Bearer letmein"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cron/scrape", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
	if runner.calls != 0 {
		t.Errorf("unauthorized requests must not trigger a run, got %d", runner.calls)
	}
}

func TestCronScrape_EmptySecretRejectsEverything(t *testing.T) {
	srv := New(&stubRunner{}, &stubSearcher{}, &stubUpserter{}, "", 3)
	req := httptest.NewRequest(http.MethodGet, "/api/cron/scrape", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 when no secret is configured", rec.Code)
	}
}

func TestCronScrape_RunsAndReturnsSummary(t *testing.T) {
	runner := &stubRunner{results: []models.TargetResult{
		{TargetID: "t-1", Query: "re-201", Fetched: 5, Upserted: 2, Notified: 2},
		{TargetID: "t-2", Query: "mac mini", Error: "all 2 query variants failed"},
	}}
	srv := newTestServer(runner, &stubSearcher{}, &stubUpserter{})

	req := httptest.NewRequest(http.MethodGet, "/api/cron/scrape", nil)
	req.Header.Set("Authorization", "Bearer topsecret")
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		OK      bool                  `json:"ok"`
		Results []models.TargetResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if !body.OK || len(body.Results) != 2 {
		t.Errorf("body = %+v", body)
	}
	if body.Results[1].Error == "" {
		t.Error("failed target's error must survive serialization")
	}
}

func TestCronScrape_RunErrorIs500(t *testing.T) {
	runner := &stubRunner{err: errors.New("database unreachable")}
	srv := newTestServer(runner, &stubSearcher{}, &stubUpserter{})

	req := httptest.NewRequest(http.MethodGet, "/api/cron/scrape", nil)
	req.Header.Set("Authorization", "Bearer topsecret")
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestManualScrape_ReturnsAndPersistsResults(t *testing.T) {
	price := 4200
	searcher := &stubSearcher{listings: []models.Listing{
		{Title: "Mac Mini", Price: &price, Currency: "DKK",
			URL: "https://www.dba.dk/mac-mini/id-7/", Source: models.SourceDBA},
	}}
	store := &stubUpserter{}
	srv := newTestServer(&stubRunner{}, searcher, store)

	body := bytes.NewBufferString(`{"query":"Mac Mini"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/scrape", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rec.Code, rec.Body.String())
	}
	var resp manualScrapeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if resp.Total != 1 || resp.Upserted != 1 || len(resp.Listings) != 1 {
		t.Errorf("response = %+v", resp)
	}
	if resp.Listings[0].ScrapedAt.IsZero() {
		t.Error("listings must be stamped before they are returned")
	}
	if !store.targetSet || store.gotTarget != nil {
		t.Error("manual results must be stored without a watch target")
	}
}

func TestManualScrape_BadRequests(t *testing.T) {
	srv := newTestServer(&stubRunner{}, &stubSearcher{}, &stubUpserter{})
	router := srv.Routes()

	for _, body := range []string{``, `{}`, `{"query":"   "}`, `not json`, `{"query":"!!!"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/scrape", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestManualScrape_SearchFailureIs502(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("all 1 query variants failed")}
	srv := newTestServer(&stubRunner{}, searcher, &stubUpserter{})

	req := httptest.NewRequest(http.MethodPost, "/api/scrape",
		bytes.NewBufferString(`{"query":"re-201"}`))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestManualScrape_EmptyResultSkipsStore(t *testing.T) {
	store := &stubUpserter{}
	srv := newTestServer(&stubRunner{}, &stubSearcher{}, store)

	req := httptest.NewRequest(http.MethodPost, "/api/scrape",
		bytes.NewBufferString(`{"query":"nonexistent thing"}`))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.targetSet {
		t.Error("no upsert should happen for an empty result set")
	}
}

func TestManualScrape_ConcurrentIdenticalQueriesCollapse(t *testing.T) {
	price := 8000
	searcher := &stubSearcher{
		release: make(chan struct{}),
		listings: []models.Listing{
			{Title: "Roland RE-201", Price: &price, Currency: "DKK",
				URL: "https://www.dba.dk/roland/id-1/", Source: models.SourceDBA},
		},
	}
	srv := newTestServer(&stubRunner{}, searcher, &stubUpserter{})
	router := srv.Routes()

	var mu sync.Mutex
	var responses []manualScrapeResponse

	do := func(wg *sync.WaitGroup) {
		defer wg.Done()
		req := httptest.NewRequest(http.MethodPost, "/api/scrape",
			bytes.NewBufferString(`{"query":"Roland RE-201"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		var resp manualScrapeResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Errorf("bad JSON: %v", err)
			return
		}
		mu.Lock()
		responses = append(responses, resp)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go do(&wg)
	// Wait for the first request to be inside the scrape before piling on.
	for searcher.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	for range 3 {
		wg.Add(1)
		go do(&wg)
	}
	// Give followers time to join the in-flight scrape.
	time.Sleep(50 * time.Millisecond)
	close(searcher.release)
	wg.Wait()

	if got := searcher.calls.Load(); got != 1 {
		t.Errorf("identical in-flight queries made %d scrapes, want 1", got)
	}
	// Every collapsed caller sees the same shared result; handlers must only
	// read it. The race detector flags this test if one mutates it.
	for _, resp := range responses {
		if len(resp.Listings) != 1 {
			t.Fatalf("response = %+v, want 1 listing", resp)
		}
		if resp.Listings[0].ScrapedAt.IsZero() {
			t.Error("shared result must be stamped before it is handed out")
		}
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubRunner{}, &stubSearcher{}, &stubUpserter{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
