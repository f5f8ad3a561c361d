package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkjeldsen/dba-watcher/internal/config"
	"github.com/mkjeldsen/dba-watcher/internal/ingest"
	"github.com/mkjeldsen/dba-watcher/internal/notifier"
	"github.com/mkjeldsen/dba-watcher/internal/query"
	"github.com/mkjeldsen/dba-watcher/internal/scheduler"
	"github.com/mkjeldsen/dba-watcher/internal/scraper"
	"github.com/mkjeldsen/dba-watcher/internal/storage"
	"github.com/mkjeldsen/dba-watcher/internal/web"
)

func main() {
	slog.Info("Starting dba-watcher server...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := storage.New(ctx, cfg.Database.URL)
	if err != nil {
		slog.Error("Critical error connecting to Postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("Critical error applying schema", "error", err)
		os.Exit(1)
	}

	synonyms := query.LoadSynonyms()
	slog.Info("Synonym table loaded", "entries", synonyms.Len())

	fetcher := scraper.NewFetcher(cfg.Scrape.FetchTimeout, cfg.Scrape.MinRequestInterval)
	orchestrator := scraper.NewOrchestrator(fetcher, synonyms, cfg.Scrape.PageDelay, cfg.Scrape.VariantDelay)
	mailer := notifier.New(cfg.Email.ResendAPIKey, cfg.Email.From, cfg.Email.AppURL)
	runner := ingest.New(store, mailer, orchestrator, cfg.Scrape.MaxPages)

	if cfg.Cron.Schedule != "" {
		sched := scheduler.New(runner, cfg.Cron.Schedule)
		if err := sched.Start(ctx); err != nil {
			slog.Error("Critical error starting scheduler", "error", err)
			os.Exit(1)
		}
		defer sched.Stop()
	}

	srv := web.New(runner, orchestrator, store, cfg.Cron.Secret, cfg.Scrape.MaxPages)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}
