// Package scheduler runs the ingestion cycle on an in-process cron
// schedule, for deployments that have no external scheduler hitting the
// HTTP trigger.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/mkjeldsen/dba-watcher/internal/web"
)

type Scheduler struct {
	cron   *cron.Cron
	runner web.Runner
	spec   string
}

// New creates a Scheduler firing per spec, e.g. "@every 6h" or a standard
// five-field cron expression.
func New(runner web.Runner, spec string) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		spec:   spec,
	}
}

// Start registers the job and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", s.spec, err)
	}

	s.cron.Start()
	slog.Info("In-process scheduler started", "spec", s.spec)
	return nil
}

// Stop shuts the scheduler down; already-running jobs finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	slog.Info("In-process scheduler stopped")
}

func (s *Scheduler) runOnce(ctx context.Context) {
	slog.Info("Scheduled ingestion run starting")
	results, err := s.runner.Run(ctx)
	if err != nil {
		slog.Error("Scheduled ingestion run failed", "error", err)
		return
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	slog.Info("Scheduled ingestion run finished", "targets", len(results), "failed", failed)
}
