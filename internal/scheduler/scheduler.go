// Package scheduler drives background maintenance jobs with gocron. GISST
// has exactly one recurring job today: a periodic full Reindex of the
// catalog into Meilisearch, catching any document drift between the
// incremental Upsert calls made at write time and the index's actual
// contents (a crashed write, a manual DB edit, a Meilisearch restore).
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/gisst-archive/gisst/internal/search"
)

const reindexTag = "reindex"

// Scheduler wraps gocron and owns the reindex job's lifecycle.
// The zero value is not usable — create instances with New.
type Scheduler struct {
	cron    gocron.Scheduler
	indexer *search.Indexer
	logger  *zap.Logger
}

// New creates and configures a new Scheduler. Call Start to begin processing.
func New(indexer *search.Indexer, logger *zap.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		cron:    s,
		indexer: indexer,
		logger:  logger.Named("scheduler"),
	}, nil
}

// Start registers the reindex job on its interval and starts the
// underlying gocron scheduler. Should be called once at server startup.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.runReindex(ctx) }),
		gocron.WithTags(reindexTag),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule reindex job: %w", err)
	}

	s.logger.Info("scheduler started", zap.Duration("reindex_interval", interval))
	s.cron.Start()
	return nil
}

// Stop gracefully shuts down the underlying gocron scheduler, waiting for
// any in-flight reindex to finish before returning.
func (s *Scheduler) Stop() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("scheduler shutdown error: %w", err)
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// TriggerNow runs a reindex immediately, bypassing the interval. Nothing in
// this repository calls it; gisstctl has no reindex command.
func (s *Scheduler) TriggerNow(ctx context.Context) {
	s.runReindex(ctx)
}

func (s *Scheduler) runReindex(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	report := s.indexer.Reindex(runCtx)
	elapsed := time.Since(start)

	if len(report.Errors) > 0 {
		s.logger.Warn("reindex completed with errors",
			zap.Duration("elapsed", elapsed),
			zap.Int("instances", report.Instances),
			zap.Int("states", report.States),
			zap.Int("replays", report.Replays),
			zap.Int("saves", report.Saves),
			zap.Int("creators", report.Creators),
			zap.Int("error_count", len(report.Errors)),
		)
		for _, e := range report.Errors {
			s.logger.Warn("reindex document error", zap.Error(e))
		}
		return
	}

	s.logger.Info("reindex completed",
		zap.Duration("elapsed", elapsed),
		zap.Int("instances", report.Instances),
		zap.Int("states", report.States),
		zap.Int("replays", report.Replays),
		zap.Int("saves", report.Saves),
		zap.Int("creators", report.Creators),
	)
}
