package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sportify/worker/internal/config"
	"sportify/worker/internal/metrics"
	"sportify/worker/internal/models"
	"sportify/worker/internal/notify"
	"sportify/worker/internal/reconcile"
	"sportify/worker/internal/scoring"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// TournamentLister returns the tournaments linked to the feed
type TournamentLister interface {
	ListTracked(ctx context.Context) ([]*models.Tournament, error)
}

// TeamCacheInvalidator drops cached team ids before teams are refreshed
type TeamCacheInvalidator interface {
	InvalidateTeams(ctx context.Context) (int, error)
}

// Scheduler manages the background work of the worker:
// - nightly refresh of tournament teams (cron)
// - fixture reconciliation, scoring and notification on a fixed interval
type Scheduler struct {
	cfg         *config.Config
	tournaments TournamentLister
	reconciler  *reconcile.Reconciler
	scorer      *scoring.Service
	dispatcher  *notify.Dispatcher // nil when notifications are disabled
	teamCache   TeamCacheInvalidator

	cron     *cron.Cron
	ticker   *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once

	// one cycle at a time; a tick during a running cycle is skipped
	running sync.Mutex

	now func() time.Time
}

// NewScheduler creates a new scheduler instance. dispatcher may be nil.
func NewScheduler(cfg *config.Config, tournaments TournamentLister, reconciler *reconcile.Reconciler, scorer *scoring.Service, dispatcher *notify.Dispatcher) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		tournaments: tournaments,
		reconciler:  reconciler,
		scorer:      scorer,
		dispatcher:  dispatcher,
		cron:        cron.New(),
		stopChan:    make(chan struct{}),
		now:         time.Now,
	}
}

// SetTeamCache makes the nightly refresh drop the team cache first
func (s *Scheduler) SetTeamCache(c TeamCacheInvalidator) {
	s.teamCache = c
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.cfg.NightlyRefreshCron, func() {
		log.Info().Msg("Running nightly team refresh...")
		if err := s.RefreshTeams(ctx); err != nil {
			log.Error().Err(err).Msg("Nightly team refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule nightly refresh: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.cfg.NightlyRefreshCron).
		Msg("Nightly team refresh scheduled")

	s.ticker = time.NewTicker(s.cfg.FixturePollInterval)
	log.Info().
		Dur("interval", s.cfg.FixturePollInterval).
		Dur("lookback", s.cfg.FixtureLookback).
		Dur("lookahead", s.cfg.FixtureLookahead).
		Msg("Fixture polling started")

	go s.pollFixtures(ctx)

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		log.Info().Msg("Stopping scheduler...")

		if s.cron != nil {
			<-s.cron.Stop().Done()
		}

		if s.ticker != nil {
			s.ticker.Stop()
		}

		close(s.stopChan)
		log.Info().Msg("Scheduler stopped")
	})
}

func (s *Scheduler) pollFixtures(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context cancelled, stopping fixture polling")
			return
		case <-s.stopChan:
			log.Info().Msg("Stop signal received, stopping fixture polling")
			return
		case <-s.ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				log.Error().Err(err).Msg("Fixture cycle failed")
			}
		}
	}
}

// Window returns the date range polled by a cycle
func (s *Scheduler) Window() reconcile.Window {
	now := s.now().UTC()
	return reconcile.RangeWindow(now.Add(-s.cfg.FixtureLookback), now.Add(s.cfg.FixtureLookahead))
}

// RunCycle reconciles every tracked tournament, scores finished matches and
// dispatches notifications. Reconciliation failures of single tournaments are
// logged and do not stop scoring.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	if !s.running.TryLock() {
		log.Warn().Msg("Previous fixture cycle still running, skipping tick")
		return nil
	}
	defer s.running.Unlock()

	start := time.Now()
	defer func() {
		metrics.RecordWorkerIteration(time.Since(start).Seconds())
	}()

	tournaments, err := s.tournaments.ListTracked(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tournaments: %w", err)
	}

	results := s.reconciler.ReconcileAll(ctx, tournaments, s.Window())
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}

	summary, err := s.scorer.ScoreFinishedMatches(ctx)
	if err != nil {
		return fmt.Errorf("scoring failed: %w", err)
	}

	var notified notify.Summary
	if s.dispatcher != nil {
		notified, err = s.dispatcher.Dispatch(ctx)
		if err != nil {
			return fmt.Errorf("notification dispatch failed: %w", err)
		}
	}

	log.Info().
		Int("tournaments", len(tournaments)).
		Int("tournaments_failed", failed).
		Int("matches_scored", summary.Matches).
		Int("predictions_scored", summary.Predictions).
		Int("notified", notified.Sent).
		Dur("duration", time.Since(start)).
		Msg("Fixture cycle complete")

	return nil
}

// RefreshTeams refreshes the teams of every tracked tournament. A failing
// tournament is logged and the rest continue.
func (s *Scheduler) RefreshTeams(ctx context.Context) error {
	start := time.Now()

	if s.teamCache != nil {
		deleted, err := s.teamCache.InvalidateTeams(ctx)
		if err != nil {
			log.Warn().Err(err).Int("deleted", deleted).Msg("Failed to invalidate team cache")
		} else {
			log.Info().Int("deleted", deleted).Msg("Team cache invalidated")
		}
	}

	tournaments, err := s.tournaments.ListTracked(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tournaments: %w", err)
	}

	var created, updated, failed int
	for _, t := range tournaments {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := s.reconciler.SyncTeams(ctx, t)
		if err != nil {
			failed++
			log.Error().Err(err).Int("tournament_id", t.ID).Msg("Failed to refresh teams")
			continue
		}
		created += res.Created
		updated += res.Updated
	}

	log.Info().
		Int("tournaments", len(tournaments)).
		Int("failed", failed).
		Int("created", created).
		Int("updated", updated).
		Dur("duration", time.Since(start)).
		Msg("Team refresh complete")

	if failed > 0 && failed == len(tournaments) {
		return fmt.Errorf("team refresh failed for all %d tournaments", failed)
	}
	return nil
}
