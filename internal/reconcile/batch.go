package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"sportify/worker/internal/client"
	"sportify/worker/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ReconcileAll reconciles each tournament independently, up to Concurrency at
// a time. One tournament failing does not stop the others, except that after
// MaxFetchFailures fetch failures in a row the tournaments not yet started are
// reported with ErrBatchAborted. Results are in the order of tournaments.
func (r *Reconciler) ReconcileAll(ctx context.Context, tournaments []*models.Tournament, w Window) []Result {
	start := time.Now()
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx)

	logger.Info().
		Int("tournaments", len(tournaments)).
		Str("window", w.String()).
		Int("concurrency", r.opts.Concurrency).
		Msg("Starting reconciliation batch")

	results := make([]Result, len(tournaments))

	var (
		consecutive atomic.Int32
		aborted     atomic.Bool
	)

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)

	for i, t := range tournaments {
		i, t := i, t
		if aborted.Load() {
			results[i] = abortedResult(t)
			continue
		}

		g.Go(func() error {
			if aborted.Load() {
				results[i] = abortedResult(t)
				return nil
			}

			res, err := r.ReconcileTournament(ctx, t, w)
			switch {
			case err == nil:
				consecutive.Store(0)
			case client.IsFetchError(err):
				if int(consecutive.Add(1)) >= r.opts.MaxFetchFailures && aborted.CompareAndSwap(false, true) {
					logger.Error().
						Int("failures", r.opts.MaxFetchFailures).
						Msg("Too many consecutive fetch failures, stopping batch")
				}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var failed, skipped int
	for _, res := range results {
		switch {
		case errors.Is(res.Err, ErrBatchAborted):
			skipped++
		case res.Err != nil:
			failed++
		}
	}

	logger.Info().
		Int("tournaments", len(tournaments)).
		Int("failed", failed).
		Int("aborted", skipped).
		Dur("duration", time.Since(start)).
		Msg("Reconciliation batch complete")

	return results
}

func abortedResult(t *models.Tournament) Result {
	res := Result{TournamentID: t.ID, Err: ErrBatchAborted}
	if t.RemoteID.Valid {
		res.RemoteID = int(t.RemoteID.Int64)
	}
	return res
}
