package scoring

import (
	"context"
	"fmt"
	"time"

	"sportify/worker/internal/metrics"
	"sportify/worker/internal/models"

	"github.com/rs/zerolog/log"
)

// MatchFinder loads finished matches with their unscored predictions
type MatchFinder interface {
	FindUnscoredFinishedMatches(ctx context.Context) ([]*models.Match, error)
}

// ScoreSaver persists graded predictions. Implementations apply a prediction
// only while it is still unscored and return the ones they applied.
type ScoreSaver interface {
	SaveScored(ctx context.Context, match *models.Match, preds []*models.Prediction) ([]*models.Prediction, error)
}

// Summary describes one scoring run
type Summary struct {
	Matches     int // matches graded and saved
	Predictions int // predictions applied
	Failed      int // matches that could not be graded or saved
}

// Service scores every finished match that still has unscored predictions
type Service struct {
	engine  *Engine
	matches MatchFinder
	saver   ScoreSaver
}

// NewService creates a scoring service
func NewService(engine *Engine, matches MatchFinder, saver ScoreSaver) *Service {
	return &Service{
		engine:  engine,
		matches: matches,
		saver:   saver,
	}
}

// ScoreFinishedMatches grades and saves all pending predictions. A match that
// fails is logged and counted; the others are still scored.
func (s *Service) ScoreFinishedMatches(ctx context.Context) (Summary, error) {
	start := time.Now()
	var summary Summary

	matches, err := s.matches.FindUnscoredFinishedMatches(ctx)
	if err != nil {
		metrics.RecordSync("scoring", "error", time.Since(start).Seconds())
		metrics.RecordError("scoring", "load")
		return summary, fmt.Errorf("failed to load unscored matches: %w", err)
	}

	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		applied, err := s.scoreMatch(ctx, match)
		if err != nil {
			summary.Failed++
			metrics.RecordError("scoring", "match")
			log.Error().
				Err(err).
				Int("match_id", match.ID).
				Msg("Failed to score match")
			continue
		}

		summary.Matches++
		summary.Predictions += applied
	}

	status := "success"
	if summary.Failed > 0 {
		status = "partial"
	}
	metrics.RecordSync("scoring", status, time.Since(start).Seconds())

	log.Info().
		Int("matches", summary.Matches).
		Int("predictions", summary.Predictions).
		Int("failed", summary.Failed).
		Dur("duration", time.Since(start)).
		Msg("Scoring run complete")

	return summary, nil
}

func (s *Service) scoreMatch(ctx context.Context, match *models.Match) (int, error) {
	scored, err := s.engine.ScoreMatch(match, match.Predictions)
	if err != nil {
		return 0, err
	}
	if len(scored) == 0 {
		return 0, nil
	}

	applied, err := s.saver.SaveScored(ctx, match, scored)
	if err != nil {
		return 0, fmt.Errorf("failed to save scored predictions: %w", err)
	}

	// Predictions another run applied first are not counted again
	for _, p := range applied {
		tier, _ := s.engine.Grade(match, p)
		metrics.RecordPredictionScored(string(tier))
	}

	log.Debug().
		Int("match_id", match.ID).
		Int("graded", len(scored)).
		Int("applied", len(applied)).
		Msg("Match scored")

	return len(applied), nil
}
