package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sportify/worker/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// PredictionRepository handles prediction-related database operations
type PredictionRepository struct {
	db *Database
}

// Create inserts a new prediction with validation. The match must not have started.
func (r *PredictionRepository) Create(ctx context.Context, pred *models.Prediction) error {
	if pred == nil {
		return fmt.Errorf("prediction cannot be nil")
	}

	if err := pred.Validate(); err != nil {
		return fmt.Errorf("prediction validation failed: %w", err)
	}

	start := time.Now()
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		var kickoff time.Time
		err := tx.QueryRow(ctx, `SELECT datetime FROM matches WHERE id = $1 FOR SHARE`, pred.MatchID).Scan(&kickoff)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("match id=%d: %w", pred.MatchID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load match: %w", err)
		}
		if !time.Now().Before(kickoff) {
			return models.ErrMatchStarted
		}

		query := `
			INSERT INTO predictions (user_id, match_id, home_goals, away_goals)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at
		`
		return tx.QueryRow(ctx, query,
			pred.UserID, pred.MatchID, pred.HomeGoals, pred.AwayGoals,
		).Scan(&pred.ID, &pred.CreatedAt, &pred.UpdatedAt)
	})
	observe("insert", "predictions", start, err)

	if err != nil {
		log.Error().Err(err).Int("match_id", pred.MatchID).Int("user_id", pred.UserID).Msg("Failed to insert prediction")
		return fmt.Errorf("failed to create prediction: %w", err)
	}

	log.Debug().Int("id", pred.ID).Int("match_id", pred.MatchID).Msg("Prediction created")
	return nil
}

// ListByMatch retrieves every prediction of a match
func (r *PredictionRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.Prediction, error) {
	return r.listWhere(ctx, `WHERE match_id = $1 ORDER BY id`, matchID)
}

func (r *PredictionRepository) listWhere(ctx context.Context, where string, args ...any) ([]*models.Prediction, error) {
	query := `
		SELECT id, user_id, match_id, home_goals, away_goals, points, score_added, created_at, updated_at
		FROM predictions
	` + where

	start := time.Now()
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		observe("select", "predictions", start, err)
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var preds []*models.Prediction
	for rows.Next() {
		p := &models.Prediction{}
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.MatchID, &p.HomeGoals, &p.AwayGoals,
			&p.Points, &p.Scored, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			observe("select", "predictions", start, err)
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		preds = append(preds, p)
	}

	err = rows.Err()
	observe("select", "predictions", start, err)
	if err != nil {
		return nil, fmt.Errorf("error iterating predictions: %w", err)
	}

	return preds, nil
}

// SaveScored persists graded predictions of a finished match in one transaction.
// A prediction is applied only if it is still unscored; each applied prediction
// adds its points and hit counts to the user's standing. Returns the predictions
// applied by this call.
func (r *PredictionRepository) SaveScored(ctx context.Context, match *models.Match, preds []*models.Prediction) ([]*models.Prediction, error) {
	if !match.IsFinished() {
		return nil, fmt.Errorf("match id=%d is not finished", match.ID)
	}

	markQuery := `
		UPDATE predictions
		SET points = $1, score_added = TRUE, updated_at = NOW()
		WHERE id = $2 AND score_added = FALSE
	`
	standingQuery := `
		INSERT INTO standings (user_id, tournament_id, points, exact_hits, outcome_hits)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, tournament_id) DO UPDATE SET
			points = standings.points + EXCLUDED.points,
			exact_hits = standings.exact_hits + EXCLUDED.exact_hits,
			outcome_hits = standings.outcome_hits + EXCLUDED.outcome_hits,
			updated_at = NOW()
	`

	var applied []*models.Prediction
	start := time.Now()
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		applied = applied[:0]
		for _, p := range preds {
			if p.MatchID != match.ID {
				return fmt.Errorf("prediction id=%d belongs to match id=%d, not %d", p.ID, p.MatchID, match.ID)
			}
			if !p.Scored || !p.Points.Valid {
				return fmt.Errorf("prediction id=%d has not been graded", p.ID)
			}

			tag, err := tx.Exec(ctx, markQuery, p.Points, p.ID)
			if err != nil {
				return fmt.Errorf("failed to mark prediction %d: %w", p.ID, err)
			}
			if tag.RowsAffected() == 0 {
				log.Debug().Int("prediction_id", p.ID).Msg("Prediction already scored, skipping")
				continue
			}

			exact, outcome := p.Hits(match)
			if _, err := tx.Exec(ctx, standingQuery,
				p.UserID, match.TournamentID, p.Points.Int32, boolToInt(exact), boolToInt(outcome),
			); err != nil {
				return fmt.Errorf("failed to update standing for user %d: %w", p.UserID, err)
			}
			applied = append(applied, p)
		}
		return nil
	})
	observe("update", "predictions", start, err)

	if err != nil {
		return nil, err
	}
	return applied, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
