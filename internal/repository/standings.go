package repository

import (
	"context"
	"errors"
	"fmt"

	"sportify/worker/internal/models"

	"github.com/jackc/pgx/v5"
)

// StandingRepository reads per-user tournament standings. Standings are
// written by PredictionRepository.SaveScored.
type StandingRepository struct {
	db *Database
}

// GetByUserAndTournament retrieves the standing of a user in a tournament
func (r *StandingRepository) GetByUserAndTournament(ctx context.Context, userID, tournamentID int) (*models.Standing, error) {
	query := `
		SELECT user_id, tournament_id, points, exact_hits, outcome_hits, updated_at
		FROM standings
		WHERE user_id = $1 AND tournament_id = $2
	`

	var s models.Standing
	err := r.db.Pool.QueryRow(ctx, query, userID, tournamentID).Scan(
		&s.UserID, &s.TournamentID, &s.Points, &s.ExactHits, &s.OutcomeHits, &s.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("standing user_id=%d, tournament_id=%d: %w", userID, tournamentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get standing: %w", err)
	}

	return &s, nil
}

// ListByTournament retrieves the leaderboard of a tournament
func (r *StandingRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Standing, error) {
	query := `
		SELECT user_id, tournament_id, points, exact_hits, outcome_hits, updated_at
		FROM standings
		WHERE tournament_id = $1
		ORDER BY points DESC, exact_hits DESC, user_id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list standings: %w", err)
	}
	defer rows.Close()

	var standings []*models.Standing
	for rows.Next() {
		var s models.Standing
		if err := rows.Scan(
			&s.UserID, &s.TournamentID, &s.Points, &s.ExactHits, &s.OutcomeHits, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		standings = append(standings, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating standings: %w", err)
	}

	return standings, nil
}
