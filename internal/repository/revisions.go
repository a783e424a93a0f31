package repository

import (
	"context"
	"fmt"
	"time"

	"sportify/worker/internal/models"

	"github.com/rs/zerolog/log"
)

// RecordRevision inserts a score revision for a corrected match
func (r *MatchRepository) RecordRevision(ctx context.Context, rev *models.ScoreRevision) error {
	query := `
		INSERT INTO score_revisions (
			match_id, previous_home_goals, previous_away_goals, home_goals, away_goals, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	if rev.DetectedAt.IsZero() {
		rev.DetectedAt = time.Now().UTC()
	}

	start := time.Now()
	err := r.db.Pool.QueryRow(
		ctx, query,
		rev.MatchID, rev.PreviousHomeGoals, rev.PreviousAwayGoals,
		rev.HomeGoals, rev.AwayGoals, rev.DetectedAt,
	).Scan(&rev.ID)
	observe("insert", "score_revisions", start, err)

	if err != nil {
		return fmt.Errorf("failed to record score revision: %w", err)
	}

	log.Debug().
		Int("match_id", rev.MatchID).
		Str("previous", fmt.Sprintf("%d-%d", rev.PreviousHomeGoals, rev.PreviousAwayGoals)).
		Str("score", fmt.Sprintf("%d-%d", rev.HomeGoals, rev.AwayGoals)).
		Msg("Score revision recorded")

	return nil
}

// ListRevisions retrieves the revision history of a match, oldest first
func (r *MatchRepository) ListRevisions(ctx context.Context, matchID int) ([]*models.ScoreRevision, error) {
	query := `
		SELECT id, match_id, previous_home_goals, previous_away_goals, home_goals, away_goals, detected_at
		FROM score_revisions
		WHERE match_id = $1
		ORDER BY detected_at ASC, id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get score revisions: %w", err)
	}
	defer rows.Close()

	var revisions []*models.ScoreRevision
	for rows.Next() {
		var rev models.ScoreRevision
		err := rows.Scan(
			&rev.ID, &rev.MatchID, &rev.PreviousHomeGoals, &rev.PreviousAwayGoals,
			&rev.HomeGoals, &rev.AwayGoals, &rev.DetectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score revision: %w", err)
		}
		revisions = append(revisions, &rev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating score revisions: %w", err)
	}

	return revisions, nil
}
