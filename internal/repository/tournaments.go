package repository

import (
	"context"
	"errors"
	"fmt"

	"sportify/worker/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// TournamentRepository handles tournament database operations
type TournamentRepository struct {
	db *Database
}

// ListTracked returns tournaments linked to a provider competition
func (r *TournamentRepository) ListTracked(ctx context.Context) ([]*models.Tournament, error) {
	query := `
		SELECT id, name, remote_id, created_at, updated_at
		FROM tournaments
		WHERE remote_id IS NOT NULL
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	var tournaments []*models.Tournament
	for rows.Next() {
		var t models.Tournament
		if err := rows.Scan(&t.ID, &t.Name, &t.RemoteID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", err)
		}
		tournaments = append(tournaments, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournaments: %w", err)
	}

	return tournaments, nil
}

// GetByRemoteID retrieves a tournament by its provider competition id
func (r *TournamentRepository) GetByRemoteID(ctx context.Context, remoteID int) (*models.Tournament, error) {
	query := `
		SELECT id, name, remote_id, created_at, updated_at
		FROM tournaments
		WHERE remote_id = $1
	`

	var t models.Tournament
	err := r.db.Pool.QueryRow(ctx, query, remoteID).Scan(&t.ID, &t.Name, &t.RemoteID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tournament remote_id=%d: %w", remoteID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}

	return &t, nil
}

// UpsertByRemoteID inserts a tournament or renames the one with the same remote id
func (r *TournamentRepository) UpsertByRemoteID(ctx context.Context, t *models.Tournament) error {
	if !t.RemoteID.Valid {
		return fmt.Errorf("tournament %q has no remote id", t.Name)
	}

	query := `
		INSERT INTO tournaments (name, remote_id)
		VALUES ($1, $2)
		ON CONFLICT (remote_id) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query, t.Name, t.RemoteID).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert tournament: %w", err)
	}

	log.Debug().
		Int("id", t.ID).
		Int64("remote_id", t.RemoteID.Int64).
		Str("name", t.Name).
		Msg("Tournament upserted")

	return nil
}
