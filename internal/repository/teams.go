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

// TeamRepository handles team database operations
type TeamRepository struct {
	db *Database
}

// Create inserts a new team
func (r *TeamRepository) Create(ctx context.Context, team *models.Team) error {
	query := `
		INSERT INTO teams (remote_id, name, short_name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	start := time.Now()
	err := r.db.Pool.QueryRow(
		ctx, query,
		team.RemoteID, team.Name, team.ShortName,
	).Scan(&team.ID, &team.CreatedAt, &team.UpdatedAt)
	observe("insert", "teams", start, err)

	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}

	log.Debug().
		Int("id", team.ID).
		Int64("remote_id", team.RemoteID.Int64).
		Str("name", team.Name).
		Msg("Team created")

	return nil
}

// GetByID retrieves a team by its database ID
func (r *TeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `
		SELECT id, remote_id, name, short_name, created_at, updated_at
		FROM teams
		WHERE id = $1
	`

	var team models.Team
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&team.ID, &team.RemoteID, &team.Name, &team.ShortName,
		&team.CreatedAt, &team.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("team id=%d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return &team, nil
}

// GetByRemoteID retrieves a team by its provider id
func (r *TeamRepository) GetByRemoteID(ctx context.Context, remoteID int) (*models.Team, error) {
	query := `
		SELECT id, remote_id, name, short_name, created_at, updated_at
		FROM teams
		WHERE remote_id = $1
	`

	start := time.Now()
	var team models.Team
	err := r.db.Pool.QueryRow(ctx, query, remoteID).Scan(
		&team.ID, &team.RemoteID, &team.Name, &team.ShortName,
		&team.CreatedAt, &team.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("team remote_id=%d: %w", remoteID, ErrNotFound)
	} else if err != nil {
		err = fmt.Errorf("failed to get team: %w", err)
	}
	observe("select", "teams", start, err)

	if err != nil {
		return nil, err
	}
	return &team, nil
}

// List retrieves all teams
func (r *TeamRepository) List(ctx context.Context) ([]*models.Team, error) {
	query := `
		SELECT id, remote_id, name, short_name, created_at, updated_at
		FROM teams
		ORDER BY name
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []*models.Team
	for rows.Next() {
		var team models.Team
		err := rows.Scan(
			&team.ID, &team.RemoteID, &team.Name, &team.ShortName,
			&team.CreatedAt, &team.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, &team)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teams: %w", err)
	}

	return teams, nil
}

// Update updates a team's names
func (r *TeamRepository) Update(ctx context.Context, team *models.Team) error {
	query := `
		UPDATE teams SET
			name = $1,
			short_name = $2,
			updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`

	start := time.Now()
	err := r.db.Pool.QueryRow(
		ctx, query,
		team.Name, team.ShortName, team.ID,
	).Scan(&team.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("team id=%d: %w", team.ID, ErrNotFound)
	} else if err != nil {
		err = fmt.Errorf("failed to update team: %w", err)
	}
	observe("update", "teams", start, err)

	return err
}

// Count returns the total number of teams
func (r *TeamRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM teams`

	var count int
	err := r.db.Pool.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count teams: %w", err)
	}

	return count, nil
}
