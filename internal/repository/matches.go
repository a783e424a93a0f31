package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sportify/worker/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// MatchRepository handles match database operations
type MatchRepository struct {
	db *Database
}

// MatchFilter narrows FindFiltered. Zero fields are ignored.
type MatchFilter struct {
	DateFrom     *time.Time
	DateTo       *time.Time
	TournamentID *int
	TeamName     string // substring of home or away team name, case-insensitive
}

const matchColumns = `
	m.id, m.remote_id, m.tournament_id, m.home_team_id, m.away_team_id,
	m.datetime, m.match_day, m.home_goals, m.away_goals, m.notification_sent,
	m.created_at, m.updated_at`

const matchDetailsFrom = `
	FROM matches m
	JOIN teams ht ON ht.id = m.home_team_id
	JOIN teams awt ON awt.id = m.away_team_id
	JOIN tournaments t ON t.id = m.tournament_id`

func scanMatch(row pgx.Row) (*models.Match, error) {
	var m models.Match
	err := row.Scan(
		&m.ID, &m.RemoteID, &m.TournamentID, &m.HomeTeamID, &m.AwayTeamID,
		&m.Datetime, &m.MatchDay, &m.HomeGoals, &m.AwayGoals, &m.NotificationSent,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMatchDetails(row pgx.Row) (*models.MatchDetails, error) {
	var d models.MatchDetails
	err := row.Scan(
		&d.ID, &d.RemoteID, &d.TournamentID, &d.HomeTeamID, &d.AwayTeamID,
		&d.Datetime, &d.MatchDay, &d.HomeGoals, &d.AwayGoals, &d.NotificationSent,
		&d.CreatedAt, &d.UpdatedAt,
		&d.HomeTeamName, &d.AwayTeamName, &d.TournamentName,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *MatchRepository) queryMatches(ctx context.Context, op, query string, args ...any) ([]*models.Match, error) {
	start := time.Now()
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		observe(op, "matches", start, err)
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			observe(op, "matches", start, err)
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}

	err = rows.Err()
	observe(op, "matches", start, err)
	if err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}

	return matches, nil
}

func (r *MatchRepository) queryMatchDetails(ctx context.Context, op, query string, args ...any) ([]*models.MatchDetails, error) {
	start := time.Now()
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		observe(op, "matches", start, err)
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.MatchDetails
	for rows.Next() {
		d, err := scanMatchDetails(rows)
		if err != nil {
			observe(op, "matches", start, err)
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, d)
	}

	err = rows.Err()
	observe(op, "matches", start, err)
	if err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}

	return matches, nil
}

// GetByID retrieves a match by its database ID
func (r *MatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches m WHERE m.id = $1`

	start := time.Now()
	m, err := scanMatch(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("match id=%d: %w", id, ErrNotFound)
	} else if err != nil {
		err = fmt.Errorf("failed to get match: %w", err)
	}
	observe("select", "matches", start, err)

	return m, err
}

// FindByTournamentAndRemoteID returns the matches of a tournament carrying a provider fixture id
func (r *MatchRepository) FindByTournamentAndRemoteID(ctx context.Context, tournamentID, remoteID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches m
		WHERE m.tournament_id = $1 AND m.remote_id = $2
		ORDER BY m.id`

	return r.queryMatches(ctx, "select", query, tournamentID, remoteID)
}

// FindByTournamentAndTeams returns the matches of a tournament with the given pairing and kickoff
func (r *MatchRepository) FindByTournamentAndTeams(ctx context.Context, tournamentID, homeTeamID, awayTeamID int, kickoff time.Time) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches m
		WHERE m.tournament_id = $1
		  AND m.home_team_id = $2
		  AND m.away_team_id = $3
		  AND m.datetime = $4
		ORDER BY m.id`

	return r.queryMatches(ctx, "select", query, tournamentID, homeTeamID, awayTeamID, kickoff.UTC())
}

// FindUpcoming returns not-notified matches scheduled in [from, to], earliest first
func (r *MatchRepository) FindUpcoming(ctx context.Context, from, to time.Time) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches m
		WHERE m.notification_sent = FALSE
		  AND m.datetime BETWEEN $1 AND $2
		ORDER BY m.datetime`

	return r.queryMatches(ctx, "select", query, from.UTC(), to.UTC())
}

// FindUnscoredFinishedMatches returns finished matches that still have unscored
// predictions. Each match carries only its unscored predictions.
func (r *MatchRepository) FindUnscoredFinishedMatches(ctx context.Context) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches m
		WHERE m.home_goals IS NOT NULL
		  AND m.away_goals IS NOT NULL
		  AND EXISTS (
			SELECT 1 FROM predictions p
			WHERE p.match_id = m.id AND p.score_added = FALSE
		  )
		ORDER BY m.datetime`

	matches, err := r.queryMatches(ctx, "select", query)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return matches, nil
	}

	ids := make([]int, len(matches))
	byID := make(map[int]*models.Match, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
		byID[m.ID] = m
	}

	preds, err := r.db.Predictions.listWhere(ctx,
		`WHERE match_id = ANY($1) AND score_added = FALSE ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range preds {
		if m, ok := byID[p.MatchID]; ok {
			m.Predictions = append(m.Predictions, p)
		}
	}

	log.Debug().Int("count", len(matches)).Int("predictions", len(preds)).Msg("Retrieved unscored finished matches")
	return matches, nil
}

// FindFinishedNotNotified returns finished matches not yet handed to the notifier
func (r *MatchRepository) FindFinishedNotNotified(ctx context.Context) ([]*models.MatchDetails, error) {
	query := `SELECT ` + matchColumns + `, ht.name, awt.name, t.name` + matchDetailsFrom + `
		WHERE m.notification_sent = FALSE
		  AND m.home_goals IS NOT NULL
		  AND m.away_goals IS NOT NULL
		ORDER BY m.datetime`

	return r.queryMatchDetails(ctx, "select", query)
}

// MarkNotificationSent flags a match as notified
func (r *MatchRepository) MarkNotificationSent(ctx context.Context, id int) error {
	query := `
		UPDATE matches
		SET notification_sent = TRUE, updated_at = NOW()
		WHERE id = $1
	`

	start := time.Now()
	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		err = fmt.Errorf("failed to mark notification sent: %w", err)
	} else if result.RowsAffected() == 0 {
		err = fmt.Errorf("match id=%d: %w", id, ErrNotFound)
	}
	observe("update", "matches", start, err)

	return err
}

// FindFiltered returns matches with display names, narrowed by filter
func (r *MatchRepository) FindFiltered(ctx context.Context, filter MatchFilter) ([]*models.MatchDetails, error) {
	query, args := buildFilteredQuery(filter)
	return r.queryMatchDetails(ctx, "select", query, args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildFilteredQuery renders the FindFiltered statement with one predicate per set field
func buildFilteredQuery(filter MatchFilter) (string, []any) {
	var (
		where []string
		args  []any
	)

	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.DateFrom != nil {
		add("m.datetime >= $%d", filter.DateFrom.UTC())
	}
	if filter.DateTo != nil {
		add("m.datetime <= $%d", filter.DateTo.UTC())
	}
	if filter.TournamentID != nil {
		add("m.tournament_id = $%d", *filter.TournamentID)
	}
	if name := strings.TrimSpace(filter.TeamName); name != "" {
		args = append(args, "%"+likeEscaper.Replace(name)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(ht.name ILIKE $%d OR awt.name ILIKE $%d)", n, n))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + matchColumns + `, ht.name, awt.name, t.name` + matchDetailsFrom)
	if len(where) > 0 {
		b.WriteString("\n\tWHERE ")
		b.WriteString(strings.Join(where, "\n\t  AND "))
	}
	b.WriteString("\n\tORDER BY m.datetime, m.id")

	return b.String(), args
}

// Save inserts a new match or updates an existing one. The notification flag
// is written on insert only.
func (r *MatchRepository) Save(ctx context.Context, m *models.Match) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.ID == 0 {
		return r.create(ctx, m)
	}
	return r.update(ctx, m)
}

func (r *MatchRepository) create(ctx context.Context, m *models.Match) error {
	query := `
		INSERT INTO matches (
			remote_id, tournament_id, home_team_id, away_team_id,
			datetime, match_day, home_goals, away_goals, notification_sent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	start := time.Now()
	err := r.db.Pool.QueryRow(
		ctx, query,
		m.RemoteID, m.TournamentID, m.HomeTeamID, m.AwayTeamID,
		m.Datetime.UTC(), m.MatchDay, m.HomeGoals, m.AwayGoals, m.NotificationSent,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	observe("insert", "matches", start, err)

	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}

	log.Debug().
		Int("id", m.ID).
		Int64("remote_id", m.RemoteID.Int64).
		Int("tournament_id", m.TournamentID).
		Msg("Match created")

	return nil
}

func (r *MatchRepository) update(ctx context.Context, m *models.Match) error {
	query := `
		UPDATE matches SET
			remote_id = $1,
			home_team_id = $2,
			away_team_id = $3,
			datetime = $4,
			match_day = $5,
			home_goals = $6,
			away_goals = $7,
			updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at
	`

	start := time.Now()
	err := r.db.Pool.QueryRow(
		ctx, query,
		m.RemoteID, m.HomeTeamID, m.AwayTeamID,
		m.Datetime.UTC(), m.MatchDay, m.HomeGoals, m.AwayGoals, m.ID,
	).Scan(&m.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("match id=%d: %w", m.ID, ErrNotFound)
	} else if err != nil {
		err = fmt.Errorf("failed to update match: %w", err)
	}
	observe("update", "matches", start, err)

	return err
}

// Count returns the total number of matches
func (r *MatchRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM matches`

	var count int
	err := r.db.Pool.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}

	return count, nil
}
