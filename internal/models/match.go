package models

import (
	"database/sql"
	"errors"
	"time"
)

// Outcome is the result symbol of a score pair
type Outcome string

const (
	HomeWin Outcome = "1"
	AwayWin Outcome = "2"
	Draw    Outcome = "X"
)

// String returns a readable name for the outcome
func (o Outcome) String() string {
	switch o {
	case HomeWin:
		return "HOME_WIN"
	case AwayWin:
		return "AWAY_WIN"
	case Draw:
		return "DRAW"
	}
	return "UNKNOWN"
}

// OutcomeOf classifies a home/away score pair
func OutcomeOf(home, away int) Outcome {
	switch {
	case home > away:
		return HomeWin
	case home < away:
		return AwayWin
	default:
		return Draw
	}
}

// ErrPartialScore is returned when exactly one goal count is set
var ErrPartialScore = errors.New("match has only one goal count set")

// Match represents a scheduled or finished match in a tournament
type Match struct {
	ID               int           `db:"id"`
	RemoteID         sql.NullInt64 `db:"remote_id"`
	TournamentID     int           `db:"tournament_id"`
	HomeTeamID       int           `db:"home_team_id"`
	AwayTeamID       int           `db:"away_team_id"`
	Datetime         time.Time     `db:"datetime"`
	MatchDay         sql.NullInt32 `db:"match_day"`
	HomeGoals        sql.NullInt32 `db:"home_goals"`
	AwayGoals        sql.NullInt32 `db:"away_goals"`
	NotificationSent bool          `db:"notification_sent"`

	// Predictions is populated only by queries that load them
	Predictions []*Prediction `db:"-"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsFinished returns true if both goal counts are set
func (m *Match) IsFinished() bool {
	return m.HomeGoals.Valid && m.AwayGoals.Valid
}

// HasStarted returns true if now is at or after the scheduled datetime
func (m *Match) HasStarted(now time.Time) bool {
	return !now.Before(m.Datetime)
}

// Outcome returns the result of a finished match
func (m *Match) Outcome() (Outcome, bool) {
	if !m.IsFinished() {
		return "", false
	}
	return OutcomeOf(int(m.HomeGoals.Int32), int(m.AwayGoals.Int32)), true
}

// SetScore sets both goal counts
func (m *Match) SetScore(home, away int) {
	m.HomeGoals = sql.NullInt32{Int32: int32(home), Valid: true}
	m.AwayGoals = sql.NullInt32{Int32: int32(away), Valid: true}
}

// ScoreEquals reports whether the stored score equals home-away
func (m *Match) ScoreEquals(home, away int) bool {
	return m.IsFinished() && int(m.HomeGoals.Int32) == home && int(m.AwayGoals.Int32) == away
}

// Validate checks the both-or-neither goal count invariant
func (m *Match) Validate() error {
	if m.HomeGoals.Valid != m.AwayGoals.Valid {
		return ErrPartialScore
	}
	return nil
}

// MatchDetails is a match joined with display names
type MatchDetails struct {
	Match
	HomeTeamName   string `db:"home_team_name"`
	AwayTeamName   string `db:"away_team_name"`
	TournamentName string `db:"tournament_name"`
}

// ScoreRevision records a provider correction of a finished score
type ScoreRevision struct {
	ID                int       `db:"id"`
	MatchID           int       `db:"match_id"`
	PreviousHomeGoals int       `db:"previous_home_goals"`
	PreviousAwayGoals int       `db:"previous_away_goals"`
	HomeGoals         int       `db:"home_goals"`
	AwayGoals         int       `db:"away_goals"`
	DetectedAt        time.Time `db:"detected_at"`
}
