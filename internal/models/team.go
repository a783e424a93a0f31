package models

import (
	"database/sql"
	"time"
)

// Team represents a club or national team
type Team struct {
	ID        int            `db:"id"`
	RemoteID  sql.NullInt64  `db:"remote_id"`
	Name      string         `db:"name"`
	ShortName sql.NullString `db:"short_name"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// TeamInput is a team as returned by the fixture feed
type TeamInput struct {
	Links     Links  `json:"_links"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	ShortName string `json:"shortName"`

	// ID is parsed from Links.Self
	ID int `json:"-"`
}

// ToTeam converts TeamInput (from API) to Team model
func (ti *TeamInput) ToTeam() *Team {
	team := &Team{
		Name: ti.Name,
	}

	if ti.ID > 0 {
		team.RemoteID = sql.NullInt64{Int64: int64(ti.ID), Valid: true}
	}
	if ti.ShortName != "" {
		team.ShortName = sql.NullString{String: ti.ShortName, Valid: true}
	}

	return team
}

// Tournament represents a competition users predict in
type Tournament struct {
	ID        int           `db:"id"`
	Name      string        `db:"name"`
	RemoteID  sql.NullInt64 `db:"remote_id"`
	CreatedAt time.Time     `db:"created_at"`
	UpdatedAt time.Time     `db:"updated_at"`
}

// Standing is a user's accumulated score in a tournament
type Standing struct {
	UserID       int       `db:"user_id"`
	TournamentID int       `db:"tournament_id"`
	Points       int       `db:"points"`
	ExactHits    int       `db:"exact_hits"`
	OutcomeHits  int       `db:"outcome_hits"`
	UpdatedAt    time.Time `db:"updated_at"`
}
