package models

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// Fixture statuses reported by the feed
const (
	FixtureScheduled = "SCHEDULED"
	FixtureTimed     = "TIMED"
	FixtureInPlay    = "IN_PLAY"
	FixtureFinished  = "FINISHED"
	FixturePostponed = "POSTPONED"
	FixtureCanceled  = "CANCELED"
)

// Link is a single hypermedia link in a feed payload
type Link struct {
	Href string `json:"href"`
}

// Links holds the hypermedia links the feed uses to carry ids
type Links struct {
	Self        Link `json:"self"`
	Competition Link `json:"competition"`
	HomeTeam    Link `json:"homeTeam"`
	AwayTeam    Link `json:"awayTeam"`
}

// IDFromHref returns the trailing numeric path segment of href, or 0
func IDFromHref(href string) int {
	href = strings.TrimRight(href, "/")
	idx := strings.LastIndex(href, "/")
	if idx < 0 {
		return 0
	}
	id, err := strconv.Atoi(href[idx+1:])
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// FixtureResult is the score block of a fixture
type FixtureResult struct {
	GoalsHomeTeam *int `json:"goalsHomeTeam"`
	GoalsAwayTeam *int `json:"goalsAwayTeam"`
}

// FixtureInput is a fixture as returned by the feed
type FixtureInput struct {
	Links        Links         `json:"_links"`
	Date         string        `json:"date"` // ISO 8601 format
	Status       string        `json:"status"`
	MatchDay     int           `json:"matchday"`
	HomeTeamName string        `json:"homeTeamName"`
	AwayTeamName string        `json:"awayTeamName"`
	Result       FixtureResult `json:"result"`

	// Provider ids, parsed from Links
	ID            int `json:"-"`
	CompetitionID int `json:"-"`
	HomeTeamID    int `json:"-"`
	AwayTeamID    int `json:"-"`
}

// ResolveIDs fills the provider ids from the links
func (fi *FixtureInput) ResolveIDs() {
	fi.ID = IDFromHref(fi.Links.Self.Href)
	fi.CompetitionID = IDFromHref(fi.Links.Competition.Href)
	fi.HomeTeamID = IDFromHref(fi.Links.HomeTeam.Href)
	fi.AwayTeamID = IDFromHref(fi.Links.AwayTeam.Href)
}

// Kickoff parses the fixture date
func (fi *FixtureInput) Kickoff() (time.Time, error) {
	return time.Parse(time.RFC3339, fi.Date)
}

// FinalScore returns the score of a finished fixture.
// In-play fixtures carry running goals, which are not final.
func (fi *FixtureInput) FinalScore() (home, away int, ok bool) {
	if fi.Status != FixtureFinished {
		return 0, 0, false
	}
	if fi.Result.GoalsHomeTeam == nil || fi.Result.GoalsAwayTeam == nil {
		return 0, 0, false
	}
	return *fi.Result.GoalsHomeTeam, *fi.Result.GoalsAwayTeam, true
}

// ToMatch converts FixtureInput (from API) to an unplayed Match model
// Note: team and tournament ids need to be resolved from database
func (fi *FixtureInput) ToMatch(tournamentID, homeTeamDBID, awayTeamDBID int, kickoff time.Time) *Match {
	match := &Match{
		TournamentID: tournamentID,
		HomeTeamID:   homeTeamDBID,
		AwayTeamID:   awayTeamDBID,
		Datetime:     kickoff,
	}

	if fi.ID > 0 {
		match.RemoteID = sql.NullInt64{Int64: int64(fi.ID), Valid: true}
	}
	if fi.MatchDay > 0 {
		match.MatchDay = sql.NullInt32{Int32: int32(fi.MatchDay), Valid: true}
	}

	return match
}
