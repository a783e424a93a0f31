package models

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, HomeWin, OutcomeOf(2, 1))
	assert.Equal(t, AwayWin, OutcomeOf(0, 3))
	assert.Equal(t, Draw, OutcomeOf(1, 1))
	assert.Equal(t, Draw, OutcomeOf(0, 0))
	assert.Equal(t, "HOME_WIN", HomeWin.String())
	assert.Equal(t, "DRAW", Draw.String())
}

func TestMatch_State(t *testing.T) {
	kickoff := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	m := &Match{Datetime: kickoff}

	assert.False(t, m.IsFinished())
	_, ok := m.Outcome()
	assert.False(t, ok)
	assert.False(t, m.HasStarted(kickoff.Add(-time.Minute)))
	assert.True(t, m.HasStarted(kickoff))

	m.HomeGoals = sql.NullInt32{Int32: 1, Valid: true}
	assert.ErrorIs(t, m.Validate(), ErrPartialScore)

	m.SetScore(2, 0)
	require.NoError(t, m.Validate())
	outcome, ok := m.Outcome()
	require.True(t, ok)
	assert.Equal(t, HomeWin, outcome)
	assert.True(t, m.ScoreEquals(2, 0))
	assert.False(t, m.ScoreEquals(2, 1))
}

func TestIDFromHref(t *testing.T) {
	assert.Equal(t, 149461, IDFromHref("http://api.football-data.org/v1/fixtures/149461"))
	assert.Equal(t, 66, IDFromHref("http://api.football-data.org/v1/teams/66/"))
	assert.Equal(t, 0, IDFromHref(""))
	assert.Equal(t, 0, IDFromHref("http://api.football-data.org/v1/teams/abc"))
}

func TestFixtureInput_Decode(t *testing.T) {
	payload := []byte(`{
		"_links": {
			"self": {"href": "http://api.football-data.org/v1/fixtures/555"},
			"competition": {"href": "http://api.football-data.org/v1/competitions/10"},
			"homeTeam": {"href": "http://api.football-data.org/v1/teams/1"},
			"awayTeam": {"href": "http://api.football-data.org/v1/teams/2"}
		},
		"date": "2024-05-01T18:00:00Z",
		"status": "FINISHED",
		"matchday": 7,
		"homeTeamName": "Team A",
		"awayTeamName": "Team B",
		"result": {"goalsHomeTeam": 2, "goalsAwayTeam": 0}
	}`)

	var fi FixtureInput
	require.NoError(t, json.Unmarshal(payload, &fi))
	fi.ResolveIDs()

	assert.Equal(t, 555, fi.ID)
	assert.Equal(t, 10, fi.CompetitionID)
	assert.Equal(t, 1, fi.HomeTeamID)
	assert.Equal(t, 2, fi.AwayTeamID)

	kickoff, err := fi.Kickoff()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC), kickoff)

	home, away, ok := fi.FinalScore()
	require.True(t, ok)
	assert.Equal(t, 2, home)
	assert.Equal(t, 0, away)

	m := fi.ToMatch(3, 4, 5, kickoff)
	assert.Equal(t, int64(555), m.RemoteID.Int64)
	assert.Equal(t, int32(7), m.MatchDay.Int32)
	assert.False(t, m.IsFinished())
}

func TestFixtureInput_FinalScore_InPlay(t *testing.T) {
	one := 1
	fi := FixtureInput{Status: FixtureInPlay, Result: FixtureResult{GoalsHomeTeam: &one, GoalsAwayTeam: &one}}
	_, _, ok := fi.FinalScore()
	assert.False(t, ok, "running score must not count as final")

	fi = FixtureInput{Status: FixtureFinished, Result: FixtureResult{GoalsHomeTeam: &one}}
	_, _, ok = fi.FinalScore()
	assert.False(t, ok)
}

func TestTeamInput_ToTeam(t *testing.T) {
	ti := TeamInput{Name: "Manchester United FC", ShortName: "ManU", ID: 66}
	team := ti.ToTeam()
	assert.Equal(t, "Manchester United FC", team.Name)
	assert.Equal(t, int64(66), team.RemoteID.Int64)
	assert.Equal(t, "ManU", team.ShortName.String)
}
