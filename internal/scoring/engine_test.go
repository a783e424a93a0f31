package scoring

import (
	"database/sql"
	"testing"

	"sportify/worker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finishedMatch(id, home, away int) *models.Match {
	m := &models.Match{ID: id}
	m.SetScore(home, away)
	return m
}

func TestEngine_ScoreMatch_Tiers(t *testing.T) {
	tests := []struct {
		name       string
		actualHome int
		actualAway int
		predHome   int
		predAway   int
		want       int32
	}{
		{"exact score", 2, 1, 2, 1, 3},
		{"correct home win", 2, 1, 3, 1, 1},
		{"correct away win", 0, 2, 1, 3, 1},
		{"correct draw", 1, 1, 0, 0, 1},
		{"exact goalless draw", 0, 0, 0, 0, 3},
		{"wrong outcome", 2, 1, 1, 1, 0},
		{"reversed score", 2, 1, 1, 2, 0},
	}

	engine := NewEngine(DefaultPoints())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := finishedMatch(1, tt.actualHome, tt.actualAway)
			pred := &models.Prediction{ID: 10, MatchID: 1, HomeGoals: tt.predHome, AwayGoals: tt.predAway}

			scored, err := engine.ScoreMatch(match, []*models.Prediction{pred})
			require.NoError(t, err)
			require.Len(t, scored, 1)

			assert.True(t, pred.Scored)
			assert.True(t, pred.Points.Valid)
			assert.Equal(t, tt.want, pred.Points.Int32)
		})
	}
}

func TestEngine_ScoreMatch_CustomPoints(t *testing.T) {
	engine := NewEngine(Points{Exact: 5, Outcome: 2, Miss: -1})
	match := finishedMatch(1, 3, 0)

	preds := []*models.Prediction{
		{ID: 1, MatchID: 1, HomeGoals: 3, AwayGoals: 0},
		{ID: 2, MatchID: 1, HomeGoals: 1, AwayGoals: 0},
		{ID: 3, MatchID: 1, HomeGoals: 0, AwayGoals: 1},
	}

	_, err := engine.ScoreMatch(match, preds)
	require.NoError(t, err)

	assert.Equal(t, int32(5), preds[0].Points.Int32)
	assert.Equal(t, int32(2), preds[1].Points.Int32)
	assert.Equal(t, int32(-1), preds[2].Points.Int32)
}

func TestEngine_ScoreMatch_IsIdempotent(t *testing.T) {
	engine := NewEngine(DefaultPoints())
	match := finishedMatch(1, 2, 1)
	preds := []*models.Prediction{{ID: 1, MatchID: 1, HomeGoals: 2, AwayGoals: 1}}

	scored, err := engine.ScoreMatch(match, preds)
	require.NoError(t, err)
	assert.Len(t, scored, 1)

	scored, err = engine.ScoreMatch(match, preds)
	require.NoError(t, err)
	assert.Empty(t, scored, "already scored predictions are skipped")
	assert.Equal(t, int32(3), preds[0].Points.Int32)
}

func TestEngine_ScoreMatch_SkipsScoredKeepsPoints(t *testing.T) {
	engine := NewEngine(DefaultPoints())
	match := finishedMatch(1, 2, 1)
	done := &models.Prediction{ID: 1, MatchID: 1, HomeGoals: 0, AwayGoals: 0, Scored: true, Points: sql.NullInt32{Int32: 3, Valid: true}}

	scored, err := engine.ScoreMatch(match, []*models.Prediction{done})
	require.NoError(t, err)
	assert.Empty(t, scored)
	assert.Equal(t, int32(3), done.Points.Int32, "points of a scored prediction never change")
}

func TestEngine_ScoreMatch_InvalidMatchState(t *testing.T) {
	engine := NewEngine(DefaultPoints())
	pred := &models.Prediction{ID: 1, MatchID: 1}

	unplayed := &models.Match{ID: 1}
	_, err := engine.ScoreMatch(unplayed, []*models.Prediction{pred})
	assert.ErrorIs(t, err, ErrInvalidMatchState)

	partial := &models.Match{ID: 1, HomeGoals: sql.NullInt32{Int32: 1, Valid: true}}
	_, err = engine.ScoreMatch(partial, []*models.Prediction{pred})
	assert.ErrorIs(t, err, ErrInvalidMatchState)

	assert.False(t, pred.Scored, "nothing is marked on failure")
}

func TestEngine_ScoreMatch_RejectsForeignPrediction(t *testing.T) {
	engine := NewEngine(DefaultPoints())
	match := finishedMatch(1, 1, 0)
	own := &models.Prediction{ID: 1, MatchID: 1, HomeGoals: 1, AwayGoals: 0}
	foreign := &models.Prediction{ID: 2, MatchID: 2, HomeGoals: 1, AwayGoals: 0}

	_, err := engine.ScoreMatch(match, []*models.Prediction{own, foreign})
	assert.ErrorIs(t, err, ErrForeignPrediction)
	assert.False(t, own.Scored)
}

func TestEngine_Grade(t *testing.T) {
	engine := NewEngine(DefaultPoints())

	tier, err := engine.Grade(finishedMatch(1, 2, 1), &models.Prediction{HomeGoals: 3, AwayGoals: 1})
	require.NoError(t, err)
	assert.Equal(t, TierOutcome, tier)

	_, err = engine.Grade(&models.Match{ID: 1}, &models.Prediction{})
	assert.ErrorIs(t, err, ErrInvalidMatchState)
}
