package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Prediction is a user's predicted score for a match
type Prediction struct {
	ID        int           `db:"id"`
	UserID    int           `db:"user_id"`
	MatchID   int           `db:"match_id"`
	HomeGoals int           `db:"home_goals"`
	AwayGoals int           `db:"away_goals"`
	Points    sql.NullInt32 `db:"points"`
	Scored    bool          `db:"score_added"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Outcome returns the predicted result symbol
func (p *Prediction) Outcome() Outcome {
	return OutcomeOf(p.HomeGoals, p.AwayGoals)
}

// PredictionInput is used for creating predictions from a user action
type PredictionInput struct {
	UserID    int `json:"user_id"`
	MatchID   int `json:"match_id"`
	HomeGoals int `json:"home_goals"`
	AwayGoals int `json:"away_goals"`
}

// ToPrediction converts PredictionInput to Prediction model
func (pi *PredictionInput) ToPrediction() *Prediction {
	return &Prediction{
		UserID:    pi.UserID,
		MatchID:   pi.MatchID,
		HomeGoals: pi.HomeGoals,
		AwayGoals: pi.AwayGoals,
	}
}

var (
	// ErrNegativeGoals is returned for a prediction with a negative goal count
	ErrNegativeGoals = errors.New("predicted goals must be non-negative")
	// ErrMatchStarted is returned when predicting a match that has already kicked off
	ErrMatchStarted = errors.New("match has already started")
)

// Validate checks the fields a user controls
func (p *Prediction) Validate() error {
	if p.UserID <= 0 {
		return fmt.Errorf("user_id must be positive")
	}
	if p.MatchID <= 0 {
		return fmt.Errorf("match_id must be positive")
	}
	if p.HomeGoals < 0 || p.AwayGoals < 0 {
		return ErrNegativeGoals
	}
	return nil
}

// Hits compares the prediction with a finished match. exact is set for the
// exact score; outcome only for a correct outcome with a different score.
func (p *Prediction) Hits(m *Match) (exact, outcome bool) {
	result, ok := m.Outcome()
	if !ok {
		return false, false
	}
	if m.ScoreEquals(p.HomeGoals, p.AwayGoals) {
		return true, false
	}
	return false, p.Outcome() == result
}
