package scoring

import (
	"database/sql"
	"errors"
	"fmt"

	"sportify/worker/internal/models"
)

var (
	// ErrInvalidMatchState is returned when scoring a match without a final score
	ErrInvalidMatchState = errors.New("invalid match state: final score missing")
	// ErrForeignPrediction is returned when a prediction references another match
	ErrForeignPrediction = errors.New("prediction belongs to another match")
)

// Tier is the grade of a prediction
type Tier string

const (
	TierExact   Tier = "exact"
	TierOutcome Tier = "outcome"
	TierMiss    Tier = "miss"
)

// Points holds the value of each tier
type Points struct {
	Exact   int
	Outcome int
	Miss    int
}

// DefaultPoints returns 3 for an exact score, 1 for a correct outcome and 0 otherwise
func DefaultPoints() Points {
	return Points{Exact: 3, Outcome: 1, Miss: 0}
}

// For returns the value of a tier
func (p Points) For(t Tier) int {
	switch t {
	case TierExact:
		return p.Exact
	case TierOutcome:
		return p.Outcome
	default:
		return p.Miss
	}
}

// Engine grades predictions against final scores
type Engine struct {
	points Points
}

// NewEngine creates an engine with the given point values
func NewEngine(points Points) *Engine {
	return &Engine{points: points}
}

// Points returns the configured point values
func (e *Engine) Points() Points {
	return e.points
}

// Grade classifies a prediction against a finished match
func (e *Engine) Grade(match *models.Match, pred *models.Prediction) (Tier, error) {
	result, ok := match.Outcome()
	if !ok {
		return "", fmt.Errorf("match id=%d: %w", match.ID, ErrInvalidMatchState)
	}

	switch {
	case match.ScoreEquals(pred.HomeGoals, pred.AwayGoals):
		return TierExact, nil
	case pred.Outcome() == result:
		return TierOutcome, nil
	default:
		return TierMiss, nil
	}
}

// ScoreMatch sets points and the scored flag on every unscored prediction of a
// finished match and returns them. Predictions already scored are skipped, so
// calling it again with the same slice returns nothing.
func (e *Engine) ScoreMatch(match *models.Match, preds []*models.Prediction) ([]*models.Prediction, error) {
	if err := match.Validate(); err != nil || !match.IsFinished() {
		return nil, fmt.Errorf("match id=%d: %w", match.ID, ErrInvalidMatchState)
	}

	for _, p := range preds {
		if p.MatchID != match.ID {
			return nil, fmt.Errorf("prediction id=%d references match id=%d, scoring match id=%d: %w",
				p.ID, p.MatchID, match.ID, ErrForeignPrediction)
		}
	}

	var scored []*models.Prediction
	for _, p := range preds {
		if p.Scored {
			continue
		}

		tier, err := e.Grade(match, p)
		if err != nil {
			return nil, err
		}

		p.Points = sql.NullInt32{Int32: int32(e.points.For(tier)), Valid: true}
		p.Scored = true
		scored = append(scored, p)
	}

	return scored, nil
}
