package scoring

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"sportify/worker/internal/metrics"
	"sportify/worker/internal/models"
	"sportify/worker/internal/repository/memstore"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSaver struct {
	ScoreSaver
	failMatch int
}

func (f failingSaver) SaveScored(ctx context.Context, match *models.Match, preds []*models.Prediction) ([]*models.Prediction, error) {
	if match.ID == f.failMatch {
		return nil, errors.New("connection reset")
	}
	return f.ScoreSaver.SaveScored(ctx, match, preds)
}

// contendedSaver lets a concurrent scorer apply the first prediction of the
// first batch just before the batch itself is saved
type contendedSaver struct {
	ScoreSaver
	raced bool
}

func (c *contendedSaver) SaveScored(ctx context.Context, match *models.Match, preds []*models.Prediction) ([]*models.Prediction, error) {
	if !c.raced && len(preds) > 0 {
		c.raced = true
		other := *preds[0]
		if _, err := c.ScoreSaver.SaveScored(ctx, match, []*models.Prediction{&other}); err != nil {
			return nil, err
		}
	}
	return c.ScoreSaver.SaveScored(ctx, match, preds)
}

type scoringFixture struct {
	store      *memstore.Store
	tournament *models.Tournament
	now        time.Time
}

func newScoringFixture(t *testing.T) *scoringFixture {
	t.Helper()

	s := memstore.New()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	tour := &models.Tournament{Name: "Premier League", RemoteID: sql.NullInt64{Int64: 10, Valid: true}}
	require.NoError(t, s.Tournaments.UpsertByRemoteID(context.Background(), tour))

	return &scoringFixture{store: s, tournament: tour, now: now}
}

// addMatch creates a match, lets users predict it, then sets the final score
func (f *scoringFixture) addMatch(t *testing.T, home, away int, preds map[int][2]int) *models.Match {
	t.Helper()
	ctx := context.Background()

	ht := &models.Team{Name: "Home"}
	at := &models.Team{Name: "Away"}
	require.NoError(t, f.store.Teams.Create(ctx, ht))
	require.NoError(t, f.store.Teams.Create(ctx, at))

	m := &models.Match{TournamentID: f.tournament.ID, HomeTeamID: ht.ID, AwayTeamID: at.ID, Datetime: f.now.Add(time.Hour)}
	require.NoError(t, f.store.Matches.Save(ctx, m))

	for user, score := range preds {
		require.NoError(t, f.store.Predictions.Create(ctx, &models.Prediction{
			UserID: user, MatchID: m.ID, HomeGoals: score[0], AwayGoals: score[1],
		}))
	}

	m.SetScore(home, away)
	require.NoError(t, f.store.Matches.Save(ctx, m))
	return m
}

func TestService_ScoreFinishedMatches(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	f.addMatch(t, 2, 1, map[int][2]int{1: {2, 1}, 2: {3, 1}, 3: {0, 1}})
	f.addMatch(t, 0, 0, map[int][2]int{1: {1, 1}})

	svc := NewService(NewEngine(DefaultPoints()), f.store.Matches, f.store.Predictions)

	summary, err := svc.ScoreFinishedMatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Matches: 2, Predictions: 4}, summary)

	user1, err := f.store.Standings.GetByUserAndTournament(ctx, 1, f.tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, user1.Points, "exact 3 plus outcome 1")
	assert.Equal(t, 1, user1.ExactHits)
	assert.Equal(t, 1, user1.OutcomeHits)

	user3, err := f.store.Standings.GetByUserAndTournament(ctx, 3, f.tournament.ID)
	require.NoError(t, err)
	assert.Zero(t, user3.Points)

	// Re-running adds nothing
	summary, err = svc.ScoreFinishedMatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)

	user1, err = f.store.Standings.GetByUserAndTournament(ctx, 1, f.tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, user1.Points)
}

func TestService_OneFailingMatchDoesNotStopOthers(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	bad := f.addMatch(t, 1, 0, map[int][2]int{1: {1, 0}})
	good := f.addMatch(t, 1, 0, map[int][2]int{2: {1, 0}})

	svc := NewService(NewEngine(DefaultPoints()), f.store.Matches, failingSaver{ScoreSaver: f.store.Predictions, failMatch: bad.ID})

	summary, err := svc.ScoreFinishedMatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Matches)
	assert.Equal(t, 1, summary.Failed)

	preds, err := f.store.Predictions.ListByMatch(ctx, good.ID)
	require.NoError(t, err)
	assert.True(t, preds[0].Scored)

	preds, err = f.store.Predictions.ListByMatch(ctx, bad.ID)
	require.NoError(t, err)
	assert.False(t, preds[0].Scored, "failed match stays pending for the next run")
}

func TestService_MatchWithoutPredictionsIsNotPending(t *testing.T) {
	f := newScoringFixture(t)

	f.addMatch(t, 3, 3, nil)

	svc := NewService(NewEngine(DefaultPoints()), f.store.Matches, f.store.Predictions)
	summary, err := svc.ScoreFinishedMatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
}

func TestService_CountsOnlyPredictionsItApplied(t *testing.T) {
	f := newScoringFixture(t)
	ctx := context.Background()

	f.addMatch(t, 1, 0, map[int][2]int{1: {1, 0}, 2: {1, 0}})

	exact := metrics.PredictionsScored.WithLabelValues(string(TierExact))
	before := testutil.ToFloat64(exact)

	svc := NewService(NewEngine(DefaultPoints()), f.store.Matches, &contendedSaver{ScoreSaver: f.store.Predictions})
	summary, err := svc.ScoreFinishedMatches(ctx)
	require.NoError(t, err)

	assert.Equal(t, Summary{Matches: 1, Predictions: 1}, summary)
	assert.Equal(t, before+1, testutil.ToFloat64(exact), "the prediction applied elsewhere is not counted")

	for _, user := range []int{1, 2} {
		standing, err := f.store.Standings.GetByUserAndTournament(ctx, user, f.tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, standing.Points)
	}
}
