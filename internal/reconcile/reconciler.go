package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sportify/worker/internal/metrics"
	"sportify/worker/internal/models"
	"sportify/worker/internal/repository"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FixtureFeed is the remote fixture provider
type FixtureFeed interface {
	FetchFixturesByTournamentAndMatchDay(ctx context.Context, competitionID, matchDay int) ([]models.FixtureInput, error)
	FetchFixturesByTournamentAndTimeRange(ctx context.Context, competitionID int, from, to time.Time) ([]models.FixtureInput, error)
	FetchTeamsByTournament(ctx context.Context, competitionID int) ([]models.TeamInput, error)
}

// MatchStore is the match persistence used during reconciliation
type MatchStore interface {
	FindByTournamentAndRemoteID(ctx context.Context, tournamentID, remoteID int) ([]*models.Match, error)
	FindByTournamentAndTeams(ctx context.Context, tournamentID, homeTeamID, awayTeamID int, kickoff time.Time) ([]*models.Match, error)
	Save(ctx context.Context, m *models.Match) error
	RecordRevision(ctx context.Context, rev *models.ScoreRevision) error
}

// TeamStore is the team persistence used during reconciliation
type TeamStore interface {
	GetByID(ctx context.Context, id int) (*models.Team, error)
	GetByRemoteID(ctx context.Context, remoteID int) (*models.Team, error)
	Create(ctx context.Context, team *models.Team) error
	Update(ctx context.Context, team *models.Team) error
}

// TeamCache maps provider team ids to local team ids. Entries may outlive the
// teams they point at, so hits are checked against the TeamStore.
type TeamCache interface {
	GetTeamID(ctx context.Context, remoteID int) (int, bool)
	SetTeamID(ctx context.Context, remoteID, teamID int)
	DeleteTeamID(ctx context.Context, remoteID int)
}

type noCache struct{}

func (noCache) GetTeamID(context.Context, int) (int, bool) { return 0, false }
func (noCache) SetTeamID(context.Context, int, int)        {}
func (noCache) DeleteTeamID(context.Context, int)          {}

// Window selects the fixtures of one reconciliation: a matchday, or a date range
type Window struct {
	MatchDay int
	From     time.Time
	To       time.Time
}

// MatchDayWindow selects the fixtures of one matchday
func MatchDayWindow(matchDay int) Window {
	return Window{MatchDay: matchDay}
}

// RangeWindow selects the fixtures scheduled between from and to
func RangeWindow(from, to time.Time) Window {
	return Window{From: from, To: to}
}

// Validate rejects a date range whose end is before its start
func (w Window) Validate() error {
	if w.MatchDay > 0 {
		return nil
	}
	if w.MatchDay < 0 {
		return fmt.Errorf("%w: matchday %d", ErrInvalidWindow, w.MatchDay)
	}
	if w.To.Before(w.From) {
		return fmt.Errorf("%w: %s", ErrInvalidWindow, w)
	}
	return nil
}

func (w Window) String() string {
	if w.MatchDay > 0 {
		return fmt.Sprintf("matchday %d", w.MatchDay)
	}
	return fmt.Sprintf("%s..%s", w.From.Format(time.DateOnly), w.To.Format(time.DateOnly))
}

// Result counts what one tournament reconciliation changed
type Result struct {
	TournamentID int
	RemoteID     int

	Fetched      int
	Created      int
	Finished     int // unplayed matches that received a final score
	Corrected    int // finished matches whose score changed
	Rescheduled  int
	TeamsCreated int
	Conflicts    int
	Skipped      int // fixtures without team ids or a parseable date

	Err error
}

// Changed reports whether the run wrote anything
func (r Result) Changed() bool {
	return r.Created+r.Finished+r.Corrected+r.Rescheduled+r.TeamsCreated > 0
}

// Options tunes batch reconciliation
type Options struct {
	Concurrency      int
	MaxFetchFailures int
}

// Reconciler merges the remote fixture feed into local matches and teams.
// It sets goal counts but never the notification flag.
type Reconciler struct {
	feed    FixtureFeed
	matches MatchStore
	teams   TeamStore
	cache   TeamCache
	opts    Options
}

// New creates a reconciler. cache may be nil.
func New(feed FixtureFeed, matches MatchStore, teams TeamStore, cache TeamCache, opts Options) *Reconciler {
	if cache == nil {
		cache = noCache{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxFetchFailures <= 0 {
		opts.MaxFetchFailures = 3
	}
	return &Reconciler{
		feed:    feed,
		matches: matches,
		teams:   teams,
		cache:   cache,
		opts:    opts,
	}
}

func loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// run holds the state of one tournament reconciliation
type run struct {
	tournament *models.Tournament
	teamIDs    map[int]int // provider team id -> local id
	result     *Result
	logger     zerolog.Logger
}

// ReconcileTournament fetches the fixtures of a tournament for the window and
// merges them into the match store. A fetch failure is returned as is; a
// fixture that maps to several matches is skipped and counted as a conflict.
func (r *Reconciler) ReconcileTournament(ctx context.Context, tournament *models.Tournament, w Window) (Result, error) {
	start := time.Now()
	res := Result{TournamentID: tournament.ID}

	if !tournament.RemoteID.Valid {
		res.Err = fmt.Errorf("tournament id=%d: %w", tournament.ID, ErrNoRemoteID)
		return res, res.Err
	}
	res.RemoteID = int(tournament.RemoteID.Int64)

	if err := w.Validate(); err != nil {
		res.Err = err
		return res, err
	}

	logger := loggerFrom(ctx).With().
		Int("tournament_id", tournament.ID).
		Int("remote_id", res.RemoteID).
		Str("window", w.String()).
		Logger()

	fixtures, err := r.fetch(ctx, res.RemoteID, w)
	if err != nil {
		metrics.RecordSync("fixtures", "error", time.Since(start).Seconds())
		metrics.RecordError("reconcile", "fetch")
		logger.Error().Err(err).Msg("Failed to fetch fixtures")
		res.Err = fmt.Errorf("tournament %q: %w", tournament.Name, err)
		return res, res.Err
	}
	res.Fetched = len(fixtures)

	rn := &run{
		tournament: tournament,
		teamIDs:    make(map[int]int),
		result:     &res,
		logger:     logger,
	}

	for i := range fixtures {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res, err
		}

		fx := &fixtures[i]
		err := r.reconcileFixture(ctx, rn, fx)
		switch {
		case err == nil:
		case IsDuplicateFixture(err):
			res.Conflicts++
			logger.Warn().Err(err).Int("fixture_id", fx.ID).Msg("Skipping fixture with several local matches")
		case errors.Is(err, ErrInvalidFixture):
			res.Skipped++
			logger.Warn().Err(err).Int("fixture_id", fx.ID).Msg("Skipping invalid fixture")
		default:
			metrics.RecordSync("fixtures", "error", time.Since(start).Seconds())
			metrics.RecordError("reconcile", "store")
			res.Err = fmt.Errorf("fixture %d: %w", fx.ID, err)
			return res, res.Err
		}
	}

	metrics.RecordReconcile(res.Created, res.Finished, res.Corrected, res.TeamsCreated, res.Conflicts)
	metrics.RecordSync("fixtures", "success", time.Since(start).Seconds())

	logger.Info().
		Int("fetched", res.Fetched).
		Int("created", res.Created).
		Int("finished", res.Finished).
		Int("corrected", res.Corrected).
		Int("rescheduled", res.Rescheduled).
		Int("teams_created", res.TeamsCreated).
		Int("conflicts", res.Conflicts).
		Dur("duration", time.Since(start)).
		Msg("Tournament reconciled")

	return res, nil
}

func (r *Reconciler) fetch(ctx context.Context, competitionID int, w Window) ([]models.FixtureInput, error) {
	if w.MatchDay > 0 {
		return r.feed.FetchFixturesByTournamentAndMatchDay(ctx, competitionID, w.MatchDay)
	}
	return r.feed.FetchFixturesByTournamentAndTimeRange(ctx, competitionID, w.From, w.To)
}

func (r *Reconciler) reconcileFixture(ctx context.Context, rn *run, fx *models.FixtureInput) error {
	if fx.HomeTeamID == 0 || fx.AwayTeamID == 0 {
		return fmt.Errorf("fixture %d has no team ids: %w", fx.ID, ErrInvalidFixture)
	}
	kickoff, err := fx.Kickoff()
	if err != nil {
		return fmt.Errorf("fixture %d date %q: %w", fx.ID, fx.Date, ErrInvalidFixture)
	}
	kickoff = kickoff.UTC()

	homeID, err := r.resolveTeam(ctx, rn, fx.HomeTeamID, fx.HomeTeamName)
	if err != nil {
		return err
	}
	awayID, err := r.resolveTeam(ctx, rn, fx.AwayTeamID, fx.AwayTeamName)
	if err != nil {
		return err
	}

	match, err := r.locateMatch(ctx, rn.tournament.ID, fx, homeID, awayID, kickoff)
	if err != nil {
		return err
	}

	home, away, final := fx.FinalScore()

	if match == nil {
		match = fx.ToMatch(rn.tournament.ID, homeID, awayID, kickoff)
		if final {
			match.SetScore(home, away)
		}
		if err := r.matches.Save(ctx, match); err != nil {
			return err
		}
		rn.result.Created++
		if final {
			rn.result.Finished++
		}
		rn.logger.Debug().Int("match_id", match.ID).Int("fixture_id", fx.ID).Bool("finished", final).Msg("Match created")
		return nil
	}

	changed := false

	if fx.ID > 0 && (!match.RemoteID.Valid || match.RemoteID.Int64 != int64(fx.ID)) {
		match.RemoteID = sql.NullInt64{Int64: int64(fx.ID), Valid: true}
		changed = true
	}

	if !match.IsFinished() && reschedule(match, fx, kickoff) {
		rn.result.Rescheduled++
		changed = true
	}

	var revision *models.ScoreRevision
	if final && !match.ScoreEquals(home, away) {
		if match.IsFinished() {
			revision = &models.ScoreRevision{
				MatchID:           match.ID,
				PreviousHomeGoals: int(match.HomeGoals.Int32),
				PreviousAwayGoals: int(match.AwayGoals.Int32),
				HomeGoals:         home,
				AwayGoals:         away,
			}
			rn.result.Corrected++
		} else {
			rn.result.Finished++
		}
		match.SetScore(home, away)
		changed = true
	}

	if !changed {
		return nil
	}

	if err := r.matches.Save(ctx, match); err != nil {
		return err
	}

	if revision != nil {
		if err := r.matches.RecordRevision(ctx, revision); err != nil {
			// The corrected score is already saved
			rn.logger.Error().Err(err).Int("match_id", match.ID).Msg("Failed to record score revision")
		} else {
			rn.logger.Warn().
				Int("match_id", match.ID).
				Str("previous", fmt.Sprintf("%d-%d", revision.PreviousHomeGoals, revision.PreviousAwayGoals)).
				Str("score", fmt.Sprintf("%d-%d", home, away)).
				Msg("Final score corrected by provider")
		}
	}

	return nil
}

// reschedule copies a changed kickoff or matchday onto an unplayed match
func reschedule(match *models.Match, fx *models.FixtureInput, kickoff time.Time) bool {
	changed := false
	if !match.Datetime.Equal(kickoff) {
		match.Datetime = kickoff
		changed = true
	}
	if fx.MatchDay > 0 && (!match.MatchDay.Valid || int(match.MatchDay.Int32) != fx.MatchDay) {
		match.MatchDay = sql.NullInt32{Int32: int32(fx.MatchDay), Valid: true}
		changed = true
	}
	return changed
}

// locateMatch finds the local match of a fixture: by fixture id, else by
// pairing and kickoff. Returns nil when there is none.
func (r *Reconciler) locateMatch(ctx context.Context, tournamentID int, fx *models.FixtureInput, homeID, awayID int, kickoff time.Time) (*models.Match, error) {
	if fx.ID > 0 {
		found, err := r.matches.FindByTournamentAndRemoteID(ctx, tournamentID, fx.ID)
		if err != nil {
			return nil, err
		}
		if m, err := single(tournamentID, fx.ID, found); m != nil || err != nil {
			return m, err
		}
	}

	found, err := r.matches.FindByTournamentAndTeams(ctx, tournamentID, homeID, awayID, kickoff)
	if err != nil {
		return nil, err
	}

	// A candidate linked to another fixture is not this one
	candidates := found[:0]
	for _, m := range found {
		if fx.ID > 0 && m.RemoteID.Valid && m.RemoteID.Int64 != int64(fx.ID) {
			continue
		}
		candidates = append(candidates, m)
	}

	return single(tournamentID, fx.ID, candidates)
}

func single(tournamentID, fixtureID int, found []*models.Match) (*models.Match, error) {
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	}

	ids := make([]int, len(found))
	for i, m := range found {
		ids[i] = m.ID
	}
	return nil, &DuplicateFixtureError{TournamentID: tournamentID, FixtureID: fixtureID, MatchIDs: ids}
}

// resolveTeam returns the local id of a provider team, creating the team when unknown
func (r *Reconciler) resolveTeam(ctx context.Context, rn *run, remoteID int, name string) (int, error) {
	if id, ok := rn.teamIDs[remoteID]; ok {
		return id, nil
	}
	if id, ok := r.cache.GetTeamID(ctx, remoteID); ok {
		valid, err := r.cachedTeamValid(ctx, id, remoteID)
		if err != nil {
			return 0, err
		}
		if valid {
			rn.teamIDs[remoteID] = id
			return id, nil
		}
		rn.logger.Warn().Int("team_id", id).Int("remote_id", remoteID).Msg("Dropping stale team cache entry")
		r.cache.DeleteTeamID(ctx, remoteID)
	}

	team, created, err := r.getOrCreateTeam(ctx, models.TeamInput{ID: remoteID, Name: name})
	if err != nil {
		return 0, err
	}
	if created {
		rn.result.TeamsCreated++
		rn.logger.Info().Int("team_id", team.ID).Int("remote_id", remoteID).Str("name", team.Name).Msg("Team created from fixture")
	}

	rn.teamIDs[remoteID] = team.ID
	r.cache.SetTeamID(ctx, remoteID, team.ID)
	return team.ID, nil
}

// cachedTeamValid reports whether the cached local id still names the team of remoteID
func (r *Reconciler) cachedTeamValid(ctx context.Context, id, remoteID int) (bool, error) {
	team, err := r.teams.GetByID(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to look up team %d: %w", id, err)
	}
	return team.RemoteID.Valid && team.RemoteID.Int64 == int64(remoteID), nil
}

func (r *Reconciler) getOrCreateTeam(ctx context.Context, in models.TeamInput) (*models.Team, bool, error) {
	team, err := r.teams.GetByRemoteID(ctx, in.ID)
	if err == nil {
		return team, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up team %d: %w", in.ID, err)
	}

	team = in.ToTeam()
	if team.Name == "" {
		team.Name = fmt.Sprintf("Team %d", in.ID)
	}
	if err := r.teams.Create(ctx, team); err != nil {
		// Another tournament of the same batch may have created it first
		if existing, lookupErr := r.teams.GetByRemoteID(ctx, in.ID); lookupErr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}

	return team, true, nil
}
