// Package memstore is an in-memory implementation of the repository
// interfaces. It copies records on the way in and out so callers observe
// the same aliasing rules as with PostgreSQL.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sportify/worker/internal/models"
	"sportify/worker/internal/repository"
)

type state struct {
	mu sync.Mutex

	now func() time.Time

	tournaments map[int]*models.Tournament
	teams       map[int]*models.Team
	matches     map[int]*models.Match
	predictions map[int]*models.Prediction
	standings   map[[2]int]*models.Standing
	revisions   []*models.ScoreRevision

	seq int
}

func (s *state) nextID() int {
	s.seq++
	return s.seq
}

// Store groups the in-memory repositories over shared state
type Store struct {
	Tournaments *TournamentStore
	Teams       *TeamStore
	Matches     *MatchStore
	Predictions *PredictionStore
	Standings   *StandingStore

	st *state
}

// New returns an empty store
func New() *Store {
	st := &state{
		now:         time.Now,
		tournaments: make(map[int]*models.Tournament),
		teams:       make(map[int]*models.Team),
		matches:     make(map[int]*models.Match),
		predictions: make(map[int]*models.Prediction),
		standings:   make(map[[2]int]*models.Standing),
	}
	return &Store{
		Tournaments: &TournamentStore{st},
		Teams:       &TeamStore{st},
		Matches:     &MatchStore{st},
		Predictions: &PredictionStore{st},
		Standings:   &StandingStore{st},
		st:          st,
	}
}

// SetClock replaces the clock used for timestamps and kickoff checks
func (s *Store) SetClock(now func() time.Time) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.now = now
}

func copyMatch(m *models.Match) *models.Match {
	c := *m
	c.Predictions = nil
	return &c
}

func copyPrediction(p *models.Prediction) *models.Prediction {
	c := *p
	return &c
}

// TournamentStore is the in-memory tournament repository
type TournamentStore struct{ st *state }

// ListTracked returns tournaments with a remote id, by id
func (r *TournamentStore) ListTracked(ctx context.Context) ([]*models.Tournament, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	var out []*models.Tournament
	for _, t := range r.st.tournaments {
		if t.RemoteID.Valid {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetByRemoteID retrieves a tournament by its provider id
func (r *TournamentStore) GetByRemoteID(ctx context.Context, remoteID int) (*models.Tournament, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	for _, t := range r.st.tournaments {
		if t.RemoteID.Valid && int(t.RemoteID.Int64) == remoteID {
			c := *t
			return &c, nil
		}
	}
	return nil, fmt.Errorf("tournament remote_id=%d: %w", remoteID, repository.ErrNotFound)
}

// UpsertByRemoteID inserts a tournament or renames the one with the same remote id
func (r *TournamentStore) UpsertByRemoteID(ctx context.Context, t *models.Tournament) error {
	if !t.RemoteID.Valid {
		return fmt.Errorf("tournament %q has no remote id", t.Name)
	}

	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	now := r.st.now()
	for _, existing := range r.st.tournaments {
		if existing.RemoteID == t.RemoteID {
			existing.Name = t.Name
			existing.UpdatedAt = now
			*t = *existing
			return nil
		}
	}

	t.ID = r.st.nextID()
	t.CreatedAt, t.UpdatedAt = now, now
	c := *t
	r.st.tournaments[t.ID] = &c
	return nil
}

// TeamStore is the in-memory team repository
type TeamStore struct{ st *state }

// Create inserts a new team
func (r *TeamStore) Create(ctx context.Context, team *models.Team) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if team.RemoteID.Valid {
		for _, existing := range r.st.teams {
			if existing.RemoteID == team.RemoteID {
				return fmt.Errorf("failed to create team: duplicate remote_id=%d", team.RemoteID.Int64)
			}
		}
	}

	now := r.st.now()
	team.ID = r.st.nextID()
	team.CreatedAt, team.UpdatedAt = now, now
	c := *team
	r.st.teams[team.ID] = &c
	return nil
}

// GetByID retrieves a team by id
func (r *TeamStore) GetByID(ctx context.Context, id int) (*models.Team, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	t, ok := r.st.teams[id]
	if !ok {
		return nil, fmt.Errorf("team id=%d: %w", id, repository.ErrNotFound)
	}
	c := *t
	return &c, nil
}

// GetByRemoteID retrieves a team by its provider id
func (r *TeamStore) GetByRemoteID(ctx context.Context, remoteID int) (*models.Team, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	for _, t := range r.st.teams {
		if t.RemoteID.Valid && int(t.RemoteID.Int64) == remoteID {
			c := *t
			return &c, nil
		}
	}
	return nil, fmt.Errorf("team remote_id=%d: %w", remoteID, repository.ErrNotFound)
}

// Update updates a team's names
func (r *TeamStore) Update(ctx context.Context, team *models.Team) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	existing, ok := r.st.teams[team.ID]
	if !ok {
		return fmt.Errorf("team id=%d: %w", team.ID, repository.ErrNotFound)
	}
	existing.Name = team.Name
	existing.ShortName = team.ShortName
	existing.UpdatedAt = r.st.now()
	team.UpdatedAt = existing.UpdatedAt
	return nil
}

// List returns all teams ordered by name
func (r *TeamStore) List(ctx context.Context) ([]*models.Team, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	out := make([]*models.Team, 0, len(r.st.teams))
	for _, t := range r.st.teams {
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// MatchStore is the in-memory match repository
type MatchStore struct{ st *state }

func (r *MatchStore) collect(keep func(*models.Match) bool) []*models.Match {
	var out []*models.Match
	for _, m := range r.st.matches {
		if keep(m) {
			out = append(out, copyMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Datetime.Equal(out[j].Datetime) {
			return out[i].Datetime.Before(out[j].Datetime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *MatchStore) details(m *models.Match) *models.MatchDetails {
	d := &models.MatchDetails{Match: *m}
	if t, ok := r.st.teams[m.HomeTeamID]; ok {
		d.HomeTeamName = t.Name
	}
	if t, ok := r.st.teams[m.AwayTeamID]; ok {
		d.AwayTeamName = t.Name
	}
	if t, ok := r.st.tournaments[m.TournamentID]; ok {
		d.TournamentName = t.Name
	}
	return d
}

// GetByID retrieves a match by id
func (r *MatchStore) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	m, ok := r.st.matches[id]
	if !ok {
		return nil, fmt.Errorf("match id=%d: %w", id, repository.ErrNotFound)
	}
	return copyMatch(m), nil
}

// All returns every match, earliest first
func (r *MatchStore) All() []*models.Match {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.collect(func(*models.Match) bool { return true })
}

// FindByTournamentAndRemoteID returns the matches of a tournament carrying a provider fixture id
func (r *MatchStore) FindByTournamentAndRemoteID(ctx context.Context, tournamentID, remoteID int) ([]*models.Match, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	return r.collect(func(m *models.Match) bool {
		return m.TournamentID == tournamentID && m.RemoteID.Valid && int(m.RemoteID.Int64) == remoteID
	}), nil
}

// FindByTournamentAndTeams returns the matches of a tournament with the given pairing and kickoff
func (r *MatchStore) FindByTournamentAndTeams(ctx context.Context, tournamentID, homeTeamID, awayTeamID int, kickoff time.Time) ([]*models.Match, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	return r.collect(func(m *models.Match) bool {
		return m.TournamentID == tournamentID &&
			m.HomeTeamID == homeTeamID &&
			m.AwayTeamID == awayTeamID &&
			m.Datetime.Equal(kickoff)
	}), nil
}

// FindUpcoming returns not-notified matches scheduled in [from, to]
func (r *MatchStore) FindUpcoming(ctx context.Context, from, to time.Time) ([]*models.Match, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	return r.collect(func(m *models.Match) bool {
		return !m.NotificationSent && !m.Datetime.Before(from) && !m.Datetime.After(to)
	}), nil
}

// FindUnscoredFinishedMatches returns finished matches with their unscored predictions
func (r *MatchStore) FindUnscoredFinishedMatches(ctx context.Context) ([]*models.Match, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	pending := make(map[int][]*models.Prediction)
	for _, p := range r.st.predictions {
		if !p.Scored {
			pending[p.MatchID] = append(pending[p.MatchID], copyPrediction(p))
		}
	}

	matches := r.collect(func(m *models.Match) bool {
		return m.IsFinished() && len(pending[m.ID]) > 0
	})
	for _, m := range matches {
		preds := pending[m.ID]
		sort.Slice(preds, func(i, j int) bool { return preds[i].ID < preds[j].ID })
		m.Predictions = preds
	}
	return matches, nil
}

// FindFinishedNotNotified returns finished matches not yet notified
func (r *MatchStore) FindFinishedNotNotified(ctx context.Context) ([]*models.MatchDetails, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	var out []*models.MatchDetails
	for _, m := range r.collect(func(m *models.Match) bool { return m.IsFinished() && !m.NotificationSent }) {
		out = append(out, r.details(m))
	}
	return out, nil
}

// MarkNotificationSent flags a match as notified
func (r *MatchStore) MarkNotificationSent(ctx context.Context, id int) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	m, ok := r.st.matches[id]
	if !ok {
		return fmt.Errorf("match id=%d: %w", id, repository.ErrNotFound)
	}
	m.NotificationSent = true
	m.UpdatedAt = r.st.now()
	return nil
}

// FindFiltered returns matches with display names, narrowed by filter
func (r *MatchStore) FindFiltered(ctx context.Context, filter repository.MatchFilter) ([]*models.MatchDetails, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	name := strings.ToLower(strings.TrimSpace(filter.TeamName))

	var out []*models.MatchDetails
	for _, m := range r.collect(func(*models.Match) bool { return true }) {
		if filter.DateFrom != nil && m.Datetime.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && m.Datetime.After(*filter.DateTo) {
			continue
		}
		if filter.TournamentID != nil && m.TournamentID != *filter.TournamentID {
			continue
		}
		d := r.details(m)
		if name != "" &&
			!strings.Contains(strings.ToLower(d.HomeTeamName), name) &&
			!strings.Contains(strings.ToLower(d.AwayTeamName), name) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Save inserts or updates a match. The notification flag is written on insert only.
func (r *MatchStore) Save(ctx context.Context, m *models.Match) error {
	if err := m.Validate(); err != nil {
		return err
	}

	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	now := r.st.now()
	if m.ID == 0 {
		m.ID = r.st.nextID()
		m.CreatedAt, m.UpdatedAt = now, now
		r.st.matches[m.ID] = copyMatch(m)
		return nil
	}

	existing, ok := r.st.matches[m.ID]
	if !ok {
		return fmt.Errorf("match id=%d: %w", m.ID, repository.ErrNotFound)
	}
	sent := existing.NotificationSent
	created := existing.CreatedAt
	*existing = *copyMatch(m)
	existing.NotificationSent = sent
	existing.CreatedAt = created
	existing.UpdatedAt = now
	m.UpdatedAt = now
	return nil
}

// RecordRevision stores a score revision
func (r *MatchStore) RecordRevision(ctx context.Context, rev *models.ScoreRevision) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.matches[rev.MatchID]; !ok {
		return fmt.Errorf("match id=%d: %w", rev.MatchID, repository.ErrNotFound)
	}
	rev.ID = r.st.nextID()
	if rev.DetectedAt.IsZero() {
		rev.DetectedAt = r.st.now()
	}
	c := *rev
	r.st.revisions = append(r.st.revisions, &c)
	return nil
}

// ListRevisions returns the revision history of a match, oldest first
func (r *MatchStore) ListRevisions(ctx context.Context, matchID int) ([]*models.ScoreRevision, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	var out []*models.ScoreRevision
	for _, rev := range r.st.revisions {
		if rev.MatchID == matchID {
			c := *rev
			out = append(out, &c)
		}
	}
	return out, nil
}

// PredictionStore is the in-memory prediction repository
type PredictionStore struct{ st *state }

// Create inserts a prediction for a match that has not started
func (r *PredictionStore) Create(ctx context.Context, pred *models.Prediction) error {
	if err := pred.Validate(); err != nil {
		return fmt.Errorf("prediction validation failed: %w", err)
	}

	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	m, ok := r.st.matches[pred.MatchID]
	if !ok {
		return fmt.Errorf("match id=%d: %w", pred.MatchID, repository.ErrNotFound)
	}
	now := r.st.now()
	if m.HasStarted(now) {
		return fmt.Errorf("failed to create prediction: %w", models.ErrMatchStarted)
	}
	for _, p := range r.st.predictions {
		if p.UserID == pred.UserID && p.MatchID == pred.MatchID {
			return fmt.Errorf("failed to create prediction: user %d already predicted match %d", pred.UserID, pred.MatchID)
		}
	}

	pred.ID = r.st.nextID()
	pred.CreatedAt, pred.UpdatedAt = now, now
	r.st.predictions[pred.ID] = copyPrediction(pred)
	return nil
}

// ListByMatch returns every prediction of a match
func (r *PredictionStore) ListByMatch(ctx context.Context, matchID int) ([]*models.Prediction, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	var out []*models.Prediction
	for _, p := range r.st.predictions {
		if p.MatchID == matchID {
			out = append(out, copyPrediction(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveScored applies graded predictions that are still unscored and bumps standings.
// Returns the predictions applied by this call.
// The batch is validated before any write so it applies all-or-nothing.
func (r *PredictionStore) SaveScored(ctx context.Context, match *models.Match, preds []*models.Prediction) ([]*models.Prediction, error) {
	if !match.IsFinished() {
		return nil, fmt.Errorf("match id=%d is not finished", match.ID)
	}

	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	for _, p := range preds {
		if p.MatchID != match.ID {
			return nil, fmt.Errorf("prediction id=%d belongs to match id=%d, not %d", p.ID, p.MatchID, match.ID)
		}
		if !p.Scored || !p.Points.Valid {
			return nil, fmt.Errorf("prediction id=%d has not been graded", p.ID)
		}
		if _, ok := r.st.predictions[p.ID]; !ok {
			return nil, fmt.Errorf("prediction id=%d: %w", p.ID, repository.ErrNotFound)
		}
	}

	now := r.st.now()
	var applied []*models.Prediction
	for _, p := range preds {
		stored := r.st.predictions[p.ID]
		if stored.Scored {
			continue
		}
		stored.Points = p.Points
		stored.Scored = true
		stored.UpdatedAt = now

		key := [2]int{stored.UserID, match.TournamentID}
		s, ok := r.st.standings[key]
		if !ok {
			s = &models.Standing{UserID: stored.UserID, TournamentID: match.TournamentID}
			r.st.standings[key] = s
		}
		exact, outcome := stored.Hits(match)
		s.Points += int(p.Points.Int32)
		if exact {
			s.ExactHits++
		}
		if outcome {
			s.OutcomeHits++
		}
		s.UpdatedAt = now
		applied = append(applied, p)
	}
	return applied, nil
}

// StandingStore is the in-memory standings repository
type StandingStore struct{ st *state }

// GetByUserAndTournament retrieves the standing of a user in a tournament
func (r *StandingStore) GetByUserAndTournament(ctx context.Context, userID, tournamentID int) (*models.Standing, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	s, ok := r.st.standings[[2]int{userID, tournamentID}]
	if !ok {
		return nil, fmt.Errorf("standing user_id=%d, tournament_id=%d: %w", userID, tournamentID, repository.ErrNotFound)
	}
	c := *s
	return &c, nil
}

// ListByTournament returns the leaderboard of a tournament
func (r *StandingStore) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Standing, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	var out []*models.Standing
	for _, s := range r.st.standings {
		if s.TournamentID == tournamentID {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		if out[i].ExactHits != out[j].ExactHits {
			return out[i].ExactHits > out[j].ExactHits
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}
