package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sportify/worker/internal/metrics"
	"sportify/worker/internal/models"
)

// TeamSyncResult counts what a team refresh changed
type TeamSyncResult struct {
	Fetched int
	Created int
	Updated int
}

// SyncTeams refreshes the teams of a tournament from the feed: unknown teams
// are created and changed names are updated.
func (r *Reconciler) SyncTeams(ctx context.Context, tournament *models.Tournament) (TeamSyncResult, error) {
	start := time.Now()
	var res TeamSyncResult

	if !tournament.RemoteID.Valid {
		return res, fmt.Errorf("tournament id=%d: %w", tournament.ID, ErrNoRemoteID)
	}
	remoteID := int(tournament.RemoteID.Int64)

	logger := loggerFrom(ctx).With().
		Int("tournament_id", tournament.ID).
		Int("remote_id", remoteID).
		Logger()

	inputs, err := r.feed.FetchTeamsByTournament(ctx, remoteID)
	if err != nil {
		metrics.RecordSync("teams", "error", time.Since(start).Seconds())
		metrics.RecordError("reconcile", "fetch")
		return res, fmt.Errorf("tournament %q: %w", tournament.Name, err)
	}
	res.Fetched = len(inputs)

	for _, in := range inputs {
		if in.ID == 0 {
			logger.Warn().Str("name", in.Name).Msg("Skipping team without id")
			continue
		}

		team, created, err := r.getOrCreateTeam(ctx, in)
		if err != nil {
			metrics.RecordSync("teams", "error", time.Since(start).Seconds())
			return res, err
		}

		if created {
			res.Created++
		} else if applyTeamNames(team, in) {
			if err := r.teams.Update(ctx, team); err != nil {
				metrics.RecordSync("teams", "error", time.Since(start).Seconds())
				return res, fmt.Errorf("failed to update team %d: %w", team.ID, err)
			}
			res.Updated++
		}

		r.cache.SetTeamID(ctx, in.ID, team.ID)
	}

	metrics.RecordReconcile(0, 0, 0, res.Created, 0)
	metrics.RecordSync("teams", "success", time.Since(start).Seconds())

	logger.Info().
		Int("fetched", res.Fetched).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Msg("Teams refreshed")

	return res, nil
}

func applyTeamNames(team *models.Team, in models.TeamInput) bool {
	changed := false
	if in.Name != "" && team.Name != in.Name {
		team.Name = in.Name
		changed = true
	}
	if in.ShortName != "" && (!team.ShortName.Valid || team.ShortName.String != in.ShortName) {
		team.ShortName = sql.NullString{String: in.ShortName, Valid: true}
		changed = true
	}
	return changed
}
