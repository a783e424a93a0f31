package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildFilteredQuery(t *testing.T) {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	tournamentID := 7

	tests := []struct {
		name      string
		filter    MatchFilter
		wantWhere []string
		wantArgs  []any
	}{
		{
			name:     "no filter",
			filter:   MatchFilter{},
			wantArgs: nil,
		},
		{
			name:      "date range",
			filter:    MatchFilter{DateFrom: &from, DateTo: &to},
			wantWhere: []string{"m.datetime >= $1", "m.datetime <= $2"},
			wantArgs:  []any{from, to},
		},
		{
			name:      "tournament only",
			filter:    MatchFilter{TournamentID: &tournamentID},
			wantWhere: []string{"m.tournament_id = $1"},
			wantArgs:  []any{7},
		},
		{
			name:      "team name is escaped and shared by both sides",
			filter:    MatchFilter{TournamentID: &tournamentID, TeamName: " 100%_Club "},
			wantWhere: []string{"m.tournament_id = $1", "(ht.name ILIKE $2 OR awt.name ILIKE $2)"},
			wantArgs:  []any{7, `%100\%\_Club%`},
		},
		{
			name:     "blank team name is ignored",
			filter:   MatchFilter{TeamName: "   "},
			wantArgs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildFilteredQuery(tt.filter)

			assert.Equal(t, tt.wantArgs, args)
			assert.True(t, strings.HasSuffix(query, "ORDER BY m.datetime, m.id"))

			if len(tt.wantWhere) == 0 {
				assert.NotContains(t, query, "WHERE")
				return
			}
			assert.Contains(t, query, "WHERE")
			for _, clause := range tt.wantWhere {
				assert.Contains(t, query, clause)
			}
			assert.Equal(t, len(tt.wantWhere)-1, strings.Count(query, "\n\t  AND "))
		})
	}
}
