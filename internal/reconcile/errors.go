package reconcile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrBatchAborted is reported for tournaments left untried after repeated fetch failures
	ErrBatchAborted = errors.New("reconciliation batch aborted after repeated fetch failures")
	// ErrNoRemoteID is returned for a tournament not linked to a provider competition
	ErrNoRemoteID = errors.New("tournament has no remote id")
	// ErrInvalidFixture is returned for a fixture missing team ids or a parseable date
	ErrInvalidFixture = errors.New("invalid fixture")
	// ErrInvalidWindow is returned for a date range that ends before it starts
	ErrInvalidWindow = errors.New("invalid reconciliation window")
)

// DuplicateFixtureError reports a fixture that maps to more than one local match
type DuplicateFixtureError struct {
	TournamentID int
	FixtureID    int
	MatchIDs     []int
}

func (e *DuplicateFixtureError) Error() string {
	ids := make([]string, len(e.MatchIDs))
	for i, id := range e.MatchIDs {
		ids[i] = strconv.Itoa(id)
	}
	return fmt.Sprintf("fixture %d in tournament %d matches %d local matches (%s)",
		e.FixtureID, e.TournamentID, len(e.MatchIDs), strings.Join(ids, ", "))
}

// IsDuplicateFixture reports whether err is or wraps a DuplicateFixtureError
func IsDuplicateFixture(err error) bool {
	var de *DuplicateFixtureError
	return errors.As(err, &de)
}
